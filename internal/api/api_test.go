package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/mdpub/internal/catalog"
	"github.com/starford/mdpub/internal/models"
	"github.com/starford/mdpub/internal/publisher"
	"github.com/starford/mdpub/internal/testutil"
)

const projectRecord = `{"schema":{"name":"mdJson"},"metadata":{"resourceInfo":{
	"resourceType":[{"type":"project"}],
	"citation":{"title":"Pollinators","identifier":[{"identifier":"P1","namespace":"lcc:pts"}]}}}}`

// testEnv wires the router to a publisher over an in-memory catalog.
func testEnv(t *testing.T, authMode, token string) (*testutil.Catalog, http.Handler) {
	t.Helper()
	cat := testutil.NewCatalog()
	cat.Folder("community", "")
	svc := publisher.New(cat, testutil.NewTranslator(), publisher.Config{
		CommunityID:  "community",
		MetadataFile: "md_metadata.json",
		ISO1File:     "iso1.xml",
		ISO2File:     "iso2.xml",
	}, publisher.WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))))
	return cat, NewRouter(NewHandler(svc, "1.2.3"), authMode, token, nil)
}

func do(t *testing.T, router http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func publishBody(t *testing.T) string {
	t.Helper()
	b, err := json.Marshal(map[string]json.RawMessage{"mdjson": json.RawMessage(projectRecord)})
	require.NoError(t, err)
	return string(b)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestVersion(t *testing.T) {
	_, router := testEnv(t, AuthModeToken, "secret")

	w := do(t, router, http.MethodGet, "/version", "")
	require.Equal(t, http.StatusOK, w.Code)
	var v VersionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, "1.2.3", v.Version)
}

func TestPublishCreateThenUnchanged(t *testing.T) {
	cat, router := testEnv(t, AuthModePassthrough, "")

	w := do(t, router, http.MethodPost, "/project", publishBody(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created models.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Pollinators", created.Title)
	require.NotEmpty(t, created.ID)
	stored, ok := cat.Item(created.ID)
	require.True(t, ok)
	assert.True(t, stored.HasBrowseCategory(publisher.BrowseCategoryProject))

	w = do(t, router, http.MethodPost, "/project", publishBody(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var again models.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &again))
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, 1, cat.Calls("UpsertItem"))
}

func TestPublishWrappedInData(t *testing.T) {
	_, router := testEnv(t, AuthModePassthrough, "")

	w := do(t, router, http.MethodPost, "/product", `{"data":`+publishBody(t)+`}`)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestPublishErrorEnvelope(t *testing.T) {
	_, router := testEnv(t, AuthModePassthrough, "")

	w := do(t, router, http.MethodPost, "/project", `{"parentid":"x"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Error.Messages, "mdjson is required")

	w = do(t, router, http.MethodPost, "/project", `{not json`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"invalid JSON body"}, decodeError(t, w).Error.Messages)
}

func TestNotFoundEnvelope(t *testing.T) {
	_, router := testEnv(t, AuthModePassthrough, "")

	w := do(t, router, http.MethodGet, "/nowhere", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, []string{"Not found"}, decodeError(t, w).Error.Messages)

	w = do(t, router, http.MethodPatch, "/project/abc", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestGetMetadata(t *testing.T) {
	_, router := testEnv(t, AuthModePassthrough, "")

	w := do(t, router, http.MethodPost, "/project", publishBody(t))
	require.Equal(t, http.StatusOK, w.Code)
	var created models.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = do(t, router, http.MethodGet, "/mdjson/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, projectRecord, w.Body.String())

	// A remote-style catalog failure keeps its status.
	w = do(t, router, http.MethodGet, "/mdjson/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReplaceMetadata(t *testing.T) {
	_, router := testEnv(t, AuthModePassthrough, "")

	w := do(t, router, http.MethodPost, "/project", publishBody(t))
	require.Equal(t, http.StatusOK, w.Code)
	var created models.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = do(t, router, http.MethodPost, "/mdjson", projectRecord)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, created.ID, updated.ID)
}

func TestDeleteProjectRequiresCategory(t *testing.T) {
	cat, router := testEnv(t, AuthModePassthrough, "")
	product := cat.Add(models.Item{ParentID: "community", Title: "Data release"})

	w := do(t, router, http.MethodDelete, "/project/"+product, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Error.Messages[0], "browse category not found")

	w = do(t, router, http.MethodDelete, "/product/"+product, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res DeleteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, []string{product}, res.Deleted)
	_, ok := cat.Item(product)
	assert.False(t, ok)
}

func TestDeleteOutsideCommunity(t *testing.T) {
	cat, router := testEnv(t, AuthModePassthrough, "")
	stray := cat.Add(models.Item{Title: "elsewhere"})

	w := do(t, router, http.MethodDelete, "/product/"+stray, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"Item " + stray + " not in community"}, decodeError(t, w).Error.Messages)
}

func TestTokenModeAuth(t *testing.T) {
	_, router := testEnv(t, AuthModeToken, "secret")

	w := do(t, router, http.MethodPost, "/project", publishBody(t))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	for _, wrong := range []string{"wrong", "secre", "secretx"} {
		w = do(t, router, http.MethodPost, "/project", publishBody(t), "Authorization", "Bearer "+wrong)
		assert.Equal(t, http.StatusUnauthorized, w.Code, wrong)
	}

	w = do(t, router, http.MethodPost, "/project", publishBody(t), "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestTokenMatches(t *testing.T) {
	assert.True(t, tokenMatches("secret", "secret"))
	assert.False(t, tokenMatches("secre", "secret"))
	assert.False(t, tokenMatches("secret", "Secret"))
	assert.False(t, tokenMatches("", "secret"))
}

// tokenRecorder captures the catalog token each call carries.
type tokenRecorder struct {
	Publisher
	tokens []string
}

func (r *tokenRecorder) record(ctx context.Context) {
	tok, _ := catalog.TokenFrom(ctx)
	r.tokens = append(r.tokens, tok)
}

func (r *tokenRecorder) Delete(ctx context.Context, _, _ string) (*publisher.DeleteResult, error) {
	r.record(ctx)
	return &publisher.DeleteResult{}, nil
}

func (r *tokenRecorder) ReplaceMetadata(ctx context.Context, _ *models.Record) publisher.Outcome {
	r.record(ctx)
	return publisher.Outcome{State: publisher.StateUpdated, Item: &models.Item{ID: "x"}}
}

func TestPassthroughForwardsToken(t *testing.T) {
	rec := &tokenRecorder{}
	router := NewRouter(NewHandler(rec, "dev"), AuthModePassthrough, "", nil)

	w := do(t, router, http.MethodDelete, "/product/abc", "", "Authorization", "Bearer caller-token")
	require.Equal(t, http.StatusOK, w.Code)

	// Without a header the record's own access_token is used.
	body := `{"metadata":{},"access_token":"body-token"}`
	w = do(t, router, http.MethodPost, "/mdjson", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, router, http.MethodPost, "/mdjson", body, "Authorization", "Bearer header-token")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"caller-token", "body-token", "header-token"}, rec.tokens)
}

func TestTokenModeDoesNotForward(t *testing.T) {
	rec := &tokenRecorder{}
	router := NewRouter(NewHandler(rec, "dev"), AuthModeToken, "secret", nil)

	w := do(t, router, http.MethodDelete, "/product/abc", "", "Authorization", "Bearer secret")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{""}, rec.tokens)
}

func TestEventsMounted(t *testing.T) {
	events := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	router := NewRouter(NewHandler(&tokenRecorder{}, "dev"), AuthModeToken, "secret", events)

	w := do(t, router, http.MethodGet, "/events", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(t, router, http.MethodGet, "/events", "", "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusTeapot, w.Code)
}
