package translator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/mdpub/internal/apperr"
)

func serve(t *testing.T, status int, body string, check func(r *http.Request)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	c, err := New(srv.URL + "/api/v3/translates")
	require.NoError(t, err)
	return c
}

func TestTranslateSuccess(t *testing.T) {
	c := serve(t, http.StatusOK, `{"success":true,"data":"{\"title\":\"T\"}"}`, func(r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, FormatMdJSON, r.PostForm.Get("reader"))
		assert.Equal(t, FormatSbJSON, r.PostForm.Get("writer"))
		assert.Equal(t, "normal", r.PostForm.Get("validate"))
		assert.Equal(t, "json", r.PostForm.Get("format"))
		assert.Equal(t, `{"metadata":{}}`, r.PostForm.Get("file"))
	})
	out, err := c.Translate(context.Background(), []byte(`{"metadata":{}}`), FormatMdJSON, FormatSbJSON)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"T"}`, string(out))
}

func TestTranslateFromCatalogSkipsValidation(t *testing.T) {
	c := serve(t, http.StatusOK, `{"success":true,"data":"{}"}`, func(r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "none", r.PostForm.Get("validate"))
	})
	_, err := c.Translate(context.Background(), []byte(`{}`), FormatSbJSON, FormatMdJSON)
	require.NoError(t, err)
}

func TestTranslateHTTPError(t *testing.T) {
	c := serve(t, http.StatusBadGateway, "upstream down", nil)
	_, err := c.Translate(context.Background(), []byte(`{}`), FormatMdJSON, FormatSbJSON)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrTranslation))
	assert.Equal(t, []string{"HTTP 502: upstream down"}, apperr.MessagesOf(err))
}

func TestTranslateFlattensFailingStages(t *testing.T) {
	body := `{"success":false,"messages":{
		"readerStructurePass":true,"readerStructureMessages":["ignored"],
		"readerValidationPass":false,"readerValidationMessages":["summary","[\"missing title\",{\"path\":\"/x\"}]"],
		"readerExecutionPass":false,"readerExecutionMessages":["boom","[\"kept raw\"]"]}}`
	c := serve(t, http.StatusOK, body, nil)

	_, err := c.Translate(context.Background(), []byte(`{}`), FormatMdJSON, FormatSbJSON)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrTranslation))
	assert.Equal(t, []string{
		"Error transforming to sbJson",
		"missing title",
		`{"path":"/x"}`,
		"boom",
		`["kept raw"]`,
	}, apperr.MessagesOf(err))
}

func TestTranslateUnparseableEmbeddedMessagesKeptRaw(t *testing.T) {
	body := `{"success":false,"messages":{
		"readerStructurePass":false,"readerStructureMessages":["a","not json"],
		"readerValidationPass":true,"readerExecutionPass":true}}`
	c := serve(t, http.StatusOK, body, nil)
	_, err := c.Translate(context.Background(), []byte(`{}`), FormatMdJSON, FormatISO1)
	assert.Equal(t, []string{"Error transforming to iso19115_1", "a", "not json"}, apperr.MessagesOf(err))
}

func TestTranslateEmptyResponse(t *testing.T) {
	for _, body := range []string{`{}`, `{"success":true,"data":""}`} {
		c := serve(t, http.StatusOK, body, nil)
		_, err := c.Translate(context.Background(), []byte(`{}`), FormatMdJSON, FormatSbJSON)
		assert.Equal(t, []string{"Empty response from mdTranslator"}, apperr.MessagesOf(err), body)
	}
}
