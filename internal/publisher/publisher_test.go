package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/mdpub/internal/apperr"
	"github.com/starford/mdpub/internal/models"
	"github.com/starford/mdpub/internal/testutil"
	"github.com/starford/mdpub/internal/translator"
)

const (
	mdFile   = "md_metadata.json"
	iso1File = "iso1.xml"
	iso2File = "iso2.xml"
)

type recorder struct{ events []string }

func (r *recorder) ItemEvent(kind, itemID, _ string) {
	r.events = append(r.events, kind+":"+itemID)
}

type env struct {
	cat    *testutil.Catalog
	tr     *testutil.Translator
	events *recorder
	svc    *Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cat := testutil.NewCatalog()
	cat.Folder("root", "")
	cat.Folder("community", "root")
	cat.Folder("orph-proj", "community")
	cat.Folder("orph-prod", "community")
	cat.Folder("elsewhere", "root")
	tr := testutil.NewTranslator()
	rec := &recorder{}
	svc := New(cat, tr, Config{
		CommunityID:      "community",
		OrphanProjectsID: "orph-proj",
		OrphanProductsID: "orph-prod",
		MetadataFile:     mdFile,
		ISO1File:         iso1File,
		ISO2File:         iso2File,
	}, WithNotifier(rec))
	return &env{cat: cat, tr: tr, events: rec, svc: svc}
}

func record(t *testing.T, resourceType, title, key string, assoc ...string) *models.Record {
	t.Helper()
	doc := fmt.Sprintf(`{"schema":{"name":"mdJson"},"metadata":{"resourceInfo":{
		"resourceType":[{"type":%q}],
		"citation":{"title":%q,"identifier":[{"identifier":%q,"namespace":"lcc:pts"}]},
		"extent":[{"geographicExtent":[{"geographicElement":[{"type":"Point","coordinates":[1,2]}]}]}]},
		"associatedResource":[%s]}}`, resourceType, title, key, strings.Join(assoc, ","))
	r, err := models.ParseRecord([]byte(doc))
	require.NoError(t, err)
	return r
}

func parentProject(key string) string {
	return fmt.Sprintf(`{"associationType":"parentProject","metadataCitation":{"identifier":[{"identifier":%q,"namespace":"lcc:pts"}]}}`, key)
}

func publishOne(t *testing.T, e *env, req *models.PublishRequest, itemID string) Outcome {
	t.Helper()
	outs, err := e.svc.Publish(context.Background(), req, itemID)
	require.NoError(t, err)
	require.NotEmpty(t, outs)
	return outs[0]
}

func TestPublishCreatesProject(t *testing.T) {
	e := newEnv(t)
	out := publishOne(t, e, &models.PublishRequest{Record: record(t, "project", "Pollinators", "P1")}, "")

	require.Equal(t, StateCreated, out.State, out.Errors)
	assert.Equal(t, "orph-proj", out.Item.ParentID)
	assert.True(t, out.Item.HasBrowseCategory(BrowseCategoryProject))
	assert.Len(t, out.Item.Extents, 1)
	for _, name := range []string{mdFile, iso1File, iso2File} {
		_, ok := out.Item.FileNamed(name)
		assert.True(t, ok, name)
	}
	f, _ := out.Item.FileNamed(iso2File)
	assert.Equal(t, MIMEISO2, f.ContentType)
	assert.Equal(t, []string{EventCreated + ":" + out.Item.ID}, e.events.events)
}

func TestPublishIsIdempotent(t *testing.T) {
	e := newEnv(t)
	req := &models.PublishRequest{Record: record(t, "project", "Pollinators", "P1")}

	first := publishOne(t, e, req, "")
	require.Equal(t, StateCreated, first.State)
	require.Equal(t, 1, e.cat.Calls("UpsertItem"))

	second := publishOne(t, e, req, "")
	assert.Equal(t, StateUnchanged, second.State)
	assert.Equal(t, first.Item.ID, second.Item.ID)
	assert.Contains(t, second.Messages, "Nothing new to update for: "+first.Item.ID)
	assert.Equal(t, 1, e.cat.Calls("UpsertItem"), "no persistence on an unchanged record")

	force := true
	req.ForceUpdate = &force
	third := publishOne(t, e, req, "")
	assert.Equal(t, StateUpdated, third.State)
	assert.Equal(t, 2, e.cat.Calls("UpsertItem"))
}

func TestPublishUpdatePreservesCuratedFields(t *testing.T) {
	e := newEnv(t)
	e.tr.Item = func(_ *models.Record, it *models.Item) {
		it.Facets = []models.Facet{{ClassName: models.FacetClassProject, Fields: map[string]json.RawMessage{
			"projectStatus": json.RawMessage(`"Active"`),
		}}}
	}
	var budget models.Facet
	require.NoError(t, json.Unmarshal([]byte(`{"className":"`+models.FacetClassBudget+`","annualBudgets":[100]}`), &budget))
	var project models.Facet
	require.NoError(t, json.Unmarshal([]byte(`{"className":"`+models.FacetClassProject+`","projectStatus":"Proposed","parts":[{"type":"x"}]}`), &project))
	id := e.cat.Add(models.Item{
		ParentID:    "orph-proj",
		Title:       "Old",
		Identifiers: []models.Identifier{{Scheme: "lcc:pts", Type: "lcc:pts", Key: "P1"}},
		Facets:      []models.Facet{project, budget},
		Files:       []models.File{{Name: "photo.png", URL: "mem://photo"}},
	})

	out := publishOne(t, e, &models.PublishRequest{Record: record(t, "project", "New", "P1")}, "")
	require.Equal(t, StateUpdated, out.State, out.Errors)
	assert.Equal(t, id, out.Item.ID)
	assert.Equal(t, "orph-proj", out.Item.ParentID)
	assert.Equal(t, "New", out.Item.Title)
	_, ok := out.Item.FileNamed("photo.png")
	assert.True(t, ok)

	require.Len(t, out.Item.Facets, 2)
	status, _ := out.Item.Facets[0].Field("projectStatus")
	assert.JSONEq(t, `"Active"`, string(status))
	parts, _ := out.Item.Facets[0].Field("parts")
	assert.JSONEq(t, `[{"type":"x"}]`, string(parts))
	budgets, _ := out.Item.Facets[1].Field("annualBudgets")
	assert.JSONEq(t, `[100]`, string(budgets))
}

func TestPublishAmbiguousMatchWritesNothing(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 2; i++ {
		e.cat.Add(models.Item{ParentID: "community", Identifiers: []models.Identifier{{Scheme: "lcc:pts", Type: "lcc:pts", Key: "k"}}})
	}
	out := publishOne(t, e, &models.PublishRequest{Record: record(t, "product", "Dup", "k")}, "")
	assert.Equal(t, StateError, out.State)
	assert.True(t, errors.Is(out.Err, apperr.ErrAmbiguous))
	assert.Equal(t, []string{"More than one instance found, skipping: Dup"}, out.Errors)
	assert.Equal(t, 0, e.cat.Calls("UpsertItem"))
	assert.Equal(t, 0, e.cat.Calls("CreateLink"))
}

func TestPublishUnknownItemID(t *testing.T) {
	e := newEnv(t)
	missing := "aaaaaaaaaaaaaaaaaaaaaaaa"
	out := publishOne(t, e, &models.PublishRequest{Record: record(t, "product", "X", "nomatch")}, missing)
	assert.Equal(t, StateError, out.State)
	assert.True(t, errors.Is(out.Err, apperr.ErrNotFound))
	assert.Equal(t, []string{"No item found for specified catalog identifier " + missing}, out.Errors)
}

func TestPublishTranslationFailure(t *testing.T) {
	e := newEnv(t)
	e.tr.Fail[translator.FormatSbJSON] = apperr.WithMessages(apperr.ErrTranslation, "Error transforming to sbJson", "missing contact")
	out := publishOne(t, e, &models.PublishRequest{Record: record(t, "product", "Broken", "b")}, "")
	assert.Equal(t, StateError, out.State)
	assert.True(t, errors.Is(out.Err, apperr.ErrTranslation))
	assert.Equal(t, []string{
		"An error occurred translating mdJSON for record Broken",
		"Error transforming to sbJson",
		"missing contact",
	}, out.Errors)
}

func TestPublishProductUnderParentProjectAndLinks(t *testing.T) {
	e := newEnv(t)
	project := e.cat.Add(models.Item{ParentID: "community", Identifiers: []models.Identifier{{Scheme: "lcc:pts", Type: "lcc:pts", Key: "P1"}}})

	out := publishOne(t, e, &models.PublishRequest{Record: record(t, "product", "Report", "R1", parentProject("P1"))}, "")
	require.Equal(t, StateCreated, out.State, out.Errors)
	assert.Equal(t, project, out.Item.ParentID)
	assert.Empty(t, out.Warnings)

	links := e.cat.Links()
	require.Len(t, links, 1)
	assert.Equal(t, out.Item.ID, links[0].ItemID)
	assert.Equal(t, project, links[0].RelatedItemID)
	assert.Equal(t, "lt-product", links[0].TypeID)
}

func TestPublishOrphanProductAndCallerParent(t *testing.T) {
	e := newEnv(t)
	out := publishOne(t, e, &models.PublishRequest{Record: record(t, "product", "Lonely", "L1", parentProject("unknown"))}, "")
	require.Equal(t, StateCreated, out.State)
	assert.Equal(t, "orph-prod", out.Item.ParentID)

	folder := e.cat.Add(models.Item{ParentID: "community"})
	out = publishOne(t, e, &models.PublishRequest{Record: record(t, "product", "Placed", "L2"), ParentID: folder}, "")
	require.Equal(t, StateCreated, out.State)
	assert.Equal(t, folder, out.Item.ParentID)
}

func TestPublishPersistenceFailureKeepsMessages(t *testing.T) {
	e := newEnv(t)
	e.cat.FailUpsert = errors.New("storage offline")
	out := publishOne(t, e, &models.PublishRequest{Record: record(t, "product", "P", "p")}, "")
	assert.Equal(t, StateError, out.State)
	assert.True(t, errors.Is(out.Err, apperr.ErrPersistence))
	assert.Equal(t, []string{"Unable to upload " + mdFile, "storage offline"}, out.Errors)
	require.Len(t, out.Messages, 1)
	assert.Contains(t, out.Messages[0], "creating new item for: P")
}

func TestPublishRejectedPlacementKeepsCatalogMessage(t *testing.T) {
	e := newEnv(t)
	e.cat.FailUpsert = apperr.WithMessages(apperr.ErrInvalid, "Item x cannot be placed under itself or its descendant y")
	out := publishOne(t, e, &models.PublishRequest{Record: record(t, "product", "P", "p")}, "")
	assert.Equal(t, StateError, out.State)
	assert.ErrorIs(t, out.Err, apperr.ErrInvalid)
	assert.False(t, errors.Is(out.Err, apperr.ErrPersistence))
	assert.Equal(t, []string{"Item x cannot be placed under itself or its descendant y"}, out.Errors)
}

func TestPublishOmitsFailedRenditions(t *testing.T) {
	e := newEnv(t)
	e.tr.Fail[translator.FormatISO1] = apperr.WithMessages(apperr.ErrTranslation, "iso1 broken")
	out := publishOne(t, e, &models.PublishRequest{Record: record(t, "product", "P", "p")}, "")
	require.Equal(t, StateCreated, out.State)
	_, hasISO1 := out.Item.FileNamed(iso1File)
	_, hasISO2 := out.Item.FileNamed(iso2File)
	assert.False(t, hasISO1)
	assert.True(t, hasISO2)
}

func TestPublishWithRelatedRecords(t *testing.T) {
	e := newEnv(t)
	req := &models.PublishRequest{
		Record:        record(t, "project", "Parent", "P9"),
		Relationships: []*models.Record{record(t, "product", "Child A", "C1"), record(t, "product", "Child B", "C2")},
	}
	outs, err := e.svc.Publish(context.Background(), req, "")
	require.NoError(t, err)
	require.Len(t, outs, 3)
	primary := outs[0].Item.ID
	for _, o := range outs[1:] {
		require.Equal(t, StateCreated, o.State, o.Errors)
		assert.Equal(t, primary, o.Item.ParentID)
	}

	links := e.cat.Links()
	require.Len(t, links, 2)
	for i, l := range links {
		assert.Equal(t, outs[i+1].Item.ID, l.ItemID, "reversed: product is productOf primary")
		assert.Equal(t, primary, l.RelatedItemID)
	}
}

func TestPublishRequiresRecord(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Publish(context.Background(), &models.PublishRequest{}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
	assert.Equal(t, []string{"mdjson is required"}, apperr.MessagesOf(err))
}

func TestReplaceMetadata(t *testing.T) {
	e := newEnv(t)
	id := e.cat.Add(models.Item{ParentID: "community", Title: "Curated title",
		Identifiers: []models.Identifier{{Scheme: "lcc:pts", Type: "lcc:pts", Key: "K"}}})

	out := e.svc.ReplaceMetadata(context.Background(), record(t, "product", "Translated", "K"))
	require.Equal(t, StateUpdated, out.State, out.Errors)
	assert.Equal(t, id, out.Item.ID)
	assert.Equal(t, "Curated title", out.Item.Title)
	_, ok := out.Item.FileNamed(mdFile)
	assert.True(t, ok)

	missing := e.svc.ReplaceMetadata(context.Background(), record(t, "product", "Ghost", "none"))
	assert.True(t, errors.Is(missing.Err, apperr.ErrNotFound))
	assert.Equal(t, []string{"No catalog item found for Ghost"}, missing.Errors)
}

func TestMetadata(t *testing.T) {
	e := newEnv(t)
	withFile := e.cat.Add(models.Item{ParentID: "community", Title: "A"})
	e.cat.SetFile(withFile, mdFile, []byte(`{"metadata":{"attached":true}}`))
	bare := e.cat.Add(models.Item{ParentID: "community", Title: "B"})

	doc, err := e.svc.Metadata(context.Background(), withFile, false)
	require.NoError(t, err)
	assert.JSONEq(t, `{"metadata":{"attached":true}}`, string(doc))
	assert.Equal(t, 0, e.tr.Calls(translator.FormatMdJSON))

	doc, err = e.svc.Metadata(context.Background(), bare, true)
	require.NoError(t, err)
	r, err := models.ParseRecord(doc)
	require.NoError(t, err)
	assert.Equal(t, "B", r.Title())
	stored, _ := e.cat.Item(bare)
	_, ok := stored.FileNamed(mdFile)
	assert.True(t, ok, "replace attaches the metadata file")

	_, err = e.svc.Metadata(context.Background(), "missing", false)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestCollectForDeletionIsPostOrder(t *testing.T) {
	e := newEnv(t)
	root := e.cat.Add(models.Item{ParentID: "community"})
	childA := e.cat.Add(models.Item{ParentID: root})
	grandchild := e.cat.Add(models.Item{ParentID: childA})
	childB := e.cat.Add(models.Item{ParentID: root})

	ids, err := e.svc.CollectForDeletion(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, ids, 4)
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	assert.Less(t, pos[grandchild], pos[childA])
	assert.Less(t, pos[childA], pos[root])
	assert.Less(t, pos[childB], pos[root])
	assert.Equal(t, root, ids[len(ids)-1])
}

func TestDelete(t *testing.T) {
	e := newEnv(t)
	project := e.cat.Add(models.Item{ParentID: "community", BrowseCategories: []string{"Project"}})
	child := e.cat.Add(models.Item{ParentID: project})

	res, err := e.svc.Delete(context.Background(), project, BrowseCategoryProject)
	require.NoError(t, err)
	assert.Equal(t, []string{child, project}, res.Deleted)
	assert.Equal(t, [][]string{{child, project}}, e.cat.Deleted)
	_, exists := e.cat.Item(project)
	assert.False(t, exists)
	assert.Contains(t, e.events.events, EventDeleted+":"+project)
}

func TestDeleteGuards(t *testing.T) {
	e := newEnv(t)
	outside := e.cat.Add(models.Item{ParentID: "elsewhere"})
	product := e.cat.Add(models.Item{ParentID: "community"})

	_, err := e.svc.Delete(context.Background(), outside, "")
	assert.True(t, errors.Is(err, apperr.ErrOutOfScope))

	_, err = e.svc.Delete(context.Background(), product, BrowseCategoryProject)
	assert.True(t, errors.Is(err, apperr.ErrOutOfScope))
	assert.Equal(t, []string{fmt.Sprintf("Item %s not correct type, Project browse category not found", product)}, apperr.MessagesOf(err))
	assert.Equal(t, 0, e.cat.Calls("DeleteItems"))

	e.cat.FailDelete = errors.New("partial failure")
	_, err = e.svc.Delete(context.Background(), product, "")
	assert.True(t, errors.Is(err, apperr.ErrPersistence))
	assert.Equal(t, []string{"Unable to delete " + product}, apperr.MessagesOf(err))
}
