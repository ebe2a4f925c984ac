package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/mdpub/internal/apperr"
	"github.com/starford/mdpub/internal/catalog"
	"github.com/starford/mdpub/internal/checksum"
	"github.com/starford/mdpub/internal/extent"
	"github.com/starford/mdpub/internal/identifier"
	"github.com/starford/mdpub/internal/linker"
	"github.com/starford/mdpub/internal/merge"
	"github.com/starford/mdpub/internal/models"
	"github.com/starford/mdpub/internal/translator"
)

// Publish publishes the request's record and then each related record as a
// product of it. The first outcome is the primary record's; related records
// are skipped when it failed. A request without a record is rejected.
func (s *Service) Publish(ctx context.Context, req *models.PublishRequest, itemID string) ([]Outcome, error) {
	if req == nil {
		return nil, apperr.WithMessages(apperr.ErrInvalid, "mdjson is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperr.WithMessages(apperr.ErrInvalid, models.ValidationMessages(err)...)
	}
	if _, ok := catalog.TokenFrom(ctx); !ok {
		ctx = catalog.WithToken(ctx, req.AccessToken)
	}

	p := s.paramsFor(req, itemID)
	primary := s.publishRecord(ctx, req.Record, p)
	outcomes := []Outcome{primary}
	if primary.Failed() || len(req.Relationships) == 0 {
		return outcomes, nil
	}

	parentID := primary.Item.ID
	for _, related := range req.Relationships {
		rp := p
		rp.itemID = ""
		rp.parentID = parentID
		out := s.publishRecord(ctx, related, rp)
		if !out.Failed() {
			if _, err := s.linker.LinkItems(ctx, linker.TypeProductOf, parentID, out.Item.ID, true); err != nil {
				msg := fmt.Sprintf("Unable to create %s relationship between %s and %s", linker.TypeProductOf, parentID, out.Item.ID)
				s.logger.Error(msg, slog.String("error", err.Error()))
				out.Warnings = append(out.Warnings, msg)
			}
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// publishRecord runs create, update or skip for a single record.
func (s *Service) publishRecord(ctx context.Context, r *models.Record, p params) Outcome {
	item, err := s.toItem(ctx, r)
	if err != nil {
		return translationFailed(r, err)
	}
	isProject := r.ResourceType() == models.ResourceProject
	if isProject {
		item.AddBrowseCategories(BrowseCategoryProject)
	}
	if p.itemID != "" {
		item.ID = p.itemID
	}

	found, err := s.locator.Locate(ctx, item, p.community)
	if err != nil {
		s.logger.Error("locate failed", slog.String("title", item.Title), slog.String("error", err.Error()))
		return failed(err, nil, err.Error())
	}
	switch {
	case len(found) > 1:
		return failed(apperr.ErrAmbiguous, nil, fmt.Sprintf("More than one instance found, skipping: %s", item.Title))
	case p.itemID != "" && len(found) == 0:
		return failed(apperr.ErrNotFound, nil, fmt.Sprintf("No item found for specified catalog identifier %s", p.itemID))
	}

	var messages []string
	var existing *models.Item
	if len(found) == 1 {
		msg := "Exists in community: " + item.Title
		s.logger.Info(msg, slog.String("id", found[0].ID))
		messages = append(messages, msg)

		existing, err = s.catalog.GetItem(ctx, found[0].ID, catalog.ItemFields)
		if err != nil {
			return failed(err, messages, fmt.Sprintf("Unable to read item %s: %v", found[0].ID, err))
		}
		if !p.force && s.unchanged(ctx, existing, r) {
			msg := "Nothing new to update for: " + existing.ID
			s.logger.Info(msg)
			s.notify(EventUnchanged, existing)
			return Outcome{State: StateUnchanged, Item: existing, Messages: append(messages, msg)}
		}
		item.Extents = extent.FromRecord(r)
		item = merge.Items(existing, item, merge.Options{DropFiles: []string{s.cfg.MetadataFile, s.cfg.ISO2File}})
	} else {
		msg := "No record exists in community, creating new item for: " + item.Title
		s.logger.Info(msg)
		messages = append(messages, msg)
		item.ID = ""
		item.Extents = extent.FromRecord(r)
	}

	if p.parentID != "" {
		item.ParentID = p.parentID
	} else {
		item.ParentID = s.parentFor(ctx, r, item, p)
	}

	saved, err := s.persist(ctx, item, r)
	if err != nil {
		s.logger.Error("persist failed", slog.String("title", item.Title), slog.String("error", err.Error()))
		return failed(err, messages, apperr.MessagesOf(err)...)
	}

	out := Outcome{State: StateCreated, Item: saved, Messages: messages}
	if existing != nil {
		out.State = StateUpdated
	}
	out.Warnings = s.linker.LinkAll(ctx, saved.ID, r, p.community)
	if out.State == StateCreated {
		s.notify(EventCreated, saved)
	} else {
		s.notify(EventUpdated, saved)
	}
	return out
}

// parentFor keeps a parent already inside the community; otherwise a product
// goes under the project its record names as parent, and anything else into
// the orphan folder for its resource type.
func (s *Service) parentFor(ctx context.Context, r *models.Record, item *models.Item, p params) string {
	if item.ParentID != "" && s.locator.IsAncestor(ctx, item.ParentID, p.community) {
		return item.ParentID
	}
	if r.ResourceType() == models.ResourceProject {
		return p.orphanProjects
	}

	var ids []models.Identifier
	for _, a := range r.AssociationsOfType(models.AssocParentProject) {
		ids = append(ids, identifier.FromCitation(a.Cite())...)
	}
	if len(ids) > 0 {
		found, err := s.locator.Locate(ctx, &models.Item{Identifiers: ids}, p.community)
		if err != nil {
			s.logger.Warn("parent project lookup failed", slog.String("error", err.Error()))
		}
		if len(found) > 0 {
			return found[0].ID
		}
	}
	return p.orphanProducts
}

// ReplaceMetadata re-attaches the record's metadata files to the single item
// in the configured community that represents it. Nothing else on the item
// changes.
func (s *Service) ReplaceMetadata(ctx context.Context, r *models.Record) Outcome {
	item, err := s.toItem(ctx, r)
	if err != nil {
		return translationFailed(r, err)
	}
	found, err := s.locator.Locate(ctx, item, s.cfg.CommunityID)
	if err != nil {
		return failed(err, nil, err.Error())
	}
	switch len(found) {
	case 0:
		return failed(apperr.ErrNotFound, nil, "No catalog item found for "+r.Title())
	case 1:
	default:
		return failed(apperr.ErrAmbiguous, nil, fmt.Sprintf("More than one instance found, skipping: %s", item.Title))
	}

	existing, err := s.catalog.GetItem(ctx, found[0].ID, catalog.ItemFields)
	if err != nil {
		return failed(err, nil, fmt.Sprintf("Unable to read item %s: %v", found[0].ID, err))
	}
	saved, err := s.persist(ctx, existing, r)
	if err != nil {
		return failed(err, nil, apperr.MessagesOf(err)...)
	}
	s.notify(EventUpdated, saved)
	return Outcome{State: StateUpdated, Item: saved}
}

// Metadata returns the mdJSON record of an item: its attached metadata file,
// or else the translation of the item itself. With replace the metadata files
// are re-attached to the item.
func (s *Service) Metadata(ctx context.Context, itemID string, replace bool) (json.RawMessage, error) {
	item, err := s.catalog.GetItem(ctx, itemID, catalog.ItemFields)
	if err != nil {
		return nil, fmt.Errorf("publisher: get item %s: %w", itemID, err)
	}
	models.Normalize(item)

	doc, ok := s.attachedRecord(ctx, item)
	if !ok {
		source, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("publisher: encode item: %w", err)
		}
		doc, err = s.translator.Translate(ctx, source, translator.FormatSbJSON, translator.FormatMdJSON)
		if err != nil {
			return nil, err
		}
	}

	if replace {
		r, err := models.ParseRecord(doc)
		if err != nil {
			return nil, apperr.WithMessages(apperr.ErrTranslation, "Translated metadata is not a record", err.Error())
		}
		saved, err := s.persist(ctx, item, r)
		if err != nil {
			return nil, err
		}
		s.notify(EventUpdated, saved)
	}
	return doc, nil
}

// toItem translates a record into a normalized catalog item.
func (s *Service) toItem(ctx context.Context, r *models.Record) (*models.Item, error) {
	data, err := s.translator.Translate(ctx, r.Raw(), translator.FormatMdJSON, translator.FormatSbJSON)
	if err != nil {
		return nil, err
	}
	var item models.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, apperr.WithMessages(apperr.ErrTranslation, "Error transforming to "+translator.FormatSbJSON, err.Error())
	}
	return models.Normalize(&item), nil
}

func translationFailed(r *models.Record, err error) Outcome {
	msgs := append([]string{"An error occurred translating mdJSON for record " + r.Title()}, apperr.MessagesOf(err)...)
	kind := apperr.ErrTranslation
	if !errors.Is(err, apperr.ErrTranslation) {
		kind = err
	}
	return failed(kind, nil, msgs...)
}

// unchanged reports whether the item's attached metadata file is structurally
// equal to the record.
func (s *Service) unchanged(ctx context.Context, existing *models.Item, r *models.Record) bool {
	prev, ok := s.attachedRecord(ctx, existing)
	if !ok {
		return false
	}
	return checksum.SameJSON(prev, r.Raw())
}

// attachedRecord downloads the item's metadata file. A missing or unreadable
// file is reported as absent.
func (s *Service) attachedRecord(ctx context.Context, item *models.Item) (json.RawMessage, bool) {
	f, ok := item.FileNamed(s.cfg.MetadataFile)
	if !ok {
		return nil, false
	}
	data, err := s.catalog.Download(ctx, f)
	if err != nil {
		s.logger.Error("failed to download attached metadata",
			slog.String("id", item.ID),
			slog.String("error", err.Error()))
		return nil, false
	}
	if !json.Valid(data) {
		s.logger.Error("failed to parse attached metadata", slog.String("id", item.ID))
		return nil, false
	}
	return data, true
}

// persist uploads the item with the record and its ISO renditions attached.
// Renditions that fail to translate are left out.
func (s *Service) persist(ctx context.Context, item *models.Item, r *models.Record) (*models.Item, error) {
	uploads := []catalog.Upload{{Name: s.cfg.MetadataFile, ContentType: MIMEMdJSON, Content: r.Raw()}}
	for _, rend := range []struct{ writer, name, mime string }{
		{translator.FormatISO1, s.cfg.ISO1File, MIMEISO1},
		{translator.FormatISO2, s.cfg.ISO2File, MIMEISO2},
	} {
		data, err := s.translator.Translate(ctx, r.Raw(), translator.FormatMdJSON, rend.writer)
		if err != nil || len(data) == 0 {
			s.logger.Debug("rendition omitted", slog.String("file", rend.name))
			continue
		}
		uploads = append(uploads, catalog.Upload{Name: rend.name, ContentType: rend.mime, Content: data})
	}

	working := *item
	names := make([]string, len(uploads))
	for i, u := range uploads {
		names[i] = u.Name
	}
	working.Files = item.WithoutFiles(names...)

	saved, err := s.catalog.UpsertItem(ctx, &working, uploads)
	if errors.Is(err, apperr.ErrInvalid) {
		return nil, fmt.Errorf("publisher: upsert %q: %w", item.Title, err)
	}
	if err != nil {
		return nil, fmt.Errorf("publisher: upsert %q: %w", item.Title,
			apperr.WithMessages(apperr.ErrPersistence, "Unable to upload "+s.cfg.MetadataFile, err.Error()))
	}
	return saved, nil
}
