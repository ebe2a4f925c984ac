package publisher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/mdpub/internal/apperr"
)

// DeleteResult lists the ids removed by a delete, descendants first.
type DeleteResult struct {
	Deleted []string `json:"deleted"`
}

// Delete removes an item and its whole subtree. The item must be inside the
// configured community and, when requiredCategory is set, carry that browse
// category. The ids are deleted in one batch.
func (s *Service) Delete(ctx context.Context, itemID, requiredCategory string) (*DeleteResult, error) {
	item, err := s.catalog.GetItem(ctx, itemID, "ancestors,browseCategories")
	if err != nil {
		return nil, fmt.Errorf("publisher: get item %s: %w", itemID, err)
	}
	if !item.HasAncestor(s.cfg.CommunityID) {
		return nil, apperr.WithMessages(apperr.ErrOutOfScope, fmt.Sprintf("Item %s not in community", itemID))
	}
	if requiredCategory != "" && !item.HasBrowseCategory(requiredCategory) {
		return nil, apperr.WithMessages(apperr.ErrOutOfScope,
			fmt.Sprintf("Item %s not correct type, %s browse category not found", itemID, requiredCategory))
	}

	ids, err := s.CollectForDeletion(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.DeleteItems(ctx, ids); err != nil {
		s.logger.Error("delete failed", slog.String("id", itemID), slog.String("error", err.Error()))
		return nil, apperr.WithMessages(apperr.ErrPersistence, "Unable to delete "+itemID)
	}
	s.logger.Info("deleted item tree", slog.String("id", itemID), slog.Int("count", len(ids)))
	if s.notifier != nil {
		for _, id := range ids {
			s.notifier.ItemEvent(EventDeleted, id, "")
		}
	}
	return &DeleteResult{Deleted: ids}, nil
}

// CollectForDeletion returns rootID's descendants in post order followed by
// rootID itself.
func (s *Service) CollectForDeletion(ctx context.Context, rootID string) ([]string, error) {
	children, err := s.catalog.ChildIDs(ctx, rootID)
	if err != nil {
		return nil, fmt.Errorf("publisher: list children of %s: %w", rootID, err)
	}
	var ids []string
	for _, child := range children {
		sub, err := s.CollectForDeletion(ctx, child)
		if err != nil {
			return nil, err
		}
		ids = append(ids, sub...)
	}
	return append(ids, rootID), nil
}
