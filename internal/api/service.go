package api

import (
	"context"
	"encoding/json"

	"github.com/starford/mdpub/internal/models"
	"github.com/starford/mdpub/internal/publisher"
)

// Publisher is the publishing service surface the handlers call.
type Publisher interface {
	Publish(ctx context.Context, req *models.PublishRequest, itemID string) ([]publisher.Outcome, error)
	ReplaceMetadata(ctx context.Context, r *models.Record) publisher.Outcome
	Metadata(ctx context.Context, itemID string, replace bool) (json.RawMessage, error)
	Delete(ctx context.Context, itemID, requiredCategory string) (*publisher.DeleteResult, error)
}

var _ Publisher = (*publisher.Service)(nil)
