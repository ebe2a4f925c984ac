package api

import "github.com/starford/mdpub/internal/publisher"

// ErrorMessages lists the reasons a request failed.
type ErrorMessages struct {
	Messages []string `json:"messages" example:"No item found for specified catalog identifier 5a1b2c3d4e5f60718293a4b5" validate:"required"`
}

// ErrorResponse is the error envelope of every failed request.
type ErrorResponse struct {
	Error    ErrorMessages `json:"error" validate:"required"`
	Messages []string      `json:"messages,omitempty"`
}

// VersionResponse is returned by GET /version.
type VersionResponse struct {
	Version string `json:"version" example:"1.4.0" validate:"required"`
}

// DeleteResponse lists the deleted item ids, descendants first (aliased from the domain layer).
type DeleteResponse = publisher.DeleteResult

// tokenEnvelope picks the caller tokens out of a request body.
type tokenEnvelope struct {
	AccessToken string `json:"access_token"`
}
