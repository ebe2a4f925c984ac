package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// PublishRequest is the caller envelope for project and product publishes.
type PublishRequest struct {
	Record           *Record   `json:"mdjson"`
	ParentID         string    `json:"parentid,omitempty"`
	CommunityID      string    `json:"community_id,omitempty"`
	ProjectsParentID string    `json:"projects_parent_id,omitempty"`
	ProductsParentID string    `json:"products_parent_id,omitempty"`
	ForceUpdate      *bool     `json:"force_update,omitempty"`
	Relationships    []*Record `json:"relationships,omitempty"`
	AccessToken      string    `json:"access_token,omitempty"`
}

// Unwrap returns the payload of a body that may be wrapped as {"data": ...}.
func Unwrap(body []byte) []byte {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && len(bytes.TrimSpace(wrapper.Data)) > 0 {
		return wrapper.Data
	}
	return body
}

// DecodePublishRequest decodes a publish envelope, accepting the {"data": ...} wrapper.
func DecodePublishRequest(body []byte) (*PublishRequest, error) {
	var req PublishRequest
	if err := json.Unmarshal(Unwrap(body), &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Validate checks the envelope shape. Parent and folder ids are not checked
// here; an unusable parent id is ignored by the publisher.
func (r *PublishRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Record, validation.NotNil.Error("mdjson is required")),
		validation.Field(&r.Relationships, validation.Each(validation.NotNil.Error("relationships must contain records"))),
	)
}

// ValidationMessages flattens a Validate error into its messages, ordered by field.
func ValidationMessages(err error) []string {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return []string{err.Error()}
	}
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, errs[k].Error())
	}
	return out
}
