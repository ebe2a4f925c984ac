package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mdpub/internal/catalog"
	"github.com/starford/mdpub/internal/models"
	"github.com/starford/mdpub/internal/publisher"
)

const maxBodySize = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc     Publisher
	version string
}

// NewHandler creates a new Handler.
func NewHandler(svc Publisher, version string) *Handler {
	return &Handler{svc: svc, version: version}
}

// readBody reads a JSON body and returns its payload with any {"data": ...}
// wrapper removed.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return nil, false
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return nil, false
	}
	return models.Unwrap(body), true
}

// Version handles GET /version.
//
//	@Summary		Service version
//	@Tags			meta
//	@Produce		json
//	@Success		200	{object}	VersionResponse
//	@Router			/version [get]
func (h *Handler) Version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: h.version})
}

// GetMetadata handles GET /mdjson/{itemID} and PUT /mdjson/{itemID}. PUT also
// re-attaches the metadata files to the item.
//
//	@Summary		Get the mdJSON record of a catalog item
//	@Tags			mdjson
//	@Produce		json
//	@Param			itemID	path		string	true	"Catalog item id"
//	@Success		200		{object}	object
//	@Failure		400		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/mdjson/{itemID} [get]
//	@Router			/mdjson/{itemID} [put]
func (h *Handler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	doc, err := h.svc.Metadata(r.Context(), itemID, r.Method == http.MethodPut)
	if err != nil {
		slog.Error("get metadata failed", slog.String("id", itemID), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, doc)
}

// ReplaceMetadata handles POST /mdjson.
//
//	@Summary		Replace the metadata files of the item matching an mdJSON record
//	@Tags			mdjson
//	@Accept			json
//	@Produce		json
//	@Param			body	body		object	true	"mdJSON record, optionally wrapped in data"
//	@Success		200		{object}	object
//	@Failure		400		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/mdjson [post]
func (h *Handler) ReplaceMetadata(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if _, has := catalog.TokenFrom(ctx); !has {
		var tok tokenEnvelope
		if err := json.Unmarshal(body, &tok); err == nil {
			ctx = catalog.WithToken(ctx, tok.AccessToken)
		}
	}
	rec, err := models.ParseRecord(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid mdJSON record"))
		return
	}
	out := h.svc.ReplaceMetadata(ctx, rec)
	status := http.StatusOK
	if out.Failed() {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, outcomeBody(out))
}

// Publish handles POST /project, POST /product, PUT /project/{itemID} and
// PUT /product/{itemID}.
//
//	@Summary		Create or update a catalog item from mdJSON
//	@Tags			publish
//	@Accept			json
//	@Produce		json
//	@Param			itemID	path		string	false	"Catalog item id (PUT only)"
//	@Param			body	body		object	true	"Publish request envelope"
//	@Success		200		{object}	object
//	@Failure		400		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/project [post]
//	@Router			/product [post]
//	@Router			/project/{itemID} [put]
//	@Router			/product/{itemID} [put]
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	req, err := models.DecodePublishRequest(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid publish request"))
		return
	}
	itemID := chi.URLParam(r, "itemID")
	outcomes, err := h.svc.Publish(r.Context(), req, itemID)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, o := range outcomes {
		if o.Failed() {
			slog.Warn("publish failed", slog.String("id", itemID), slog.Any("errors", o.Errors))
		}
	}
	writeOutcomes(w, outcomes)
}

// DeleteProject handles DELETE /project/{itemID}.
//
//	@Summary		Delete a project and its child items
//	@Tags			delete
//	@Param			itemID	path		string	true	"Catalog item id"
//	@Success		200		{object}	DeleteResponse
//	@Failure		400		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/project/{itemID} [delete]
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	h.deleteItem(w, r, publisher.BrowseCategoryProject)
}

// DeleteProduct handles DELETE /product/{itemID}.
//
//	@Summary		Delete a product and its child items
//	@Tags			delete
//	@Param			itemID	path		string	true	"Catalog item id"
//	@Success		200		{object}	DeleteResponse
//	@Failure		400		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/product/{itemID} [delete]
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	h.deleteItem(w, r, "")
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request, category string) {
	itemID := chi.URLParam(r, "itemID")
	res, err := h.svc.Delete(r.Context(), itemID, category)
	if err != nil {
		slog.Error("delete failed", slog.String("id", itemID), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// NotFound answers unknown routes with the error envelope.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody("Not found"))
}

// MethodNotAllowed answers known routes called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorBody("Method not allowed"))
}
