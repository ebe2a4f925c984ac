package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/mdpub/internal/apperr"
	"github.com/starford/mdpub/internal/catalog"
	"github.com/starford/mdpub/internal/publisher"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

func errorBody(messages ...string) ErrorResponse {
	if messages == nil {
		messages = []string{}
	}
	return ErrorResponse{Error: ErrorMessages{Messages: messages}}
}

// writeError answers with the error envelope. Remote catalog failures keep
// their HTTP status; everything else is a 400.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	var apiErr *catalog.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 {
		status = apiErr.StatusCode
	}
	writeJSON(w, status, errorBody(apperr.MessagesOf(err)...))
}

// outcomeBody renders one publish outcome: the item with its notices, or the
// error envelope.
func outcomeBody(o publisher.Outcome) any {
	if o.Failed() {
		body := errorBody(o.Errors...)
		body.Messages = o.Messages
		return body
	}
	item := *o.Item
	extra := make(map[string]json.RawMessage, len(item.Extra)+2)
	for k, v := range item.Extra {
		extra[k] = v
	}
	if len(o.Messages) > 0 {
		extra["messages"], _ = json.Marshal(o.Messages)
	}
	if len(o.Warnings) > 0 {
		extra["warnings"], _ = json.Marshal(o.Warnings)
	}
	item.Extra = extra
	return item
}

// writeOutcomes answers a publish. A single outcome is rendered on its own; a
// failed primary record makes the response a 400.
func writeOutcomes(w http.ResponseWriter, outcomes []publisher.Outcome) {
	if len(outcomes) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("An error occurred"))
		return
	}
	status := http.StatusOK
	if outcomes[0].Failed() {
		status = http.StatusBadRequest
	}
	if len(outcomes) == 1 {
		writeJSON(w, status, outcomeBody(outcomes[0]))
		return
	}
	list := make([]any, 0, len(outcomes))
	for _, o := range outcomes {
		list = append(list, outcomeBody(o))
	}
	writeJSON(w, status, list)
}

// writeRaw answers with an already encoded JSON document.
func writeRaw(w http.ResponseWriter, status int, doc json.RawMessage) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(doc); err != nil {
		slog.Error("write response failed", slog.String("error", err.Error()))
	}
}
