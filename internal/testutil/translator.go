package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/starford/mdpub/internal/apperr"
	"github.com/starford/mdpub/internal/models"
	"github.com/starford/mdpub/internal/translator"
)

// Translator is a scripted translator.Translator. By default it turns an
// mdJSON record into a catalog item carrying the record's citation title and
// identifiers, an item back into a minimal mdJSON record, and anything into a
// placeholder ISO document.
type Translator struct {
	mu    sync.Mutex
	calls map[string]int

	// Fail maps a writer format to the error returned for it.
	Fail map[string]error
	// Item, when set, decorates the item produced for a record.
	Item func(r *models.Record, it *models.Item)
}

var _ translator.Translator = (*Translator)(nil)

// NewTranslator returns a translator with the default behaviour.
func NewTranslator() *Translator {
	return &Translator{calls: make(map[string]int), Fail: make(map[string]error)}
}

// Calls returns how many translations to writer were requested.
func (t *Translator) Calls(writer string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[writer]
}

// Translate implements translator.Translator.
func (t *Translator) Translate(_ context.Context, source []byte, _, writer string) ([]byte, error) {
	t.mu.Lock()
	t.calls[writer]++
	err := t.Fail[writer]
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}

	switch writer {
	case translator.FormatSbJSON:
		return t.toItem(source)
	case translator.FormatMdJSON:
		var it models.Item
		if err := json.Unmarshal(source, &it); err != nil {
			return nil, apperr.WithMessages(apperr.ErrTranslation, "Error transforming to mdJson")
		}
		return json.Marshal(map[string]any{
			"schema":   map[string]string{"name": translator.FormatMdJSON},
			"metadata": map[string]any{"resourceInfo": map[string]any{"citation": map[string]string{"title": it.Title}}},
		})
	default:
		return []byte("<iso writer=\"" + writer + "\"/>"), nil
	}
}

func (t *Translator) toItem(source []byte) ([]byte, error) {
	r, err := models.ParseRecord(source)
	if err != nil {
		return nil, apperr.WithMessages(apperr.ErrTranslation, "Error transforming to sbJson", err.Error())
	}
	var doc struct {
		Metadata struct {
			ResourceInfo struct {
				Citation models.Citation `json:"citation"`
			} `json:"resourceInfo"`
		} `json:"metadata"`
	}
	_ = json.Unmarshal(source, &doc)

	it := &models.Item{Title: r.Title()}
	for _, ci := range doc.Metadata.ResourceInfo.Citation.Identifier {
		it.Identifiers = append(it.Identifiers, models.Identifier{Scheme: ci.Namespace, Type: ci.Namespace, Key: ci.Identifier})
	}
	if t.Item != nil {
		t.Item(r, it)
	}
	return json.Marshal(it)
}
