// Package translator is a client for the metadata translation service
// (mdTranslator form contract).
package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/mdpub/internal/apperr"
)

// Formats understood by the translation service.
const (
	FormatMdJSON = "mdJson"
	FormatSbJSON = "sbJson"
	FormatISO1   = "iso19115_1"
	FormatISO2   = "iso19115_2"
)

// DefaultTimeout is used when no HTTP client is supplied.
const DefaultTimeout = 120 * time.Second

// Translator converts a document between two formats.
type Translator interface {
	Translate(ctx context.Context, source []byte, reader, writer string) ([]byte, error)
}

// Client posts translation requests to the service. It is safe for concurrent use.
type Client struct {
	url    string
	http   *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the translation endpoint at serviceURL.
func New(serviceURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(serviceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("translator: invalid url %q", serviceURL)
	}
	c := &Client{
		url:    serviceURL,
		http:   &http.Client{Timeout: DefaultTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ Translator = (*Client)(nil)

type response struct {
	Success  *bool           `json:"success"`
	Data     json.RawMessage `json:"data"`
	Messages struct {
		ReaderStructurePass      bool     `json:"readerStructurePass"`
		ReaderStructureMessages  []string `json:"readerStructureMessages"`
		ReaderValidationPass     bool     `json:"readerValidationPass"`
		ReaderValidationMessages []string `json:"readerValidationMessages"`
		ReaderExecutionPass      bool     `json:"readerExecutionPass"`
		ReaderExecutionMessages  []string `json:"readerExecutionMessages"`
	} `json:"messages"`
}

// Translate converts source from the reader format to the writer format.
// Rejections are returned as apperr.ErrTranslation carrying the flattened
// service messages.
func (c *Client) Translate(ctx context.Context, source []byte, reader, writer string) ([]byte, error) {
	validate := "normal"
	if reader == FormatSbJSON {
		validate = "none"
	}
	form := url.Values{
		"reader":   {reader},
		"writer":   {writer},
		"validate": {validate},
		"format":   {"json"},
		"file":     {string(source)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("translator: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("translator: %s to %s: %w", reader, writer, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("translator: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.WithMessages(apperr.ErrTranslation,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)))
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("translator: decode response: %w", err)
	}

	switch {
	case r.Success != nil && *r.Success:
		data := dataBytes(r.Data)
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, apperr.WithMessages(apperr.ErrTranslation, "Empty response from mdTranslator")
		}
		return data, nil
	case r.Success != nil:
		msgs := flattenMessages(writer, r)
		c.logger.Debug("translation rejected",
			slog.String("reader", reader),
			slog.String("writer", writer),
			slog.Int("messages", len(msgs)))
		return nil, apperr.WithMessages(apperr.ErrTranslation, msgs...)
	default:
		return nil, apperr.WithMessages(apperr.ErrTranslation, "Empty response from mdTranslator")
	}
}

// dataBytes returns the serialized target document. The service sends it as a
// JSON string; an inline document is accepted as is.
func dataBytes(raw json.RawMessage) []byte {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []byte(s)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}

// flattenMessages collects the messages of each failing reader stage.
func flattenMessages(writer string, r response) []string {
	out := []string{"Error transforming to " + writer}
	if !r.Messages.ReaderStructurePass {
		out = append(out, expand(r.Messages.ReaderStructureMessages)...)
	}
	if !r.Messages.ReaderValidationPass {
		out = append(out, expand(r.Messages.ReaderValidationMessages)...)
	}
	if !r.Messages.ReaderExecutionPass {
		out = append(out, r.Messages.ReaderExecutionMessages...)
	}
	return out
}

// expand replaces msgs with the JSON array embedded in its second entry, when
// there is one.
func expand(msgs []string) []string {
	if len(msgs) < 2 {
		return msgs
	}
	var embedded []json.RawMessage
	if err := json.Unmarshal([]byte(msgs[1]), &embedded); err != nil {
		return msgs
	}
	out := make([]string, 0, len(embedded))
	for _, m := range embedded {
		var s string
		if err := json.Unmarshal(m, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, string(m))
	}
	return out
}
