// Package remote implements the catalog contract against a ScienceBase-style REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/mdpub/internal/catalog"
	"github.com/starford/mdpub/internal/models"
)

// DefaultTimeout is used when no HTTP client is supplied.
const DefaultTimeout = 60 * time.Second

const childPageSize = 1000

// Client talks to the remote catalog. It is safe for concurrent use.
type Client struct {
	base   string
	http   *http.Client
	token  string
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer token used when the request context carries none.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the catalog rooted at baseURL (e.g. https://host/catalog).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("remote: invalid base url %q", baseURL)
	}
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: DefaultTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ catalog.Catalog = (*Client)(nil)

// GetItem fetches a single item.
func (c *Client) GetItem(ctx context.Context, id, fields string) (*models.Item, error) {
	q := url.Values{"format": {"json"}}
	if fields != "" {
		q.Set("fields", fields)
	}
	var item models.Item
	if err := c.getJSON(ctx, "/item/"+url.PathEscape(id), q, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItems searches items under q.Ancestors by catalog id or alternate identifier.
func (c *Client) FindItems(ctx context.Context, query catalog.Query) (*catalog.SearchResult, error) {
	q := url.Values{
		"format": {"json"},
		"q":      {query.Text},
		"fields": {catalog.ItemFields},
	}
	if query.Ancestors != "" {
		q.Set("ancestors", query.Ancestors)
	}
	switch {
	case query.ID != "":
		q.Set("lq", "id:"+query.ID)
	case query.Identifier != nil:
		q.Set("itemIdentifier", fmt.Sprintf("{type:'%s',key:'%s'}", query.Identifier.Type, query.Identifier.Key))
	}
	var res catalog.SearchResult
	if err := c.getJSON(ctx, "/items", q, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// LinkTypes lists the link-type vocabulary.
func (c *Client) LinkTypes(ctx context.Context) ([]catalog.LinkType, error) {
	var out []catalog.LinkType
	if err := c.getJSON(ctx, "/itemLinkTypes", url.Values{"format": {"json"}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ItemLinks lists the links stored on an item.
func (c *Client) ItemLinks(ctx context.Context, itemID string) ([]catalog.Link, error) {
	var out []catalog.Link
	q := url.Values{"format": {"json"}, "itemId": {itemID}}
	if err := c.getJSON(ctx, "/itemLinks", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateLink stores a new link.
func (c *Client) CreateLink(ctx context.Context, link catalog.Link) (*catalog.Link, error) {
	body, err := json.Marshal(link)
	if err != nil {
		return nil, fmt.Errorf("remote: encode link: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/itemLink", nil, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	var out catalog.Link
	if err := c.do(req, "create link", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpsertItem uploads the item JSON and file parts in one multipart request.
func (c *Client) UpsertItem(ctx context.Context, item *models.Item, files []catalog.Upload) (*models.Item, error) {
	itemJSON, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("remote: encode item: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("item", string(itemJSON)); err != nil {
		return nil, fmt.Errorf("remote: write item part: %w", err)
	}
	if item.ID != "" {
		if err := mw.WriteField("id", item.ID); err != nil {
			return nil, fmt.Errorf("remote: write id part: %w", err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
		h.Set("Content-Type", f.ContentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("remote: create file part %s: %w", f.Name, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, fmt.Errorf("remote: write file part %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("remote: close multipart: %w", err)
	}

	q := url.Values{"scrapeFile": {"false"}}
	req, err := c.newRequest(ctx, http.MethodPost, "/file/uploadAndUpsertItem", q, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var out models.Item
	if err := c.do(req, "upload and upsert item", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChildIDs pages through the direct children of an item.
func (c *Client) ChildIDs(ctx context.Context, id string) ([]string, error) {
	var ids []string
	for offset := 0; ; offset += childPageSize {
		q := url.Values{
			"format":   {"json"},
			"parentId": {id},
			"fields":   {"id"},
			"max":      {strconv.Itoa(childPageSize)},
			"offset":   {strconv.Itoa(offset)},
		}
		var res catalog.SearchResult
		if err := c.getJSON(ctx, "/items", q, &res); err != nil {
			return nil, err
		}
		for _, it := range res.Items {
			ids = append(ids, it.ID)
		}
		if len(res.Items) < childPageSize || len(ids) >= res.Total {
			return ids, nil
		}
	}
}

// DeleteItems removes the given items in one batch.
func (c *Client) DeleteItems(ctx context.Context, ids []string) error {
	payload := make([]map[string]string, len(ids))
	for i, id := range ids {
		payload[i] = map[string]string{"id": id}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("remote: encode delete: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodDelete, "/items", nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, "delete items", nil)
}

// Download fetches the content of an attached file by its URL.
func (c *Client) Download(ctx context.Context, file models.File) ([]byte, error) {
	if file.URL == "" {
		return nil, fmt.Errorf("remote: file %s has no url", file.Name)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("remote: build download request: %w", err)
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: download %s: %w", file.Name, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote: read %s: %w", file.Name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &catalog.APIError{StatusCode: resp.StatusCode, Endpoint: "download " + file.Name, Message: string(data)}
	}
	return data, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Request, error) {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("remote: build request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)
	return req, nil
}

func (c *Client) authorize(req *http.Request) {
	token, ok := catalog.TokenFrom(req.Context())
	if !ok {
		token = c.token
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, target any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return err
	}
	return c.do(req, "GET "+path, target)
}

// do sends req and decodes a 2xx JSON body into target (when non-nil).
func (c *Client) do(req *http.Request, endpoint string, target any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("remote: %s: read body: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("catalog request failed",
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode))
		return &catalog.APIError{StatusCode: resp.StatusCode, Endpoint: endpoint, Message: strings.TrimSpace(string(body))}
	}
	if target == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("remote: %s: decode response: %w", endpoint, err)
	}
	return nil
}
