// Package api is a client for the KnowledgePin backend REST service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is where the backend listens unless configured otherwise.
const DefaultBaseURL = "http://localhost:5000"

// AllLists selects items from every list.
const AllLists = "all"

// Field names accepted by UpdateItem.
const (
	FieldTitle = "title"
	FieldNote  = "note"
	FieldTags  = "tags"
)

// APIError is a non-2xx reply from the backend.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Endpoint, e.StatusCode)
}

// Client talks JSON to the backend. It carries no credentials.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func NewClient(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GenerateSummary asks the backend to summarize a page.
func (c *Client) GenerateSummary(ctx context.Context, page PageRequest) (string, error) {
	var summary string
	if err := c.post(ctx, "/generate_summary", page, &summary); err != nil {
		return "", err
	}
	return summary, nil
}

// SuggestTags asks the backend for tags describing a page.
func (c *Client) SuggestTags(ctx context.Context, page PageRequest) ([]string, error) {
	var tags []string
	if err := c.post(ctx, "/suggest_tags", page, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// GetLists returns every list.
func (c *Client) GetLists(ctx context.Context) ([]List, error) {
	var lists []List
	if err := c.get(ctx, "/get_lists", nil, &lists); err != nil {
		return nil, err
	}
	return lists, nil
}

// CreateList creates a list with the given name.
func (c *Client) CreateList(ctx context.Context, name string) (List, error) {
	var list List
	if err := c.post(ctx, "/create_list", map[string]string{"name": name}, &list); err != nil {
		return List{}, err
	}
	return list, nil
}

// RelevantList asks the backend which list best fits a page. It returns nil when
// the backend has no candidate.
func (c *Client) RelevantList(ctx context.Context, pageURL, title string) (*List, error) {
	var list *List
	body := map[string]string{"url": pageURL, "title": title}
	if err := c.post(ctx, "/get_relevant_list", body, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetItems returns the items matching f. The list defaults to AllLists.
func (c *Client) GetItems(ctx context.Context, f ItemFilter) ([]SavedItem, error) {
	list := f.List
	if list == "" {
		list = AllLists
	}
	q := url.Values{}
	q.Set("list", list)
	q.Set("tag", f.Tag)
	q.Set("platform", f.Platform)

	var items []SavedItem
	if err := c.get(ctx, "/get_items", q, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []SavedItem{}
	}
	return items, nil
}

// SaveItem stores a new item.
func (c *Client) SaveItem(ctx context.Context, item SavedItem) (SaveResult, error) {
	var res SaveResult
	if err := c.post(ctx, "/save_item", item, &res); err != nil {
		return SaveResult{}, err
	}
	return res, nil
}

// UpdateItem sets one field of an item.
func (c *Client) UpdateItem(ctx context.Context, id, field string, value any) error {
	body := map[string]any{"id": id, field: value}
	return c.post(ctx, "/update_item", body, nil)
}

// DeleteItem removes an item.
func (c *Client) DeleteItem(ctx context.Context, id string) error {
	return c.post(ctx, "/delete_item", map[string]string{"id": id}, nil)
}

// HealthCheck reports whether the backend is up.
func (c *Client) HealthCheck(ctx context.Context) (Health, error) {
	var h Health
	if err := c.get(ctx, "/health_check", nil, &h); err != nil {
		return Health{}, err
	}
	return h, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	return c.do(req, path, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s body: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	c.log.Debug().Str("method", req.Method).Str("path", path).Msg("backend request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Endpoint: path, StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil {
			apiErr.Message = eb.Error
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
