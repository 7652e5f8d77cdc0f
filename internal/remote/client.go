// Package remote implements the HTTP client for the remote task database.
//
// The API exposes three endpoints the sync engine consumes:
//   - a schema endpoint describing a source's properties and its queryable
//     sub-resources
//   - a paged listing endpoint on a sub-resource, sorted by recency
//   - a per-record detail endpoint that accepts a property allow-list
//
// Writes to the remote are issued elsewhere and never go through this
// client.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"sort"
	"time"
)

const (
	// apiVersion is sent on every request; the remote rejects unversioned
	// callers.
	apiVersion = "2026-06-01"

	defaultTimeout = 30 * time.Second
)

// Config holds the connection settings for the remote API.
type Config struct {
	// BaseURL is the API root, e.g. https://api.example.com.
	BaseURL string

	// Token is the bearer token for authentication.
	Token string

	// SourceID identifies the task database whose schema is fetched.
	SourceID string

	// Timeout bounds each request. Zero means the 30s default.
	Timeout time.Duration
}

// Client talks to the remote task database API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	sourceID   string
	logger     *log.Logger
}

// New creates a Client. If logger is nil, a default stderr logger is used.
func New(cfg Config, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		sourceID:   cfg.SourceID,
		logger:     logger,
	}
}

// schemaResponse is the wire shape of the schema endpoint.
type schemaResponse struct {
	Properties map[string]struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"properties"`
	SubResources []struct {
		ID string `json:"id"`
	} `json:"sub_resources"`
}

// GetSchema fetches the source's schema: the complete property name->id map
// and the declared queryable sub-resources.
func (c *Client) GetSchema(ctx context.Context) (*Schema, error) {
	endpoint := fmt.Sprintf("/v1/sources/%s", url.PathEscape(c.sourceID))

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var resp schemaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("malformed schema response: %w", err)
	}

	schema := &Schema{}
	for name, prop := range resp.Properties {
		schema.Properties = append(schema.Properties, SchemaProperty{Name: name, ID: prop.ID})
	}
	// Map iteration order is random; sort so the persisted cache is stable.
	sort.Slice(schema.Properties, func(i, j int) bool {
		return schema.Properties[i].Name < schema.Properties[j].Name
	})

	for _, sr := range resp.SubResources {
		schema.SubResources = append(schema.SubResources, sr.ID)
	}

	c.logger.Printf("Fetched schema: %d properties, %d sub-resources",
		len(schema.Properties), len(schema.SubResources))

	return schema, nil
}

// queryRequest is the wire shape of the listing request body.
type queryRequest struct {
	PageSize    int         `json:"page_size"`
	Sorts       []querySort `json:"sorts"`
	StartCursor string      `json:"start_cursor,omitempty"`
}

type querySort struct {
	By        string `json:"by"`
	Direction string `json:"direction"`
}

// QuerySubResource fetches one page of lightweight listing entries from a
// sub-resource, sorted by last-modified descending. An empty startCursor
// requests the first page.
func (c *Client) QuerySubResource(ctx context.Context, subResourceID, startCursor string, pageSize int) (*Page, error) {
	endpoint := fmt.Sprintf("/v1/sub_resources/%s/query", url.PathEscape(subResourceID))

	req := queryRequest{
		PageSize:    pageSize,
		Sorts:       []querySort{{By: "last_modified", Direction: "desc"}},
		StartCursor: startCursor,
	}

	body, err := c.do(ctx, http.MethodPost, endpoint, req)
	if err != nil {
		return nil, err
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("malformed listing response: %w", err)
	}

	return &page, nil
}

// GetRecord fetches the full detail payload for one record, restricted to
// the given property id allow-list. Returns the raw response body so the
// caller can store it as a faithful snapshot.
func (c *Client) GetRecord(ctx context.Context, recordID string, fieldIDs []string) ([]byte, error) {
	q := url.Values{}
	for _, id := range fieldIDs {
		q.Add("filter_properties", id)
	}

	endpoint := fmt.Sprintf("/v1/records/%s", url.PathEscape(recordID))
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	return c.do(ctx, http.MethodGet, endpoint, nil)
}

// do issues one request and returns the response body. Non-2xx statuses
// become *APIError so callers can classify transient vs fatal.
func (c *Client) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Api-Version", apiVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Message:    apiMessage(body),
		}
	}

	return body, nil
}

// apiMessage extracts the "message" field from an error body, if present.
func apiMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Message
}
