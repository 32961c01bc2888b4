package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// SyncPath is the remote upsert endpoint, relative to the base URL.
const SyncPath = "/api/tasks/sync-frontend/"

// maxErrorBody bounds how much of an error response is quoted.
const maxErrorBody = 512

// Remote upserts a batch of task records into the system of record.
type Remote interface {
	Upsert(ctx context.Context, records []TaskSyncRecord) (UpsertResponse, error)
}

// HTTPRemote calls the upsert endpoint over HTTP.
type HTTPRemote struct {
	endpoint string
	client   *http.Client
}

// HTTPRemoteOption configures an HTTPRemote.
type HTTPRemoteOption func(*httpRemoteOptions)

type httpRemoteOptions struct {
	token   string
	timeout time.Duration
	client  *http.Client
}

// WithToken authenticates requests with a bearer token.
func WithToken(token string) HTTPRemoteOption {
	return func(o *httpRemoteOptions) {
		o.token = token
	}
}

// WithTimeout bounds each request. Defaults to 30s.
func WithTimeout(d time.Duration) HTTPRemoteOption {
	return func(o *httpRemoteOptions) {
		o.timeout = d
	}
}

// WithHTTPClient sets the base client requests are sent with.
func WithHTTPClient(c *http.Client) HTTPRemoteOption {
	return func(o *httpRemoteOptions) {
		o.client = c
	}
}

// NewHTTPRemote creates a remote for the server at baseURL.
func NewHTTPRemote(baseURL string, opts ...HTTPRemoteOption) (*HTTPRemote, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid remote base URL %q", baseURL)
	}

	o := httpRemoteOptions{timeout: 30 * time.Second, client: http.DefaultClient}
	for _, opt := range opts {
		opt(&o)
	}

	client := &http.Client{Transport: o.client.Transport, Timeout: o.timeout}
	if o.token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: o.token}))
		client.Timeout = o.timeout
	}

	return &HTTPRemote{
		endpoint: strings.TrimRight(baseURL, "/") + SyncPath,
		client:   client,
	}, nil
}

type upsertRequest struct {
	Tasks []TaskSyncRecord `json:"tasks"`
}

// Upsert posts the batch. Any 2xx status, including 207 Multi-Status, is
// a completed call whose body carries the per-record counts.
func (r *HTTPRemote) Upsert(ctx context.Context, records []TaskSyncRecord) (UpsertResponse, error) {
	body, err := json.Marshal(upsertRequest{Tasks: records})
	if err != nil {
		return UpsertResponse{}, fmt.Errorf("failed to encode records: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return UpsertResponse{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return UpsertResponse{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return UpsertResponse{}, fmt.Errorf("remote returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var out UpsertResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return UpsertResponse{}, fmt.Errorf("failed to decode remote response: %w", err)
	}
	return out, nil
}
