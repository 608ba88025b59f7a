// Package client talks to the vector store backend over HTTP+JSON. It
// implements library.Backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dyike/vsdocs/internal/api"
	"github.com/dyike/vsdocs/internal/library"
	"github.com/dyike/vsdocs/internal/retry"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Retry   retry.Config
	Logger  *zap.Logger
	// HTTPClient overrides the default transport, mostly for tests.
	HTTPClient *http.Client
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retry      retry.Config
	logger     *zap.Logger
}

var _ library.Backend = (*Client)(nil)

// New creates a client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        20,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: hc,
		retry:      cfg.Retry,
		logger:     cfg.Logger,
	}
}

// Ping checks that the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, false)
}

// ListDocuments implements library.Lister.
func (c *Client) ListDocuments(ctx context.Context, path string) ([]library.DocumentEntry, error) {
	q := url.Values{}
	q.Set("path", library.DisplayPath(library.CleanPath(path)))

	var resp api.ListingResponse
	if err := c.do(ctx, http.MethodGet, api.Prefix+"/library?"+q.Encode(), nil, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", library.DisplayPath(path), err)
	}
	return library.NormalizeAll(resp.Entries), nil
}

// ListCollections returns every collection the backend knows.
func (c *Client) ListCollections(ctx context.Context) ([]library.Collection, error) {
	var resp api.CollectionsResponse
	if err := c.do(ctx, http.MethodGet, api.Prefix+"/collections", nil, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return resp.Collections, nil
}

// CollectionConfig implements library.MemberSource.
func (c *Client) CollectionConfig(ctx context.Context, collectionID string) (*library.CollectionConfig, error) {
	var cfg library.CollectionConfig
	if err := c.do(ctx, http.MethodGet, collectionPath(collectionID, ""), nil, &cfg, true); err != nil {
		return nil, fmt.Errorf("failed to get collection %s: %w", collectionID, err)
	}
	return &cfg, nil
}

// ListCollectionMembers implements library.MemberSource.
func (c *Client) ListCollectionMembers(ctx context.Context, collectionID string) ([]library.CollectionMember, error) {
	var resp api.MembersResponse
	if err := c.do(ctx, http.MethodGet, collectionPath(collectionID, "/documents"), nil, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to list members of %s: %w", collectionID, err)
	}
	members := make([]library.CollectionMember, 0, len(resp.Documents))
	for _, m := range resp.Documents {
		members = append(members, library.NormalizeMember(m))
	}
	return members, nil
}

// SubmitChangeSet implements library.Applier. It is not retried: a lost
// response could otherwise apply the change-set twice.
func (c *Client) SubmitChangeSet(ctx context.Context, collectionID string, req library.ChangeRequest) (string, error) {
	var resp api.SubmitResponse
	if err := c.do(ctx, http.MethodPost, collectionPath(collectionID, "/changes"), req, &resp, false); err != nil {
		return "", fmt.Errorf("%w: %w", library.ErrSubmitFailed, err)
	}
	return resp.JobID, nil
}

// JobStatus implements library.Applier.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*library.JobStatus, error) {
	var st library.JobStatus
	if err := c.do(ctx, http.MethodGet, api.Prefix+"/jobs/"+url.PathEscape(jobID), nil, &st, true); err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	if st.JobID == "" {
		st.JobID = jobID
	}
	return &st, nil
}

func collectionPath(id, suffix string) string {
	return api.Prefix + "/collections/" + url.PathEscape(id) + suffix
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, retryable bool) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	cfg := c.retry
	if !retryable {
		cfg.MaxAttempts = 1
	}
	_, err := retry.Do(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, c.once(ctx, method, path, payload, out)
	})
	return err
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out any) error {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return retry.Retryable(err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(resp)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return retry.Retryable(apiErr)
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body api.ErrorResponse
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
