// Package remote implements the client side of the remote document protocol:
// fetch, unconditional save, and conditional migrate against a
// key-addressed JSON document endpoint authenticated by a shared secret.
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
	"strings"
	"time"

	"github.com/jos-todo/todosync/internal/model"
)

// HeaderMagicKey carries the shared secret on every request.
const HeaderMagicKey = "x-magic-key"

// Endpoint names, relative to the base URL.
const (
	PathFetch   = "state-get"
	PathSave    = "state-save"
	PathMigrate = "state-migrate"
	PathVerify  = "auth-verify"
)

// ReasonRemoteHasData is the migrate outcome when the remote already holds data.
const ReasonRemoteHasData = "remote_has_data"

// FetchResult is the remote document as reported by the fetch endpoint.
type FetchResult struct {
	Document  model.Document
	UpdatedAt *time.Time
	Empty     bool
}

// MigrateResult is the semantic outcome of a conditional migrate.
type MigrateResult struct {
	Migrated bool
	Reason   string
}

// Config holds client configuration.
type Config struct {
	// BaseURL is the endpoint prefix, e.g. https://example.net/.netlify/functions/
	BaseURL string

	// Credential returns the shared secret at request time so a credential
	// change takes effect without rebuilding the client.
	Credential func() string

	// HTTPClient is used for requests (default: a client with no timeout,
	// leaving stalls to transport defaults).
	HTTPClient *http.Client

	// Logger for client activity (default: stderr logger)
	Logger *log.Logger
}

// Client talks to the remote document endpoint.
type Client struct {
	base       *url.URL
	credential func() string
	http       *http.Client
	logger     *log.Logger
}

// NewClient creates a client for the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if cfg.Credential == nil {
		cfg.Credential = func() string { return "" }
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}

	return &Client{
		base:       base,
		credential: cfg.Credential,
		http:       cfg.HTTPClient,
		logger:     cfg.Logger,
	}, nil
}

type migrateResponse struct {
	OK       bool   `json:"ok"`
	Migrated bool   `json:"migrated"`
	Reason   string `json:"reason,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Fetch returns the remote document. Empty is true when no remote document
// exists yet.
func (c *Client) Fetch(ctx context.Context) (FetchResult, error) {
	var resp struct {
		UpdatedAt *string `json:"updatedAt"`
		Empty     bool    `json:"empty"`
	}
	body, err := c.do(ctx, http.MethodGet, PathFetch, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return FetchResult{}, &TransportError{Message: "malformed fetch response", Err: err}
	}

	var doc model.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return FetchResult{}, &TransportError{Message: "malformed remote document", Err: err}
	}

	result := FetchResult{Document: doc, Empty: resp.Empty}
	if resp.UpdatedAt != nil {
		result.UpdatedAt = model.ParseInstant(*resp.UpdatedAt)
	}
	return result, nil
}

// Save unconditionally upserts doc; the last writer wins.
func (c *Client) Save(ctx context.Context, doc model.Document) error {
	_, err := c.do(ctx, http.MethodPost, PathSave, doc)
	return err
}

// Migrate writes doc only if the remote is currently empty. A populated
// remote is reported as Migrated=false with Reason "remote_has_data" and is
// left untouched; that outcome is not an error.
func (c *Client) Migrate(ctx context.Context, doc model.Document) (MigrateResult, error) {
	body, err := c.do(ctx, http.MethodPost, PathMigrate, doc)
	if err != nil {
		return MigrateResult{}, err
	}

	var resp migrateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return MigrateResult{}, &TransportError{Message: "malformed migrate response", Err: err}
	}
	return MigrateResult{Migrated: resp.Migrated, Reason: resp.Reason}, nil
}

// Verify checks the credential against the remote without touching data.
func (c *Client) Verify(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, PathVerify, nil)
	return err
}

// do performs one authenticated request and classifies failures.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	key := strings.TrimSpace(c.credential())
	if key == "" {
		return nil, &AuthError{Message: "Missing magic key"}
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	target := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderMagicKey, key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	var e errorResponse
	_ = json.Unmarshal(body, &e)
	if e.Error == "" {
		e.Error = http.StatusText(resp.StatusCode)
	}

	c.logger.Printf("%s %s: %d %s", method, path, resp.StatusCode, e.Error)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, &AuthError{Message: e.Error}
	case http.StatusBadRequest:
		return nil, &ValidationError{Message: e.Error}
	default:
		return nil, &TransportError{StatusCode: resp.StatusCode, Message: e.Error}
	}
}
