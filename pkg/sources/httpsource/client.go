// Package httpsource reads reference data from, validates aliases against, and
// submits requests to a JSON HTTP service.
//
// Routes, relative to the base URL:
//
//	GET  divisions                         -> [{"id","name"}]
//	GET  divisions/{id}/site-templates     -> [{"id","name","contentTypeId"}]
//	GET  content-types/{id}/fields         -> [field descriptor]
//	GET  aliases/{alias}                   -> {"valid": bool}
//	POST requests                          <- submission
package httpsource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-siterequest/pkg/model"
	"github.com/goliatone/go-siterequest/pkg/sources"
)

const defaultTimeout = 15 * time.Second

// Client talks to the site request service.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	headers http.Header
}

var (
	_ sources.Catalog        = (*Client)(nil)
	_ sources.AliasValidator = (*Client)(nil)
	_ sources.Sink           = (*Client)(nil)
)

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout caps each request. Zero disables the per-request cap.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// New constructs a Client for baseURL.
func New(baseURL string, options ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errors.New("httpsource: base url is required")
	}
	base, err := url.Parse(trimmed)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("httpsource: invalid base url %q", baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	c := &Client{
		base:    base,
		http:    http.DefaultClient,
		timeout: defaultTimeout,
		headers: make(http.Header),
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Divisions implements sources.DivisionSource.
func (c *Client) Divisions(ctx context.Context) ([]model.Division, error) {
	var out []model.Division
	if err := c.getJSON(ctx, "divisions", &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// SiteTemplates implements sources.SiteTemplateSource.
func (c *Client) SiteTemplates(ctx context.Context, divisionID string) ([]model.SiteTemplate, error) {
	var out []model.SiteTemplate
	if err := c.getJSON(ctx, "divisions/"+url.PathEscape(divisionID)+"/site-templates", &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// Fields implements sources.FieldSource.
func (c *Client) Fields(ctx context.Context, contentTypeID string) ([]model.Field, error) {
	var out []model.Field
	if err := c.getJSON(ctx, "content-types/"+url.PathEscape(contentTypeID)+"/fields", &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Type = model.ParseFieldType(string(out[i].Type))
	}
	return nonNil(out), nil
}

// ValidateAlias implements sources.AliasValidator.
func (c *Client) ValidateAlias(ctx context.Context, alias string) (bool, error) {
	var out struct {
		Valid bool `json:"valid"`
	}
	if err := c.getJSON(ctx, "aliases/"+url.PathEscape(alias), &out); err != nil {
		return false, err
	}
	return out.Valid, nil
}

// Save implements sources.Sink.
func (c *Client) Save(ctx context.Context, submission model.Submission) error {
	payload, err := json.Marshal(submission)
	if err != nil {
		return fmt.Errorf("httpsource: encode submission: %w", err)
	}
	resp, cancel, err := c.do(ctx, http.MethodPost, "requests", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer cancel()
	defer func() {
		_ = resp.Body.Close()
	}()
	return checkStatus(resp)
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	resp, cancel, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer cancel()
	defer func() {
		_ = resp.Body.Close()
	}()
	if err := checkStatus(resp); err != nil {
		return err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpsource: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("httpsource: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, context.CancelFunc, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, nil, fmt.Errorf("httpsource: invalid path %q: %w", path, err)
	}
	target := c.base.ResolveReference(ref)

	reqCtx := ctx
	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, target.String(), body)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range c.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("httpsource: %s %s: %w", method, target.Path, err)
	}
	return resp, cancel, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("httpsource: %s: %w", resp.Request.URL.Path, sources.ErrNotFound)
	}
	if resp.StatusCode == http.StatusConflict {
		return fmt.Errorf("httpsource: %s: %w", resp.Request.URL.Path, sources.ErrConflict)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New("httpsource: unexpected status " + resp.Status)
	}
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
