package backend

// Package backend is the authenticated HTTP client for the coordination
// backend REST API. All persistent data (users, donation requests, blogs,
// fundings) lives behind this API; the gateway holds no database of its own.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	domainauth "github.com/bloodbridge/ui-gateway/internal/domain/auth"
	errorsx "github.com/bloodbridge/ui-gateway/internal/errors"
	"github.com/bloodbridge/ui-gateway/internal/ports"
)

const (
	defaultTimeout  = 15 * time.Second
	maxErrorBodyLen = 64 << 10
)

// APIError carries the backend's HTTP error status and body intact so
// callers can distinguish, say, a 404 "no such user" from a 500.
type APIError struct {
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d", e.Status)
}

// Options configures the backend client.
type Options struct {
	// BaseURL is the backend API root, e.g. "https://api.bloodbridge.example".
	BaseURL string

	// Tokens mints per-request bearer tokens. Optional; when nil all
	// requests go out unauthenticated.
	Tokens ports.TokenSource

	// Timeout bounds each request. Defaults to 15s.
	Timeout time.Duration

	// Transport overrides the underlying RoundTripper (tests).
	Transport http.RoundTripper
}

// Client talks to the coordination backend.
type Client struct {
	base *url.URL
	http *http.Client
}

var _ ports.RoleSource = (*Client)(nil)

// NewClient constructs a backend client.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("backend base URL is required")
	}
	base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend base URL: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		base: base,
		http: &http.Client{
			Timeout:   timeout,
			Transport: &authTransport{base: transport, tokens: opts.Tokens},
		},
	}, nil
}

// UserByEmail fetches the application user record for an email.
// Unknown users surface as a not_found error.
func (c *Client) UserByEmail(ctx context.Context, email string) (*User, error) {
	if email == "" {
		return nil, errorsx.Validation("email is required")
	}
	var user User
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(email), nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpsertUser creates or updates the application user record (PUT /users).
// Used on registration and on first-time federated sign-in.
func (c *Client) UpsertUser(ctx context.Context, user User) error {
	if user.Email == "" {
		return errorsx.Validation("email is required")
	}
	return c.do(ctx, http.MethodPut, "/users", nil, user, nil)
}

// RoleByEmail implements ports.RoleSource on top of UserByEmail. A record
// with an unrecognized role string resolves to the absent role rather than
// an error.
func (c *Client) RoleByEmail(ctx context.Context, email string) (domainauth.Role, error) {
	user, err := c.UserByEmail(ctx, email)
	if err != nil {
		return domainauth.RoleAbsent, err
	}
	role, _ := domainauth.ParseRole(user.Role)
	return role, nil
}

// RecentDonationRequests lists the most recent pending donation requests.
func (c *Client) RecentDonationRequests(ctx context.Context, limit int) ([]DonationRequest, error) {
	if limit <= 0 {
		limit = 6
	}
	query := url.Values{"limit": []string{strconv.Itoa(limit)}, "status": []string{"pending"}}
	var out []DonationRequest
	if err := c.do(ctx, http.MethodGet, "/donations/requests", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PublishedBlogs lists published content entries.
func (c *Client) PublishedBlogs(ctx context.Context) ([]Blog, error) {
	query := url.Values{"status": []string{"published"}}
	var out []Blog
	if err := c.do(ctx, http.MethodGet, "/blogs", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// do performs one request/response cycle against the backend.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errorsx.Wrap(err, errorsx.ErrCodeInternal, "encode request body")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ErrCodeInternal, "build backend request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Token minting failures come through already coded.
		var appErr *errorsx.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return errorsx.Wrapf(err, errorsx.ErrCodeNetwork, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.statusError(method, path, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errorsx.Wrapf(err, errorsx.ErrCodeUpstream, "decode %s %s response", method, path)
	}
	return nil
}

// statusError maps an HTTP error status to the application taxonomy while
// keeping status and body available via errors.As.
func (c *Client) statusError(method, path string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	apiErr := &APIError{Status: resp.StatusCode, Body: data}

	code := errorsx.ErrCodeUpstream
	switch resp.StatusCode {
	case http.StatusNotFound:
		code = errorsx.ErrCodeNotFound
	case http.StatusUnauthorized:
		code = errorsx.ErrCodeUnauthenticated
	case http.StatusForbidden:
		code = errorsx.ErrCodeForbidden
	}
	return errorsx.Wrapf(apiErr, code, "%s %s", method, path)
}
