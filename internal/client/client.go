// Package client talks to the REST API. It keeps the bearer credential,
// maps failures to typed errors and caches query results per entity.
package client

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
	"sync"
)

// TokenStore holds the access and refresh credentials of one session.
type TokenStore interface {
	Tokens() (access, refresh string)
	SetTokens(access, refresh string)
	Clear()
}

// MemoryTokens is a TokenStore kept in memory.
type MemoryTokens struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func (m *MemoryTokens) Tokens() (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access, m.refresh
}

func (m *MemoryTokens) SetTokens(access, refresh string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access, m.refresh = access, refresh
}

func (m *MemoryTokens) Clear() { m.SetTokens("", "") }

// Client sends requests to one API. The bearer credential is read from
// Tokens on every request and cleared on logout or when the server rejects
// it and no refresh succeeds.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Tokens  TokenStore

	// refreshMu serializes refreshes so concurrent 401s rotate once.
	refreshMu sync.Mutex
}

// New returns a client for baseURL. A nil httpClient means
// http.DefaultClient; nil tokens means a fresh MemoryTokens.
func New(baseURL string, httpClient *http.Client, tokens TokenStore) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if tokens == nil {
		tokens = &MemoryTokens{}
	}
	return &Client{BaseURL: strings.TrimSuffix(baseURL, "/"), HTTP: httpClient, Tokens: tokens}
}

// Authenticated reports whether the client holds an access token.
func (c *Client) Authenticated() bool {
	access, _ := c.Tokens.Tokens()
	return access != ""
}

// Do sends a JSON request and decodes a successful response into out. An
// expired access token is refreshed once before the request is given up.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	access, _ := c.Tokens.Tokens()
	err := c.send(ctx, method, path, query, payload, access, out)
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || access == "" || isAuthPath(path) {
		if apiErr != nil && apiErr.Status == http.StatusUnauthorized && access != "" {
			c.Tokens.Clear()
		}
		return err
	}

	if rerr := c.refresh(ctx, access); rerr != nil {
		c.Tokens.Clear()
		return err
	}
	access, _ = c.Tokens.Tokens()
	err = c.send(ctx, method, path, query, payload, access, out)
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		c.Tokens.Clear()
	}
	return err
}

func isAuthPath(path string) bool {
	return strings.HasPrefix(path, "/api/auth/")
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, access string, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &Error{Message: "network error", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Status: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return nil
}

// SendRaw uploads a non-JSON body, e.g. an image.
func (c *Client) SendRaw(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	access, _ := c.Tokens.Tokens()
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &Error{Message: "network error", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := decodeError(resp)
		if resp.StatusCode == http.StatusUnauthorized {
			c.Tokens.Clear()
		}
		return err
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// Fetch returns a raw response body, e.g. an image, and its content type.
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, string, error) {
	access, _ := c.Tokens.Tokens()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building request: %w", err)
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, "", &Error{Message: "network error", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", decodeError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &Error{Status: resp.StatusCode, Message: "reading response", Err: err}
	}
	return data, resp.Header.Get("Content-Type"), nil
}
