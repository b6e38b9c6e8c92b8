// Package client talks to the blog's HTTP API. Its types satisfy the same
// interfaces the server components consume, so a listing or a submission
// form can run against a remote blog unchanged.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cppla/myblog/storage"
	"github.com/cppla/myblog/store"
)

const (
	dialTimeout    = 10 * time.Second
	fastReqTimeout = 30 * time.Second
	slowReqTimeout = 5 * time.Minute
	apiPrefix      = "/api/v1"
)

// APIError is a non-2xx response. Unwrap yields the matching store or
// storage error so callers can use errors.Is against domain sentinels.
type APIError struct {
	Status  int
	Code    int
	Message string
	Detail  map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (code %d): %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if name, _ := e.Detail["name"].(string); name != "" {
		msg, _ := e.Detail["message"].(string)
		return &storage.Error{Name: name, Message: msg}
	}
	switch {
	case e.Status == http.StatusNotFound:
		return &store.Error{Code: store.CodeNotFound, Message: e.Message}
	case e.Status == http.StatusBadRequest:
		return &store.Error{Code: store.CodeInvalid, Message: e.Message}
	case e.Status == http.StatusServiceUnavailable, e.Status == http.StatusTooManyRequests:
		return &store.Error{Code: store.CodeUnavailable, Message: e.Message}
	case e.Status >= 500:
		return &store.Error{Code: store.CodeInternal, Message: e.Message}
	}
	return nil
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	fast    *http.Client
	slow    *http.Client

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// WithHTTPClient replaces both underlying HTTP clients, e.g. with an httptest server client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.fast = hc
		c.slow = hc
	}
}

var netDialer = &net.Dialer{Timeout: dialTimeout}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		fast:    &http.Client{Transport: &http.Transport{DialContext: netDialer.DialContext}, Timeout: fastReqTimeout},
		slow:    &http.Client{Transport: &http.Transport{DialContext: netDialer.DialContext}, Timeout: slowReqTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the bearer token in use.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken changes the bearer token, e.g. after Login.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// doJSON sends payload as JSON and decodes the envelope data into out.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("error marshalling request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	return c.send(c.fast, req, out)
}

func (c *Client) send(hc *http.Client, req *http.Request, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return &store.Error{Code: store.CodeUnavailable, Message: fmt.Sprintf("error sending request: %v", err), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &store.Error{Code: store.CodeUnavailable, Message: fmt.Sprintf("error reading response: %v", err), Err: err}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("error decoding response: %w", err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
		if len(env.Data) > 0 {
			_ = json.Unmarshal(env.Data, &apiErr.Detail)
		}
		return apiErr
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("error decoding response data: %w", err)
		}
	}
	return nil
}
