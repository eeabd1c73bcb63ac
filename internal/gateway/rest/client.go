// Package rest talks to a hosted gateway: a PostgREST-style table API under
// /rest/v1 and a GoTrue-style auth API under /auth/v1.
package rest

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
	"time"

	"github.com/shrimpsizemoose/trekker/logger"
	"golang.org/x/oauth2"

	"github.com/shrimpsizemoose/attendo/internal/gateway"
)

const (
	restPrefix = "/rest/v1/"
	authPrefix = "/auth/v1/"

	mediaSingleObject = "application/vnd.pgrst.object+json"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client

	mu     sync.RWMutex
	tokens oauth2.TokenSource
}

func New(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid gateway URL %q", baseURL)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gateway API key is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// SetTokenSource makes table calls carry the user access token instead of
// the API key whenever ts has one.
func (c *Client) SetTokenSource(ts oauth2.TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

func (c *Client) bearer() string {
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()

	if ts != nil {
		if tok, err := ts.Token(); err == nil && tok.AccessToken != "" {
			return tok.AccessToken
		}
	}
	return c.apiKey
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string
	// bearer overrides the Authorization token
	bearer string
}

// apiError is the error body returned by both APIs.
type apiError struct {
	Code             string `json:"code"`
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e apiError) String() string {
	for _, s := range []string{e.Message, e.Msg, e.ErrorDescription, e.Error} {
		if s != "" {
			if e.Code != "" {
				return e.Code + ": " + s
			}
			return s
		}
	}
	return ""
}

func statusKind(status int) error {
	switch status {
	case http.StatusNotFound, http.StatusNotAcceptable:
		return gateway.ErrNotFound
	case http.StatusConflict:
		return gateway.ErrConflict
	case http.StatusUnauthorized, http.StatusForbidden:
		return gateway.ErrUnauthorized
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return gateway.ErrNetwork
	default:
		return gateway.ErrUnknown
	}
}

// do sends r and decodes a 2xx JSON body into out when out is not nil.
func (c *Client) do(ctx context.Context, op, table string, r request, out any) (*http.Response, error) {
	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, gateway.NewError(op, table, gateway.ErrUnknown, fmt.Errorf("failed to encode body: %w", err))
		}
		body = bytes.NewReader(payload)
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, gateway.NewError(op, table, gateway.ErrUnknown, err)
	}

	token := r.bearer
	if token == "" {
		token = c.bearer()
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, gateway.NewError(op, table, gateway.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(raw, &apiErr)

		msg := apiErr.String()
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		logger.Debug.Printf("Gateway %s %s returned %d: %s", r.method, r.path, resp.StatusCode, msg)
		return resp, gateway.NewError(op, table, statusKind(resp.StatusCode), fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}

	if out != nil && r.method != http.MethodHead {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return resp, gateway.NewError(op, table, gateway.ErrUnknown, fmt.Errorf("failed to decode response: %w", err))
		}
	}
	return resp, nil
}
