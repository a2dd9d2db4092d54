// Package forge is a small client for the Conduit API of a Phabricator forge.
//
// Every Conduit method the mirror tool needs is a Request value; requests are
// sent through the single generic Send entry point, which owns the wire
// encoding and error decoding.
package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CosmoTheDev/forgemirror/internal/config"
)

// Client sends authenticated Conduit requests.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a Client configured from cfg.
func New(cfg config.ForgeConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewWithHTTPClient(cfg.URL, cfg.Token, &http.Client{Timeout: timeout})
}

// NewWithHTTPClient returns a Client using hc for transport.
func NewWithHTTPClient(baseURL, token string, hc *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    hc,
	}
}

// BaseURL is the forge address without trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// APIError is a Conduit-level failure reported in the response envelope.
type APIError struct {
	Method string
	Code   string
	Info   string
}

func (e *APIError) Error() string {
	if e.Info == "" {
		return fmt.Sprintf("conduit %s: %s", e.Method, e.Code)
	}
	return fmt.Sprintf("conduit %s: %s: %s", e.Method, e.Code, e.Info)
}

// Request is one Conduit call. The set of implementations is closed to this
// package.
type Request[R any] interface {
	method() string
	params() map[string]any
	decode(result json.RawMessage) (R, error)
}

type envelope struct {
	Result    json.RawMessage `json:"result"`
	ErrorCode *string         `json:"error_code"`
	ErrorInfo *string         `json:"error_info"`
}

// Send executes req and decodes its result.
func Send[R any](ctx context.Context, c *Client, req Request[R]) (R, error) {
	var zero R
	raw, err := c.call(ctx, req.method(), req.params())
	if err != nil {
		return zero, err
	}
	out, err := req.decode(raw)
	if err != nil {
		return zero, fmt.Errorf("decoding %s result: %w", req.method(), err)
	}
	return out, nil
}

// call posts params to /api/<method> and unwraps the Conduit envelope.
func (c *Client) call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	payload := make(map[string]any, len(params)+1)
	for k, v := range params {
		payload[k] = v
	}
	payload["__conduit__"] = map[string]string{"token": c.token}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s params: %w", method, err)
	}

	form := url.Values{}
	form.Set("params", string(encoded))
	form.Set("output", "json")
	form.Set("__conduit__", "1")

	endpoint := c.baseURL + "/api/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	slog.Debug("conduit call", "method", method)
	res, err := c.http.Do(req) // #nosec G107 -- forge URL is user-configured
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer res.Body.Close() //nolint:errcheck

	b, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("conduit %s returned %d", method, res.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decoding %s envelope: %w", method, err)
	}
	if env.ErrorCode != nil && *env.ErrorCode != "" {
		apiErr := &APIError{Method: method, Code: *env.ErrorCode}
		if env.ErrorInfo != nil {
			apiErr.Info = *env.ErrorInfo
		}
		return nil, apiErr
	}
	return env.Result, nil
}
