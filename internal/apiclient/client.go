package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"storefront/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SessionHooks connects the client to the session owner: Token supplies the
// bearer token and HandleUnauthorized tears the session down when the
// rejected token is still the current one, reporting whether it did.
type SessionHooks interface {
	Token() string
	HandleUnauthorized(ctx context.Context, token string) bool
}

// Client is a thin wrapper over the storefront backend REST API
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu    sync.RWMutex
	hooks SessionHooks
}

// New creates a client for the backend at baseURL
func New(baseURL string, timeout time.Duration) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

// NewWithHTTPClient creates a client using the given http.Client
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		logger:  util.GetLogger(),
	}
}

// Use installs the session hooks consulted on every request
func (c *Client) Use(hooks SessionHooks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = hooks
}

func (c *Client) sessionHooks() SessionHooks {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hooks
}

type request struct {
	method string
	route  string
	path   string
	query  url.Values
	body   any
	form   url.Values
	header http.Header
	// public requests carry no bearer token and never trigger session teardown
	public bool
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	ctx, span := util.StartSpan(ctx, "api "+r.method+" "+r.route)
	defer span.End()

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case r.form != nil:
		body = strings.NewReader(r.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case r.body != nil:
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range r.header {
		for _, vv := range v {
			req.Header.Add(k, vv)
		}
	}

	hooks := c.sessionHooks()
	var token string
	if !r.public && hooks != nil {
		if token = hooks.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(r, "error", start)
		span.RecordError(err)
		return &APIError{Err: err}
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	c.observe(r, status, start)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: parseDetail(payload)}

		// a 401 for a token that is no longer current belongs to an
		// earlier session and must not end the one in place now
		if resp.StatusCode == http.StatusUnauthorized && token != "" {
			apiErr.authExpired = hooks.HandleUnauthorized(ctx, token)
			if apiErr.authExpired {
				c.logger.Warn("Backend rejected credentials, session ended",
					zap.String("route", r.route))
			}
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func (c *Client) observe(r request, status string, start time.Time) {
	util.APIRequestDuration.WithLabelValues(r.method, r.route, status).Observe(time.Since(start).Seconds())
	util.APIRequestsTotal.WithLabelValues(r.method, r.route, status).Inc()
}
