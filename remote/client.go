// Package remote implements the Remote Client (C5): the only component
// that performs network I/O, talking to the tone/suggestions/communicator
// endpoints with bounded timeouts, auth backoff, and a stale-response guard.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/unsaid-inc/tonecoach-core/config"
	"github.com/unsaid-inc/tonecoach-core/model"
)

const (
	pathTone                = "/v1/tone"
	pathSuggestions         = "/v1/suggestions"
	pathSecureFix           = "/v1/secure-fix"
	pathCommunicatorObserve = "/v1/communicator/observe"
)

// Client talks to the Unsaid tone service. The embedded http.Client is
// wrapped with otelhttp so every outbound call carries a span and the host
// app's metrics pipeline sees request counts/latency without this package
// importing a concrete exporter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	requestTimeout  time.Duration
	resourceTimeout time.Duration
	authBackoff     time.Duration

	mu               sync.Mutex
	authBlockedUntil time.Time
	latestRequestID  uint64

	now func() time.Time
}

// New builds a Client from resolved configuration. It is always safe to
// construct, even with an empty APIBaseURL/APIKey — IsConfigured reports
// false in that case and every call returns a KindOffline error.
func New(cfg config.Config) *Client {
	base := &http.Client{Timeout: cfg.ResourceTimeout}
	base.Transport = otelhttp.NewTransport(http.DefaultTransport)
	return &Client{
		httpClient:      base,
		baseURL:         strings.TrimRight(cfg.APIBaseURL, "/"),
		apiKey:          cfg.APIKey,
		requestTimeout:  cfg.RequestTimeout,
		resourceTimeout: cfg.ResourceTimeout,
		authBackoff:     cfg.AuthBackoff,
		now:             time.Now,
	}
}

// IsConfigured reports whether the client may currently be used: both
// endpoint and key are set, and no recent 401/403 has put it in backoff.
func (c *Client) IsConfigured() bool {
	return c.checkAvailable() == nil
}

func (c *Client) checkAvailable() error {
	if c.baseURL == "" || c.apiKey == "" {
		return newError(KindOffline, 0, errors.New("remote client not configured"))
	}
	c.mu.Lock()
	blockedUntil := c.authBlockedUntil
	c.mu.Unlock()
	if c.now().Before(blockedUntil) {
		return newError(KindAuthBlocked, 0, errors.New("blocked after an authentication failure"))
	}
	return nil
}

// AnalyzeTone requests a tone classification for req. The returned bool is
// false when a later call was dispatched before this one returned, in
// which case result is the zero value and must be discarded.
func (c *Client) AnalyzeTone(ctx context.Context, req model.AnalysisRequest) (model.AnalysisResult, bool, error) {
	return c.analyze(ctx, pathTone, req, c.requestTimeout, toneFieldPriority)
}

// RequestSuggestions requests rewrite/advice suggestions for req. Same
// staleness contract as AnalyzeTone. The suggestions endpoint carries some
// of its tone fields under different names than /v1/tone (§4.5/§6), so it
// is parsed with its own field-priority list.
func (c *Client) RequestSuggestions(ctx context.Context, req model.AnalysisRequest) (model.AnalysisResult, bool, error) {
	return c.analyze(ctx, pathSuggestions, req, c.requestTimeout, suggestionsToneFieldPriority)
}

// RequestSecureFix asks the remote service to rewrite req.Text into a
// calmer phrasing. It uses the longer resource timeout: a full rewrite
// costs more than a tone read.
func (c *Client) RequestSecureFix(ctx context.Context, req model.AnalysisRequest) (model.AnalysisResult, bool, error) {
	return c.analyze(ctx, pathSecureFix, req, c.resourceTimeout, suggestionsToneFieldPriority)
}

// ObserveCommunicatorEvent reports an accepted/rejected suggestion for
// analytics on the remote side. It is fire-and-forget: callers should log
// and ignore the error rather than surface it to the user.
func (c *Client) ObserveCommunicatorEvent(ctx context.Context, kind string, payload map[string]any) error {
	body := map[string]any{"kind": kind}
	for k, v := range payload {
		body[k] = v
	}
	_, err := c.post(ctx, pathCommunicatorObserve, body, c.resourceTimeout)
	return err
}

func (c *Client) analyze(ctx context.Context, path string, req model.AnalysisRequest, timeout time.Duration, toneFields []string) (model.AnalysisResult, bool, error) {
	id := c.beginRequest()
	raw, err := c.post(ctx, path, requestPayload(req), timeout)
	if err != nil {
		return model.AnalysisResult{}, c.stillLatest(id), err
	}
	if !c.stillLatest(id) {
		return model.AnalysisResult{}, false, nil
	}
	return parseAnalysisResult(raw, toneFields), true, nil
}

func (c *Client) beginRequest() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latestRequestID++
	return c.latestRequestID
}

func (c *Client) stillLatest(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return id == c.latestRequestID
}

func (c *Client) blockAuth() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authBlockedUntil = c.now().Add(c.authBackoff)
}

func (c *Client) post(ctx context.Context, path string, body any, timeout time.Duration) (map[string]any, error) {
	if err := c.checkAvailable(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, newError(KindDecode, 0, fmt.Errorf("encode request: %w", err))
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, newError(KindOffline, 0, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, newError(KindTimeout, 0, err)
		}
		return nil, newError(KindOffline, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.blockAuth()
		return nil, newError(KindAuthBlocked, resp.StatusCode, errors.New("authentication rejected"))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newError(KindHTTP, resp.StatusCode, errors.New("unexpected status"))
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, newError(KindDecode, resp.StatusCode, err)
	}
	return raw, nil
}
