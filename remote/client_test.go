package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unsaid-inc/tonecoach-core/config"
	"github.com/unsaid-inc/tonecoach-core/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	cfg := config.Default()
	cfg.APIBaseURL = srv.URL
	cfg.APIKey = "test-key"
	cfg.RequestTimeout = 200 * time.Millisecond
	cfg.ResourceTimeout = 500 * time.Millisecond
	return New(cfg), srv
}

func TestClient_AnalyzeTone_ReadsPrimaryToneField(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"primaryTone": "caution",
			"confidence":  0.8,
		})
	})
	defer srv.Close()

	result, applied, err := c.AnalyzeTone(context.Background(), model.AnalysisRequest{Text: "hi"})
	require.NoError(t, err)
	require.True(t, applied)
	require.True(t, result.HasTone)
	require.Equal(t, model.ToneCaution, result.Tone)
	require.InDelta(t, 0.8, result.Confidence, 0.0001)
}

func TestClient_ParseSuggestion_FieldPriority(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tone":               "clear",
			"rewrite":            "the rewrite wins",
			"general_suggestion": "should not be used",
		})
	})
	defer srv.Close()

	result, applied, err := c.RequestSuggestions(context.Background(), model.AnalysisRequest{Text: "hi"})
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, "the rewrite wins", result.Suggestion)
}

func TestClient_RequestSuggestions_ParsesToneStatusField(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"toneStatus": "alert",
			"rewrite":    "a calmer phrasing",
		})
	})
	defer srv.Close()

	result, applied, err := c.RequestSuggestions(context.Background(), model.AnalysisRequest{Text: "hi"})
	require.NoError(t, err)
	require.True(t, applied)
	require.True(t, result.HasTone, "suggestions responses may carry tone under toneStatus")
	require.Equal(t, model.ToneAlert, result.Tone)
}

func TestClient_AnalyzeTone_DoesNotRecognizeToneStatusField(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"toneStatus": "alert"})
	})
	defer srv.Close()

	result, applied, err := c.AnalyzeTone(context.Background(), model.AnalysisRequest{Text: "hi"})
	require.NoError(t, err)
	require.True(t, applied)
	require.False(t, result.HasTone, "the tone endpoint's field-priority list doesn't include toneStatus")
}

func TestClient_ParseSuggestion_FallsBackThroughChain(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tone":               "clear",
			"general_suggestion": "fallback text",
		})
	})
	defer srv.Close()

	result, _, err := c.AnalyzeTone(context.Background(), model.AnalysisRequest{Text: "hi"})
	require.NoError(t, err)
	require.Equal(t, "fallback text", result.Suggestion)
}

func TestClient_401_BlocksSubsequentCalls(t *testing.T) {
	var hits int32
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer srv.Close()

	_, _, err := c.AnalyzeTone(context.Background(), model.AnalysisRequest{Text: "hi"})
	require.Error(t, err)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, KindAuthBlocked, rerr.Kind)

	require.False(t, c.IsConfigured())

	_, _, err = c.AnalyzeTone(context.Background(), model.AnalysisRequest{Text: "hi again"})
	require.Error(t, err)
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, KindAuthBlocked, rerr.Kind)
	require.EqualValues(t, 1, atomic.LoadInt32(&hits), "the second call must not reach the network during backoff")
}

func TestClient_Timeout_ReturnsKindTimeout(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]any{"tone": "clear"})
	})
	defer srv.Close()

	_, _, err := c.AnalyzeTone(context.Background(), model.AnalysisRequest{Text: "hi"})
	require.Error(t, err)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, KindTimeout, rerr.Kind)
}

func TestClient_NotConfigured_ReturnsKindOffline(t *testing.T) {
	c := New(config.Default())
	require.False(t, c.IsConfigured())

	_, _, err := c.AnalyzeTone(context.Background(), model.AnalysisRequest{Text: "hi"})
	require.Error(t, err)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, KindOffline, rerr.Kind)
}

func TestClient_StaleResponse_Discarded(t *testing.T) {
	release := make(chan struct{})
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		_ = json.NewEncoder(w).Encode(map[string]any{"tone": "clear"})
	})
	defer srv.Close()
	c.requestTimeout = time.Second

	type outcome struct {
		applied bool
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		_, applied, err := c.AnalyzeTone(context.Background(), model.AnalysisRequest{Text: "first"})
		done <- outcome{applied, err}
	}()

	// Give the first call time to register itself as in-flight before the
	// second (newer) call is dispatched and completes synchronously.
	time.Sleep(20 * time.Millisecond)
	close(release)
	_, secondApplied, err := c.AnalyzeTone(context.Background(), model.AnalysisRequest{Text: "second"})
	require.NoError(t, err)
	require.True(t, secondApplied)

	out := <-done
	require.NoError(t, out.err)
	require.False(t, out.applied, "the first response must be discarded once a newer request has been issued")
}
