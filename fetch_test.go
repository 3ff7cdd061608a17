package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failureRecorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *failureRecorder) logFailure(url, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, url+" | "+kind)
}

func (r *failureRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func testFetchClient(failures failureLogger, render renderFunc) *fetchClient {
	cfg := config{
		FetchTimeout: 2 * time.Second,
		FetchRetries: 3,
		UserAgents:   defaultUserAgents,
	}
	c := newFetchClient(cfg, newRateGate(0, 0), render, failures)
	c.backoff = time.Millisecond
	return c
}

func TestFetchRetriesTransientUpToBound(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	failures := &failureRecorder{}
	c := testFetchClient(failures, nil)

	page := c.fetch(context.Background(), sourceJustdial, srv.URL, false)

	assert.Equal(t, outcomeTransient, page.Outcome)
	assert.Equal(t, int64(3), atomic.LoadInt64(&hits))
	assert.Equal(t, 1, failures.count(), "exactly one failure record on exhaustion")
	assert.Empty(t, page.Content)
}

func TestFetchRecoversAfterTransientFailure(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt64(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	failures := &failureRecorder{}
	c := testFetchClient(failures, nil)

	page := c.fetch(context.Background(), sourceJustdial, srv.URL, false)

	require.True(t, page.ok())
	assert.Contains(t, page.Content, "ok")
	assert.Equal(t, int64(3), atomic.LoadInt64(&hits))
	assert.Zero(t, failures.count())
}

func TestFetchPermanentFailureIsNotRetried(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	failures := &failureRecorder{}
	c := testFetchClient(failures, nil)

	page := c.fetch(context.Background(), sourceJustdial, srv.URL, false)

	assert.Equal(t, outcomePermanent, page.Outcome)
	assert.Equal(t, "status 404", page.Reason)
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
	assert.Equal(t, 1, failures.count())
}

func TestFetchMalformedURLIsPermanent(t *testing.T) {
	failures := &failureRecorder{}
	c := testFetchClient(failures, nil)

	page := c.fetch(context.Background(), sourceJustdial, "not a url", false)

	assert.Equal(t, outcomePermanent, page.Outcome)
	assert.Equal(t, "bad-url", page.Reason)
	assert.Equal(t, 1, failures.count())
}

func TestFetchClassifiesBlockedPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>Our systems have detected unusual traffic. Solve this CAPTCHA.</html>"))
	}))
	defer srv.Close()

	failures := &failureRecorder{}
	c := testFetchClient(failures, nil)

	page := c.fetch(context.Background(), sourceJustdial, srv.URL, false)

	assert.Equal(t, outcomePermanent, page.Outcome)
	assert.Equal(t, "blocked", page.Reason)
}

func TestFetchRenderedPageCarriesFinalURL(t *testing.T) {
	render := func(_ context.Context, target string) (string, string, error) {
		return "<html><h1>ABC Diagnostics</h1></html>", target + "/place/abc", nil
	}
	failures := &failureRecorder{}
	c := testFetchClient(failures, render)

	page := c.fetch(context.Background(), sourceGMaps, "https://example.com/maps", true)

	require.True(t, page.ok())
	assert.Equal(t, "https://example.com/maps/place/abc", page.FinalURL)
}

func TestFetchRenderErrorIsTransient(t *testing.T) {
	render := func(_ context.Context, _ string) (string, string, error) {
		return "", "", errors.New("browser crashed")
	}
	failures := &failureRecorder{}
	c := testFetchClient(failures, render)

	page := c.fetch(context.Background(), sourceGMaps, "https://example.com/maps", true)

	assert.Equal(t, outcomeTransient, page.Outcome)
	assert.Equal(t, 1, failures.count())
}

func TestFetchCancelledContextDoesNotLogFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	failures := &failureRecorder{}
	c := testFetchClient(failures, nil)

	page := c.fetch(ctx, sourceJustdial, "https://example.com/x", false)

	assert.Equal(t, outcomeTransient, page.Outcome)
	assert.Equal(t, "canceled", page.Reason)
	assert.Zero(t, failures.count())
}
