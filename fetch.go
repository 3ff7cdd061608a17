package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

const maxResponseBytes = 2 * 1024 * 1024

type fetchKind int

const (
	outcomeSuccess fetchKind = iota
	outcomeTransient
	outcomePermanent
)

// rawPage is the outcome of one fetch. Content is empty unless Outcome is
// outcomeSuccess. FinalURL is the post-redirect location for rendered
// pages (the maps profile URL the browser lands on).
type rawPage struct {
	Source    sourceID
	URL       string
	FinalURL  string
	FetchedAt time.Time
	Content   string
	Outcome   fetchKind
	Reason    string
}

func (p rawPage) ok() bool { return p.Outcome == outcomeSuccess }

type failureLogger interface {
	logFailure(url, kind string)
}

type renderFunc func(ctx context.Context, target string) (content, finalURL string, err error)

// fetchClient retrieves pages through the shared rate gate and classifies
// every outcome. It never returns an error to the pipeline: a bad URL
// costs one failure-log line, not the batch.
type fetchClient struct {
	gate       *rateGate
	client     *http.Client
	userAgents []string
	retries    int
	backoff    time.Duration
	render     renderFunc
	failures   failureLogger
}

func newFetchClient(cfg config, gate *rateGate, render renderFunc, failures failureLogger) *fetchClient {
	return &fetchClient{
		gate:       gate,
		client:     &http.Client{Timeout: cfg.FetchTimeout},
		userAgents: cfg.UserAgents,
		retries:    cfg.FetchRetries,
		backoff:    time.Second,
		render:     render,
		failures:   failures,
	}
}

func (c *fetchClient) userAgent() string {
	if len(c.userAgents) == 0 {
		return defaultUserAgents[0]
	}
	return c.userAgents[rand.Intn(len(c.userAgents))]
}

// fetch retrieves target for src, retrying transient failures with
// exponential backoff up to the configured attempt bound. Exactly one
// failure record is logged when the page is finally given up on.
func (c *fetchClient) fetch(ctx context.Context, src sourceID, target string, renderRequired bool) rawPage {
	page := rawPage{Source: src, URL: target, FetchedAt: time.Now()}

	if u, err := url.Parse(target); err != nil || u.Scheme == "" || u.Host == "" {
		page.Outcome, page.Reason = outcomePermanent, "bad-url"
		c.failures.logFailure(target, page.Reason)
		return page
	}

	attempts := c.retries
	if attempts < 1 {
		attempts = 1
	}

	var lastReason string
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.gate.acquire(ctx, src); err != nil {
			page.Outcome, page.Reason = outcomeTransient, "canceled"
			return page
		}

		outcome, content, finalURL, reason := c.attempt(ctx, target, renderRequired)
		switch outcome {
		case outcomeSuccess:
			page.Outcome = outcomeSuccess
			page.Content = content
			page.FinalURL = finalURL
			page.FetchedAt = time.Now()
			return page
		case outcomePermanent:
			page.Outcome, page.Reason = outcomePermanent, reason
			c.failures.logFailure(target, reason)
			return page
		default:
			lastReason = reason
			if attempt < attempts {
				if err := sleepCtx(ctx, c.backoff*(1<<(attempt-1))); err != nil {
					page.Outcome, page.Reason = outcomeTransient, "canceled"
					return page
				}
			}
		}
	}

	page.Outcome, page.Reason = outcomeTransient, lastReason
	c.failures.logFailure(target, lastReason)
	return page
}

func (c *fetchClient) attempt(ctx context.Context, target string, renderRequired bool) (fetchKind, string, string, string) {
	if renderRequired {
		if c.render == nil {
			return outcomePermanent, "", "", "render-unavailable"
		}
		content, finalURL, err := c.render(ctx, target)
		if err != nil {
			return outcomeTransient, "", "", fmt.Sprintf("render: %v", err)
		}
		if looksBlocked(content) {
			return outcomePermanent, "", "", "blocked"
		}
		return outcomeSuccess, content, finalURL, ""
	}

	status, body, err := c.getStatic(ctx, target)
	if err != nil {
		return outcomeTransient, "", "", fmt.Sprintf("request: %v", err)
	}
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return outcomeTransient, "", "", fmt.Sprintf("status %d", status)
	case status >= 300:
		return outcomePermanent, "", "", fmt.Sprintf("status %d", status)
	case looksBlocked(body):
		return outcomePermanent, "", "", "blocked"
	}
	return outcomeSuccess, body, target, ""
}

func (c *fetchClient) getStatic(ctx context.Context, target string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("User-Agent", c.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, string(body), nil
}

// looksBlocked spots captcha walls and rate-limit interstitials so they are
// not parsed as listing pages.
func looksBlocked(body string) bool {
	if body == "" {
		return false
	}
	lowered := strings.ToLower(body)
	return strings.Contains(lowered, "unusual traffic") ||
		strings.Contains(lowered, "captcha") ||
		strings.Contains(lowered, "verify you are a human")
}

// renderWithChrome builds the script-rendered fetch path on a shared
// browser allocator. Each call gets its own tab and timeout.
func renderWithChrome(allocCtx context.Context, settle func() time.Duration) renderFunc {
	return func(ctx context.Context, target string) (string, string, error) {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}

		tabCtx, cancel := chromedp.NewContext(allocCtx)
		defer cancel()

		tabCtx, timeoutCancel := context.WithTimeout(tabCtx, 60*time.Second)
		defer timeoutCancel()

		var html, loc string
		tasks := chromedp.Tasks{
			chromedp.Navigate(target),
			chromedp.Sleep(settle()),
			chromedp.ActionFunc(func(ctx context.Context) error {
				return chromedp.Evaluate(consentScript, nil).Do(ctx)
			}),
			chromedp.Sleep(settle()),
			chromedp.Location(&loc),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		}
		if err := chromedp.Run(tabCtx, tasks); err != nil {
			return "", "", err
		}
		return html, loc, nil
	}
}

func newBrowserAllocator(headless bool, userAgent string) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", "en-US"),
		chromedp.UserAgent(userAgent),
	)
	return chromedp.NewExecAllocator(context.Background(), opts...)
}

const consentScript = `(function () {
  const selectors = [
    'button[aria-label="Accept all"]',
    'button[aria-label="I agree"]',
    'button.VfPpkd-LgbsSe-OWXEXe-k8QpJ'
  ];
  for (const sel of selectors) {
    const btn = document.querySelector(sel);
    if (btn) {
      btn.click();
      return true;
    }
  }
  return false;
})();`
