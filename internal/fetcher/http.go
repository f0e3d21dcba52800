package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/property-finder/internal/config"
	"github.com/sells-group/property-finder/internal/resilience"
)

// maxBodyBytes bounds a single page read.
const maxBodyBytes = 10 << 20

// AdaptiveLimiter wraps a rate.Limiter that slows down on 429 responses and
// recovers gradually on success, never exceeding the configured rate.
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates a limiter starting at, and capped by, maxRate.
func NewAdaptiveLimiter(maxRate rate.Limit, burst int) *AdaptiveLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(maxRate, burst),
		maxRate:     maxRate,
		minRate:     maxRate / 8,
		currentRate: maxRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess raises the rate by 20%, up to the configured maximum.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setLocked(min(a.currentRate*1.2, a.maxRate))
}

// OnRateLimit halves the rate, down to an eighth of the maximum.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setLocked(max(a.currentRate*0.5, a.minRate))
	zap.L().Warn("fetcher: reducing rate after 429",
		zap.Float64("new_rate", float64(a.currentRate)),
	)
}

func (a *AdaptiveLimiter) setLocked(r rate.Limit) {
	a.currentRate = r
	a.limiter.SetLimit(r)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPFetcher implements Fetcher over net/http.
type HTTPFetcher struct {
	client   *http.Client
	cfg      config.FetchConfig
	retry    resilience.RetryConfig
	breakers *resilience.HostBreakers

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// NewHTTPFetcher creates an HTTPFetcher from the fetch config section.
func NewHTTPFetcher(cfg config.FetchConfig) *HTTPFetcher {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "property-finder/1.0"
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}

	breakerCfg := resilience.BreakerFromFetch(cfg)
	// Only failures worth retrying say anything about the host's health.
	breakerCfg.ShouldTrip = resilience.IsTransient

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 2,
				MaxConnsPerHost:     4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cfg:      cfg,
		retry:    resilience.RetryFromFetch(cfg),
		breakers: resilience.NewHostBreakers(breakerCfg),
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

// Breakers exposes the per-host circuit breakers for health reporting.
func (f *HTTPFetcher) Breakers() *resilience.HostBreakers { return f.breakers }

func (f *HTTPFetcher) limiterFor(host string) *AdaptiveLimiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = NewAdaptiveLimiter(rate.Limit(f.cfg.RatePerSec), f.cfg.Burst)
		f.limiters[host] = lim
	}
	return lim
}

// Fetch downloads rawURL. Transient failures are retried with backoff; the
// whole attempt sequence runs through the host's circuit breaker.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, eris.Errorf("fetcher: invalid url %q", rawURL)
	}

	lim := f.limiterFor(u.Host)
	cb := f.breakers.Get(u.Host)

	retry := f.retry
	retry.OnRetry = resilience.RetryLogger(u.Host, rawURL)

	page, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*Page, error) {
		return resilience.ExecuteVal(ctx, cb, func(ctx context.Context) (*Page, error) {
			return f.fetchOnce(ctx, lim, rawURL)
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: fetch %s", rawURL)
	}
	return page, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, lim *AdaptiveLimiter, rawURL string) (*Page, error) {
	if err := lim.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "ja,en;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		lim.OnRateLimit()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resilience.StatusError(rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "read body"), 0)
	}
	lim.OnSuccess()

	return &Page{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
