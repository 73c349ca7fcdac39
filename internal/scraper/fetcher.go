package scraper

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"trustpilot_fetcher/internal/adapters/observability"
)

// Browser-like request headers reduce the chance of the target site
// serving a block page instead of the review page.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

type FetcherConfig struct {
	TimeoutSeconds int
	MaxRedirects   int
	FetchRPS       int
	// InsecureTLS disables certificate verification against the target
	// site. This mirrors the upstream scraper's behavior and is a known
	// security trade-off; keep it off in production.
	InsecureTLS bool
}

type Fetcher struct {
	cfg       FetcherConfig
	rl        *rate.Limiter
	transport http.RoundTripper
	log       zerolog.Logger
}

func NewFetcher(cfg FetcherConfig, log zerolog.Logger) *Fetcher {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 10
	}
	if cfg.FetchRPS <= 0 {
		cfg.FetchRPS = 1
	}
	if cfg.InsecureTLS {
		log.Warn().Msg("TLS certificate verification disabled for target fetches")
	}
	return &Fetcher{
		cfg: cfg,
		rl:  rate.NewLimiter(rate.Limit(cfg.FetchRPS), cfg.FetchRPS),
		log: log,
	}
}

// WithTransport overrides the HTTP transport. Tests use it to route
// requests to a local server.
func (f *Fetcher) WithTransport(rt http.RoundTripper) *Fetcher {
	f.transport = rt
	return f
}

// Fetch GETs the page and returns its HTML. The cookie jar is scoped to
// this call; nothing leaks between unrelated fetches. Failures surface as
// *FetchError with a distinct kind for network, status, and empty-body cases.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := f.rl.Wait(ctx); err != nil {
		return "", &FetchError{Kind: FetchNetwork, Err: err}
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return "", &FetchError{Kind: FetchNetwork, Err: err}
	}

	transport := f.transport
	if transport == nil {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: f.cfg.InsecureTLS},
		}
	}
	client := &http.Client{
		Jar:       jar,
		Timeout:   time.Duration(f.cfg.TimeoutSeconds) * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= f.cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", f.cfg.MaxRedirects)
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{Kind: FetchNetwork, Err: err}
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		observability.ObserveFetch(0, time.Since(start))
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return "", &FetchError{Kind: FetchNetwork, Err: err}
	}
	defer resp.Body.Close()
	observability.ObserveFetch(resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", &FetchError{Kind: FetchStatus, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{Kind: FetchNetwork, Err: err}
	}
	if len(body) == 0 {
		return "", &FetchError{Kind: FetchEmptyBody}
	}

	f.log.Debug().Str("url", url).Int("bytes", len(body)).Msg("page fetched")
	return string(body), nil
}
