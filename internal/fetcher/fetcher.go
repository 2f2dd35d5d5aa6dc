// Package fetcher retrieves a single web page and reduces it to the visible
// text and metadata the extractor needs.
package fetcher

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/lumarank/lumarank/internal/apperr"
	"github.com/lumarank/lumarank/internal/resilience"
)

// Page is the result of fetching one URL.
type Page struct {
	URL             string
	FinalURL        string
	HTML            string
	Text            string
	Title           string
	MetaDescription string
	StatusCode      int
	ContentType     string
	Duration        time.Duration
}

// Fetcher retrieves and parses a single page. Each call is one attempt;
// callers apply their own retry policy.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// Options configures the HTTP fetcher.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	MaxTextChars int
	HostRPS      float64
}

// HTTPFetcher implements Fetcher with net/http and per-host rate limiting.
type HTTPFetcher struct {
	client   *http.Client
	opts     Options
	limiters *hostLimiters
}

// New creates an HTTPFetcher. Zero-valued options fall back to defaults.
func New(opts Options) *HTTPFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; WebsiteAnalyzer/1.0)"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 << 20
	}
	if opts.MaxTextChars <= 0 {
		opts.MaxTextChars = 50000
	}
	if opts.HostRPS <= 0 {
		opts.HostRPS = 2
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: newHostLimiters(opts.HostRPS),
	}
}

// ValidateURL checks that rawURL is an absolute http(s) URL.
func ValidateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, apperr.New(apperr.KindValidation, "website_url must be an absolute http or https URL")
	}
	return u, nil
}

// Fetch issues one GET for rawURL. Failures worth retrying carry a
// resilience.TransientError; 4xx responses and unparseable pages do not.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	lim := f.limiters.get(u.Host)
	if err := lim.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetch: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		if resilience.IsTransient(err) || isClientTimeout(err) {
			return nil, resilience.NewTransientError(eris.Wrapf(err, "fetch: GET %s", u.Host), 0)
		}
		return nil, eris.Wrapf(err, "fetch: GET %s", u.Host)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		lim.OnRateLimit()
	}
	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resilience.ClassifyHTTPStatus(
			eris.Errorf("fetch: %s returned status %d", u.Host, resp.StatusCode),
			resp.StatusCode,
		)
	}
	lim.OnSuccess()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		if resilience.IsTransient(err) {
			return nil, resilience.NewTransientError(eris.Wrap(err, "fetch: read body"), resp.StatusCode)
		}
		return nil, eris.Wrap(err, "fetch: read body")
	}
	duration := time.Since(start)

	body = toUTF8(body, resp.Header.Get("Content-Type"))
	content := ExtractContent(body, f.opts.MaxTextChars)
	if content.Text == "" {
		return nil, apperr.New(apperr.KindParse, "No extractable text content found on the page")
	}

	zap.L().Debug("fetched page",
		zap.String("url", u.String()),
		zap.Int("status", resp.StatusCode),
		zap.Int("html_bytes", len(body)),
		zap.Int("text_chars", len(content.Text)),
		zap.Duration("duration", duration),
	)

	return &Page{
		URL:             u.String(),
		FinalURL:        resp.Request.URL.String(),
		HTML:            string(body),
		Text:            content.Text,
		Title:           content.Title,
		MetaDescription: content.MetaDescription,
		StatusCode:      resp.StatusCode,
		ContentType:     resp.Header.Get("Content-Type"),
		Duration:        duration,
	}, nil
}

// toUTF8 transcodes body using the declared or sniffed charset.
func toUTF8(body []byte, contentType string) []byte {
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" {
		return body
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return out
}

// isClientTimeout catches http.Client.Timeout expiry, which surfaces as a
// *url.Error whose Timeout() is true.
func isClientTimeout(err error) bool {
	var ue *url.Error
	return errors.As(err, &ue) && ue.Timeout()
}

// DomainOf returns the host of rawURL without a leading "www.".
func DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
