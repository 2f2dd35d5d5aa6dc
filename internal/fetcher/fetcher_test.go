package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumarank/lumarank/internal/apperr"
	"github.com/lumarank/lumarank/internal/resilience"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title> Acme Analytics | Dashboards </title>
  <meta name="description" content="Dashboards for   growing teams.">
  <style>body { color: red; }</style>
  <script>var tracking = "do not index";</script>
</head>
<body>
  <nav><a href="/">Home</a><a href="/pricing">Pricing</a></nav>
  <h1>Acme Analytics</h1>
  <p>Real-time   dashboards
     for SaaS teams.</p>
  <noscript>Enable JavaScript</noscript>
  <footer>Copyright Acme</footer>
</body>
</html>`

func newTestFetcher() *HTTPFetcher {
	return New(Options{
		UserAgent: "test-agent",
		Timeout:   2 * time.Second,
		HostRPS:   1000,
	})
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	page, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Acme Analytics | Dashboards", page.Title)
	assert.Equal(t, "Dashboards for growing teams.", page.MetaDescription)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, page.ContentType, "text/html")
	assert.Contains(t, page.Text, "Real-time dashboards for SaaS teams.")
	assert.NotContains(t, page.Text, "tracking")
	assert.NotContains(t, page.Text, "color: red")
	assert.NotContains(t, page.Text, "Pricing")
	assert.NotContains(t, page.Text, "Copyright")
	assert.NotContains(t, page.Text, "Enable JavaScript")
	assert.Equal(t, samplePage, page.HTML)
}

func TestFetch_InvalidURLMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	f := newTestFetcher()
	for _, raw := range []string{"", "not a url", "ftp://example.com", "example.com", "/relative/path"} {
		_, err := f.Fetch(context.Background(), raw)
		require.Error(t, err, raw)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), raw)
	}
	assert.Equal(t, int32(0), hits.Load())
}

func TestFetch_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Equal(t, http.StatusServiceUnavailable, resilience.StatusCode(err))
}

func TestFetch_CDNOriginErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(522)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Equal(t, 522, resilience.StatusCode(err))
}

func TestFetch_ClientErrorIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
	assert.Contains(t, err.Error(), "404")
}

func TestFetch_JSOnlyPageIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><script src="app.js"></script></head><body><div id="root"></div><script>render()</script></body></html>`))
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, apperr.KindParse, apperr.KindOf(err))
	assert.False(t, resilience.IsTransient(err))
}

func TestFetch_TimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	f := New(Options{Timeout: 20 * time.Millisecond, HostRPS: 1000})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestFetch_RetriedByPolicy(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	f := newTestFetcher()
	policy := resilience.NewPolicy("fetch", 3, time.Millisecond, 2*time.Millisecond)
	page, err := resilience.DoVal(context.Background(), policy, func(ctx context.Context) (*Page, error) {
		return f.Fetch(ctx, srv.URL)
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
	assert.NotEmpty(t, page.Text)
}

func TestFetch_BodyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>" + strings.Repeat("word ", 10000) + "</p></body></html>"))
	}))
	defer srv.Close()

	f := New(Options{MaxBodyBytes: 1024, MaxTextChars: 100, HostRPS: 1000})
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(page.HTML), 1024)
	assert.LessOrEqual(t, len([]rune(page.Text)), 100)
}

func TestFetch_RateLimitSlowsHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := New(Options{HostRPS: 100})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))

	host := strings.TrimPrefix(srv.URL, "http://")
	assert.Less(t, float64(f.limiters.get(host).Limit()), 100.0)
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "example.com", DomainOf("https://www.Example.com/about"))
	assert.Equal(t, "shop.example.co.uk", DomainOf("http://shop.example.co.uk"))
	assert.Equal(t, "", DomainOf("::bad"))
}

func TestFetch_DecodesLatin1(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		// "Café Olé" in Latin-1.
		_, _ = w.Write([]byte("<html><body><p>Caf\xe9 Ol\xe9</p></body></html>"))
	}))
	defer srv.Close()

	page, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Café Olé", page.Text)
}
