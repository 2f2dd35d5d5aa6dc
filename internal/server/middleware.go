package server

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lumarank/lumarank/internal/apperr"
	"github.com/lumarank/lumarank/internal/auth"
	"github.com/lumarank/lumarank/internal/model"
)

const headerRequestID = "X-Request-ID"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	sessionKey
)

// RequestIDFrom returns the request ID assigned by the router, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// SessionFrom returns the session attached by requireSession.
func SessionFrom(ctx context.Context) (model.SessionContext, bool) {
	sess, ok := ctx.Value(sessionKey).(model.SessionContext)
	return sess, ok
}

func newRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// requestID honours an incoming X-Request-ID and echoes it back.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if id == "" || len(id) > 128 {
			id = newRequestID()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		}
		if email := r.Header.Get(auth.HeaderEmail); email != "" {
			fields = append(fields, zap.String("user_email", email))
		}
		if status >= http.StatusInternalServerError {
			zap.L().Warn("http: request", fields...)
			return
		}
		zap.L().Info("http: request", fields...)
	})
}

// requireSession resolves the identity headers and attaches the session.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds := auth.Credentials{
			Email:    r.Header.Get(auth.HeaderEmail),
			AuthID:   r.Header.Get(auth.HeaderAuthID),
			EntityID: r.Header.Get(auth.HeaderEntityID),
		}
		sess, err := s.auth.Resolve(r.Context(), creds, RequestIDFrom(r.Context()))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
	})
}

func requireRole(least model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFrom(r.Context())
			if !ok || !sess.HasRole(least) {
				writeError(w, r, apperr.New(apperr.KindAccessDenied, "Insufficient role for this operation"), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientLimiters keeps one token bucket per client address.
type clientLimiters struct {
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	rps       rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newClientLimiters(rps float64, burst int, now func() time.Time) *clientLimiters {
	if burst <= 0 {
		burst = int(math.Ceil(rps))
	}
	return &clientLimiters{
		limiters:  make(map[string]*clientLimiter),
		rps:       rate.Limit(rps),
		burst:     burst,
		idle:      10 * time.Minute,
		lastSweep: now(),
		now:       now,
	}
}

// reserve admits one request from client or returns how long to wait.
func (c *clientLimiters) reserve(client string) (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) > c.idle {
		for k, l := range c.limiters {
			if now.Sub(l.lastSeen) > c.idle {
				delete(c.limiters, k)
			}
		}
		c.lastSweep = now
	}

	l, ok := c.limiters[client]
	if !ok {
		l = &clientLimiter{lim: rate.NewLimiter(c.rps, c.burst)}
		c.limiters[client] = l
	}
	l.lastSeen = now

	res := l.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	delay := res.DelayFrom(now)
	if delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (c *clientLimiters) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := c.reserve(clientKey(r))
		if !ok {
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			zap.L().Warn("http: rate limit exceeded",
				zap.String("request_id", RequestIDFrom(r.Context())),
				zap.String("client", clientKey(r)),
			)
			writeError(w, r, apperr.New(apperr.KindRateLimited, "Rate limit exceeded"), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
