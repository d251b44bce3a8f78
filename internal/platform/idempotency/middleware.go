package idempotency

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/solebound/api/internal/platform/httpx"
)

const (
	// DefaultHeader is the request header carrying the client's key.
	DefaultHeader = "Idempotency-Key"
	// ReplayHeader marks responses served from a stored record.
	ReplayHeader = "X-Idempotent-Replay"
)

// Logger receives middleware diagnostics; zap's printf adapter satisfies it.
type Logger interface {
	Printf(format string, args ...any)
}

type middleware struct {
	store  Store
	header string
	ttl    time.Duration
	now    func() time.Time
	log    Logger
}

// MiddlewareOption adjusts middleware behaviour.
type MiddlewareOption func(*middleware)

// WithHeader renames the header the key is read from.
func WithHeader(name string) MiddlewareOption {
	return func(m *middleware) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			m.header = trimmed
		}
	}
}

// WithTTL sets how long responses stay replayable.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(m *middleware) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithLogger wires store failures into the application log.
func WithLogger(log Logger) MiddlewareOption {
	return func(m *middleware) { m.log = log }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) MiddlewareOption {
	return func(m *middleware) {
		if now != nil {
			m.now = now
		}
	}
}

// Middleware returns a chi-compatible middleware enforcing idempotency on
// mutating requests that carry the key header. Requests without the header
// pass through untouched, matching the endpoint's behaviour before replay
// protection existed.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	m := &middleware{
		store:  store,
		header: DefaultHeader,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !mutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			key := strings.TrimSpace(r.Header.Get(m.header))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			m.serve(w, r, next, key)
		})
	}
}

func (m *middleware) serve(w http.ResponseWriter, r *http.Request, next http.Handler, key string) {
	ctx := r.Context()

	body, err := bufferBody(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("request_body_unreadable", "unable to read request body", http.StatusBadRequest))
		return
	}
	fingerprint := Fingerprint(r.Method, r.URL.Path, body)

	reservation, err := m.store.Reserve(ctx, key, fingerprint, m.now().UTC(), m.ttl)
	if err != nil {
		if errors.Is(err, ErrKeyReused) {
			httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_reused", "idempotency key was already used for a different request", http.StatusConflict))
			return
		}
		m.logf("idempotency: reserve %q: %v", key, err)
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_unavailable", "unable to verify idempotency key", http.StatusInternalServerError))
		return
	}

	switch reservation.Outcome {
	case OutcomeReplay:
		replay(w, reservation.Response)
		return
	case OutcomeInFlight:
		httpx.WriteError(ctx, w, httpx.NewError("request_in_progress", "a request with this idempotency key is still being processed", http.StatusConflict))
		return
	}

	capture := newCaptureWriter()
	next.ServeHTTP(capture, r)

	saveErr := m.store.SaveResponse(ctx, key, fingerprint, capture.response(), m.now().UTC(), m.ttl)
	if saveErr != nil {
		// The handler already ran; its outcome wins. Free the key so a retry
		// is not stuck behind a pending claim, and hand the response through.
		m.logf("idempotency: save response for %q: %v", key, saveErr)
		if releaseErr := m.store.Release(ctx, key, fingerprint); releaseErr != nil {
			m.logf("idempotency: release %q: %v", key, releaseErr)
		}
	}
	capture.flush(w)
}

func (m *middleware) logf(format string, args ...any) {
	if m.log != nil {
		m.log.Printf(format, args...)
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// bufferBody drains the request body and puts a rewindable copy back so the
// handler still sees it.
func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

func replay(w http.ResponseWriter, resp Response) {
	header := w.Header()
	for name := range header {
		header.Del(name)
	}
	for name, values := range resp.Header {
		for _, value := range values {
			header.Add(name, value)
		}
	}
	header.Set(ReplayHeader, "true")

	code := resp.StatusCode
	if code == 0 {
		code = http.StatusOK
	}
	w.WriteHeader(code)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}

// captureWriter buffers the handler's response so it can be stored before
// reaching the client.
type captureWriter struct {
	header http.Header
	code   int
	body   bytes.Buffer
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{header: make(http.Header)}
}

func (c *captureWriter) Header() http.Header { return c.header }

func (c *captureWriter) WriteHeader(code int) {
	if c.code == 0 && code > 0 {
		c.code = code
	}
}

func (c *captureWriter) Write(data []byte) (int, error) {
	if c.code == 0 {
		c.code = http.StatusOK
	}
	return c.body.Write(data)
}

func (c *captureWriter) response() Response {
	resp := Response{StatusCode: c.statusCode(), Header: c.header.Clone()}
	if c.body.Len() > 0 {
		resp.Body = append([]byte(nil), c.body.Bytes()...)
	}
	return resp
}

func (c *captureWriter) statusCode() int {
	if c.code == 0 {
		return http.StatusOK
	}
	return c.code
}

func (c *captureWriter) flush(w http.ResponseWriter) {
	dst := w.Header()
	for name := range dst {
		dst.Del(name)
	}
	for name, values := range c.header {
		for _, value := range values {
			dst.Add(name, value)
		}
	}
	w.WriteHeader(c.statusCode())
	if c.body.Len() > 0 {
		_, _ = w.Write(c.body.Bytes())
	}
}
