// Package fetch performs page fetches through a pluggable transport and
// classifies the results under a bounded retry policy.
package fetch

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/sells-group/bbb-scraper/internal/session"
)

const defaultMaxBodyBytes = 10 << 20

// Response is a fetched document. Body is decoded to UTF-8.
type Response struct {
	Status      int
	Body        string
	ContentType string
}

// Transport performs one network fetch. A returned error is a transport
// fault (connection, timeout); HTTP error statuses are returned as a
// Response, not an error.
type Transport interface {
	Get(ctx context.Context, rawURL string) (*Response, error)
	Close() error
}

// HTTPOptions configures the HTTP transport.
type HTTPOptions struct {
	Timeout      time.Duration
	RatePerSec   float64
	Burst        int
	MaxBodyBytes int64
}

// HTTPTransport fetches documents with net/http through a session's TLS
// fingerprint, proxy, headers and cookies. Requests are rate limited per host.
type HTTPTransport struct {
	client  *http.Client
	session *session.Context
	opts    HTTPOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPTransport creates an HTTPTransport bound to sess.
func NewHTTPTransport(sess *session.Context, opts HTTPOptions) (*HTTPTransport, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	client, err := sess.Client(opts.Timeout)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: build http client")
	}
	return &HTTPTransport{
		client:   client,
		session:  sess,
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}, nil
}

func (t *HTTPTransport) limiterFor(host string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	lim, ok := t.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(t.opts.RatePerSec), t.opts.Burst)
		t.limiters[host] = lim
	}
	return lim
}

// Get fetches rawURL once.
func (t *HTTPTransport) Get(ctx context.Context, rawURL string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse url %q", rawURL)
	}
	if err := t.limiterFor(u.Host).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetch: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	t.session.Apply(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: do request")
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, t.opts.MaxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "fetch: read body")
	}

	contentType := resp.Header.Get("Content-Type")
	return &Response{
		Status:      resp.StatusCode,
		Body:        decodeBody(raw, contentType),
		ContentType: contentType,
	}, nil
}

// Close releases idle connections.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

// decodeBody converts raw to UTF-8 using the charset declared in the
// Content-Type header. Unknown or undeclared charsets pass through unchanged.
func decodeBody(raw []byte, contentType string) string {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return string(raw)
	}
	charset := strings.ToLower(strings.TrimSpace(params["charset"]))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return string(raw)
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return string(raw)
	}
	decoded, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(raw)))
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
