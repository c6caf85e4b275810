package fetch

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bbb-scraper/internal/monitoring"
	"github.com/sells-group/bbb-scraper/internal/resilience"
)

// Kind labels a fetch for logs and metrics.
type Kind string

// Fetch kinds.
const (
	KindSearch Kind = "search"
	KindDetail Kind = "detail"
)

// OutcomeKind classifies the result of a fetch.
type OutcomeKind int

// Outcome kinds.
const (
	Success OutcomeKind = iota
	RetryableFailure
	TerminalFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case RetryableFailure:
		return "retryable_failure"
	case TerminalFailure:
		return "terminal_failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the final result of a fetch after retries. Status is zero when
// the last attempt failed at the transport level.
type Outcome struct {
	Kind     OutcomeKind
	Document string
	Status   int
	Err      error
	Attempts int
}

// OK reports whether the fetch produced a document.
func (o Outcome) OK() bool { return o.Kind == Success }

// StatusError reports a non-success HTTP status.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch: http %d from %s", e.Status, e.URL)
}

// Executor fetches documents through a Transport with bounded retry.
// Server errors and transport faults are retried with exponential backoff;
// other statuses end the fetch immediately.
type Executor struct {
	transport Transport
	retry     resilience.RetryConfig
	metrics   *monitoring.Metrics
}

// NewExecutor creates an Executor. m may be nil.
func NewExecutor(t Transport, retry resilience.RetryConfig, m *monitoring.Metrics) *Executor {
	return &Executor{transport: t, retry: retry, metrics: m}
}

// Fetch retrieves rawURL and classifies the result. It never returns an
// error: failures are reported through the Outcome.
func (e *Executor) Fetch(ctx context.Context, kind Kind, rawURL string) Outcome {
	cfg := e.retry
	cfg.ShouldRetry = resilience.IsTransient
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(string(kind), rawURL)
	}

	var attempts, lastStatus int
	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context, attempt int) (*Response, error) {
		attempts = attempt
		e.metrics.FetchAttempt(string(kind))

		resp, err := e.transport.Get(ctx, rawURL)
		if err != nil {
			lastStatus = 0
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, resilience.NewTransientError(err, 0)
		}
		lastStatus = resp.Status

		switch {
		case resilience.IsSuccessStatus(resp.Status):
			return resp, nil
		case resilience.IsRetryableStatus(resp.Status):
			return nil, resilience.NewTransientError(&StatusError{URL: rawURL, Status: resp.Status}, resp.Status)
		default:
			return nil, &StatusError{URL: rawURL, Status: resp.Status}
		}
	})

	out := Outcome{Status: lastStatus, Attempts: attempts}
	switch {
	case err == nil:
		out.Kind = Success
		out.Document = resp.Body
	case resilience.IsTransient(err) || ctx.Err() != nil:
		out.Kind = RetryableFailure
		out.Err = eris.Wrapf(err, "fetch: %s gave up after %d attempts", rawURL, attempts)
	default:
		out.Kind = TerminalFailure
		out.Err = err
	}

	e.metrics.FetchOutcome(string(kind), out.Kind.String())
	if !out.OK() {
		zap.L().Debug("fetch: no document",
			zap.String("kind", string(kind)),
			zap.String("url", rawURL),
			zap.Stringer("outcome", out.Kind),
			zap.Int("status", out.Status),
			zap.Int("attempts", out.Attempts),
			zap.Error(out.Err),
		)
	}
	return out
}

// Document returns the fetched body, or false when the fetch produced none.
// Callers treat a missing document as zero records, never as a fatal error.
func (e *Executor) Document(ctx context.Context, kind Kind, rawURL string) (string, bool) {
	out := e.Fetch(ctx, kind, rawURL)
	if !out.OK() {
		return "", false
	}
	return out.Document, true
}

// Close releases the underlying transport.
func (e *Executor) Close() error {
	return e.transport.Close()
}
