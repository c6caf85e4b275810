package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bbb-scraper/internal/model"
	"github.com/sells-group/bbb-scraper/internal/monitoring"
	"github.com/sells-group/bbb-scraper/internal/session"
	"github.com/sells-group/bbb-scraper/internal/store"
)

// Factory builds a Pipeline whose session uses proxy, if non-zero.
type Factory func(ctx context.Context, proxy session.Proxy) (*Pipeline, error)

// Runner validates requests, builds a pipeline per request and records runs.
type Runner struct {
	factory  Factory
	store    store.Store
	maxPages int
	metrics  *monitoring.Metrics
}

// NewRunner creates a Runner. st may be nil to skip persistence.
func NewRunner(f Factory, st store.Store, maxPages int, m *monitoring.Metrics) *Runner {
	return &Runner{factory: f, store: st, maxPages: maxPages, metrics: m}
}

// Outcome is a finished scrape with the ID of its run record, if recorded.
type Outcome struct {
	RunID  string
	Result *model.ScrapeResult
}

// Scrape runs req to completion. Validation failures are returned as
// *model.ValidationError before anything is fetched.
func (r *Runner) Scrape(ctx context.Context, req Request) (*Outcome, error) {
	req, err := Validate(req, r.maxPages)
	if err != nil {
		return nil, err
	}

	p, err := r.factory(ctx, req.Proxy)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: build")
	}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			zap.L().Warn("pipeline: close transport", zap.Error(cerr))
		}
	}()

	out := &Outcome{}
	log := zap.L().With(zap.String("search_input", req.SearchInput))

	if r.store != nil {
		run, err := r.store.CreateRun(ctx, req.SearchInput, req.Pages)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		out.RunID = run.ID
		log = log.With(zap.String("run_id", run.ID))
		if err := r.store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
			log.Warn("pipeline: failed to update status", zap.Error(err))
		}
	}

	start := time.Now()
	result, err := p.Run(ctx, req.SearchInput, req.Pages)
	if err != nil {
		r.metrics.ObserveRun(time.Since(start), string(model.RunStatusFailed))
		r.fail(out.RunID, err, log)
		return nil, eris.Wrap(err, "pipeline: run")
	}
	r.metrics.ObserveRun(time.Since(start), string(model.RunStatusComplete))
	out.Result = result

	if r.store != nil {
		if err := r.store.UpsertBusinesses(ctx, out.RunID, result.Businesses); err != nil {
			log.Error("pipeline: failed to save businesses", zap.Error(err))
		}
		if err := r.store.CompleteRun(ctx, out.RunID, result); err != nil {
			log.Error("pipeline: failed to complete run", zap.Error(err))
		}
	}
	return out, nil
}

// fail marks the run failed on a fresh context.
func (r *Runner) fail(runID string, cause error, log *zap.Logger) {
	if r.store == nil || runID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.FailRun(ctx, runID, cause.Error()); err != nil {
		log.Error("pipeline: failed to record failure", zap.Error(err))
	}
}
