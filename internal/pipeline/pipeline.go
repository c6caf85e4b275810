// Package pipeline runs a scrape end to end: collect search pages,
// deduplicate, enrich with principal contacts, assemble the result.
package pipeline

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bbb-scraper/internal/dedupe"
	"github.com/sells-group/bbb-scraper/internal/enrich"
	"github.com/sells-group/bbb-scraper/internal/extract"
	"github.com/sells-group/bbb-scraper/internal/fetch"
	"github.com/sells-group/bbb-scraper/internal/model"
	"github.com/sells-group/bbb-scraper/internal/monitoring"
	"github.com/sells-group/bbb-scraper/internal/normalize"
	"github.com/sells-group/bbb-scraper/internal/query"
)

// Deps holds a Pipeline's collaborators.
type Deps struct {
	Builder         *query.Builder
	Fetcher         enrich.Fetcher
	Extractor       *extract.Extractor
	Normalize       normalize.Options
	Enricher        *enrich.Enricher
	PageConcurrency int
	Metrics         *monitoring.Metrics
	// Closer, if set, is closed by Pipeline.Close (usually the transport).
	Closer io.Closer
}

// Pipeline sequences the collect, dedupe and enrich phases. Each phase's
// fan-out completes before the next begins.
type Pipeline struct {
	deps Deps
}

// New creates a Pipeline.
func New(d Deps) *Pipeline {
	if d.PageConcurrency < 1 {
		d.PageConcurrency = 1
	}
	if d.Extractor == nil {
		d.Extractor = &extract.Extractor{}
	}
	if d.Builder == nil {
		d.Builder = query.NewBuilder(query.DefaultSource())
	}
	return &Pipeline{deps: d}
}

// Run scrapes pages 1..pages for input. Pages that cannot be built, fetched
// or parsed contribute no records. The only error is ctx ending, in which
// case no partial result is returned.
func (p *Pipeline) Run(ctx context.Context, input string, pages int) (*model.ScrapeResult, error) {
	q := p.deps.Builder.Query(input)
	log := zap.L().With(zap.String("search_input", q.Raw()), zap.Int("pages", pages))
	log.Info("pipeline: starting scrape", zap.Bool("prebuilt", q.Prebuilt()))
	start := time.Now()

	collected, err := p.Collect(ctx, q, pages)
	if err != nil {
		return nil, err
	}
	p.deps.Metrics.Businesses(monitoring.StageCollected, len(collected))

	unique := dedupe.Records(collected)
	p.deps.Metrics.Businesses(monitoring.StageUnique, len(unique))
	log.Info("pipeline: collect complete",
		zap.Int("collected", len(collected)),
		zap.Int("unique", len(unique)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if p.deps.Enricher != nil {
		stats, err := p.deps.Enricher.Enrich(ctx, unique)
		if err != nil {
			return nil, err
		}
		log.Info("pipeline: enrich complete",
			zap.Int("attempted", stats.Attempted),
			zap.Int("enriched", stats.Enriched),
			zap.Int("skipped", stats.Skipped),
		)
	}

	result := Assemble(unique, pages)
	log.Info("pipeline: scrape complete",
		zap.Int("total_businesses", result.TotalBusinesses),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// Collect fetches and normalizes every page concurrently and concatenates
// the records in page order.
func (p *Pipeline) Collect(ctx context.Context, q query.SearchQuery, pages int) ([]*model.Business, error) {
	slots := make([][]*model.Business, pages)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.deps.PageConcurrency)
	for i := range pages {
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			slots[i] = p.page(gCtx, q, i+1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []*model.Business
	for _, s := range slots {
		out = append(out, s...)
	}
	return out, nil
}

func (p *Pipeline) page(ctx context.Context, q query.SearchQuery, page int) []*model.Business {
	target, err := p.deps.Builder.Target(q, page)
	if err != nil {
		zap.L().Warn("pipeline: skipping page", zap.Int("page", page), zap.Error(err))
		p.deps.Metrics.Page(false)
		return nil
	}

	doc, ok := p.deps.Fetcher.Document(ctx, fetch.KindSearch, target.URL)
	if !ok {
		p.deps.Metrics.Page(false)
		return nil
	}
	payload, ok := p.deps.Extractor.SearchPayload(doc)
	if !ok {
		p.deps.Metrics.Page(false)
		return nil
	}

	records := normalize.SearchResults(payload, p.deps.Normalize)
	p.deps.Metrics.Page(len(records) > 0)
	zap.L().Debug("pipeline: page collected",
		zap.Int("page", page),
		zap.String("url", target.URL),
		zap.Int("records", len(records)),
	)
	return records
}

// Assemble builds the final result from the unique records.
func Assemble(records []*model.Business, pages int) *model.ScrapeResult {
	businesses := make([]model.Business, 0, len(records))
	for _, b := range records {
		businesses = append(businesses, *b)
	}
	return &model.ScrapeResult{
		TotalBusinesses: len(businesses),
		PagesScraped:    pages,
		Businesses:      businesses,
	}
}

// Close releases the pipeline's transport.
func (p *Pipeline) Close() error {
	if p.deps.Closer == nil {
		return nil
	}
	return p.deps.Closer.Close()
}
