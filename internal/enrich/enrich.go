// Package enrich fills in each business's principal contact from its
// profile page.
package enrich

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bbb-scraper/internal/extract"
	"github.com/sells-group/bbb-scraper/internal/fetch"
	"github.com/sells-group/bbb-scraper/internal/model"
	"github.com/sells-group/bbb-scraper/internal/monitoring"
	"github.com/sells-group/bbb-scraper/internal/normalize"
)

// Fetcher returns a page body, or false when none could be fetched.
type Fetcher interface {
	Document(ctx context.Context, kind fetch.Kind, rawURL string) (string, bool)
}

// Stats summarizes one enrichment pass.
type Stats struct {
	Attempted int
	Enriched  int
	Skipped   int
}

// Enricher runs detail lookups with bounded concurrency.
type Enricher struct {
	fetcher     Fetcher
	extractor   *extract.Extractor
	concurrency int
	metrics     *monitoring.Metrics
	allow       func(rawURL string) bool
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithURLFilter restricts lookups to profile URLs accepted by allow. Records
// whose URL is rejected are skipped and keep a null contact.
func WithURLFilter(allow func(rawURL string) bool) Option {
	return func(e *Enricher) { e.allow = allow }
}

// New creates an Enricher. concurrency below 1 is treated as 1.
func New(f Fetcher, x *extract.Extractor, concurrency int, m *monitoring.Metrics, opts ...Option) *Enricher {
	if concurrency < 1 {
		concurrency = 1
	}
	if x == nil {
		x = &extract.Extractor{}
	}
	e := &Enricher{fetcher: f, extractor: x, concurrency: concurrency, metrics: m}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich sets PrincipalContact on each record whose profile page yields one.
// Records without a URL, or with one the URL filter rejects, are skipped. A
// failed lookup leaves only its own record untouched. The returned error is
// non-nil only when ctx ends.
func (e *Enricher) Enrich(ctx context.Context, records []*model.Business) (Stats, error) {
	var attempted, enriched, skipped atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, b := range records {
		if b == nil || b.URL == "" {
			skipped.Add(1)
			continue
		}
		if e.allow != nil && !e.allow(b.URL) {
			zap.L().Warn("enrich: skipping profile outside source", zap.String("url", b.URL))
			skipped.Add(1)
			continue
		}
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			attempted.Add(1)
			if contact := e.lookup(gCtx, b.URL); contact != nil {
				b.PrincipalContact = contact
				enriched.Add(1)
			}
			return nil
		})
	}

	err := g.Wait()
	stats := Stats{
		Attempted: int(attempted.Load()),
		Enriched:  int(enriched.Load()),
		Skipped:   int(skipped.Load()),
	}
	e.metrics.Businesses(monitoring.StageEnriched, stats.Enriched)
	if err == nil {
		err = ctx.Err()
	}
	return stats, err
}

func (e *Enricher) lookup(ctx context.Context, profileURL string) *string {
	doc, ok := e.fetcher.Document(ctx, fetch.KindDetail, profileURL)
	if !ok {
		return nil
	}
	p, ok := e.extractor.DetailPayload(doc)
	if !ok {
		zap.L().Debug("enrich: no profile payload", zap.String("url", profileURL))
		return nil
	}
	return normalize.PrincipalContact(p)
}
