package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bbb-scraper/internal/config"
	"github.com/sells-group/bbb-scraper/internal/enrich"
	"github.com/sells-group/bbb-scraper/internal/extract"
	"github.com/sells-group/bbb-scraper/internal/fetch"
	"github.com/sells-group/bbb-scraper/internal/monitoring"
	"github.com/sells-group/bbb-scraper/internal/normalize"
	"github.com/sells-group/bbb-scraper/internal/pipeline"
	"github.com/sells-group/bbb-scraper/internal/query"
	"github.com/sells-group/bbb-scraper/internal/resilience"
	"github.com/sells-group/bbb-scraper/internal/session"
	"github.com/sells-group/bbb-scraper/internal/store"
)

// scrapeEnv holds everything the scrape and serve commands need.
type scrapeEnv struct {
	Store    store.Store // nil when store.driver is "none"
	Registry *prometheus.Registry
	Metrics  *monitoring.Metrics
	Runner   *pipeline.Runner
}

// Close releases resources held by the environment.
func (e *scrapeEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initScrapeEnv validates configuration, opens the store and builds the
// runner. persist=false skips the store regardless of configuration.
// Callers should defer env.Close().
func initScrapeEnv(ctx context.Context, persist bool) (*scrapeEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	profile, err := loadProfile(cfg.Session)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	env := &scrapeEnv{Registry: reg, Metrics: monitoring.NewMetrics(reg)}

	if persist && cfg.Store.Driver != "none" {
		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
		env.Store = st
	}

	env.Runner = pipeline.NewRunner(buildFactory(cfg, profile, env.Metrics), env.Store, cfg.Scrape.MaxPages, env.Metrics)
	return env, nil
}

// loadProfile reads the configured identity profile, or the default one.
func loadProfile(sc config.SessionConfig) (session.Profile, error) {
	if sc.Profile == "" {
		return session.DefaultProfile(), nil
	}
	p, err := session.LoadProfile(sc.Profile)
	if err != nil {
		return session.Profile{}, err
	}
	zap.L().Debug("loaded session profile", zap.String("path", sc.Profile))
	return p, nil
}

// buildFactory returns a pipeline.Factory that wires a fresh session and
// transport per request. The request proxy wins over the configured one,
// which wins over the profile's.
func buildFactory(c *config.Config, profile session.Profile, m *monitoring.Metrics) pipeline.Factory {
	src := query.Source{
		Origin:     c.Source.Origin,
		SearchPath: c.Source.SearchPath,
		Country:    c.Source.Country,
	}
	norm := normalize.Options{Origin: c.Source.Origin, CallingCode: c.Source.CallingCode}
	retry := resilience.FromSettings(c.Scrape.RetryAttempts, c.Scrape.RetryBaseDelayMs)

	return func(ctx context.Context, proxy session.Proxy) (*pipeline.Pipeline, error) {
		if proxy.IsZero() {
			proxy = session.Proxy{HTTP: c.Session.Proxy.HTTP, HTTPS: c.Session.Proxy.HTTPS}
		}
		sess, err := session.New(profile, proxy, c.Source.Origin)
		if err != nil {
			return nil, err
		}

		t, err := newTransport(c, sess)
		if err != nil {
			return nil, err
		}

		exec := fetch.NewExecutor(t, retry, m)
		x := &extract.Extractor{DOMFallback: c.Scrape.DOMFallback, Metrics: m}
		builder := query.NewBuilder(src)

		return pipeline.New(pipeline.Deps{
			Builder:         builder,
			Fetcher:         exec,
			Extractor:       x,
			Normalize:       norm,
			Enricher:        enrich.New(exec, x, c.Scrape.DetailConcurrency, m, enrich.WithURLFilter(builder.Owns)),
			PageConcurrency: c.Scrape.PageConcurrency,
			Metrics:         m,
			Closer:          exec,
		}), nil
	}
}

func newTransport(c *config.Config, sess *session.Context) (fetch.Transport, error) {
	switch c.Scrape.Transport {
	case "http":
		return fetch.NewHTTPTransport(sess, fetch.HTTPOptions{
			Timeout:    time.Duration(c.Scrape.RequestTimeoutSecs) * time.Second,
			RatePerSec: c.Scrape.RatePerSec,
			Burst:      c.Scrape.RateBurst,
		})
	case "browser":
		return fetch.NewBrowserTransport(sess, fetch.BrowserOptions{
			Headless:    c.Browser.Headless,
			PageTimeout: time.Duration(c.Browser.PageTimeoutSecs) * time.Second,
			ExecPath:    c.Browser.ExecPath,
		})
	default:
		return nil, eris.Errorf("unsupported transport: %s", c.Scrape.Transport)
	}
}

func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite":
		return store.NewSQLite(sc.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL, &store.PoolConfig{MaxConns: sc.MaxConns, MinConns: sc.MinConns})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}
