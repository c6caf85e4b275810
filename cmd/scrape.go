package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bbb-scraper/internal/export"
	"github.com/sells-group/bbb-scraper/internal/pipeline"
	"github.com/sells-group/bbb-scraper/internal/session"
)

var (
	scrapeInput      string
	scrapePages      int
	scrapeOut        string
	scrapeFormat     string
	scrapeProxyHTTP  string
	scrapeProxyHTTPS string
	scrapePersist    bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape search results once and export them",
	Example: `  bbb-scraper scrape --input "plumber" --pages 3 --format csv --out plumbers.csv
  bbb-scraper scrape --input "https://www.bbb.org/search?find_text=roofing&find_loc=Austin%2C+TX" --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		format, err := export.ParseFormat(scrapeFormat)
		if err != nil {
			return err
		}

		env, err := initScrapeEnv(ctx, scrapePersist)
		if err != nil {
			return err
		}
		defer env.Close()

		pages := scrapePages
		if pages == 0 {
			pages = cfg.Scrape.Pages
		}

		out, err := env.Runner.Scrape(ctx, pipeline.Request{
			SearchInput: scrapeInput,
			Pages:       pages,
			Proxy:       session.Proxy{HTTP: scrapeProxyHTTP, HTTPS: scrapeProxyHTTPS},
		})
		if err != nil {
			return err
		}

		zap.L().Info("scrape complete",
			zap.String("run_id", out.RunID),
			zap.Int("total_businesses", out.Result.TotalBusinesses),
			zap.Int("pages_scraped", out.Result.PagesScraped),
		)

		w, closeFn, err := openOutput(scrapeOut)
		if err != nil {
			return err
		}
		defer closeFn()

		return export.Write(w, format, out.Result)
	},
}

// openOutput returns stdout for "" or "-", otherwise a created file.
func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "scrape: create output")
	}
	return f, func() { _ = f.Close() }, nil
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeInput, "input", "", "search term or prebuilt search URL")
	scrapeCmd.Flags().IntVar(&scrapePages, "pages", 0, "number of result pages (default from config)")
	scrapeCmd.Flags().StringVar(&scrapeOut, "out", "", "output file (default stdout)")
	scrapeCmd.Flags().StringVar(&scrapeFormat, "format", "json", "output format: csv, xlsx or json")
	scrapeCmd.Flags().StringVar(&scrapeProxyHTTP, "proxy-http", "", "proxy URL for http traffic")
	scrapeCmd.Flags().StringVar(&scrapeProxyHTTPS, "proxy-https", "", "proxy URL for https traffic")
	scrapeCmd.Flags().BoolVar(&scrapePersist, "persist", true, "record the run in the configured store")
	_ = scrapeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(scrapeCmd)
}
