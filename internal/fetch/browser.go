package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bbb-scraper/internal/session"
)

// BrowserOptions configures the headless browser transport.
type BrowserOptions struct {
	Headless    bool
	PageTimeout time.Duration
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
}

// BrowserTransport renders pages in a shared headless Chrome instance, one
// tab per fetch. The returned body is the rendered document's outer HTML.
type BrowserTransport struct {
	session *session.Context
	timeout time.Duration

	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

// NewBrowserTransport starts a browser configured from sess.
func NewBrowserTransport(sess *session.Context, opts BrowserOptions) (*BrowserTransport, error) {
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 45 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if ua := sess.UserAgent(); ua != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(ua))
	}
	if p := sess.Proxy(); p.HTTPS != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(p.HTTPS))
	} else if p.HTTP != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(p.HTTP))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Start the browser now so later tabs share it.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, eris.Wrap(err, "fetch: start browser")
	}

	return &BrowserTransport{
		session:       sess,
		timeout:       opts.PageTimeout,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

// Get opens rawURL in a new tab and returns the rendered HTML along with the
// status of the main document response.
func (b *BrowserTransport) Get(ctx context.Context, rawURL string) (*Response, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()

	// Tie the tab to the caller's context.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var (
		mu          sync.Mutex
		status      int
		contentType string
	)
	chromedp.ListenTarget(tabCtx, func(ev any) {
		e, ok := ev.(*network.EventResponseReceived)
		if !ok || e.Type != network.ResourceTypeDocument {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if status == 0 {
			status = int(e.Response.Status)
			contentType = e.Response.MimeType
		}
	})

	headers := network.Headers{}
	for k, v := range b.session.Headers() {
		headers[k] = v
	}

	actions := []chromedp.Action{
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
	}
	for name, value := range b.session.CookiesFor(rawURL) {
		actions = append(actions, network.SetCookie(name, value).WithURL(rawURL))
	}

	var html string
	actions = append(actions,
		chromedp.Navigate(rawURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	start := time.Now()
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, eris.Wrapf(err, "fetch: render %s", rawURL)
	}

	mu.Lock()
	defer mu.Unlock()
	if status == 0 {
		status = 200
	}
	zap.L().Debug("fetch: rendered page",
		zap.String("url", rawURL),
		zap.Int("status", status),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Response{Status: status, Body: html, ContentType: contentType}, nil
}

// Close shuts down the browser.
func (b *BrowserTransport) Close() error {
	b.cancelBrowser()
	b.cancelAlloc()
	return nil
}
