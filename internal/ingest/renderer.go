package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// Renderer returns the fully rendered HTML of a page after scripts have run.
type Renderer interface {
	Render(ctx context.Context, url string, settle time.Duration) (string, error)
}

// BrowserSession is a Renderer bound to one ingestion cycle. Close releases the browser.
type BrowserSession interface {
	Renderer
	Close() error
}

type BrowserLauncher interface {
	Launch(ctx context.Context) (BrowserSession, error)
}

// ChromeLauncher starts a headless Chrome through chromedp.
type ChromeLauncher struct {
	ExecPath      string
	Headless      bool
	RenderTimeout time.Duration
	Logger        *logrus.Logger
}

func (l *ChromeLauncher) Launch(ctx context.Context) (BrowserSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(browserUserAgent),
	)
	if !l.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if l.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	timeout := l.RenderTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if l.Logger != nil {
		l.Logger.Debug("headless browser started")
	}
	return &chromeSession{
		ctx:     browserCtx,
		timeout: timeout,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}, nil
}

type chromeSession struct {
	ctx     context.Context
	timeout time.Duration
	cancel  func()
	once    sync.Once
}

func (s *chromeSession) Render(ctx context.Context, url string, settle time.Duration) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(s.ctx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, s.timeout+settle)
	defer cancelTimeout()

	// Propagate caller cancellation into the tab.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return html, nil
}

func (s *chromeSession) Close() error {
	s.once.Do(s.cancel)
	return nil
}
