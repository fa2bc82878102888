package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/scanner"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/logger"
)

// Options controls the emulated device and the excluded containers.
type Options struct {
	ViewportWidth   int64
	ViewportHeight  int64
	ScreenWidth     int64
	ScreenHeight    int64
	Timeout         time.Duration
	ChromeSelectors []string
	NoticeSelectors []string
}

// DefaultOptions is a 1366x768 laptop screen with a slightly shorter viewport.
func DefaultOptions() Options {
	return Options{
		ViewportWidth:   1366,
		ViewportHeight:  657,
		ScreenWidth:     1366,
		ScreenHeight:    768,
		Timeout:         30 * time.Second,
		ChromeSelectors: scanner.DefaultChromeSelectors,
		NoticeSelectors: scanner.DefaultNoticeSelectors,
	}
}

// Snapshotter loads pages in headless Chrome and measures their anchors.
type Snapshotter struct {
	opts          Options
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

// NewSnapshotter starts a shared headless browser. Call Close when done.
func NewSnapshotter(opts Options) *Snapshotter {
	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Headless,
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), execOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	return &Snapshotter{
		opts:          opts,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}
}

// Close shuts the browser down.
func (s *Snapshotter) Close() {
	s.browserCancel()
	s.allocCancel()
}

// Snapshot navigates to pageURL, waits for the load event and measures
// every a[href] in document order.
func (s *Snapshotter) Snapshot(ctx context.Context, pageURL string) (scanner.PageSnapshot, error) {
	tabCtx, cancel := chromedp.NewContext(s.browserCtx)
	defer cancel()

	timeoutCtx, timeoutCancel := context.WithTimeout(tabCtx, s.opts.Timeout)
	defer timeoutCancel()

	// Stop the tab if the caller gives up first.
	go func() {
		select {
		case <-ctx.Done():
			timeoutCancel()
		case <-timeoutCtx.Done():
		}
	}()

	script, err := measureScript(s.opts.ChromeSelectors, s.opts.NoticeSelectors)
	if err != nil {
		return scanner.PageSnapshot{}, err
	}

	var raw string
	tasks := chromedp.Tasks{
		emulation.SetDeviceMetricsOverride(s.opts.ViewportWidth, s.opts.ViewportHeight, 1, false).
			WithScreenWidth(s.opts.ScreenWidth).
			WithScreenHeight(s.opts.ScreenHeight),
		chromedp.Navigate(pageURL),
		chromedp.Evaluate(script, &raw),
	}
	if err := chromedp.Run(timeoutCtx, tasks); err != nil {
		return scanner.PageSnapshot{}, fmt.Errorf("snapshot %s: %w", pageURL, err)
	}

	snap, err := DecodeSnapshot(raw)
	if err != nil {
		return scanner.PageSnapshot{}, fmt.Errorf("snapshot %s: %w", pageURL, err)
	}
	logger.Logger.Debug().
		Str("url", pageURL).
		Int("anchors", len(snap.Anchors)).
		Msg("page measured")
	return snap, nil
}

// DecodeSnapshot parses the JSON produced by the measuring script.
func DecodeSnapshot(raw string) (scanner.PageSnapshot, error) {
	var snap scanner.PageSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return scanner.PageSnapshot{}, fmt.Errorf("decode page snapshot: %w", err)
	}
	if snap.Anchors == nil {
		snap.Anchors = []scanner.AnchorSnapshot{}
	}
	return snap, nil
}

func measureScript(chromeSelectors, noticeSelectors []string) (string, error) {
	chromeJSON, err := json.Marshal(joinSelectors(chromeSelectors))
	if err != nil {
		return "", err
	}
	noticeJSON, err := json.Marshal(joinSelectors(noticeSelectors))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(measureJS, chromeJSON, noticeJSON), nil
}

func joinSelectors(selectors []string) string {
	return strings.Join(selectors, ", ")
}

const measureJS = `
(() => {
	const chromeSel = %s;
	const noticeSel = %s;
	const within = (el, sel) => {
		if (!sel) return false;
		try { return el.closest(sel) !== null; } catch (e) { return false; }
	};
	const docEl = document.documentElement;
	const anchors = Array.from(document.querySelectorAll('a[href]')).map(a => {
		const style = window.getComputedStyle(a);
		const r = a.getBoundingClientRect();
		const img = a.querySelector('img[alt]');
		return {
			rawHref: a.getAttribute('href') || '',
			href: a.href,
			inChrome: within(a, chromeSel),
			inNotice: within(a, noticeSel),
			display: style.display,
			visibility: style.visibility,
			opacity: parseFloat(style.opacity),
			rect: { top: r.top, left: r.left, bottom: r.bottom, right: r.right, width: r.width, height: r.height },
			text: a.innerText || '',
			imageAlt: img ? img.getAttribute('alt') : '',
			ariaLabel: a.getAttribute('aria-label') || ''
		};
	});
	return JSON.stringify({
		innerWidth: window.innerWidth || 0,
		innerHeight: window.innerHeight || 0,
		clientWidth: docEl ? docEl.clientWidth : 0,
		clientHeight: docEl ? docEl.clientHeight : 0,
		screenWidth: window.screen.width,
		screenHeight: window.screen.height,
		anchors: anchors
	});
})()
`
