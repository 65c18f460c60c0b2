// internal/browser/tab.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/shihanfu/rl-web-env/internal/browser/scripts"
	"github.com/shihanfu/rl-web-env/internal/config"
	"github.com/shihanfu/rl-web-env/internal/dom"
)

// Tab manages a single, isolated browser tab over CDP. Every page it loads
// carries the persistent instrumentation (network tracking, hover marking),
// and it performs the snapshot capture and identifier write-back the
// observation cycle depends on.
type Tab struct {
	id     string
	cfg    *config.Config
	logger *zap.Logger

	allocatorCtx context.Context
	tabCtx       context.Context
	tabCancel    context.CancelFunc

	onClose func()

	isClosed bool
	mu       sync.Mutex
}

func newTab(allocCtx context.Context, cfg *config.Config, logger *zap.Logger) *Tab {
	id := uuid.New().String()
	return &Tab{
		id:           id,
		cfg:          cfg,
		logger:       logger.With(zap.String("tab_id", id[:8])),
		allocatorCtx: allocCtx,
	}
}

// initialize creates the browser tab and installs the page instrumentation.
func (t *Tab) initialize(ctx context.Context) error {
	t.mu.Lock()
	if t.tabCtx != nil {
		t.mu.Unlock()
		return fmt.Errorf("tab already initialized")
	}
	tabCtx, cancel := chromedp.NewContext(t.allocatorCtx)
	t.tabCtx = tabCtx
	t.tabCancel = cancel
	t.mu.Unlock()

	instrument, err := scripts.Instrument()
	if err != nil {
		return err
	}

	return chromedp.Run(tabCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			if t.cfg.Browser.DisableCache {
				return network.SetCacheDisabled(true).Do(ctx)
			}
			return nil
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(instrument).Do(ctx)
			return err
		}),
	)
}

// ID returns the unique identifier for this tab.
func (t *Tab) ID() string {
	return t.id
}

// Navigate loads a URL and waits for the document to be ready.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	t.logger.Debug("Navigating", zap.String("url", url))

	runCtx, cancel := t.deadline(ctx, t.cfg.Browser.Timeouts.Default)
	defer cancel()

	return chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Back navigates back in tab history.
func (t *Tab) Back(ctx context.Context) error {
	runCtx, cancel := t.deadline(ctx, t.cfg.Browser.Timeouts.Default)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.NavigateBack(), chromedp.WaitReady("body", chromedp.ByQuery))
}

// Forward navigates forward in tab history.
func (t *Tab) Forward(ctx context.Context) error {
	runCtx, cancel := t.deadline(ctx, t.cfg.Browser.Timeouts.Default)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.NavigateForward(), chromedp.WaitReady("body", chromedp.ByQuery))
}

// Refresh reloads the current page.
func (t *Tab) Refresh(ctx context.Context) error {
	runCtx, cancel := t.deadline(ctx, t.cfg.Browser.Timeouts.Default)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Reload(), chromedp.WaitReady("body", chromedp.ByQuery))
}

// Title returns the current page title.
func (t *Tab) Title(ctx context.Context) (string, error) {
	runCtx, cancel := t.deadline(ctx, t.cfg.Browser.Timeouts.ElementWait)
	defer cancel()

	var title string
	err := chromedp.Run(runCtx, chromedp.Title(&title))
	return title, err
}

// URL returns the current page location.
func (t *Tab) URL(ctx context.Context) (string, error) {
	runCtx, cancel := t.deadline(ctx, t.cfg.Browser.Timeouts.ElementWait)
	defer cancel()

	var loc string
	err := chromedp.Run(runCtx, chromedp.Location(&loc))
	return loc, err
}

// BringToFront makes this tab the active one in the browser window.
func (t *Tab) BringToFront(ctx context.Context) error {
	runCtx, cancel := t.deadline(ctx, t.cfg.Browser.Timeouts.ElementWait)
	defer cancel()

	return chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.BringToFront().Do(ctx)
	}))
}

// HasFocus reports whether the tab's document currently holds focus.
func (t *Tab) HasFocus(ctx context.Context) (bool, error) {
	runCtx, cancel := t.deadline(ctx, t.cfg.Browser.Timeouts.ElementWait)
	defer cancel()

	var focused bool
	err := chromedp.Run(runCtx, chromedp.Evaluate(`document.hasFocus()`, &focused))
	return focused, err
}

// WaitQuiescent waits for the DOM to be ready and the page's network traffic
// to settle. Timeouts are reported, not returned: a slow page still gets
// observed, just later.
func (t *Tab) WaitQuiescent(ctx context.Context) error {
	timeouts := t.cfg.Browser.Timeouts

	domCtx, cancelDOM := t.deadline(ctx, timeouts.PageLoadDOM)
	err := chromedp.Run(domCtx, chromedp.WaitReady("body", chromedp.ByQuery))
	cancelDOM()
	if err != nil {
		t.logger.Warn("Timed out waiting for document ready.", zap.Error(err))
	}

	idleMs := timeouts.CustomNetworkIdle.Milliseconds()
	totalMs := timeouts.PageLoadIdle.Milliseconds()
	script := fmt.Sprintf(`
		(async () => {
			if (typeof window.__networkActivity === 'undefined') {
				return true;
			}
			try {
				return await window.__networkActivity.waitForIdle(%d, %d);
			} catch (e) {
				return false;
			}
		})()`, idleMs, totalMs)

	// Give the in-page promise slightly longer than its own timeout before
	// falling back to polling.
	idleCtx, cancelIdle := t.deadline(ctx, timeouts.PageLoadIdle+2*time.Second)
	defer cancelIdle()

	var idle bool
	err = chromedp.Run(idleCtx, chromedp.Evaluate(script, &idle,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
	if err != nil {
		t.logger.Warn("Promise-based network idle wait failed; polling instead.", zap.Error(err))
		idle = t.pollNetworkIdle(ctx)
	}
	if !idle {
		t.logger.Warn("Network did not go idle within the timeout.",
			zap.Duration("timeout", timeouts.PageLoadIdle))
	}
	return nil
}

// pollNetworkIdle is the fallback idle check, polling the in-page tracker.
func (t *Tab) pollNetworkIdle(ctx context.Context) bool {
	timeouts := t.cfg.Browser.Timeouts
	deadline := time.Now().Add(timeouts.PageLoadIdle)
	script := fmt.Sprintf(`
		(() => {
			if (typeof window.__networkActivity === 'undefined') {
				return true;
			}
			return window.__networkActivity.isIdle(%d);
		})()`, timeouts.CustomNetworkIdle.Milliseconds())

	for time.Now().Before(deadline) {
		var idle bool
		pollCtx, cancel := t.deadline(ctx, time.Second)
		err := chromedp.Run(pollCtx, chromedp.Evaluate(script, &idle))
		cancel()
		if err != nil {
			t.logger.Warn("Network idle poll failed.", zap.Error(err))
			return false
		}
		if idle {
			return true
		}

		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return false
		}
	}
	return false
}

// CaptureSnapshot walks the live DOM and returns it as a source tree for
// reduction. Every captured element is tagged with an ordinal so the
// assigned identifiers can be stamped back afterwards.
func (t *Tab) CaptureSnapshot(ctx context.Context) (*dom.SourceNode, error) {
	script, err := scripts.Snapshot()
	if err != nil {
		return nil, err
	}

	runCtx, cancel := t.deadline(ctx, t.cfg.Browser.Timeouts.Default)
	defer cancel()

	var raw string
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &raw)); err != nil {
		return nil, fmt.Errorf("snapshot capture failed: %w", err)
	}

	var root dom.SourceNode
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return nil, fmt.Errorf("snapshot decode failed: %w", err)
	}
	return &root, nil
}

// ApplyStamps writes the assigned identifiers back onto the live DOM.
func (t *Tab) ApplyStamps(ctx context.Context, stamps []dom.Stamp) error {
	payload, err := json.Marshal(stamps)
	if err != nil {
		return fmt.Errorf("stamp encode failed: %w", err)
	}
	script, err := scripts.Stamp(string(payload))
	if err != nil {
		return err
	}

	runCtx, cancel := t.deadline(ctx, t.cfg.Browser.Timeouts.Default)
	defer cancel()

	var applied int
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &applied)); err != nil {
		return fmt.Errorf("stamp apply failed: %w", err)
	}
	t.logger.Debug("Stamped identifiers onto live DOM.",
		zap.Int("assigned", len(stamps)), zap.Int("applied", applied))
	return nil
}

// Close terminates the browser tab.
func (t *Tab) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.isClosed {
		t.mu.Unlock()
		return nil
	}
	t.isClosed = true
	tabCancel := t.tabCancel
	tabCtx := t.tabCtx
	onClose := t.onClose
	t.mu.Unlock()

	if onClose != nil {
		defer onClose()
	}
	if tabCancel != nil {
		tabCancel()
	}
	if tabCtx == nil {
		return nil
	}

	waitCtx, cancelWait := context.WithTimeout(ctx, 10*time.Second)
	defer cancelWait()

	select {
	case <-tabCtx.Done():
		t.logger.Debug("Tab closed gracefully.")
	case <-waitCtx.Done():
		t.logger.Warn("Deadline exceeded waiting for tab to close.", zap.Error(waitCtx.Err()))
	}
	return nil
}

// deadline derives a run context from the tab context bounded by both the
// caller's context and the given timeout.
func (t *Tab) deadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancelRun := context.WithTimeout(t.tabCtx, d)

	stop := context.AfterFunc(ctx, cancelRun)
	return runCtx, func() {
		stop()
		cancelRun()
	}
}
