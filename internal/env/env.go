// internal/env/env.go
package env

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shihanfu/rl-web-env/internal/browser"
	"github.com/shihanfu/rl-web-env/internal/config"
	"github.com/shihanfu/rl-web-env/internal/dom"
)

// Environment owns one browser and the set of tabs the agent works in. All
// public methods serialize on an internal mutex: at most one action or
// observation is in flight per environment, which also guarantees at most one
// snapshot traversal per page.
type Environment struct {
	id      string
	cfg     *config.Config
	logger  *zap.Logger
	manager *browser.Manager
	task    *Task

	mu          sync.Mutex
	tabs        []*browser.Tab
	active      int
	modelAnswer *string
	terminated  bool
}

// New creates an environment that is not yet attached to a browser. Call
// Setup before Step.
func New(cfg *config.Config, logger *zap.Logger) *Environment {
	id := uuid.New().String()
	return &Environment{
		id:     id,
		cfg:    cfg,
		logger: logger.With(zap.String("env_id", id[:8])),
		active: -1,
	}
}

// ID returns the unique identifier of this environment instance.
func (e *Environment) ID() string { return e.id }

// Task returns the task the environment was set up with, or nil.
func (e *Environment) Task() *Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.task
}

// Setup launches the browser, opens the task's start page, and returns the
// initial observation.
func (e *Environment) Setup(ctx context.Context, task *Task) (*Observation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.manager != nil {
		return nil, fmt.Errorf("environment %s is already set up", e.id[:8])
	}
	if task == nil || task.StartURL == "" {
		return nil, fmt.Errorf("setup requires a task with a start_url")
	}

	e.logger.Info("Setting up environment", zap.String("start_url", task.StartURL), zap.String("intent", task.Intent))

	manager, err := browser.NewManager(ctx, e.cfg, e.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	e.manager = manager
	e.task = task

	if err := e.openTabLocked(ctx, task.StartURL); err != nil {
		_ = manager.Shutdown(ctx)
		e.manager = nil
		return nil, err
	}
	return e.observeLocked(ctx, nil), nil
}

// Reset closes every tab, reopens the start page, and clears the terminal
// state, returning a fresh observation.
func (e *Environment) Reset(ctx context.Context) (*Observation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.manager == nil {
		return nil, fmt.Errorf("environment is not set up")
	}

	e.logger.Info("Resetting environment", zap.Int("open_tabs", len(e.tabs)))
	for _, tab := range e.tabs {
		if err := tab.Close(ctx); err != nil {
			e.logger.Warn("Failed to close tab during reset", zap.String("tab_id", tab.ID()), zap.Error(err))
		}
	}
	e.tabs = nil
	e.active = -1
	e.modelAnswer = nil
	e.terminated = false

	if err := e.openTabLocked(ctx, e.task.StartURL); err != nil {
		return nil, err
	}
	return e.observeLocked(ctx, nil), nil
}

// Terminated reports whether the agent has issued a terminate action, along
// with the answer it gave.
func (e *Environment) Terminated() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.terminated || e.modelAnswer == nil {
		return "", false
	}
	return *e.modelAnswer, true
}

// Close tears down all tabs and the browser. The environment cannot be used
// afterwards.
func (e *Environment) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.manager == nil {
		return nil
	}
	for _, tab := range e.tabs {
		if err := tab.Close(ctx); err != nil {
			e.logger.Warn("Failed to close tab during shutdown", zap.String("tab_id", tab.ID()), zap.Error(err))
		}
	}
	e.tabs = nil
	e.active = -1

	err := e.manager.Shutdown(ctx)
	e.manager = nil
	return err
}

// openTabLocked opens a new tab, navigates it if url is non-empty, and makes
// it the active tab. Caller holds e.mu.
func (e *Environment) openTabLocked(ctx context.Context, url string) error {
	if len(e.tabs) >= e.cfg.Env.MaxTabs {
		return fmt.Errorf("tab limit of %d reached", e.cfg.Env.MaxTabs)
	}
	tab, err := e.manager.NewTab(ctx)
	if err != nil {
		return fmt.Errorf("failed to open tab: %w", err)
	}
	if url != "" {
		if err := tab.Navigate(ctx, url); err != nil {
			_ = tab.Close(ctx)
			return fmt.Errorf("failed to navigate to %s: %w", url, err)
		}
	}
	e.tabs = append(e.tabs, tab)
	e.active = len(e.tabs) - 1
	e.logger.Debug("Opened tab", zap.Int("tab_index", e.active), zap.String("url", url))
	return nil
}

// switchTabLocked makes the tab at index id the active tab.
func (e *Environment) switchTabLocked(ctx context.Context, id int) error {
	if id < 0 || id >= len(e.tabs) {
		return fmt.Errorf("no tab with id %d", id)
	}
	if err := e.tabs[id].BringToFront(ctx); err != nil {
		return fmt.Errorf("failed to focus tab %d: %w", id, err)
	}
	e.active = id
	return nil
}

// closeTabLocked closes the tab at index id and picks the next active tab:
// the tab that holds browser focus if any, otherwise the last remaining tab.
func (e *Environment) closeTabLocked(ctx context.Context, id int) error {
	if id < 0 || id >= len(e.tabs) {
		return fmt.Errorf("no tab with id %d", id)
	}
	if err := e.tabs[id].Close(ctx); err != nil {
		return fmt.Errorf("failed to close tab %d: %w", id, err)
	}
	e.tabs = append(e.tabs[:id], e.tabs[id+1:]...)
	if len(e.tabs) == 0 {
		e.active = -1
		return nil
	}
	e.active = e.focusedIndexLocked(ctx)
	return nil
}

// focusedIndexLocked finds the tab that currently holds document focus,
// falling back to the last tab.
func (e *Environment) focusedIndexLocked(ctx context.Context) int {
	for i, tab := range e.tabs {
		focused, err := tab.HasFocus(ctx)
		if err == nil && focused {
			return i
		}
	}
	return len(e.tabs) - 1
}

func (e *Environment) activeTabLocked() (*browser.Tab, error) {
	if e.active < 0 || e.active >= len(e.tabs) {
		return nil, fmt.Errorf("no active tab")
	}
	return e.tabs[e.active], nil
}

// observeLocked waits for the active page to settle, captures and reduces
// its DOM, stamps the assigned identifiers back into the live page, and
// packages the result together with the tab list and terminal state. The
// observation is always well formed; failures land in its error field.
func (e *Environment) observeLocked(ctx context.Context, actErr error) *Observation {
	obs := &Observation{
		Observation: dom.Observation{
			Clickable: []string{},
			Hoverable: []string{},
			Inputs:    []dom.InputRecord{},
			Selects:   []dom.SelectRecord{},
		},
		Tabs:        []TabInfo{},
		ModelAnswer: e.modelAnswer,
		Terminated:  e.terminated,
	}
	if actErr != nil {
		msg := actErr.Error()
		obs.Error = &msg
	}

	tab, err := e.activeTabLocked()
	if err != nil {
		if obs.Error == nil {
			msg := fmt.Sprintf("Error capturing observation: %v", err)
			obs.Error = &msg
		}
		return obs
	}

	if err := tab.WaitQuiescent(ctx); err != nil {
		e.logger.Warn("Page did not reach quiescence before observation", zap.Error(err))
	}

	root, err := tab.CaptureSnapshot(ctx)
	if err != nil {
		e.logger.Warn("Snapshot capture failed", zap.Error(err))
		if obs.Error == nil {
			msg := fmt.Sprintf("Error capturing observation: %v", err)
			obs.Error = &msg
		}
	} else {
		reduced, stamps := dom.Reduce(root)
		obs.Observation = *reduced
		if err := tab.ApplyStamps(ctx, stamps); err != nil {
			e.logger.Warn("Failed to stamp identifiers into page", zap.Error(err))
		}
	}

	obs.Tabs = e.tabsInfoLocked(ctx)
	return obs
}

// tabsInfoLocked collects title and URL for every open tab concurrently.
func (e *Environment) tabsInfoLocked(ctx context.Context) []TabInfo {
	infos := make([]TabInfo, len(e.tabs))
	g, gctx := errgroup.WithContext(ctx)
	for i, tab := range e.tabs {
		g.Go(func() error {
			title, err := tab.Title(gctx)
			if err != nil {
				e.logger.Debug("Failed to read tab title", zap.String("tab_id", tab.ID()), zap.Error(err))
			}
			url, err := tab.URL(gctx)
			if err != nil {
				e.logger.Debug("Failed to read tab URL", zap.String("tab_id", tab.ID()), zap.Error(err))
			}
			infos[i] = TabInfo{ID: i, Title: title, URL: url, IsActive: i == e.active}
			return nil
		})
	}
	_ = g.Wait()
	return infos
}

// sleepCtx sleeps for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
