// internal/env/step.go
package env

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Error message prefixes surfaced to the agent. These strings are part of
// the observation contract, so they keep their sentence casing.
const (
	errPrefixInvalidJSON  = "Invalid JSON action format"
	errPrefixMissingParam = "Missing required parameter in action"
	errPrefixExecution    = "Error executing action"
)

func missingParamError(name string) error {
	return fmt.Errorf("%s: '%s'", errPrefixMissingParam, name)
}

func executionError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %v", errPrefixExecution, err)
}

// parseAction decodes one raw agent action. The action name is the only
// universally required field; per-action requirements are checked at
// dispatch time.
func parseAction(raw string) (*Action, error) {
	var act Action
	if err := json.Unmarshal([]byte(raw), &act); err != nil {
		return nil, fmt.Errorf("%s: %v", errPrefixInvalidJSON, err)
	}
	if act.Action == "" {
		return nil, missingParamError("action")
	}
	return &act, nil
}

// Step executes one raw JSON action and returns the resulting observation.
// Step never fails: malformed input and execution errors are reported in the
// observation's error field so the agent can recover.
func (e *Environment) Step(ctx context.Context, raw string) *Observation {
	e.mu.Lock()
	defer e.mu.Unlock()

	act, err := parseAction(raw)
	if err != nil {
		e.logger.Warn("Rejected action", zap.String("raw", raw), zap.Error(err))
		return e.observeLocked(ctx, err)
	}

	e.logger.Info("Executing action", zap.String("action", act.Action), zap.String("target", act.Target))
	if err := e.applyLocked(ctx, act); err != nil {
		e.logger.Warn("Action failed", zap.String("action", act.Action), zap.Error(err))
		return e.observeLocked(ctx, err)
	}

	if act.Action != ActionTerminate {
		sleepCtx(ctx, e.cfg.Env.SleepAfterAction)
	}
	return e.observeLocked(ctx, nil)
}

// requireParams rejects an action whose name is unknown or whose required
// fields are absent, before any browser work happens.
func requireParams(act *Action) error {
	switch act.Action {
	case ActionClick, ActionHover, ActionClear:
		if act.Target == "" {
			return missingParamError("target")
		}
	case ActionType:
		if act.Target == "" {
			return missingParamError("target")
		}
	case ActionSelect:
		if act.Target == "" {
			return missingParamError("target")
		}
		if act.Value == "" {
			return missingParamError("value")
		}
	case ActionKeyPress:
		if act.Key == "" {
			return missingParamError("key")
		}
	case ActionGotoURL:
		if act.URL == "" {
			return missingParamError("url")
		}
	case ActionSwitchTab:
		if act.TabID == nil {
			return missingParamError("tab_id")
		}
	case ActionBack, ActionForward, ActionRefresh, ActionNewTab, ActionCloseTab, ActionTerminate:
	default:
		return executionError(fmt.Errorf("unknown action: %s", act.Action))
	}
	return nil
}

// applyLocked dispatches one parsed action. Caller holds e.mu.
func (e *Environment) applyLocked(ctx context.Context, act *Action) error {
	if err := requireParams(act); err != nil {
		return err
	}

	switch act.Action {
	case ActionTerminate:
		answer := act.Answer
		e.modelAnswer = &answer
		e.terminated = true
		e.logger.Info("Agent terminated", zap.String("answer", answer))
		return nil
	case ActionNewTab:
		return executionError(e.openTabLocked(ctx, act.URL))
	case ActionSwitchTab:
		return executionError(e.switchTabLocked(ctx, *act.TabID))
	case ActionCloseTab:
		id := e.active
		if act.TabID != nil {
			id = *act.TabID
		}
		return executionError(e.closeTabLocked(ctx, id))
	}

	tab, err := e.activeTabLocked()
	if err != nil {
		return executionError(err)
	}

	switch act.Action {
	case ActionClick:
		return executionError(tab.Click(ctx, act.Target))
	case ActionType:
		return executionError(tab.Type(ctx, act.Target, act.Text, act.Enter))
	case ActionHover:
		return executionError(tab.Hover(ctx, act.Target))
	case ActionSelect:
		return executionError(tab.SelectValue(ctx, act.Target, act.Value))
	case ActionClear:
		return executionError(tab.ClearInput(ctx, act.Target))
	case ActionKeyPress:
		return executionError(tab.PressKey(ctx, act.Key, act.Target))
	case ActionGotoURL:
		return executionError(tab.Navigate(ctx, act.URL))
	case ActionBack:
		return executionError(tab.Back(ctx))
	case ActionForward:
		return executionError(tab.Forward(ctx))
	case ActionRefresh:
		return executionError(tab.Refresh(ctx))
	default:
		return executionError(fmt.Errorf("unknown action: %s", act.Action))
	}
}
