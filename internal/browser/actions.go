// internal/browser/actions.go
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// SemanticIDSelector returns the CSS selector locating the element stamped
// with the given semantic identifier.
func SemanticIDSelector(id string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(id)
	return fmt.Sprintf(`[data-semantic-id="%s"]`, escaped)
}

// KeyChord maps an agent-facing key name to the raw key input chromedp
// expects. Single printable characters pass through unchanged.
func KeyChord(key string) (string, error) {
	switch strings.ToLower(key) {
	case "enter", "return":
		return kb.Enter, nil
	case "tab":
		return kb.Tab, nil
	case "backspace":
		return kb.Backspace, nil
	case "delete":
		return kb.Delete, nil
	case "escape", "esc":
		return kb.Escape, nil
	case "arrowdown", "down":
		return kb.ArrowDown, nil
	case "arrowup", "up":
		return kb.ArrowUp, nil
	case "arrowleft", "left":
		return kb.ArrowLeft, nil
	case "arrowright", "right":
		return kb.ArrowRight, nil
	case "home":
		return kb.Home, nil
	case "end":
		return kb.End, nil
	case "pageup":
		return kb.PageUp, nil
	case "pagedown":
		return kb.PageDown, nil
	}
	if len([]rune(key)) == 1 {
		return key, nil
	}
	return "", fmt.Errorf("unsupported key %q", key)
}

// resolve verifies the identifier matches exactly one live element.
func (t *Tab) resolve(ctx context.Context, id string) (string, error) {
	sel := SemanticIDSelector(id)

	quoted, err := json.Marshal(sel)
	if err != nil {
		return "", fmt.Errorf("selector encode failed: %w", err)
	}

	runCtx, cancel := t.deadline(ctx, t.cfg.Browser.Timeouts.ElementWait)
	defer cancel()

	var count int
	expr := fmt.Sprintf(`document.querySelectorAll(%s).length`, quoted)
	if err := chromedp.Run(runCtx, chromedp.Evaluate(expr, &count)); err != nil {
		return "", fmt.Errorf("resolving %q: %w", id, err)
	}

	switch {
	case count == 0:
		return "", fmt.Errorf("%q: %w", id, ErrNoMatch)
	case count > 1:
		return "", fmt.Errorf("%q matched %d elements: %w", id, count, ErrAmbiguous)
	}
	return sel, nil
}

// Click scrolls the identified element into view and clicks it.
func (t *Tab) Click(ctx context.Context, id string) error {
	sel, err := t.resolve(ctx, id)
	if err != nil {
		return err
	}

	runCtx, cancel := t.deadline(ctx, t.cfg.Browser.Timeouts.ElementWait)
	defer cancel()

	if err := chromedp.Run(runCtx,
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("click on %q failed: %w", id, err)
	}
	t.logger.Info("Clicked element.", zap.String("semantic_id", id))
	return nil
}

// Type clears the identified element and types text into it, optionally
// confirming with Enter.
func (t *Tab) Type(ctx context.Context, id, text string, pressEnter bool) error {
	sel, err := t.resolve(ctx, id)
	if err != nil {
		return err
	}

	runCtx, cancel := t.deadline(ctx, t.cfg.Browser.Timeouts.ElementWait)
	defer cancel()

	tasks := chromedp.Tasks{
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Clear(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, text, chromedp.ByQuery),
	}
	if pressEnter {
		tasks = append(tasks, chromedp.SendKeys(sel, kb.Enter, chromedp.ByQuery))
	}
	if err := chromedp.Run(runCtx, tasks); err != nil {
		return fmt.Errorf("type into %q failed: %w", id, err)
	}
	t.logger.Info("Typed into element.", zap.String("semantic_id", id), zap.Bool("enter", pressEnter))
	return nil
}

// Hover moves the mouse to the center of the identified element, triggering
// any hover listeners it carries.
func (t *Tab) Hover(ctx context.Context, id string) error {
	sel, err := t.resolve(ctx, id)
	if err != nil {
		return err
	}

	runCtx, cancel := t.deadline(ctx, t.cfg.Browser.Timeouts.ElementWait)
	defer cancel()

	var nodes []*cdp.Node
	if err := chromedp.Run(runCtx,
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Nodes(sel, &nodes, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if len(nodes) == 0 {
				return ErrNoMatch
			}
			box, err := cdpdom.GetBoxModel().WithNodeID(nodes[0].NodeID).Do(ctx)
			if err != nil {
				return err
			}
			c := box.Content
			if len(c) < 8 {
				return fmt.Errorf("degenerate box model for %q", id)
			}
			x := (c[0] + c[2] + c[4] + c[6]) / 4
			y := (c[1] + c[3] + c[5] + c[7]) / 4
			return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
		}),
	); err != nil {
		return fmt.Errorf("hover over %q failed: %w", id, err)
	}
	t.logger.Info("Hovered over element.", zap.String("semantic_id", id))
	return nil
}

// SelectValue sets a select element's value and fires the input/change
// events a page script would expect from a user-driven selection.
func (t *Tab) SelectValue(ctx context.Context, id, value string) error {
	sel, err := t.resolve(ctx, id)
	if err != nil {
		return err
	}

	quotedSel, err := json.Marshal(sel)
	if err != nil {
		return fmt.Errorf("selector encode failed: %w", err)
	}
	quotedValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("value encode failed: %w", err)
	}

	script := fmt.Sprintf(`
		(() => {
			const el = document.querySelector(%s);
			if (!el) return "missing";
			el.value = %s;
			if (el.value !== %s) return "nomatch";
			el.dispatchEvent(new Event("input", {bubbles: true}));
			el.dispatchEvent(new Event("change", {bubbles: true}));
			return "ok";
		})()`, quotedSel, quotedValue, quotedValue)

	runCtx, cancel := t.deadline(ctx, t.cfg.Browser.Timeouts.ElementWait)
	defer cancel()

	var result string
	if err := chromedp.Run(runCtx,
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Evaluate(script, &result),
	); err != nil {
		return fmt.Errorf("select on %q failed: %w", id, err)
	}
	switch result {
	case "ok":
	case "missing":
		return fmt.Errorf("%q: %w", id, ErrNoMatch)
	case "nomatch":
		return fmt.Errorf("select %q has no option with value %q", id, value)
	}
	t.logger.Info("Selected value.", zap.String("semantic_id", id), zap.String("value", value))
	return nil
}

// ClearInput empties the identified text control.
func (t *Tab) ClearInput(ctx context.Context, id string) error {
	sel, err := t.resolve(ctx, id)
	if err != nil {
		return err
	}

	runCtx, cancel := t.deadline(ctx, t.cfg.Browser.Timeouts.ElementWait)
	defer cancel()

	if err := chromedp.Run(runCtx,
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Clear(sel, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("clear of %q failed: %w", id, err)
	}
	t.logger.Info("Cleared element.", zap.String("semantic_id", id))
	return nil
}

// PressKey presses a key, either on a specific element (focused first) or
// globally on the page.
func (t *Tab) PressKey(ctx context.Context, key, id string) error {
	chord, err := KeyChord(key)
	if err != nil {
		return err
	}

	runCtx, cancel := t.deadline(ctx, t.cfg.Browser.Timeouts.ElementWait)
	defer cancel()

	if id != "" {
		sel, err := t.resolve(ctx, id)
		if err != nil {
			return err
		}
		if err := chromedp.Run(runCtx,
			chromedp.ScrollIntoView(sel, chromedp.ByQuery),
			chromedp.Focus(sel, chromedp.ByQuery),
			chromedp.KeyEvent(chord),
		); err != nil {
			return fmt.Errorf("key press %q on %q failed: %w", key, id, err)
		}
		t.logger.Info("Pressed key on element.", zap.String("key", key), zap.String("semantic_id", id))
		return nil
	}

	if err := chromedp.Run(runCtx, chromedp.KeyEvent(chord)); err != nil {
		return fmt.Errorf("key press %q failed: %w", key, err)
	}
	t.logger.Info("Pressed key globally.", zap.String("key", key))
	return nil
}
