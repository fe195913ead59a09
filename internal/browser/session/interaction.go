// internal/browser/session/interaction.go
// This file implements the page operations the order flow is built from:
// navigating, clicking, filling inputs, choosing select options, probing
// visibility and capturing element screenshots and markup.
//
// Selectors starting with "/" or "(" are treated as XPath, everything else as
// CSS. Each method derives its own operation timeout from the caller's context
// so a stuck element fails that step without tearing the session down.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// isXPath reports whether selector should be resolved with document.evaluate.
func isXPath(selector string) bool {
	s := strings.TrimSpace(selector)
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(")
}

// queryOption picks the chromedp query strategy matching the selector syntax.
func queryOption(selector string) chromedp.QueryOption {
	if isXPath(selector) {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// jsLookup is a JS expression resolving the first element for selector, or null.
func jsLookup(selector string) string {
	if isXPath(selector) {
		return fmt.Sprintf(`document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue`, jsonEncode(selector))
	}
	return fmt.Sprintf(`document.querySelector(%s)`, jsonEncode(selector))
}

func evalByValue(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
}

func (s *Session) actionTimeout() time.Duration {
	if t := s.cfg.Network().ActionTimeout; t > 0 {
		return t
	}
	return 30 * time.Second
}

// opError maps a failed operation to the most relevant error: the caller's
// cancellation, the session's, the operation deadline, then the raw failure.
func (s *Session) opError(ctx, opCtx context.Context, action, selector string, timeout time.Duration, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if s.ctx.Err() != nil {
		return s.ctx.Err()
	}
	if opCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%s timed out (%v) for selector '%s': %w", action, timeout, selector, opCtx.Err())
	}
	return fmt.Errorf("%s failed for selector '%s': %w", action, selector, err)
}

// Navigate loads url and waits for the document body plus the configured
// post-load quiet period.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Info("Navigating session.", zap.String("url", url))

	navTimeout := s.cfg.Network().NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 90 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(ctx, navTimeout)
	defer navCancel()

	err := s.RunActions(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if navCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return fmt.Errorf("navigation to %s timed out after %v: %w", url, navTimeout, navCtx.Err())
		}
		if ctx.Err() != nil || s.ctx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", err)
		}
		return fmt.Errorf("navigation failed: %w", err)
	}

	if quiet := s.cfg.Network().PostLoadWait; quiet > 0 {
		s.logger.Debug("Waiting for page to settle.", zap.Duration("quietPeriod", quiet))
		if err := s.RunActions(ctx, chromedp.Sleep(quiet)); err != nil {
			return err
		}
	}

	s.logger.Info("Navigation complete.", zap.String("url", url))
	return nil
}

// Click scrolls the element matching selector into view, waits for it to be
// visible and clicks it.
func (s *Session) Click(ctx context.Context, selector string) error {
	s.logger.Debug("Attempting to click element", zap.String("selector", selector))

	timeout := s.actionTimeout()
	opCtx, opCancel := context.WithTimeout(ctx, timeout)
	defer opCancel()

	by := queryOption(selector)
	err := s.RunActions(opCtx,
		chromedp.ScrollIntoView(selector, by),
		chromedp.WaitVisible(selector, by),
		chromedp.Click(selector, by),
	)
	if err != nil {
		return s.opError(ctx, opCtx, "click action", selector, timeout, err)
	}
	s.logger.Debug("Click successful.", zap.String("selector", selector))
	return nil
}

// SelectOption sets the value of the <select> matching selector and fires the
// input and change events client side frameworks listen for. The value must
// match one of the element's options.
func (s *Session) SelectOption(ctx context.Context, selector, value string) error {
	s.logger.Debug("Selecting option", zap.String("selector", selector), zap.String("value", value))

	timeout := s.actionTimeout()
	opCtx, opCancel := context.WithTimeout(ctx, timeout)
	defer opCancel()

	jsSelect := fmt.Sprintf(`(function(value) {
		const el = %s;
		if (!el || el.tagName !== "SELECT") {
			return "element is not a select";
		}
		if (!Array.from(el.options).some(o => o.value === value)) {
			return "no option with value " + value;
		}
		const setter = Object.getOwnPropertyDescriptor(HTMLSelectElement.prototype, "value").set;
		setter.call(el, value);
		el.dispatchEvent(new Event("input", { bubbles: true }));
		el.dispatchEvent(new Event("change", { bubbles: true }));
		return "";
	})(%s)`, jsLookup(selector), jsonEncode(value))

	var problem string
	by := queryOption(selector)
	err := s.RunActions(opCtx,
		chromedp.ScrollIntoView(selector, by),
		chromedp.WaitVisible(selector, by),
		chromedp.Evaluate(jsSelect, &problem, evalByValue),
	)
	if err != nil {
		return s.opError(ctx, opCtx, "select action", selector, timeout, err)
	}
	if problem != "" {
		return fmt.Errorf("select action failed for selector '%s': %s", selector, problem)
	}
	s.logger.Debug("Select successful.", zap.String("selector", selector))
	return nil
}

// Fill replaces the content of the input matching selector with text. The
// field is cleared through the native value setter first, then text is typed
// as key events.
func (s *Session) Fill(ctx context.Context, selector, text string) error {
	s.logger.Debug("Attempting to fill element", zap.String("selector", selector), zap.Int("text_length", len(text)))

	timeout := s.actionTimeout()
	opCtx, opCancel := context.WithTimeout(ctx, timeout)
	defer opCancel()

	// Assigning el.value directly is invisible to React's value tracker.
	jsClear := fmt.Sprintf(`(function() {
		const el = %s;
		if (!el || el.disabled || el.readOnly) {
			return false;
		}
		try {
			const desc = Object.getOwnPropertyDescriptor(Object.getPrototypeOf(el), "value");
			if (desc && desc.set) {
				desc.set.call(el, "");
			} else {
				el.value = "";
			}
			el.dispatchEvent(new Event("input", { bubbles: true }));
			el.dispatchEvent(new Event("change", { bubbles: true }));
		} catch (e) {
			return false;
		}
		return true;
	})()`, jsLookup(selector))

	var cleared bool
	by := queryOption(selector)
	err := s.RunActions(opCtx,
		chromedp.ScrollIntoView(selector, by),
		chromedp.WaitVisible(selector, by),
		chromedp.Evaluate(jsClear, &cleared, evalByValue),
	)
	if err != nil {
		return s.opError(ctx, opCtx, "preparation (clear)", selector, timeout, err)
	}
	if !cleared {
		return fmt.Errorf("preparation (clear) failed for selector '%s': element is stale or not editable", selector)
	}

	if err := s.RunActions(opCtx, chromedp.SendKeys(selector, text, by)); err != nil {
		return s.opError(ctx, opCtx, "fill action", selector, timeout, err)
	}
	s.logger.Debug("Fill successful.", zap.String("selector", selector))
	return nil
}

// WaitVisible blocks until the element matching selector is rendered and visible.
func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	timeout := s.actionTimeout()
	opCtx, opCancel := context.WithTimeout(ctx, timeout)
	defer opCancel()

	if err := s.RunActions(opCtx, chromedp.WaitVisible(selector, queryOption(selector))); err != nil {
		return s.opError(ctx, opCtx, "wait visible", selector, timeout, err)
	}
	return nil
}

// IsVisible reports, without waiting, whether an element matching selector is
// present with a non-empty box and not hidden by style.
func (s *Session) IsVisible(ctx context.Context, selector string) (bool, error) {
	timeout := s.actionTimeout()
	opCtx, opCancel := context.WithTimeout(ctx, timeout)
	defer opCancel()

	jsVisible := fmt.Sprintf(`(function() {
		const el = %s;
		if (!el) {
			return false;
		}
		const style = window.getComputedStyle(el);
		if (style.display === "none" || style.visibility === "hidden") {
			return false;
		}
		const rect = el.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0;
	})()`, jsLookup(selector))

	var visible bool
	if err := s.RunActions(opCtx, chromedp.Evaluate(jsVisible, &visible, evalByValue)); err != nil {
		return false, s.opError(ctx, opCtx, "visibility check", selector, timeout, err)
	}
	return visible, nil
}

// Screenshot captures the element matching selector as a PNG.
func (s *Session) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	s.logger.Debug("Capturing element screenshot", zap.String("selector", selector))

	timeout := s.actionTimeout()
	opCtx, opCancel := context.WithTimeout(ctx, timeout)
	defer opCancel()

	var buf []byte
	by := queryOption(selector)
	err := s.RunActions(opCtx,
		chromedp.WaitVisible(selector, by),
		chromedp.Screenshot(selector, &buf, by),
	)
	if err != nil {
		return nil, s.opError(ctx, opCtx, "screenshot", selector, timeout, err)
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("screenshot failed for selector '%s': empty capture", selector)
	}
	return buf, nil
}

// OuterHTML returns the serialized markup of the element matching selector.
func (s *Session) OuterHTML(ctx context.Context, selector string) (string, error) {
	timeout := s.actionTimeout()
	opCtx, opCancel := context.WithTimeout(ctx, timeout)
	defer opCancel()

	var html string
	by := queryOption(selector)
	err := s.RunActions(opCtx,
		chromedp.WaitReady(selector, by),
		chromedp.OuterHTML(selector, &html, by),
	)
	if err != nil {
		return "", s.opError(ctx, opCtx, "outer html", selector, timeout, err)
	}
	return html, nil
}

// jsonEncode encodes v as a JS literal for script injection.
func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}
