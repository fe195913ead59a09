// internal/browser/session/interfaces.go
package session

import (
	"context"

	"github.com/chromedp/chromedp"
)

// ActionExecutor runs raw chromedp actions against the session's tab. Session
// implements it; callers needing something the high level API lacks (custom
// CDP commands, evaluation) go through it instead of touching the tab context.
type ActionExecutor interface {
	// RunActions executes actions bounded by ctx and by the session lifetime.
	RunActions(ctx context.Context, actions ...chromedp.Action) error
}
