// internal/browser/session/session.go
package session

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/robot-order-cli/internal/config"
)

// Session owns one Chromium process and the single tab the order flow runs in.
// All page interaction goes through its methods; the chromedp tab context is
// never handed out.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    config.Interface

	allocCancel context.CancelFunc
	slowMotion  time.Duration

	closeOnce sync.Once
}

var _ ActionExecutor = (*Session)(nil)

// New launches the browser described by cfg.Browser(), opens a tab and checks
// that it responds. The returned session lives until Close is called or
// parentCtx is canceled.
func New(parentCtx context.Context, cfg config.Interface, logger *zap.Logger) (*Session, error) {
	sessionID := uuid.New().String()
	log := logger.Named("browser").With(zap.String("session_id", sessionID))
	browserCfg := cfg.Browser()

	log.Info("Launching browser.",
		zap.Bool("headless", browserCfg.Headless),
		zap.Duration("slow_motion", browserCfg.SlowMotion),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, buildAllocatorOptions(cfg)...)

	var ctxOpts []chromedp.ContextOption
	if browserCfg.Debug {
		sugar := log.Named("cdp").Sugar()
		ctxOpts = append(ctxOpts,
			chromedp.WithLogf(sugar.Debugf),
			chromedp.WithDebugf(sugar.Debugf),
			chromedp.WithErrorf(sugar.Errorf),
		)
	} else {
		ctxOpts = append(ctxOpts, chromedp.WithErrorf(log.Named("cdp").Sugar().Debugf))
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	s := &Session{
		id:          sessionID,
		ctx:         tabCtx,
		cancel:      tabCancel,
		logger:      log,
		cfg:         cfg,
		allocCancel: allocCancel,
		slowMotion:  browserCfg.SlowMotion,
	}

	// The first Run starts the browser process. Bound it so a missing or
	// broken binary fails fast instead of hanging the run.
	startTimeout := cfg.Network().NavigationTimeout
	if startTimeout <= 0 {
		startTimeout = 30 * time.Second
	}
	startCtx, startCancel := context.WithTimeout(parentCtx, startTimeout)
	defer startCancel()

	startup := []chromedp.Action{chromedp.Navigate("about:blank")}
	if browserCfg.ViewportWidth > 0 && browserCfg.ViewportHeight > 0 {
		startup = append(startup, emulation.SetDeviceMetricsOverride(
			int64(browserCfg.ViewportWidth), int64(browserCfg.ViewportHeight), 1.0, false,
		))
	}

	runCtx, runCancel := CombineContext(tabCtx, startCtx)
	defer runCancel()
	if err := chromedp.Run(runCtx, startup...); err != nil {
		tabCancel()
		allocCancel()
		if startCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("browser did not respond within %v: %w", startTimeout, startCtx.Err())
		}
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	log.Info("Browser launched successfully and is responsive.")
	return s, nil
}

// buildAllocatorOptions assembles the flags for the browser process.
func buildAllocatorOptions(cfg config.Interface) []chromedp.ExecAllocatorOption {
	browserCfg := cfg.Browser()

	// Defaults, minus the automation infobar. A later flag overrides an earlier one.
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("headless", browserCfg.Headless),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", browserCfg.Headless),
	)
	if browserCfg.ViewportWidth > 0 && browserCfg.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(browserCfg.ViewportWidth, browserCfg.ViewportHeight))
	}
	if browserCfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(browserCfg.ExecPath))
	}
	if ua := cfg.Network().UserAgent; ua != "" {
		opts = append(opts, chromedp.UserAgent(ua))
	}

	for _, arg := range browserCfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		flagName := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(flagName, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(flagName, true))
		}
	}

	// Containers (Docker on Linux) need these.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}

	return opts
}

// ID returns the unique identifier of the session.
func (s *Session) ID() string {
	return s.id
}

// RunActions runs actions on the session's tab. The actions stop when either
// ctx or the session itself is done; the configured slow-motion pause is
// appended after them. Context errors are reported in priority order: the
// caller's context, then the session's.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	if s.ctx.Err() != nil {
		return fmt.Errorf("session is closed: %w", s.ctx.Err())
	}

	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	if s.slowMotion > 0 {
		actions = append(actions, chromedp.Sleep(s.slowMotion))
	}

	err := chromedp.Run(runCtx, actions...)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.ctx.Err() != nil {
			return s.ctx.Err()
		}
	}
	return err
}

// Close shuts the tab and the browser process down. It is safe to call more
// than once; ctx bounds how long to wait for the process to exit.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.logger.Info("Closing browser session.")

		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := chromedp.Cancel(s.ctx); err != nil && s.ctx.Err() == nil {
				s.logger.Debug("Graceful tab close failed.", zap.Error(err))
			}
			s.cancel()
			s.allocCancel()
		}()

		select {
		case <-done:
		case <-ctx.Done():
			s.logger.Warn("Timed out waiting for browser to exit.", zap.Error(ctx.Err()))
			s.cancel()
			s.allocCancel()
		}
	})
	return nil
}
