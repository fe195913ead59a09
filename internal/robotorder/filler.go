package robotorder

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/robot-order-cli/internal/artifacts"
	"github.com/xkilldash9x/robot-order-cli/internal/config"
	"github.com/xkilldash9x/robot-order-cli/internal/orders"
)

// FillResult is what the form filler hands to the next stages.
type FillResult struct {
	Preview        artifacts.Artifact
	SubmitAttempts int
}

// FormFiller enters one order into the form, captures the robot preview and
// submits the order.
type FormFiller struct {
	page      Page
	selectors config.SelectorsConfig
	submit    config.SubmitConfig
	layout    artifacts.Layout
	logger    *zap.Logger
}

// NewFormFiller creates a FormFiller writing previews into layout.
func NewFormFiller(page Page, selectors config.SelectorsConfig, submit config.SubmitConfig, layout artifacts.Layout, logger *zap.Logger) *FormFiller {
	return &FormFiller{
		page:      page,
		selectors: selectors,
		submit:    submit,
		layout:    layout,
		logger:    logger.Named("filler"),
	}
}

// Fill enters order, screenshots the preview and submits. Submission is
// retried while the error banner shows, up to the configured attempt limit.
func (f *FormFiller) Fill(ctx context.Context, order orders.Order) (FillResult, error) {
	log := f.logger.With(zap.String("order", order.OrderNumber))
	log.Info("Filling order form.",
		zap.String("head", order.Head),
		zap.String("body", order.Body),
		zap.String("legs", order.Legs),
	)

	if err := f.page.SelectOption(ctx, f.selectors.Head, order.Head); err != nil {
		return FillResult{}, fmt.Errorf("failed to select head: %w", err)
	}
	if err := f.page.Click(ctx, f.bodySelector(order.Body)); err != nil {
		return FillResult{}, fmt.Errorf("failed to select body: %w", err)
	}
	if err := f.page.Fill(ctx, f.selectors.Legs, order.Legs); err != nil {
		return FillResult{}, fmt.Errorf("failed to enter legs: %w", err)
	}
	if err := f.page.Fill(ctx, f.selectors.Address, order.Address); err != nil {
		return FillResult{}, fmt.Errorf("failed to enter address: %w", err)
	}

	preview, err := f.capturePreview(ctx, order.OrderNumber)
	if err != nil {
		return FillResult{}, err
	}

	attempts, err := f.submitOrder(ctx, order.OrderNumber, log)
	if err != nil {
		return FillResult{Preview: preview, SubmitAttempts: attempts}, err
	}
	log.Info("Order submitted.", zap.Int("attempts", attempts))
	return FillResult{Preview: preview, SubmitAttempts: attempts}, nil
}

func (f *FormFiller) bodySelector(body string) string {
	return strings.ReplaceAll(f.selectors.BodyRadio, "{value}", body)
}

func (f *FormFiller) capturePreview(ctx context.Context, orderNumber string) (artifacts.Artifact, error) {
	preview := artifacts.New(orderNumber, artifacts.RobotPreviewPNG)

	if err := f.page.Click(ctx, f.selectors.Preview); err != nil {
		return preview, fmt.Errorf("failed to request preview: %w", err)
	}
	if err := f.page.WaitVisible(ctx, f.selectors.PreviewImage); err != nil {
		return preview, fmt.Errorf("preview image did not render: %w", err)
	}
	png, err := f.page.Screenshot(ctx, f.selectors.PreviewImage)
	if err != nil {
		return preview, fmt.Errorf("failed to capture preview: %w", err)
	}

	if err := f.layout.EnsureDir(); err != nil {
		return preview, err
	}
	path := f.layout.Path(preview)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return preview, fmt.Errorf("failed to save preview screenshot: %w", err)
	}
	f.logger.Debug("Preview captured.", zap.String("path", path), zap.Int("bytes", len(png)))
	return preview, nil
}

// submitOrder clicks the order button until the error banner stays hidden.
// Clicks are spaced by at least the retry interval. It returns the number of
// clicks made.
func (f *FormFiller) submitOrder(ctx context.Context, orderNumber string, log *zap.Logger) (int, error) {
	maxAttempts := f.submit.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	limiter := rate.NewLimiter(rate.Every(f.submit.RetryInterval), 1)

	for attempt := 1; ; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return attempt - 1, err
		}
		if err := f.page.Click(ctx, f.selectors.Order); err != nil {
			return attempt, fmt.Errorf("failed to click order: %w", err)
		}
		if err := sleep(ctx, f.submit.SettleDelay); err != nil {
			return attempt, err
		}

		rejected, err := f.page.IsVisible(ctx, f.selectors.ErrorBanner)
		if err != nil {
			return attempt, fmt.Errorf("failed to check submission result: %w", err)
		}
		if !rejected {
			return attempt, nil
		}

		if attempt >= maxAttempts {
			log.Error("Order rejected on every attempt.", zap.Int("attempts", attempt))
			return attempt, &SubmitError{OrderNumber: orderNumber, Attempts: attempt}
		}
		log.Warn("Order rejected by storefront; retrying.",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
		)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
