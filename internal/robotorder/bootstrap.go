package robotorder

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/robot-order-cli/internal/config"
)

// Bootstrap opens the order page and dismisses the modal that covers it on
// every load.
func Bootstrap(ctx context.Context, page Page, site config.SiteConfig, logger *zap.Logger) error {
	logger.Info("Opening order page.", zap.String("url", site.OrderURL))
	if err := page.Navigate(ctx, site.OrderURL); err != nil {
		return fmt.Errorf("failed to open order page: %w", err)
	}
	return DismissModal(ctx, page, site.Selectors, logger)
}

// DismissModal clicks the modal's confirmation button.
func DismissModal(ctx context.Context, page Page, selectors config.SelectorsConfig, logger *zap.Logger) error {
	if err := page.Click(ctx, selectors.ModalDismiss); err != nil {
		return fmt.Errorf("failed to dismiss modal: %w", err)
	}
	logger.Debug("Modal dismissed.")
	return nil
}
