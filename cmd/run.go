package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/robot-order-cli/internal/archive"
	"github.com/xkilldash9x/robot-order-cli/internal/browser/session"
	"github.com/xkilldash9x/robot-order-cli/internal/config"
	"github.com/xkilldash9x/robot-order-cli/internal/observability"
	"github.com/xkilldash9x/robot-order-cli/internal/orders"
	"github.com/xkilldash9x/robot-order-cli/internal/pdfdoc"
	"github.com/xkilldash9x/robot-order-cli/internal/robotorder"
)

const browserShutdownTimeout = 15 * time.Second

// newRunCmd creates the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Order every robot in the orders CSV and archive the receipts",
		Long: `Opens the order page in Chromium, downloads the orders CSV and submits one
order per row. Each order produces receipt-order-<n>-complete.pdf (receipt
followed by the robot preview) under the receipts directory. All PDFs are
then zipped into the archive and a run manifest is written next to it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			return runOrders(cmd.Context(), cfg, cmd.OutOrStdout(), observability.GetLogger())
		},
	}

	runCmd.Flags().Bool("headless", true, "run the browser without a window")
	runCmd.Flags().String("output-dir", "output", "directory for receipts, the archive and the manifest")
	runCmd.Flags().Int("max-attempts", 5, "submit attempts per order before the run fails")
	runCmd.Flags().String("archive-scope", config.ArchiveScopeAll, "PDFs to archive: all or complete")
	runCmd.Flags().Bool("keep-screenshots", false, "keep receipt PNGs after conversion")
	return runCmd
}

func runOrders(ctx context.Context, cfg config.Interface, out io.Writer, logger *zap.Logger) error {
	sess, err := session.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		// The run context may already be canceled; shutdown gets its own budget.
		closeCtx, cancel := context.WithTimeout(session.Detach(ctx), browserShutdownTimeout)
		defer cancel()
		if err := sess.Close(closeCtx); err != nil {
			logger.Warn("Browser did not shut down cleanly.", zap.Error(err))
		}
	}()

	source := orders.NewSource(cfg.Orders(), cfg.Network().Timeout, nil, logger)
	archiver := archive.NewFromConfig(cfg.Output(), logger)
	runner := robotorder.NewRunner(cfg, sess, source, pdfdoc.NewConverter(), archiver, logger)

	manifest, err := runner.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("run aborted by signal: %w", err)
		}
		return err
	}

	fmt.Fprintf(out, "Completed %d of %d orders.\n", manifest.Completed(), manifest.OrdersTotal)
	if manifest.ArchivePath != "" {
		fmt.Fprintf(out, "Archive: %s\n", manifest.ArchivePath)
	} else if manifest.ArchiveError != "" {
		fmt.Fprintf(out, "Archive skipped: %s\n", manifest.ArchiveError)
	}
	return nil
}
