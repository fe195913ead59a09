package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/robot-order-cli/internal/archive"
	"github.com/xkilldash9x/robot-order-cli/internal/config"
	"github.com/xkilldash9x/robot-order-cli/internal/observability"
)

// newArchiveCmd creates the `archive` command, which rebuilds the archive
// from whatever PDFs an earlier run left behind.
func newArchiveCmd() *cobra.Command {
	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Zip the PDFs of an existing output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			archiver := archive.NewFromConfig(cfg.Output(), logger)
			path, err := archiver.Create(cmd.Context())
			if errors.Is(err, archive.ErrNoDocuments) {
				cmd.Println("No PDF documents found; nothing to archive.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to create archive: %w", err)
			}

			logger.Info("Archive ready.", zap.String("path", path))
			cmd.Printf("Archive: %s\n", path)
			return nil
		},
	}

	archiveCmd.Flags().String("output-dir", "output", "output directory holding the receipts")
	archiveCmd.Flags().String("archive-scope", config.ArchiveScopeAll, "PDFs to archive: all or complete")
	return archiveCmd
}
