package robotorder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/robot-order-cli/internal/archive"
	"github.com/xkilldash9x/robot-order-cli/internal/artifacts"
	"github.com/xkilldash9x/robot-order-cli/internal/config"
	"github.com/xkilldash9x/robot-order-cli/internal/orders"
	"github.com/xkilldash9x/robot-order-cli/internal/report"
)

// OrderSource yields the orders of a run.
type OrderSource interface {
	Fetch(ctx context.Context) ([]orders.Order, error)
}

// Archiver bundles the produced PDFs and returns the archive path.
type Archiver interface {
	Create(ctx context.Context) (string, error)
}

// Runner executes a whole run: bootstrap, every order in CSV order, then the archive.
type Runner struct {
	page     Page
	source   OrderSource
	archiver Archiver
	site     config.SiteConfig
	layout   artifacts.Layout

	filler   *FormFiller
	capturer *ReceiptCapturer
	merger   *Merger

	manifestPath string
	logger       *zap.Logger
	now          func() time.Time
}

// NewRunner wires the pipeline stages from cfg.
func NewRunner(cfg config.Interface, page Page, source OrderSource, converter DocumentConverter, archiver Archiver, logger *zap.Logger) *Runner {
	output := cfg.Output()
	site := cfg.Site()
	layout := artifacts.NewLayout(output.Dir, output.ReceiptsSubdir)
	log := logger.Named("runner")

	return &Runner{
		page:         page,
		source:       source,
		archiver:     archiver,
		site:         site,
		layout:       layout,
		filler:       NewFormFiller(page, site.Selectors, cfg.Submit(), layout, log),
		capturer:     NewReceiptCapturer(page, converter, site.Selectors, layout, output.KeepScreenshots, log),
		merger:       NewMerger(converter, layout, log),
		manifestPath: filepath.Join(output.Dir, output.ManifestName),
		logger:       log,
		now:          time.Now,
	}
}

// Run processes every order and archives the results. The manifest is written
// whether or not the run succeeds. The first order that fails aborts the run;
// a failed archive is recorded but does not fail the run.
func (r *Runner) Run(ctx context.Context) (*report.Manifest, error) {
	manifest := report.NewManifest(r.now())
	log := r.logger.With(zap.String("run_id", manifest.RunID))
	log.Info("Run started.")

	runErr := r.run(ctx, manifest, log)
	manifest.Finish(r.now(), runErr)

	if err := manifest.Write(r.manifestPath); err != nil {
		log.Error("Failed to write run manifest.", zap.String("path", r.manifestPath), zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}

	if runErr != nil {
		log.Error("Run failed.", zap.Int("completed", manifest.Completed()), zap.Error(runErr))
		return manifest, runErr
	}
	log.Info("Run finished.",
		zap.Int("completed", manifest.Completed()),
		zap.String("archive", manifest.ArchivePath),
		zap.String("manifest", r.manifestPath),
	)
	return manifest, nil
}

func (r *Runner) run(ctx context.Context, manifest *report.Manifest, log *zap.Logger) error {
	if err := Bootstrap(ctx, r.page, r.site, log); err != nil {
		return err
	}

	list, err := r.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to load orders: %w", err)
	}
	manifest.SetOrdersTotal(len(list))

	for i, order := range list {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Info("Processing order.", zap.String("order", order.OrderNumber),
			zap.Int("index", i+1), zap.Int("total", len(list)))

		result, err := r.processOrder(ctx, order)
		manifest.Add(result)
		if err != nil {
			return fmt.Errorf("order %s: %w", order.OrderNumber, err)
		}
	}

	path, err := r.archiver.Create(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, archive.ErrNoDocuments) {
			log.Warn("Nothing to archive.")
		} else {
			log.Error("Archive step failed; documents are left in place.", zap.Error(err))
		}
		manifest.RecordArchive("", err)
		return nil
	}
	manifest.RecordArchive(path, nil)
	return nil
}

// processOrder runs one order through fill, receipt, merge and form reset.
func (r *Runner) processOrder(ctx context.Context, order orders.Order) (report.OrderResult, error) {
	start := r.now()
	result := report.OrderResult{OrderNumber: order.OrderNumber, Status: report.StatusFailed}
	fail := func(err error) (report.OrderResult, error) {
		result.Error = err.Error()
		result.Duration = r.now().Sub(start).String()
		return result, err
	}

	filled, err := r.filler.Fill(ctx, order)
	result.SubmitAttempts = filled.SubmitAttempts
	if err != nil {
		return fail(err)
	}

	receipt, err := r.capturer.Capture(ctx, order.OrderNumber)
	if err != nil {
		return fail(err)
	}
	result.ConfirmationID = receipt.ConfirmationID
	result.ReceiptPDF = r.layout.Path(receipt.Artifact)

	complete, err := r.merger.Merge(filled.Preview, receipt.Artifact)
	if err != nil {
		return fail(err)
	}
	result.CompletePDF = r.layout.Path(complete)

	if err := r.resetForm(ctx); err != nil {
		return fail(err)
	}

	result.Status = report.StatusCompleted
	result.Duration = r.now().Sub(start).String()
	return result, nil
}

// resetForm returns the storefront to an empty form for the next order.
func (r *Runner) resetForm(ctx context.Context) error {
	if err := r.page.Click(ctx, r.site.Selectors.OrderAnother); err != nil {
		return fmt.Errorf("failed to start another order: %w", err)
	}
	return DismissModal(ctx, r.page, r.site.Selectors, r.logger)
}
