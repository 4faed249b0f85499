package distribution_worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vestra-platform/vestra_service/internal/domain/services/distribution"
	domainerrors "github.com/vestra-platform/vestra_service/internal/domain/errors"
)

const runTimeout = 30 * time.Minute

// Worker schedules the distribution cycle
type Worker struct {
	distributionService *distribution.Service
	cronSpec            string
	cron                *cron.Cron
	logger              *zap.Logger
}

func NewWorker(
	distributionService *distribution.Service,
	cronSpec string,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		distributionService: distributionService,
		cronSpec:            cronSpec,
		cron:                cron.New(),
		logger:              logger,
	}
}

func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.cronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		result, err := w.distributionService.Run(ctx, distribution.Options{})
		if err != nil {
			if domainerrors.IsAlreadyProcessed(err) {
				w.logger.Info("Distribution cycle already running, skipped")
				return
			}
			w.logger.Error("Distribution cycle failed", zap.Error(err))
			return
		}

		w.logger.Info("Scheduled distribution cycle finished",
			zap.Int("credited", result.CreditedCount),
			zap.Int("matured", result.MaturedCount),
			zap.Int("skipped", result.SkippedCount),
			zap.Int("failed", result.FailedCount),
			zap.String("total_profit", result.TotalProfit.String()),
		)
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("Distribution worker started", zap.String("cron_spec", w.cronSpec))
	return nil
}

func (w *Worker) Stop() {
	ctx := w.cron.Stop()
	// Let an in-flight run finish before shutdown proceeds
	select {
	case <-ctx.Done():
	case <-time.After(runTimeout):
		w.logger.Warn("Distribution worker stop timed out")
	}
	w.logger.Info("Distribution worker stopped")
}
