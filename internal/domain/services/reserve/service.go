// Package reserve maintains the reserve-buffer/AUM accounting pair used
// downstream to publish a coverage ratio.
package reserve

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vestra-platform/vestra_service/internal/domain/entities"
	domainerrors "github.com/vestra-platform/vestra_service/internal/domain/errors"
	"github.com/vestra-platform/vestra_service/internal/domain/repositories"
	"github.com/vestra-platform/vestra_service/pkg/logger"
	"github.com/vestra-platform/vestra_service/pkg/metrics"
)

// Service keeps the singleton reserve buffer in step with the live AUM.
type Service struct {
	reserveRepo  repositories.ReserveRepository
	positionRepo repositories.PositionRepository
	logger       *logger.Logger
}

// NewService creates a new reserve accounting service.
func NewService(
	reserveRepo repositories.ReserveRepository,
	positionRepo repositories.PositionRepository,
	logger *logger.Logger,
) *Service {
	return &Service{
		reserveRepo:  reserveRepo,
		positionRepo: positionRepo,
		logger:       logger,
	}
}

// ApplyCycle re-derives total AUM from active principal and folds the
// cycle's net credited profit into the buffer. Both fields are written
// in one repository transaction so callers see them move together.
func (s *Service) ApplyCycle(ctx context.Context, netCredited decimal.Decimal) (*entities.ReserveBuffer, error) {
	totalAUM, err := s.positionRepo.SumActivePrincipal(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, "sum active principal")
	}

	buffer, err := s.reserveRepo.ApplyCycle(ctx, totalAUM, netCredited)
	if err != nil {
		return nil, domainerrors.Wrap(err, "apply reserve cycle")
	}

	aumFloat, _ := totalAUM.Float64()
	metrics.TotalAUMGauge.Set(aumFloat)

	s.logger.Info("Reserve accounting updated",
		"total_aum", buffer.TotalAUM.String(),
		"reserve", buffer.CurrentAmount.String(),
		"net_credited", netCredited.String())

	return buffer, nil
}

// Snapshot returns the current buffer row.
func (s *Service) Snapshot(ctx context.Context) (*entities.ReserveBuffer, error) {
	buffer, err := s.reserveRepo.Get(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, "get reserve buffer")
	}
	return buffer, nil
}
