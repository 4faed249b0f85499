package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vestra-platform/vestra_service/internal/domain/entities"
	"github.com/vestra-platform/vestra_service/internal/domain/services/distribution"
	"github.com/vestra-platform/vestra_service/internal/domain/services/reserve"
	"github.com/vestra-platform/vestra_service/pkg/logger"
)

// SnapshotRecorder persists revenue-stream ROI snapshots
type SnapshotRecorder interface {
	RecordSnapshot(ctx context.Context, snapshot *entities.StreamPerformance) error
}

// DistributionHandlers exposes operational endpoints for the
// distribution cycle, reserve accounting, and performance-feed ingest
type DistributionHandlers struct {
	distributionService *distribution.Service
	reserveService      *reserve.Service
	snapshots           SnapshotRecorder
	logger              *logger.Logger
}

// NewDistributionHandlers creates a new DistributionHandlers instance
func NewDistributionHandlers(
	distributionService *distribution.Service,
	reserveService *reserve.Service,
	snapshots SnapshotRecorder,
	logger *logger.Logger,
) *DistributionHandlers {
	return &DistributionHandlers{
		distributionService: distributionService,
		reserveService:      reserveService,
		snapshots:           snapshots,
		logger:              logger,
	}
}

// RunCycleBody is the request body for POST /admin/distribution/run
type RunCycleBody struct {
	DryRun     bool   `json:"dry_run"`
	WeekEnding string `json:"week_ending"`
}

// RunCycle handles POST /admin/distribution/run
func (h *DistributionHandlers) RunCycle(c *gin.Context) {
	ctx := c.Request.Context()

	var body RunCycleBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBadRequest(c, "Invalid request body", map[string]interface{}{"error": err.Error()})
			return
		}
	}

	opts := distribution.Options{DryRun: body.DryRun}
	if body.WeekEnding != "" {
		weekEnding, err := time.Parse("2006-01-02", body.WeekEnding)
		if err != nil {
			respondBadRequest(c, "week_ending must be YYYY-MM-DD", nil)
			return
		}
		opts.WeekEnding = &weekEnding
	}

	result, err := h.distributionService.Run(ctx, opts)
	if err != nil {
		h.logger.Error("Distribution run failed",
			"request_id", getRequestID(c),
			"dry_run", body.DryRun,
			"error", err)
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RepairProfitLog handles POST /admin/distribution/repair
func (h *DistributionHandlers) RepairProfitLog(c *gin.Context) {
	apply := c.Query("apply") == "true"

	report, err := h.distributionService.RepairProfitLog(c.Request.Context(), apply)
	if err != nil {
		h.logger.Error("Profit log repair failed", "error", err)
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetReserve handles GET /admin/reserve
func (h *DistributionHandlers) GetReserve(c *gin.Context) {
	buffer, err := h.reserveService.Snapshot(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get reserve snapshot", "error", err)
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"current_amount": buffer.CurrentAmount,
		"total_aum":      buffer.TotalAUM,
		"coverage_ratio": buffer.CoverageRatio(),
		"updated_at":     buffer.UpdatedAt,
	})
}

// StreamSnapshotBody is the request body for POST /admin/performance/snapshots
type StreamSnapshotBody struct {
	StreamName string `json:"stream_name" binding:"required"`
	WeekEnding string `json:"week_ending" binding:"required"`
	ROIPct     string `json:"roi_pct" binding:"required"`
}

// IngestSnapshot handles POST /admin/performance/snapshots
func (h *DistributionHandlers) IngestSnapshot(c *gin.Context) {
	var body StreamSnapshotBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "Invalid request body", map[string]interface{}{"error": err.Error()})
		return
	}

	weekEnding, err := time.Parse("2006-01-02", body.WeekEnding)
	if err != nil {
		respondBadRequest(c, "week_ending must be YYYY-MM-DD", nil)
		return
	}
	roi, err := decimal.NewFromString(body.ROIPct)
	if err != nil {
		respondBadRequest(c, "Invalid roi_pct", map[string]interface{}{"roi_pct": body.ROIPct})
		return
	}

	snapshot := &entities.StreamPerformance{
		ID:         uuid.New(),
		StreamName: body.StreamName,
		WeekEnding: weekEnding,
		ROIPct:     roi,
		CreatedAt:  time.Now().UTC(),
	}

	if err := h.snapshots.RecordSnapshot(c.Request.Context(), snapshot); err != nil {
		h.logger.Error("Failed to record stream snapshot",
			"stream_name", body.StreamName,
			"error", err)
		respondInternalError(c, "Failed to record snapshot")
		return
	}

	c.JSON(http.StatusCreated, snapshot)
}
