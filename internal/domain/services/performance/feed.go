// Package performance adapts the externally supplied revenue-stream ROI
// snapshots into the rate feed the distribution cycle consumes.
package performance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	domainerrors "github.com/vestra-platform/vestra_service/internal/domain/errors"
	"github.com/vestra-platform/vestra_service/internal/domain/repositories"
	"github.com/vestra-platform/vestra_service/pkg/logger"
)

// SnapshotCache is the subset of the cache client the feed uses. Lookups
// are best-effort; a cache failure falls through to the repository.
type SnapshotCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

const cacheTTL = 10 * time.Minute

// Feed serves the most recent ROI percentage per revenue stream.
// Snapshots are admin-entered or market-derived weekly rows; the feed
// treats their origin as opaque.
type Feed struct {
	perfRepo repositories.PerformanceRepository
	cache    SnapshotCache
	logger   *logger.Logger
}

// NewFeed creates a performance feed. cache may be nil.
func NewFeed(perfRepo repositories.PerformanceRepository, cache SnapshotCache, logger *logger.Logger) *Feed {
	return &Feed{perfRepo: perfRepo, cache: cache, logger: logger}
}

// CurrentStreamROIPct returns the latest snapshot percentage for the
// stream. Streams without a snapshot contribute zero.
func (f *Feed) CurrentStreamROIPct(ctx context.Context, streamName string) (decimal.Decimal, error) {
	cacheKey := fmt.Sprintf("stream_roi:%s", streamName)

	if f.cache != nil {
		var cached string
		if err := f.cache.Get(ctx, cacheKey, &cached); err == nil {
			if pct, err := decimal.NewFromString(cached); err == nil {
				return pct, nil
			}
		}
	}

	pct, ok, err := f.perfRepo.LatestROI(ctx, streamName)
	if err != nil {
		return decimal.Zero, domainerrors.Wrap(err, "latest stream roi")
	}
	if !ok {
		return decimal.Zero, nil
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, cacheKey, pct.String(), cacheTTL); err != nil {
			f.logger.Debug("Stream ROI cache write failed", "stream", streamName, "error", err)
		}
	}
	return pct, nil
}
