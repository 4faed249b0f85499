// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseConnectionsGauge tracks database connection pool state.
	DatabaseConnectionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "vestra",
		Name:      "database_connections",
		Help:      "Database connection pool state by kind",
	}, []string{"state"})

	// DistributionCycleRuns counts cycle runs by outcome.
	DistributionCycleRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vestra",
		Name:      "distribution_cycle_runs_total",
		Help:      "Profit distribution cycle runs by result",
	}, []string{"result", "dry_run"})

	// DistributionCycleDuration observes cycle wall time.
	DistributionCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vestra",
		Name:      "distribution_cycle_duration_seconds",
		Help:      "Profit distribution cycle duration",
		Buckets:   prometheus.DefBuckets,
	})

	// ProfitCreditsTotal counts individual profit credits written.
	ProfitCreditsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vestra",
		Name:      "profit_credits_total",
		Help:      "Profit log entries written by the cycle",
	})

	// ProfitCreditedUSD accumulates net profit credited, in USD.
	ProfitCreditedUSD = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vestra",
		Name:      "profit_credited_usd_total",
		Help:      "Net profit credited to wallets, in USD",
	})

	// PositionsMaturedTotal counts principal releases.
	PositionsMaturedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vestra",
		Name:      "positions_matured_total",
		Help:      "Positions matured and principal released",
	})

	// TotalAUMGauge is the assets-under-management figure from the last cycle.
	TotalAUMGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vestra",
		Name:      "total_aum_usd",
		Help:      "Sum of active principal in USD as of the last cycle",
	})

	// InvestmentsCreatedTotal counts creation workflow outcomes.
	InvestmentsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vestra",
		Name:      "investments_created_total",
		Help:      "Investment creation outcomes",
	}, []string{"status"})
)
