package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayoutFrequency is the cadence a plan pays returns on.
type PayoutFrequency string

const (
	PayoutWeekly  PayoutFrequency = "weekly"
	PayoutMonthly PayoutFrequency = "monthly"
	PayoutDaily   PayoutFrequency = "daily"
)

// Plan is the immutable reference terms a position is created against.
// ReturnPercentage is per payout period. Allocations maps revenue-stream
// names to percentages summing to 100; an empty map means the plan pays
// the flat rate.
type Plan struct {
	ID               uuid.UUID                  `db:"id" json:"id"`
	Slug             string                     `db:"slug" json:"slug"`
	Name             string                     `db:"name" json:"name"`
	Tier             string                     `db:"tier" json:"tier"`
	MinAmount        decimal.Decimal            `db:"min_amount" json:"min_amount"`
	MaxAmount        decimal.Decimal            `db:"max_amount" json:"max_amount"`
	DurationDays     int                        `db:"duration_days" json:"duration_days"`
	ReturnPercentage decimal.Decimal            `db:"return_percentage" json:"return_percentage"`
	PayoutFrequency  PayoutFrequency            `db:"payout_frequency" json:"payout_frequency"`
	Allocations      map[string]decimal.Decimal `db:"-" json:"allocations,omitempty"`
	CreatedAt        time.Time                  `db:"created_at" json:"created_at"`
}

// IsStreamWeighted reports whether the plan's per-period rate comes from
// revenue-stream allocations instead of the flat return percentage.
func (p *Plan) IsStreamWeighted() bool {
	return len(p.Allocations) > 0
}

// PositionStatus is the lifecycle state of an investment position.
// MATURED is terminal; ACTIVE -> MATURED happens only through the
// distribution cycle.
type PositionStatus string

const (
	PositionPending PositionStatus = "PENDING"
	PositionActive  PositionStatus = "ACTIVE"
	PositionMatured PositionStatus = "MATURED"
)

// InvestmentPosition is a fixed-term claim created when an owner commits
// principal to a plan. Principal is always recorded in USD.
type InvestmentPosition struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	OwnerID   uuid.UUID       `db:"owner_id" json:"owner_id"`
	PlanID    uuid.UUID       `db:"plan_id" json:"plan_id"`
	Principal decimal.Decimal `db:"principal" json:"principal"`
	Status    PositionStatus  `db:"status" json:"status"`
	StartDate time.Time       `db:"start_date" json:"start_date"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Validate checks position invariants before persistence.
func (p *InvestmentPosition) Validate() error {
	if p.OwnerID == uuid.Nil {
		return fmt.Errorf("position owner id is required")
	}
	if p.PlanID == uuid.Nil {
		return fmt.Errorf("position plan id is required")
	}
	if !p.Principal.IsPositive() {
		return fmt.Errorf("position principal must be positive, got %s", p.Principal.String())
	}
	switch p.Status {
	case PositionPending, PositionActive, PositionMatured:
	default:
		return fmt.Errorf("invalid position status: %s", p.Status)
	}
	return nil
}

// MaturesAt returns the instant the position's principal becomes releasable.
func (p *InvestmentPosition) MaturesAt(plan *Plan) time.Time {
	return p.StartDate.AddDate(0, 0, plan.DurationDays)
}

// ProfitLogEntry is the idempotency and audit record for one credited
// payout period. The (InvestmentID, PeriodEnding) pair is unique in the
// store; that constraint is the sole guard against double-crediting.
type ProfitLogEntry struct {
	ID           uuid.UUID        `db:"id" json:"id"`
	InvestmentID uuid.UUID        `db:"investment_id" json:"investment_id"`
	Amount       decimal.Decimal  `db:"amount" json:"amount"`
	PeriodEnding time.Time        `db:"period_ending" json:"period_ending"`
	WeightedPct  *decimal.Decimal `db:"weighted_pct" json:"weighted_pct,omitempty"`
	GrossProfit  *decimal.Decimal `db:"gross_profit" json:"gross_profit,omitempty"`
	Fee          *decimal.Decimal `db:"fee" json:"fee,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

// StreamPerformance is one externally supplied weekly ROI snapshot for a
// revenue stream. The core only reads the most recent row per stream.
type StreamPerformance struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	StreamName string          `db:"stream_name" json:"stream_name"`
	WeekEnding time.Time       `db:"week_ending" json:"week_ending"`
	ROIPct     decimal.Decimal `db:"roi_pct" json:"roi_pct"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// CreateInvestmentRequest is the input to the creation workflow.
type CreateInvestmentRequest struct {
	OwnerID        uuid.UUID       `json:"owner_id"`
	PlanIdentifier string          `json:"plan"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
}

// FundingDiagnostics explains a PENDING creation outcome to the caller.
type FundingDiagnostics struct {
	AvailableUSD decimal.Decimal `json:"available_usd"`
	RequestedUSD decimal.Decimal `json:"requested_usd"`
}

// CreateInvestmentResult is the creation workflow outcome. Status is
// ACTIVE when the position was funded and PENDING when the owner must
// top up first; PENDING is a valid terminal outcome, not an error.
type CreateInvestmentResult struct {
	Status      PositionStatus      `json:"status"`
	Position    *InvestmentPosition `json:"position"`
	Diagnostics *FundingDiagnostics `json:"diagnostics,omitempty"`
}
