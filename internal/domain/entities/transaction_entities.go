package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType categorizes statement rows shown to the owner.
type TransactionType string

const (
	TransactionDeposit    TransactionType = "DEPOSIT"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
	TransactionProfit     TransactionType = "PROFIT"
	TransactionTransfer   TransactionType = "TRANSFER"
)

// TransactionStatus is the settlement state of a statement row.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionFailed    TransactionStatus = "FAILED"
)

// Transaction reference tags. The principal-release tag doubles as the
// maturity idempotency marker.
const (
	ReferenceInvestmentFunding = "investment_funding"
	ReferenceProfitPayout      = "profit_payout"
	ReferencePrincipalRelease  = "principal_release"
	ReferenceReferralBonus     = "referral_bonus"
)

// Transaction is a movement-level, user-facing statement record.
type Transaction struct {
	ID           uuid.UUID         `db:"id" json:"id"`
	OwnerID      uuid.UUID         `db:"owner_id" json:"owner_id"`
	InvestmentID *uuid.UUID        `db:"investment_id" json:"investment_id,omitempty"`
	Type         TransactionType   `db:"type" json:"type"`
	Amount       decimal.Decimal   `db:"amount" json:"amount"`
	Currency     string            `db:"currency" json:"currency"`
	Status       TransactionStatus `db:"status" json:"status"`
	Reference    string            `db:"reference" json:"reference"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
}

// Validate checks transaction invariants before persistence.
func (t *Transaction) Validate() error {
	if t.OwnerID == uuid.Nil {
		return fmt.Errorf("transaction owner id is required")
	}
	switch t.Type {
	case TransactionDeposit, TransactionWithdrawal, TransactionProfit, TransactionTransfer:
	default:
		return fmt.Errorf("invalid transaction type: %s", t.Type)
	}
	switch t.Status {
	case TransactionPending, TransactionCompleted, TransactionFailed:
	default:
		return fmt.Errorf("invalid transaction status: %s", t.Status)
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("transaction amount must not be negative, got %s", t.Amount.String())
	}
	return nil
}

// ReserveBuffer is the singleton accounting row tying wallet liabilities
// to assets under management. CurrentAmount accumulates the net profit
// outflow of every cycle run; TotalAUM is recomputed fresh each run.
type ReserveBuffer struct {
	CurrentAmount decimal.Decimal `db:"current_amount" json:"current_amount"`
	TotalAUM      decimal.Decimal `db:"total_aum" json:"total_aum"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// CoverageRatio is reserve over AUM. A zero AUM yields a zero ratio.
func (r *ReserveBuffer) CoverageRatio() decimal.Decimal {
	if r.TotalAUM.IsZero() {
		return decimal.Zero
	}
	return r.CurrentAmount.Div(r.TotalAUM)
}

// Notification is the payload handed to the external dispatch
// collaborator. Delivery is best-effort and never blocks a workflow.
type Notification struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}
