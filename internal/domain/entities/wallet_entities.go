package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is a per-owner, per-currency balance. One wallet exists per
// (owner, currency) pair; balances are mutated only through the ledger
// service, never by direct assignment.
type Wallet struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	OwnerID   uuid.UUID       `db:"owner_id" json:"owner_id"`
	Currency  string          `db:"currency" json:"currency"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// MovementDirection indicates whether a movement adds to or removes from
// a wallet balance.
type MovementDirection string

const (
	MovementCredit MovementDirection = "credit"
	MovementDebit  MovementDirection = "debit"
)

// MovementSource identifies the workflow that caused a movement. It is
// the basis for auditing and reconciliation.
type MovementSource string

const (
	SourceDeposit           MovementSource = "deposit"
	SourceInvestmentFunding MovementSource = "investment_creation"
	SourceProfitCredit      MovementSource = "profit_credit"
	SourcePrincipalReturn   MovementSource = "principal_return"
	SourceReferralCredit    MovementSource = "referral_credit"
	SourceWithdrawal        MovementSource = "withdrawal_request"
	SourceRollback          MovementSource = "rollback"
)

// WalletMovement is an append-only ledger entry. Rows are immutable once
// written; a wallet balance always equals the sum of its credits minus
// the sum of its debits.
type WalletMovement struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	WalletID    uuid.UUID         `db:"wallet_id" json:"wallet_id"`
	Amount      decimal.Decimal   `db:"amount" json:"amount"`
	Direction   MovementDirection `db:"direction" json:"direction"`
	SourceKind  MovementSource    `db:"source_kind" json:"source_kind"`
	Reference   string            `db:"reference" json:"reference"`
	PerformedBy uuid.UUID         `db:"performed_by" json:"performed_by"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

// Validate checks movement invariants before persistence.
func (m *WalletMovement) Validate() error {
	if m.WalletID == uuid.Nil {
		return fmt.Errorf("movement wallet id is required")
	}
	if !m.Amount.IsPositive() {
		return fmt.Errorf("movement amount must be positive, got %s", m.Amount.String())
	}
	if m.Direction != MovementCredit && m.Direction != MovementDebit {
		return fmt.Errorf("invalid movement direction: %s", m.Direction)
	}
	if m.SourceKind == "" {
		return fmt.Errorf("movement source kind is required")
	}
	return nil
}

// WalletRef identifies the wallet a ledger operation targets.
type WalletRef struct {
	OwnerID  uuid.UUID
	Currency string
}

// Owner is the narrow slice of the user record this core consumes:
// referral linkage and KYC status. Everything else about the user lives
// with the identity service.
type Owner struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	ReferrerID *uuid.UUID `db:"referrer_id" json:"referrer_id,omitempty"`
	KYCStatus  string     `db:"kyc_status" json:"kyc_status"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// KYCStatusApproved is the status required for credit when KYC gating is on.
const KYCStatusApproved = "approved"

// ErrorResponse is the standard error body returned by the API layer.
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
