package transfer

import (
	"time"

	"parkpay/internal/models"
	"parkpay/internal/repositories"
)

type TransferRequest struct {
	FromWalletID string
	ToWalletID   string
	Amount       int64
	ReferenceID  string
	Note         string
}

type ParkingFeeRequest struct {
	WalletID string
	TokenID  string
	Amount   int64
	// ReferenceID defaults to "parking:<token id>".
	ReferenceID string
}

type DepositRequest struct {
	WalletID      string
	BankAccountID string
	Amount        int64
	ReferenceID   string
}

type WithdrawRequest struct {
	WalletID      string
	BankAccountID string
	Amount        int64
	ReferenceID   string
}

// RefundRequest reverses a completed transfer or payment in full. The refund
// reference is derived from the original entry, so a transaction can be
// refunded at most once.
type RefundRequest struct {
	OriginalReferenceID string
	Note                string
}

// SettlementOutcome is the bank's verdict on a pending movement.
type SettlementOutcome struct {
	Success bool
	Reason  string
}

// BalanceUpdate is a committed balance change and the delta that produced it.
type BalanceUpdate struct {
	models.BalanceChange
	Delta int64 `json:"delta"`
}

// Result describes a committed movement. Replayed is set when the reference
// had already been processed and nothing new was written; Balances is empty
// in that case.
type Result struct {
	Transaction *models.WalletTransaction   `json:"transaction"`
	Related     []*models.WalletTransaction `json:"related,omitempty"`
	Balances    []BalanceUpdate             `json:"balances,omitempty"`
	Replayed    bool                        `json:"replayed"`
}

// Balance returns the update for walletID, if the movement touched it.
func (r *Result) Balance(walletID string) (BalanceUpdate, bool) {
	for _, b := range r.Balances {
		if b.WalletID == walletID {
			return b, true
		}
	}
	return BalanceUpdate{}, false
}

// Config tunes the engine.
type Config struct {
	RetryPolicy repositories.RetryPolicy
	// SandboxBanking settles bank legs immediately against BankAccount.SandboxBalance.
	SandboxBanking bool
	// WithdrawalFeeBPS is charged on withdrawals, in basis points, into
	// PlatformFeeWalletID. Ignored when no fee wallet is configured.
	WithdrawalFeeBPS    int64
	PlatformFeeWalletID string
	Clock               func() time.Time
}

// Reference prefixes for derived ids.
const (
	ParkingReferencePrefix = models.ParkingReferencePrefix
	RefundReferencePrefix  = models.RefundReferencePrefix
	FeeReferenceSuffix     = models.FeeReferenceSuffix
	maxReferenceLength     = 128
)

// Operation names used for metrics
const (
	opTransfer   = "transfer"
	opParkingFee = "parking_fee"
	opDeposit    = "deposit"
	opWithdraw   = "withdraw"
	opSettle     = "settle"
	opRefund     = "refund"
)
