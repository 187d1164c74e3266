package transfer

import (
	"context"
	"time"

	"parkpay/internal/models"
	"parkpay/internal/repositories"
)

// Service moves money between wallets and external accounts. Every movement
// is idempotent on its reference id and atomic across all rows it touches.
type Service interface {
	Transfer(ctx context.Context, req TransferRequest) (*Result, error)
	// TransferWith runs afterPost inside the transfer's transaction, after the
	// ledger entry is recorded. An error from afterPost rolls everything back.
	TransferWith(ctx context.Context, req TransferRequest, afterPost AfterPost) (*Result, error)
	PayParkingFee(ctx context.Context, req ParkingFeeRequest) (*Result, error)
	Deposit(ctx context.Context, req DepositRequest) (*Result, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (*Result, error)
	// Settle finalizes a PENDING deposit or withdrawal once the bank reports back.
	Settle(ctx context.Context, referenceID string, outcome SettlementOutcome) (*Result, error)
	Refund(ctx context.Context, req RefundRequest) (*Result, error)
}

// AfterPost is an extra step executed in the movement's transaction.
type AfterPost func(ctx context.Context, tx repositories.Store, entry *models.WalletTransaction) error

// Ledger records and settles entries.
type Ledger interface {
	RecordEntry(ctx context.Context, tx repositories.Store, entry *models.WalletTransaction) error
	FindByReference(ctx context.Context, s repositories.Store, referenceID string) (*models.WalletTransaction, error)
	Complete(ctx context.Context, tx repositories.Store, entry *models.WalletTransaction, balanceAfter *int64, at time.Time) error
	Fail(ctx context.Context, tx repositories.Store, entry *models.WalletTransaction, at time.Time) error
}

// LimitAuthorizer checks spending caps inside the debit's transaction.
type LimitAuthorizer interface {
	Authorize(ctx context.Context, txns repositories.TransactionRepository, wallet *models.Wallet, amount int64, asOf time.Time) error
}

// CacheInvalidator drops wallet snapshots after a movement commits.
type CacheInvalidator interface {
	InvalidateWallets(ctx context.Context, walletIDs ...string) error
}
