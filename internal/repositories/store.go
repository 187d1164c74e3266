// Package repositories provides data access layer implementations.
// Every mutation that can race is a single guarded statement: the WHERE clause
// carries the precondition and zero affected rows means it did not hold.
package repositories

import (
	"context"
	"errors"
	"time"

	"parkpay/internal/models"
)

// Storage-level errors. Services translate these into domain errors.
var (
	ErrWalletNotFound         = errors.New("wallet not found")
	ErrDuplicateWallet        = errors.New("wallet already exists for owner")
	ErrConflict               = errors.New("version conflict")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrDuplicateReference     = errors.New("duplicate reference id")
	ErrPaymentRequestNotFound = errors.New("payment request not found")
	ErrDuplicatePaymentRef    = errors.New("duplicate payment ref")
	ErrBankAccountNotFound    = errors.New("bank account not found")
	ErrLotNotFound            = errors.New("parking lot not found")
	ErrSlotNotFound           = errors.New("parking slot not found")
	ErrTokenNotFound          = errors.New("parking token not found")
	ErrInvalidTransition      = errors.New("invalid status transition")
)

// Store is the unit of work. Repositories obtained from the Store passed to a
// WithinTx callback share that transaction.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Store) error) error
	Wallets() WalletRepository
	Transactions() TransactionRepository
	PaymentRequests() PaymentRequestRepository
	BankAccounts() BankAccountRepository
	Parking() ParkingRepository
	Ping(ctx context.Context) error
}

type WalletRepository interface {
	Create(ctx context.Context, wallet *models.Wallet) error
	GetByID(ctx context.Context, id string) (*models.Wallet, error)
	GetByOwner(ctx context.Context, ownerType models.OwnerType, ownerID string, walletType models.WalletType) (*models.Wallet, error)
	// AdjustBalance applies delta iff the wallet is still at expectedVersion and
	// the result stays non-negative. Returns ErrConflict, ErrInsufficientFunds
	// or ErrWalletNotFound otherwise.
	AdjustBalance(ctx context.Context, id string, delta, expectedVersion int64) (models.BalanceChange, error)
	UpdateStatus(ctx context.Context, id string, status models.WalletStatus, expectedVersion int64) (int64, error)
	UpdateLimits(ctx context.Context, id string, limits models.WalletLimits, expectedVersion int64) (int64, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, txn *models.WalletTransaction) error
	GetByID(ctx context.Context, id string) (*models.WalletTransaction, error)
	GetByReference(ctx context.Context, referenceID string) (*models.WalletTransaction, error)
	// Settle moves a PENDING entry to status. ErrInvalidTransition if it is no longer PENDING.
	Settle(ctx context.Context, id string, status models.TransactionStatus, balanceAfter *int64, at time.Time) error
	// SumOutgoingSince totals PENDING and COMPLETED debits sent by the wallet since the instant.
	SumOutgoingSince(ctx context.Context, walletID string, since time.Time) (int64, error)
	ListByWallet(ctx context.Context, walletID string, limit, offset int) ([]models.WalletTransaction, int64, error)
}

type PaymentRequestRepository interface {
	Create(ctx context.Context, req *models.PaymentRequest) error
	GetByID(ctx context.Context, id string) (*models.PaymentRequest, error)
	GetByRef(ctx context.Context, paymentRef string) (*models.PaymentRequest, error)
	// Transition moves a request out of from. ErrInvalidTransition if it was not in from.
	Transition(ctx context.Context, id string, from, to models.PaymentRequestStatus, transactionID *string) error
	ListByPayee(ctx context.Context, payeeWalletID string, status models.PaymentRequestStatus) ([]models.PaymentRequest, error)
}

type BankAccountRepository interface {
	Create(ctx context.Context, account *models.BankAccount) error
	GetByID(ctx context.Context, id string) (*models.BankAccount, error)
	// AdjustSandboxBalance is guarded on the mirror staying non-negative.
	AdjustSandboxBalance(ctx context.Context, id string, delta int64) error
}

type ParkingRepository interface {
	CreateLot(ctx context.Context, lot *models.ParkingLot) error
	GetLot(ctx context.Context, id string) (*models.ParkingLot, error)
	CreateSlot(ctx context.Context, slot *models.ParkingSlot) error
	GetSlot(ctx context.Context, id string) (*models.ParkingSlot, error)
	// OpenToken creates an ACTIVE token and occupies its slot.
	OpenToken(ctx context.Context, token *models.ParkingToken) error
	GetToken(ctx context.Context, id string) (*models.ParkingToken, error)
	// CompleteToken is guarded on the token being ACTIVE.
	CompleteToken(ctx context.Context, id string, fee int64, at time.Time) error
	// ReleaseSlot frees the slot held by the token.
	ReleaseSlot(ctx context.Context, slotID, tokenID string) error
}
