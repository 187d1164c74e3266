package wallet

import (
	"context"

	"parkpay/internal/models"
)

// Service defines the main wallet service interface
type Service interface {
	// Wallet management
	Provision(ctx context.Context, req ProvisionRequest) (*models.Wallet, error)
	GetWallet(ctx context.Context, walletID string) (*models.Wallet, error)
	GetByOwner(ctx context.Context, ownerType models.OwnerType, ownerID string, walletType models.WalletType) (*models.Wallet, error)

	// Balance operations
	GetBalance(ctx context.Context, walletID string) (*Balance, error)

	// Status and limits. Each bumps the wallet version so in-flight
	// movements that validated the old state are forced to retry.
	Freeze(ctx context.Context, walletID string) (*models.Wallet, error)
	Unfreeze(ctx context.Context, walletID string) (*models.Wallet, error)
	Close(ctx context.Context, walletID string) (*models.Wallet, error)
	SetLimits(ctx context.Context, walletID string, limits models.WalletLimits) (*models.Wallet, error)

	History(ctx context.Context, walletID string, limit, offset int) ([]models.WalletTransaction, int64, error)
}

// Cache stores wallet snapshots for balance reads. GetWallet returns nil on a
// miss along with the generation SetWallet must be given; a fill whose
// generation is stale is dropped.
type Cache interface {
	GetWallet(ctx context.Context, walletID string) (*models.Wallet, int64, error)
	SetWallet(ctx context.Context, wallet *models.Wallet, generation int64) error
	InvalidateWallets(ctx context.Context, walletIDs ...string) error
}

// HistoryReader lists ledger entries for a wallet.
type HistoryReader interface {
	History(ctx context.Context, walletID string, limit, offset int) ([]models.WalletTransaction, int64, error)
}
