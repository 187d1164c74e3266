package wallet

import (
	"parkpay/internal/models"
	"parkpay/internal/repositories"
)

// ProvisionRequest opens a wallet for an owner.
type ProvisionRequest struct {
	OwnerType  models.OwnerType
	OwnerID    string
	WalletType models.WalletType
	Currency   string
}

// Balance is the public view of a wallet's funds.
type Balance struct {
	WalletID string              `json:"wallet_id"`
	Balance  int64               `json:"balance"`
	Currency string              `json:"currency"`
	Status   models.WalletStatus `json:"status"`
	Version  int64               `json:"version"`
}

// WalletConfig holds configuration for wallet operations
type WalletConfig struct {
	DefaultCurrency string
	// DefaultLimits apply to new PERSONAL wallets. MERCHANT and PLATFORM
	// wallets start uncapped.
	DefaultLimits models.WalletLimits
	RetryPolicy   repositories.RetryPolicy
}
