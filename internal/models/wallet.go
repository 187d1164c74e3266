package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OwnerType identifies who a wallet belongs to.
type OwnerType string

const (
	OwnerTypeUser       OwnerType = "USER"
	OwnerTypeParkingLot OwnerType = "PARKING_LOT"
	// OwnerTypePlatform owns the wallet that collects service fees.
	OwnerTypePlatform OwnerType = "PLATFORM"
)

// WalletType separates personal spending wallets from merchant receivables.
type WalletType string

const (
	WalletTypePersonal WalletType = "PERSONAL"
	WalletTypeMerchant WalletType = "MERCHANT"
)

// WalletStatus is the lifecycle state of a wallet.
type WalletStatus string

const (
	WalletStatusActive WalletStatus = "ACTIVE"
	WalletStatusFrozen WalletStatus = "FROZEN"
	WalletStatusClosed WalletStatus = "CLOSED"
)

// Wallet holds a balance in integer minor units of Currency.
// Version is bumped by every balance, status or limit change.
type Wallet struct {
	ID             string       `gorm:"type:varchar(36);primaryKey" json:"id"`
	OwnerType      OwnerType    `gorm:"type:varchar(16);not null;uniqueIndex:idx_wallet_owner" json:"owner_type"`
	OwnerID        string       `gorm:"type:varchar(64);not null;uniqueIndex:idx_wallet_owner" json:"owner_id"`
	WalletType     WalletType   `gorm:"type:varchar(16);not null;uniqueIndex:idx_wallet_owner" json:"wallet_type"`
	Currency       string       `gorm:"type:char(3);not null" json:"currency"`
	Balance        int64        `gorm:"not null;default:0;check:chk_wallet_balance_non_negative,balance >= 0" json:"balance"`
	Status         WalletStatus `gorm:"type:varchar(16);not null;default:'ACTIVE'" json:"status"`
	DailyLimit     int64        `gorm:"not null;default:0" json:"daily_limit"`
	MonthlyLimit   int64        `gorm:"not null;default:0" json:"monthly_limit"`
	SingleTxnLimit int64        `gorm:"not null;default:0" json:"single_txn_limit"`
	Version        int64        `gorm:"not null;default:0" json:"version"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}

// IsActive reports whether the wallet may send or receive funds.
func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}

// OwnedBy reports whether the wallet belongs to the given owner.
func (w *Wallet) OwnedBy(ownerType OwnerType, ownerID string) bool {
	return w.OwnerType == ownerType && w.OwnerID == ownerID
}

// Limits returns the spending caps configured on the wallet.
func (w *Wallet) Limits() WalletLimits {
	return WalletLimits{
		Daily:   w.DailyLimit,
		Monthly: w.MonthlyLimit,
		Single:  w.SingleTxnLimit,
	}
}

// WalletLimits groups the per-wallet spending caps. A value <= 0 means uncapped.
type WalletLimits struct {
	Daily   int64 `json:"daily_limit"`
	Monthly int64 `json:"monthly_limit"`
	Single  int64 `json:"single_txn_limit"`
}

// BalanceChange is the outcome of a guarded balance update.
type BalanceChange struct {
	WalletID string `json:"wallet_id"`
	Balance  int64  `json:"balance"`
	Version  int64  `json:"version"`
}
