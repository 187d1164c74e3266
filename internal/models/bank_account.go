package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BankAccount is a linked external funding source. SandboxBalance mirrors the
// bank side when running without a live banking integration.
type BankAccount struct {
	ID             string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	OwnerID        string    `gorm:"type:varchar(64);not null;index" json:"owner_id"`
	BankName       string    `gorm:"type:varchar(64)" json:"bank_name"`
	AccountMask    string    `gorm:"type:varchar(16)" json:"account_mask"`
	Currency       string    `gorm:"type:char(3);not null" json:"currency"`
	Verified       bool      `gorm:"not null;default:false" json:"verified"`
	SandboxBalance int64     `gorm:"not null;default:0;check:chk_bank_sandbox_non_negative,sandbox_balance >= 0" json:"sandbox_balance"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (b *BankAccount) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
