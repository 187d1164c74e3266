package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentRequestStatus only moves forward: PENDING to one of the terminal states.
type PaymentRequestStatus string

const (
	PaymentRequestPending   PaymentRequestStatus = "PENDING"
	PaymentRequestCompleted PaymentRequestStatus = "COMPLETED"
	PaymentRequestCancelled PaymentRequestStatus = "CANCELLED"
	PaymentRequestExpired   PaymentRequestStatus = "EXPIRED"
)

// PaymentRequest asks a payer to move Amount into the payee wallet.
type PaymentRequest struct {
	ID            string               `gorm:"type:varchar(36);primaryKey" json:"id"`
	PaymentRef    string               `gorm:"type:varchar(32);not null;uniqueIndex" json:"payment_ref"`
	PayeeWalletID string               `gorm:"type:varchar(36);not null;index" json:"payee_wallet_id"`
	PayerWalletID *string              `gorm:"type:varchar(36)" json:"payer_wallet_id,omitempty"`
	Amount        int64                `gorm:"not null;check:chk_payreq_amount_positive,amount > 0" json:"amount"`
	Currency      string               `gorm:"type:char(3);not null" json:"currency"`
	Description   string               `gorm:"type:varchar(255)" json:"description,omitempty"`
	Status        PaymentRequestStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	ExpiresAt     *time.Time           `json:"expires_at,omitempty"`
	QRCode        string               `gorm:"type:varchar(255)" json:"qr_code,omitempty"`
	TransactionID *string              `gorm:"type:varchar(36)" json:"transaction_id,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func (p *PaymentRequest) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsExpired reports whether a pending request has outlived its deadline.
func (p *PaymentRequest) IsExpired(now time.Time) bool {
	return p.Status == PaymentRequestPending && p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}
