package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionTypeTransfer   TransactionType = "TRANSFER"
	TransactionTypePayment    TransactionType = "PAYMENT"
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTypeFee        TransactionType = "FEE"
	TransactionTypeRefund     TransactionType = "REFUND"
)

// TransactionStatus is the settlement state of a ledger entry.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// References the engine derives for its own entries. Callers may not submit
// references in these namespaces.
const (
	ParkingReferencePrefix        = "parking:"
	RefundReferencePrefix         = "refund:"
	PaymentRequestReferencePrefix = "payreq:"
	FeeReferenceSuffix            = ":fee"
)

// IsReservedReference reports whether ref belongs to a derived namespace.
func IsReservedReference(ref string) bool {
	for _, prefix := range []string{ParkingReferencePrefix, RefundReferencePrefix, PaymentRequestReferencePrefix} {
		if strings.HasPrefix(ref, prefix) {
			return true
		}
	}
	return strings.HasSuffix(ref, FeeReferenceSuffix)
}

// WalletTransaction is an append-only ledger entry. The only mutation allowed
// after insert is PENDING -> COMPLETED | FAILED.
type WalletTransaction struct {
	ID               string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	ReferenceID      string            `gorm:"type:varchar(128);not null;uniqueIndex" json:"reference_id"`
	SenderWalletID   *string           `gorm:"type:varchar(36);index" json:"sender_wallet_id,omitempty"`
	ReceiverWalletID *string           `gorm:"type:varchar(36);index" json:"receiver_wallet_id,omitempty"`
	Amount           int64             `gorm:"not null;check:chk_txn_amount_positive,amount > 0" json:"amount"`
	Fee              int64             `gorm:"not null;default:0;check:chk_txn_fee_non_negative,fee >= 0" json:"fee"`
	Currency         string            `gorm:"type:char(3);not null" json:"currency"`
	Type             TransactionType   `gorm:"type:varchar(16);not null;index" json:"type"`
	Status           TransactionStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	BalanceAfter     *int64            `json:"balance_after,omitempty"`
	Note             string            `gorm:"type:varchar(255)" json:"note,omitempty"`
	Metadata         JSON              `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt        time.Time         `gorm:"index" json:"created_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

func (t *WalletTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// SameRequest reports whether other describes the same money movement. It is
// used to tell an idempotent replay apart from a reused reference.
func (t *WalletTransaction) SameRequest(other *WalletTransaction) bool {
	return t.Type == other.Type &&
		t.Amount == other.Amount &&
		equalRef(t.SenderWalletID, other.SenderWalletID) &&
		equalRef(t.ReceiverWalletID, other.ReceiverWalletID)
}

// Involves reports whether the wallet is a party to the entry.
func (t *WalletTransaction) Involves(walletID string) bool {
	return equalRef(t.SenderWalletID, &walletID) || equalRef(t.ReceiverWalletID, &walletID)
}

func equalRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// StringRef returns a pointer to s, or nil when s is empty.
func StringRef(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the value behind p, or "" when p is nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
