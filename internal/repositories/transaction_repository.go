package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parkpay/internal/models"

	"gorm.io/gorm"
)

type transactionRepository struct {
	db *gorm.DB
}

func (r *transactionRepository) Create(ctx context.Context, txn *models.WalletTransaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	if err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrTransactionNotFound, "get transaction")
	}
	return &txn, nil
}

func (r *transactionRepository) GetByReference(ctx context.Context, referenceID string) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	if err := r.db.WithContext(ctx).First(&txn, "reference_id = ?", referenceID).Error; err != nil {
		return nil, notFound(err, ErrTransactionNotFound, "get transaction by reference")
	}
	return &txn, nil
}

func (r *transactionRepository) Settle(ctx context.Context, id string, status models.TransactionStatus, balanceAfter *int64, at time.Time) error {
	fields := map[string]interface{}{
		"status":       status,
		"completed_at": at,
	}
	if balanceAfter != nil {
		fields["balance_after"] = *balanceAfter
	}

	res := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Where("id = ? AND status = ?", id, models.TransactionStatusPending).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to settle transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

func (r *transactionRepository) SumOutgoingSince(ctx context.Context, walletID string, since time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("sender_wallet_id = ? AND status IN ? AND created_at >= ?",
			walletID,
			[]models.TransactionStatus{models.TransactionStatusPending, models.TransactionStatusCompleted},
			since).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum outgoing transactions: %w", err)
	}
	return total, nil
}

func (r *transactionRepository) ListByWallet(ctx context.Context, walletID string, limit, offset int) ([]models.WalletTransaction, int64, error) {
	byWallet := func(db *gorm.DB) *gorm.DB {
		return db.Where("sender_wallet_id = ? OR receiver_wallet_id = ?", walletID, walletID)
	}

	var total int64
	err := r.db.WithContext(ctx).Model(&models.WalletTransaction{}).Scopes(byWallet).Count(&total).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	var txns []models.WalletTransaction
	err = r.db.WithContext(ctx).Scopes(byWallet).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&txns).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, total, nil
}
