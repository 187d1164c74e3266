package repositories

import (
	"context"
	"fmt"
	"time"

	"parkpay/internal/models"

	"gorm.io/gorm"
)

type bankAccountRepository struct {
	db *gorm.DB
}

func (r *bankAccountRepository) Create(ctx context.Context, account *models.BankAccount) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return fmt.Errorf("failed to create bank account: %w", err)
	}
	return nil
}

func (r *bankAccountRepository) GetByID(ctx context.Context, id string) (*models.BankAccount, error) {
	var account models.BankAccount
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrBankAccountNotFound, "get bank account")
	}
	return &account, nil
}

func (r *bankAccountRepository) AdjustSandboxBalance(ctx context.Context, id string, delta int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.BankAccount{}).
		Where("id = ? AND sandbox_balance + ? >= 0", id, delta).
		Updates(map[string]interface{}{
			"sandbox_balance": gorm.Expr("sandbox_balance + ?", delta),
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to adjust sandbox balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrInsufficientFunds
	}
	return nil
}
