package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parkpay/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type walletRepository struct {
	db *gorm.DB
}

func (r *walletRepository) Create(ctx context.Context, wallet *models.Wallet) error {
	if err := r.db.WithContext(ctx).Create(wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateWallet
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *walletRepository) GetByID(ctx context.Context, id string) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrWalletNotFound, "get wallet")
	}
	return &wallet, nil
}

func (r *walletRepository) GetByOwner(ctx context.Context, ownerType models.OwnerType, ownerID string, walletType models.WalletType) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ? AND wallet_type = ?", ownerType, ownerID, walletType).
		First(&wallet).Error
	if err != nil {
		return nil, notFound(err, ErrWalletNotFound, "get wallet by owner")
	}
	return &wallet, nil
}

func (r *walletRepository) AdjustBalance(ctx context.Context, id string, delta, expectedVersion int64) (models.BalanceChange, error) {
	var updated models.Wallet
	res := r.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "id"}, {Name: "balance"}, {Name: "version"}}}).
		Where("id = ? AND version = ? AND balance + ? >= 0", id, expectedVersion, delta).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", delta),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return models.BalanceChange{}, fmt.Errorf("failed to adjust balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.BalanceChange{}, r.classify(ctx, id, expectedVersion)
	}
	return models.BalanceChange{WalletID: id, Balance: updated.Balance, Version: updated.Version}, nil
}

func (r *walletRepository) UpdateStatus(ctx context.Context, id string, status models.WalletStatus, expectedVersion int64) (int64, error) {
	return r.guardedUpdate(ctx, id, expectedVersion, map[string]interface{}{"status": status})
}

func (r *walletRepository) UpdateLimits(ctx context.Context, id string, limits models.WalletLimits, expectedVersion int64) (int64, error) {
	return r.guardedUpdate(ctx, id, expectedVersion, map[string]interface{}{
		"daily_limit":      limits.Daily,
		"monthly_limit":    limits.Monthly,
		"single_txn_limit": limits.Single,
	})
}

func (r *walletRepository) guardedUpdate(ctx context.Context, id string, expectedVersion int64, fields map[string]interface{}) (int64, error) {
	fields["version"] = gorm.Expr("version + 1")
	fields["updated_at"] = time.Now()

	res := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(fields)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update wallet: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return 0, err
		}
		return 0, ErrConflict
	}
	return expectedVersion + 1, nil
}

// classify explains why a guarded balance update touched no rows.
func (r *walletRepository) classify(ctx context.Context, id string, expectedVersion int64) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Version != expectedVersion {
		return ErrConflict
	}
	return ErrInsufficientFunds
}
