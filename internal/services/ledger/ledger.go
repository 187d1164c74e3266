// Package ledger records wallet transactions. Entries are insert-only; the
// only mutation is settling a PENDING entry.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "parkpay/internal/errors"
	"parkpay/internal/models"
	"parkpay/internal/repositories"
)

// ErrDuplicateReference is returned by RecordEntry when the reference id is
// already taken. Callers re-read the existing entry to decide between replay
// and reuse.
var ErrDuplicateReference = repositories.ErrDuplicateReference

type Ledger struct {
	store repositories.Store
}

func New(store repositories.Store) *Ledger {
	if store == nil {
		panic("store is required")
	}
	return &Ledger{store: store}
}

// RecordEntry inserts entry within tx.
func (l *Ledger) RecordEntry(ctx context.Context, tx repositories.Store, entry *models.WalletTransaction) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	if err := tx.Transactions().Create(ctx, entry); err != nil {
		if errors.Is(err, repositories.ErrDuplicateReference) {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

// FindByReference looks the entry up through s, which may be a transaction.
func (l *Ledger) FindByReference(ctx context.Context, s repositories.Store, referenceID string) (*models.WalletTransaction, error) {
	if s == nil {
		s = l.store
	}
	entry, err := s.Transactions().GetByReference(ctx, referenceID)
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	return entry, nil
}

// Complete settles a PENDING entry as COMPLETED.
func (l *Ledger) Complete(ctx context.Context, tx repositories.Store, entry *models.WalletTransaction, balanceAfter *int64, at time.Time) error {
	return l.settle(ctx, tx, entry, models.TransactionStatusCompleted, balanceAfter, at)
}

// Fail settles a PENDING entry as FAILED.
func (l *Ledger) Fail(ctx context.Context, tx repositories.Store, entry *models.WalletTransaction, at time.Time) error {
	return l.settle(ctx, tx, entry, models.TransactionStatusFailed, nil, at)
}

func (l *Ledger) settle(ctx context.Context, tx repositories.Store, entry *models.WalletTransaction, status models.TransactionStatus, balanceAfter *int64, at time.Time) error {
	err := tx.Transactions().Settle(ctx, entry.ID, status, balanceAfter, at)
	switch {
	case errors.Is(err, repositories.ErrTransactionNotFound):
		return apperrors.ErrTransactionNotFound
	case errors.Is(err, repositories.ErrInvalidTransition):
		return apperrors.ErrTransactionNotPending
	case err != nil:
		return fmt.Errorf("failed to settle transaction: %w", err)
	}

	entry.Status = status
	entry.CompletedAt = &at
	if balanceAfter != nil {
		entry.BalanceAfter = balanceAfter
	}
	return nil
}

// History returns a page of entries where the wallet is sender or receiver,
// newest first.
func (l *Ledger) History(ctx context.Context, walletID string, limit, offset int) ([]models.WalletTransaction, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return l.store.Transactions().ListByWallet(ctx, walletID, limit, offset)
}

func validateEntry(entry *models.WalletTransaction) error {
	switch {
	case entry.ReferenceID == "":
		return apperrors.ErrMissingReference
	case entry.Amount <= 0, entry.Fee < 0:
		return apperrors.ErrInvalidAmount
	case entry.SenderWalletID == nil && entry.ReceiverWalletID == nil:
		return fmt.Errorf("ledger entry %s has no wallet", entry.ReferenceID)
	}
	return nil
}
