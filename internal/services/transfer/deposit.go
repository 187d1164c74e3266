package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "parkpay/internal/errors"
	"parkpay/internal/models"
	"parkpay/internal/repositories"

	"go.uber.org/zap"
)

// Deposit pulls funds from a linked bank account. In sandbox mode the bank
// mirror is debited and the wallet credited immediately; otherwise a PENDING
// entry waits for Settle.
func (s *service) Deposit(ctx context.Context, req DepositRequest) (*Result, error) {
	if err := validateBankMovement(req.ReferenceID, req.WalletID, req.BankAccountID, req.Amount); err != nil {
		return nil, s.fail(opDeposit, req.ReferenceID, err)
	}

	intent := &models.WalletTransaction{
		ReferenceID:      req.ReferenceID,
		ReceiverWalletID: &req.WalletID,
		Amount:           req.Amount,
		Type:             models.TransactionTypeDeposit,
	}
	return s.execute(ctx, opDeposit, intent, func(ctx context.Context, tx repositories.Store, now time.Time) (*posting, error) {
		w, err := s.loadWallet(ctx, tx, req.WalletID)
		if err != nil {
			return nil, err
		}
		if err := authorize(ctx, w); err != nil {
			return nil, err
		}
		if !w.IsActive() {
			return nil, apperrors.ErrWalletNotActive
		}
		acct, err := s.bankAccount(ctx, tx, req.BankAccountID, w)
		if err != nil {
			return nil, err
		}

		entry := &models.WalletTransaction{
			ReferenceID:      req.ReferenceID,
			ReceiverWalletID: &w.ID,
			Amount:           req.Amount,
			Currency:         w.Currency,
			Type:             models.TransactionTypeDeposit,
			Status:           models.TransactionStatusPending,
			Metadata:         models.JSON{"bank_account_id": acct.ID},
			CreatedAt:        now,
		}
		p := &posting{entry: entry, currency: w.Currency}

		if s.config.SandboxBanking {
			if err := tx.BankAccounts().AdjustSandboxBalance(ctx, acct.ID, -req.Amount); err != nil {
				return nil, mapBankError(err)
			}
			balances, err := s.applyLegs(ctx, tx, leg{wallet: w, delta: req.Amount})
			if err != nil {
				return nil, err
			}
			completedAt := now
			entry.Status = models.TransactionStatusCompleted
			entry.BalanceAfter = balanceOf(balances, w.ID)
			entry.CompletedAt = &completedAt
			p.balances = balances
		}

		if err := s.ledger.RecordEntry(ctx, tx, entry); err != nil {
			return nil, err
		}
		return p, nil
	})
}

// Settle applies the bank's verdict to a PENDING deposit or withdrawal.
// Settling an entry that already reached the same outcome is a replay.
func (s *service) Settle(ctx context.Context, referenceID string, outcome SettlementOutcome) (*Result, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration(opSettle, time.Since(start)) }()

	if err := requirePrivileged(ctx); err != nil {
		return nil, s.fail(opSettle, referenceID, err)
	}
	if err := validateReference(referenceID); err != nil {
		return nil, s.fail(opSettle, referenceID, err)
	}

	var (
		committed *posting
		replayed  *Result
	)
	err := repositories.Retry(ctx, s.config.RetryPolicy, func(int) { s.metrics.RecordConflictRetry(opSettle) }, func() error {
		committed, replayed = nil, nil
		return s.store.WithinTx(ctx, func(tx repositories.Store) error {
			entry, err := s.ledger.FindByReference(ctx, tx, referenceID)
			if err != nil {
				return err
			}
			if entry.Status != models.TransactionStatusPending {
				if (entry.Status == models.TransactionStatusCompleted) == outcome.Success {
					replayed = &Result{Transaction: entry, Replayed: true}
					return nil
				}
				return apperrors.ErrTransactionNotPending
			}

			now := s.now()
			switch entry.Type {
			case models.TransactionTypeDeposit:
				committed, err = s.settleDeposit(ctx, tx, entry, outcome, now)
			case models.TransactionTypeWithdrawal:
				committed, err = s.settleWithdrawal(ctx, tx, entry, outcome, now)
			default:
				err = apperrors.ErrTransactionNotPending
			}
			return err
		})
	})
	if err != nil {
		return nil, s.fail(opSettle, referenceID, err)
	}
	if replayed != nil {
		return s.finishReplay(opSettle, replayed, nil)
	}

	if !outcome.Success {
		s.logger.Warn("bank movement failed",
			zap.String("reference_id", referenceID),
			zap.String("type", string(committed.entry.Type)),
			zap.String("reason", outcome.Reason))
	}
	s.afterCommit(ctx, opSettle, committed)
	return committed.result(), nil
}

func (s *service) settleDeposit(ctx context.Context, tx repositories.Store, entry *models.WalletTransaction, outcome SettlementOutcome, now time.Time) (*posting, error) {
	w, err := s.loadWallet(ctx, tx, models.Deref(entry.ReceiverWalletID))
	if err != nil {
		return nil, err
	}
	p := &posting{entry: entry, currency: entry.Currency}

	if !outcome.Success {
		if err := s.ledger.Fail(ctx, tx, entry, now); err != nil {
			return nil, err
		}
		return p, nil
	}

	// The bank has already moved the money, so a frozen wallet is still
	// credited. Only a closed wallet blocks settlement.
	if w.Status == models.WalletStatusClosed {
		return nil, apperrors.ErrWalletNotActive
	}
	balances, err := s.applyLegs(ctx, tx, leg{wallet: w, delta: entry.Amount})
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Complete(ctx, tx, entry, balanceOf(balances, w.ID), now); err != nil {
		return nil, err
	}
	p.balances = balances
	return p, nil
}

func (s *service) bankAccount(ctx context.Context, tx repositories.Store, accountID string, w *models.Wallet) (*models.BankAccount, error) {
	acct, err := tx.BankAccounts().GetByID(ctx, accountID)
	if errors.Is(err, repositories.ErrBankAccountNotFound) {
		return nil, apperrors.ErrBankAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load bank account: %w", err)
	}
	if acct.OwnerID != w.OwnerID {
		return nil, apperrors.ErrNotOwner
	}
	if !acct.Verified {
		return nil, apperrors.ErrBankAccountNotVerified
	}
	if acct.Currency != w.Currency {
		return nil, apperrors.ErrCurrencyMismatch
	}
	return acct, nil
}

func mapBankError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrInsufficientFunds):
		return apperrors.ErrBankInsufficientFunds
	case errors.Is(err, repositories.ErrBankAccountNotFound):
		return apperrors.ErrBankAccountNotFound
	}
	return fmt.Errorf("failed to adjust bank account: %w", err)
}

func validateBankMovement(referenceID, walletID, accountID string, amount int64) error {
	if err := validateCallerReference(referenceID); err != nil {
		return err
	}
	if amount <= 0 {
		return apperrors.ErrInvalidAmount
	}
	if walletID == "" {
		return apperrors.ErrWalletNotFound
	}
	if accountID == "" {
		return apperrors.ErrBankAccountNotFound
	}
	return nil
}
