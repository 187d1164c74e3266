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

// Withdraw sends funds to a linked bank account. The wallet is debited at
// once, together with the platform fee. In live mode the WITHDRAWAL entry
// stays PENDING until Settle, which returns the money and the fee on failure.
func (s *service) Withdraw(ctx context.Context, req WithdrawRequest) (*Result, error) {
	if err := validateBankMovement(req.ReferenceID, req.WalletID, req.BankAccountID, req.Amount); err != nil {
		return nil, s.fail(opWithdraw, req.ReferenceID, err)
	}
	if len(req.ReferenceID)+len(FeeReferenceSuffix) > maxReferenceLength {
		return nil, s.fail(opWithdraw, req.ReferenceID, apperrors.ErrReferenceTooLong)
	}

	intent := &models.WalletTransaction{
		ReferenceID:    req.ReferenceID,
		SenderWalletID: &req.WalletID,
		Amount:         req.Amount,
		Type:           models.TransactionTypeWithdrawal,
	}
	return s.execute(ctx, opWithdraw, intent, func(ctx context.Context, tx repositories.Store, now time.Time) (*posting, error) {
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

		platform, fee, err := s.withdrawalFee(ctx, tx, w, req.Amount)
		if err != nil {
			return nil, err
		}
		if err := s.limits.Authorize(ctx, tx.Transactions(), w, req.Amount+fee, now); err != nil {
			return nil, err
		}

		legs := []leg{{wallet: w, delta: -(req.Amount + fee)}}
		if fee > 0 {
			legs = append(legs, leg{wallet: platform, delta: fee})
		}
		balances, err := s.applyLegs(ctx, tx, legs...)
		if err != nil {
			return nil, err
		}

		entry := &models.WalletTransaction{
			ReferenceID:    req.ReferenceID,
			SenderWalletID: &w.ID,
			Amount:         req.Amount,
			Fee:            fee,
			Currency:       w.Currency,
			Type:           models.TransactionTypeWithdrawal,
			Status:         models.TransactionStatusPending,
			BalanceAfter:   balanceOf(balances, w.ID),
			Metadata:       models.JSON{"bank_account_id": acct.ID},
			CreatedAt:      now,
		}
		if s.config.SandboxBanking {
			if err := tx.BankAccounts().AdjustSandboxBalance(ctx, acct.ID, req.Amount); err != nil {
				return nil, mapBankError(err)
			}
			completedAt := now
			entry.Status = models.TransactionStatusCompleted
			entry.CompletedAt = &completedAt
		}
		if err := s.ledger.RecordEntry(ctx, tx, entry); err != nil {
			return nil, err
		}

		p := &posting{entry: entry, balances: balances, currency: w.Currency}
		if fee > 0 {
			completedAt := now
			feeEntry := &models.WalletTransaction{
				ReferenceID:      req.ReferenceID + FeeReferenceSuffix,
				SenderWalletID:   &w.ID,
				ReceiverWalletID: &platform.ID,
				Amount:           fee,
				Currency:         w.Currency,
				Type:             models.TransactionTypeFee,
				Status:           models.TransactionStatusCompleted,
				BalanceAfter:     balanceOf(balances, w.ID),
				Note:             "withdrawal fee",
				Metadata:         models.JSON{"withdrawal_reference_id": req.ReferenceID},
				CreatedAt:        now,
				CompletedAt:      &completedAt,
			}
			if err := s.ledger.RecordEntry(ctx, tx, feeEntry); err != nil {
				return nil, err
			}
			p.related = append(p.related, feeEntry)
		}
		return p, nil
	})
}

// withdrawalFee returns the platform wallet and the fee owed on amount, or a
// zero fee when no fee is configured or the platform wallet cannot take it.
func (s *service) withdrawalFee(ctx context.Context, tx repositories.Store, w *models.Wallet, amount int64) (*models.Wallet, int64, error) {
	if s.config.WithdrawalFeeBPS <= 0 || s.config.PlatformFeeWalletID == "" || w.ID == s.config.PlatformFeeWalletID {
		return nil, 0, nil
	}
	fee := amount * s.config.WithdrawalFeeBPS / 10_000
	if fee == 0 {
		return nil, 0, nil
	}

	platform, err := tx.Wallets().GetByID(ctx, s.config.PlatformFeeWalletID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load platform fee wallet: %w", err)
	}
	if platform.Currency != w.Currency || !platform.IsActive() {
		s.logger.Warn("withdrawal fee skipped",
			zap.String("wallet_id", w.ID),
			zap.String("platform_wallet_id", platform.ID),
			zap.String("currency", w.Currency))
		return nil, 0, nil
	}
	return platform, fee, nil
}

// settleWithdrawal completes a PENDING withdrawal or, on failure, returns the
// amount to the wallet and refunds the fee entry.
func (s *service) settleWithdrawal(ctx context.Context, tx repositories.Store, entry *models.WalletTransaction, outcome SettlementOutcome, now time.Time) (*posting, error) {
	p := &posting{entry: entry, currency: entry.Currency}
	if outcome.Success {
		if err := s.ledger.Complete(ctx, tx, entry, entry.BalanceAfter, now); err != nil {
			return nil, err
		}
		return p, nil
	}

	w, err := s.loadWallet(ctx, tx, models.Deref(entry.SenderWalletID))
	if err != nil {
		return nil, err
	}
	legs := []leg{{wallet: w, delta: entry.Amount}}

	feeEntry, err := s.ledger.FindByReference(ctx, tx, entry.ReferenceID+FeeReferenceSuffix)
	if err != nil && !errors.Is(err, apperrors.ErrTransactionNotFound) {
		return nil, err
	}
	var platform *models.Wallet
	if feeEntry != nil && feeEntry.Status == models.TransactionStatusCompleted {
		if platform, err = s.loadWallet(ctx, tx, models.Deref(feeEntry.ReceiverWalletID)); err != nil {
			return nil, err
		}
		legs = append(legs, leg{wallet: platform, delta: -feeEntry.Amount}, leg{wallet: w, delta: feeEntry.Amount})
	}

	balances, err := s.applyLegs(ctx, tx, legs...)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Fail(ctx, tx, entry, now); err != nil {
		return nil, err
	}
	p.balances = balances

	if platform != nil {
		completedAt := now
		refund := &models.WalletTransaction{
			ReferenceID:      RefundReferencePrefix + feeEntry.ID,
			SenderWalletID:   &platform.ID,
			ReceiverWalletID: &w.ID,
			Amount:           feeEntry.Amount,
			Currency:         feeEntry.Currency,
			Type:             models.TransactionTypeRefund,
			Status:           models.TransactionStatusCompleted,
			BalanceAfter:     balanceOf(balances, platform.ID),
			Note:             "withdrawal failed",
			Metadata:         models.JSON{"original_transaction_id": feeEntry.ID},
			CreatedAt:        now,
			CompletedAt:      &completedAt,
		}
		if err := s.ledger.RecordEntry(ctx, tx, refund); err != nil {
			return nil, err
		}
		p.related = append(p.related, refund)
	}
	return p, nil
}
