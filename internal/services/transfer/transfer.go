package transfer

import (
	"context"
	"time"

	apperrors "parkpay/internal/errors"
	"parkpay/internal/models"
	"parkpay/internal/repositories"
)

func (s *service) Transfer(ctx context.Context, req TransferRequest) (*Result, error) {
	if err := validateCallerReference(req.ReferenceID); err != nil {
		return nil, s.fail(opTransfer, req.ReferenceID, err)
	}
	return s.TransferWith(ctx, req, nil)
}

// TransferWith accepts derived references, so only in-process workflows that
// own the reference may call it.

func (s *service) TransferWith(ctx context.Context, req TransferRequest, afterPost AfterPost) (*Result, error) {
	if err := validateTransfer(req); err != nil {
		return nil, s.fail(opTransfer, req.ReferenceID, err)
	}

	intent := &models.WalletTransaction{
		ReferenceID:      req.ReferenceID,
		SenderWalletID:   &req.FromWalletID,
		ReceiverWalletID: &req.ToWalletID,
		Amount:           req.Amount,
		Type:             models.TransactionTypeTransfer,
	}
	return s.execute(ctx, opTransfer, intent, func(ctx context.Context, tx repositories.Store, now time.Time) (*posting, error) {
		from, err := s.loadWallet(ctx, tx, req.FromWalletID)
		if err != nil {
			return nil, err
		}
		if err := authorize(ctx, from); err != nil {
			return nil, err
		}
		to, err := s.loadWallet(ctx, tx, req.ToWalletID)
		if err != nil {
			return nil, err
		}

		p, err := s.move(ctx, tx, movement{
			from:      from,
			to:        to,
			amount:    req.Amount,
			txType:    models.TransactionTypeTransfer,
			reference: req.ReferenceID,
			note:      req.Note,
			now:       now,
		})
		if err != nil {
			return nil, err
		}
		if afterPost != nil {
			if err := afterPost(ctx, tx, p.entry); err != nil {
				return nil, err
			}
		}
		return p, nil
	})
}

// movement is a completed wallet-to-wallet debit and credit.
type movement struct {
	from      *models.Wallet
	to        *models.Wallet
	amount    int64
	txType    models.TransactionType
	reference string
	note      string
	metadata  models.JSON
	now       time.Time
}

// move checks both wallets, enforces the sender's limits, adjusts both
// balances and records a COMPLETED entry, all within tx.
func (s *service) move(ctx context.Context, tx repositories.Store, m movement) (*posting, error) {
	if !m.from.IsActive() || !m.to.IsActive() {
		return nil, apperrors.ErrWalletNotActive
	}
	if m.from.Currency != m.to.Currency {
		return nil, apperrors.ErrCurrencyMismatch
	}
	if err := s.limits.Authorize(ctx, tx.Transactions(), m.from, m.amount, m.now); err != nil {
		return nil, err
	}

	balances, err := s.applyLegs(ctx, tx, leg{wallet: m.from, delta: -m.amount}, leg{wallet: m.to, delta: m.amount})
	if err != nil {
		return nil, err
	}

	completedAt := m.now
	entry := &models.WalletTransaction{
		ReferenceID:      m.reference,
		SenderWalletID:   &m.from.ID,
		ReceiverWalletID: &m.to.ID,
		Amount:           m.amount,
		Currency:         m.from.Currency,
		Type:             m.txType,
		Status:           models.TransactionStatusCompleted,
		BalanceAfter:     balanceOf(balances, m.from.ID),
		Note:             m.note,
		Metadata:         m.metadata,
		CreatedAt:        m.now,
		CompletedAt:      &completedAt,
	}
	if err := s.ledger.RecordEntry(ctx, tx, entry); err != nil {
		return nil, err
	}
	return &posting{entry: entry, balances: balances, currency: m.from.Currency}, nil
}

func validateTransfer(req TransferRequest) error {
	if err := validateReference(req.ReferenceID); err != nil {
		return err
	}
	if req.Amount <= 0 {
		return apperrors.ErrInvalidAmount
	}
	if req.FromWalletID == "" || req.ToWalletID == "" {
		return apperrors.ErrWalletNotFound
	}
	if req.FromWalletID == req.ToWalletID {
		return apperrors.ErrSelfTransfer
	}
	return nil
}
