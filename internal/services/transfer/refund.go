package transfer

import (
	"context"
	"time"

	apperrors "parkpay/internal/errors"
	"parkpay/internal/models"
	"parkpay/internal/repositories"
)

// Refund returns the full amount of a completed transfer or payment from the
// receiver back to the sender.
func (s *service) Refund(ctx context.Context, req RefundRequest) (*Result, error) {
	if err := validateReference(req.OriginalReferenceID); err != nil {
		return nil, s.fail(opRefund, req.OriginalReferenceID, err)
	}
	orig, err := s.ledger.FindByReference(ctx, nil, req.OriginalReferenceID)
	if err != nil {
		return nil, s.fail(opRefund, req.OriginalReferenceID, err)
	}
	if !refundable(orig) {
		return nil, s.fail(opRefund, req.OriginalReferenceID, apperrors.ErrNotRefundable)
	}

	intent := &models.WalletTransaction{
		ReferenceID:      RefundReferencePrefix + orig.ID,
		SenderWalletID:   orig.ReceiverWalletID,
		ReceiverWalletID: orig.SenderWalletID,
		Amount:           orig.Amount,
		Type:             models.TransactionTypeRefund,
	}
	return s.execute(ctx, opRefund, intent, func(ctx context.Context, tx repositories.Store, now time.Time) (*posting, error) {
		merchant, err := s.loadWallet(ctx, tx, *orig.ReceiverWalletID)
		if err != nil {
			return nil, err
		}
		if err := authorize(ctx, merchant); err != nil {
			return nil, err
		}
		payer, err := s.loadWallet(ctx, tx, *orig.SenderWalletID)
		if err != nil {
			return nil, err
		}

		return s.move(ctx, tx, movement{
			from:      merchant,
			to:        payer,
			amount:    orig.Amount,
			txType:    models.TransactionTypeRefund,
			reference: intent.ReferenceID,
			note:      req.Note,
			metadata: models.JSON{
				"original_transaction_id": orig.ID,
				"original_reference_id":   orig.ReferenceID,
			},
			now: now,
		})
	})
}

func refundable(t *models.WalletTransaction) bool {
	if t.Status != models.TransactionStatusCompleted {
		return false
	}
	if t.SenderWalletID == nil || t.ReceiverWalletID == nil {
		return false
	}
	return t.Type == models.TransactionTypeTransfer || t.Type == models.TransactionTypePayment
}
