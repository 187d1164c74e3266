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

// PayParkingFee charges the payer for a parking session, credits the lot's
// merchant wallet, completes the token and frees its slot in one transaction.
func (s *service) PayParkingFee(ctx context.Context, req ParkingFeeRequest) (*Result, error) {
	if req.TokenID == "" {
		return nil, s.fail(opParkingFee, req.ReferenceID, apperrors.ErrTokenNotFound)
	}
	if req.ReferenceID == "" {
		req.ReferenceID = ParkingReferencePrefix + req.TokenID
	} else if err := validateCallerReference(req.ReferenceID); err != nil {
		return nil, s.fail(opParkingFee, req.ReferenceID, err)
	}
	if err := validateReference(req.ReferenceID); err != nil {
		return nil, s.fail(opParkingFee, req.ReferenceID, err)
	}
	if req.Amount <= 0 {
		return nil, s.fail(opParkingFee, req.ReferenceID, apperrors.ErrInvalidAmount)
	}

	// The lot's wallet never changes, so it is safe to resolve it up front
	// and use it for replay detection.
	token, err := s.token(ctx, s.store, req.TokenID)
	if err != nil {
		return nil, s.fail(opParkingFee, req.ReferenceID, err)
	}
	lotWallet, err := s.store.Wallets().GetByOwner(ctx, models.OwnerTypeParkingLot, token.LotID, models.WalletTypeMerchant)
	if errors.Is(err, repositories.ErrWalletNotFound) {
		return nil, s.fail(opParkingFee, req.ReferenceID, apperrors.ErrLotWalletMissing)
	}
	if err != nil {
		return nil, s.fail(opParkingFee, req.ReferenceID, fmt.Errorf("failed to load lot wallet: %w", err))
	}
	if lotWallet.ID == req.WalletID {
		return nil, s.fail(opParkingFee, req.ReferenceID, apperrors.ErrSelfTransfer)
	}

	intent := &models.WalletTransaction{
		ReferenceID:      req.ReferenceID,
		SenderWalletID:   &req.WalletID,
		ReceiverWalletID: &lotWallet.ID,
		Amount:           req.Amount,
		Type:             models.TransactionTypePayment,
	}
	return s.execute(ctx, opParkingFee, intent, func(ctx context.Context, tx repositories.Store, now time.Time) (*posting, error) {
		token, err := s.token(ctx, tx, req.TokenID)
		if err != nil {
			return nil, err
		}
		if token.Status != models.TokenStatusActive {
			return nil, apperrors.ErrTokenNotActive
		}

		payer, err := s.loadWallet(ctx, tx, req.WalletID)
		if err != nil {
			return nil, err
		}
		if err := authorize(ctx, payer); err != nil {
			return nil, err
		}
		merchant, err := s.loadWallet(ctx, tx, lotWallet.ID)
		if err != nil {
			return nil, err
		}

		p, err := s.move(ctx, tx, movement{
			from:      payer,
			to:        merchant,
			amount:    req.Amount,
			txType:    models.TransactionTypePayment,
			reference: req.ReferenceID,
			note:      "parking fee",
			metadata: models.JSON{
				"token_id": token.ID,
				"lot_id":   token.LotID,
				"slot_id":  token.SlotID,
			},
			now: now,
		})
		if err != nil {
			return nil, err
		}

		if err := tx.Parking().CompleteToken(ctx, token.ID, req.Amount, now); err != nil {
			if errors.Is(err, repositories.ErrInvalidTransition) {
				return nil, apperrors.ErrTokenNotActive
			}
			return nil, fmt.Errorf("failed to complete token: %w", err)
		}
		err = tx.Parking().ReleaseSlot(ctx, token.SlotID, token.ID)
		switch {
		case errors.Is(err, repositories.ErrInvalidTransition), errors.Is(err, repositories.ErrSlotNotFound):
			// The gate may already have freed the slot.
			s.logger.Warn("slot not held by token",
				zap.String("slot_id", token.SlotID),
				zap.String("token_id", token.ID))
		case err != nil:
			return nil, fmt.Errorf("failed to release slot: %w", err)
		}
		return p, nil
	})
}

func (s *service) token(ctx context.Context, st repositories.Store, tokenID string) (*models.ParkingToken, error) {
	token, err := st.Parking().GetToken(ctx, tokenID)
	if errors.Is(err, repositories.ErrTokenNotFound) {
		return nil, apperrors.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}
