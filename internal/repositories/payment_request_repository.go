package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parkpay/internal/models"

	"gorm.io/gorm"
)

type paymentRequestRepository struct {
	db *gorm.DB
}

func (r *paymentRequestRepository) Create(ctx context.Context, req *models.PaymentRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicatePaymentRef
		}
		return fmt.Errorf("failed to create payment request: %w", err)
	}
	return nil
}

func (r *paymentRequestRepository) GetByID(ctx context.Context, id string) (*models.PaymentRequest, error) {
	var req models.PaymentRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrPaymentRequestNotFound, "get payment request")
	}
	return &req, nil
}

func (r *paymentRequestRepository) GetByRef(ctx context.Context, paymentRef string) (*models.PaymentRequest, error) {
	var req models.PaymentRequest
	if err := r.db.WithContext(ctx).First(&req, "payment_ref = ?", paymentRef).Error; err != nil {
		return nil, notFound(err, ErrPaymentRequestNotFound, "get payment request by ref")
	}
	return &req, nil
}

func (r *paymentRequestRepository) Transition(ctx context.Context, id string, from, to models.PaymentRequestStatus, transactionID *string) error {
	fields := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if transactionID != nil {
		fields["transaction_id"] = *transactionID
	}

	res := r.db.WithContext(ctx).
		Model(&models.PaymentRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update payment request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

func (r *paymentRequestRepository) ListByPayee(ctx context.Context, payeeWalletID string, status models.PaymentRequestStatus) ([]models.PaymentRequest, error) {
	query := r.db.WithContext(ctx).Where("payee_wallet_id = ?", payeeWalletID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var reqs []models.PaymentRequest
	if err := query.Order("created_at DESC").Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("failed to list payment requests: %w", err)
	}
	return reqs, nil
}
