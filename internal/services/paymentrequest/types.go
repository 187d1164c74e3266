package paymentrequest

import (
	"context"
	"time"

	"parkpay/internal/models"
	"parkpay/internal/services/transfer"
)

// Service manages payment requests: a payee asks for a fixed amount and a
// payer fulfills it with a transfer.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*models.PaymentRequest, error)
	Get(ctx context.Context, refOrID string) (*models.PaymentRequest, error)
	// Fulfill also accepts a scanned QR payload in place of the reference.
	Fulfill(ctx context.Context, refOrID, payerWalletID string) (*Fulfillment, error)
	Cancel(ctx context.Context, refOrID string) (*models.PaymentRequest, error)
	QRImage(ctx context.Context, refOrID string) ([]byte, error)
	ListForWallet(ctx context.Context, walletID string, status models.PaymentRequestStatus) ([]models.PaymentRequest, error)
}

// Transferer is the part of the transfer engine used to settle requests.
type Transferer interface {
	TransferWith(ctx context.Context, req transfer.TransferRequest, afterPost transfer.AfterPost) (*transfer.Result, error)
}

type CreateRequest struct {
	PayeeWalletID string
	// PayerWalletID binds the request to one payer. Open requests carry a QR payload.
	PayerWalletID string
	Amount        int64
	Description   string
	// TTL defaults to Config.DefaultTTL when zero.
	TTL time.Duration
}

// Fulfillment is a completed request and the transfer that paid it.
type Fulfillment struct {
	Request  *models.PaymentRequest `json:"payment_request"`
	Transfer *transfer.Result       `json:"transfer"`
}

type Config struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration
	// QRBaseURL prefixes the QR payload, e.g. parkpay://pay.
	QRBaseURL string
	Clock     func() time.Time
}

const (
	// RefPrefix starts every payment reference.
	RefPrefix = "PR-"
	// TransferReferencePrefix derives the transfer reference from the request id.
	TransferReferencePrefix = models.PaymentRequestReferencePrefix

	defaultTTL       = 15 * time.Minute
	defaultMaxTTL    = 7 * 24 * time.Hour
	defaultQRBaseURL = "parkpay://pay"
	qrImageSize      = 256
)

const (
	opCreate  = "payment_request_create"
	opFulfill = "payment_request_fulfill"
	opCancel  = "payment_request_cancel"
)
