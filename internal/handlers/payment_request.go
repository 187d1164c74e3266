package handlers

import (
	"time"

	"parkpay/internal/services/paymentrequest"
	"parkpay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// PaymentRequestHandler exposes payment requests and their QR codes.
type PaymentRequestHandler struct {
	service paymentrequest.Service
	logger  *zap.Logger
}

func NewPaymentRequestHandler(s paymentrequest.Service, logger *zap.Logger) *PaymentRequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentRequestHandler{service: s, logger: logger}
}

type createPaymentRequest struct {
	PayeeWalletID string `json:"payee_wallet_id" validate:"required"`
	PayerWalletID string `json:"payer_wallet_id"`
	Amount        int64  `json:"amount" validate:"gt=0"`
	Description   string `json:"description" validate:"max=255"`
	// ExpiresInSeconds falls back to the configured default when zero.
	ExpiresInSeconds int64 `json:"expires_in_seconds" validate:"gte=0"`
}

type fulfillRequest struct {
	PayerWalletID string `json:"payer_wallet_id" validate:"required"`
}

type scanRequest struct {
	Payload       string `json:"payload" validate:"required,max=512"`
	PayerWalletID string `json:"payer_wallet_id" validate:"required"`
}

// Create handles POST /payment-requests.
func (h *PaymentRequestHandler) Create(c *fiber.Ctx) error {
	var req createPaymentRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	pr, err := h.service.Create(c.UserContext(), paymentrequest.CreateRequest{
		PayeeWalletID: req.PayeeWalletID,
		PayerWalletID: req.PayerWalletID,
		Amount:        req.Amount,
		Description:   req.Description,
		TTL:           time.Duration(req.ExpiresInSeconds) * time.Second,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Created(c, "payment request created", pr)
}

// Get handles GET /payment-requests/:ref.
func (h *PaymentRequestHandler) Get(c *fiber.Ctx) error {
	pr, err := h.service.Get(c.UserContext(), c.Params("ref"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "payment request retrieved", pr)
}

// QRCode handles GET /payment-requests/:ref/qr.png.
func (h *PaymentRequestHandler) QRCode(c *fiber.Ctx) error {
	png, err := h.service.QRImage(c.UserContext(), c.Params("ref"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(png)
}

// Fulfill handles POST /payment-requests/:ref/fulfill.
func (h *PaymentRequestHandler) Fulfill(c *fiber.Ctx) error {
	var req fulfillRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	return h.fulfill(c, c.Params("ref"), req.PayerWalletID)
}

// Scan handles POST /payment-requests/scan with the raw payload read from a QR code.
func (h *PaymentRequestHandler) Scan(c *fiber.Ctx) error {
	var req scanRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	return h.fulfill(c, req.Payload, req.PayerWalletID)
}

func (h *PaymentRequestHandler) fulfill(c *fiber.Ctx, refOrPayload, payerWalletID string) error {
	result, err := h.service.Fulfill(c.UserContext(), refOrPayload, payerWalletID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if result.Transfer != nil && result.Transfer.Replayed {
		return response.Success(c, "payment request fulfilled", result)
	}
	return response.Created(c, "payment request fulfilled", result)
}

// Cancel handles POST /payment-requests/:ref/cancel.
func (h *PaymentRequestHandler) Cancel(c *fiber.Ctx) error {
	pr, err := h.service.Cancel(c.UserContext(), c.Params("ref"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "payment request cancelled", pr)
}
