package handlers

import (
	"context"

	"parkpay/internal/models"
	"parkpay/internal/services/paymentrequest"
	"parkpay/internal/services/wallet"
	"parkpay/internal/utils"
	"parkpay/internal/utils/pagination"
	"parkpay/internal/utils/response"
	"parkpay/internal/validation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// WalletHandler exposes wallet provisioning, reads and administration.
type WalletHandler struct {
	service  wallet.Service
	requests paymentrequest.Service
	logger   *zap.Logger
}

func NewWalletHandler(service wallet.Service, requests paymentrequest.Service, logger *zap.Logger) *WalletHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WalletHandler{service: service, requests: requests, logger: logger}
}

type provisionRequest struct {
	OwnerType  models.OwnerType  `json:"owner_type" validate:"omitempty,oneof=USER PARKING_LOT PLATFORM"`
	OwnerID    string            `json:"owner_id" validate:"max=64"`
	WalletType models.WalletType `json:"wallet_type" validate:"omitempty,oneof=PERSONAL MERCHANT"`
	Currency   string            `json:"currency" validate:"omitempty,currency"`
}

type limitsRequest struct {
	DailyLimit     int64 `json:"daily_limit" validate:"gte=0"`
	MonthlyLimit   int64 `json:"monthly_limit" validate:"gte=0"`
	SingleTxnLimit int64 `json:"single_txn_limit" validate:"gte=0"`
}

// Provision handles POST /wallets. With an empty body it opens the caller's
// personal wallet.
func (h *WalletHandler) Provision(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	var req provisionRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return respondError(c, h.logger, err)
		}
	}
	if req.OwnerType == "" {
		req.OwnerType = models.OwnerTypeUser
	}
	if req.OwnerID == "" && req.OwnerType == models.OwnerTypeUser {
		req.OwnerID = claims.UserID
	}
	if req.WalletType == "" {
		req.WalletType = models.WalletTypePersonal
		if req.OwnerType != models.OwnerTypeUser {
			req.WalletType = models.WalletTypeMerchant
		}
	}
	v := validation.New()
	v.Check(req.OwnerID != "", "owner_id", "is required")
	if err := v.Error(); err != nil {
		return respondError(c, h.logger, err)
	}

	w, err := h.service.Provision(c.UserContext(), wallet.ProvisionRequest{
		OwnerType:  req.OwnerType,
		OwnerID:    req.OwnerID,
		WalletType: req.WalletType,
		Currency:   req.Currency,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Created(c, "wallet ready", w)
}

// GetWallet handles GET /wallets/:id.
func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	w, err := h.service.GetWallet(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "wallet retrieved", w)
}

// GetBalance handles GET /wallets/:id/balance; it is served from the cache when warm.
func (h *WalletHandler) GetBalance(c *fiber.Ctx) error {
	b, err := h.service.GetBalance(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "balance retrieved", b)
}

// History handles GET /wallets/:id/history?page=&limit=.
func (h *WalletHandler) History(c *fiber.Ctx) error {
	p := pagination.ParseFromRequest(c, validation.DefaultPageSize, validation.MaxPageSize)
	entries, total, err := h.service.History(c.UserContext(), c.Params("id"), p.Limit, p.Offset)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	p.Total = total
	return c.JSON(pagination.Response(p, entries))
}

// PaymentRequests handles GET /wallets/:id/payment-requests?status=.
func (h *WalletHandler) PaymentRequests(c *fiber.Ctx) error {
	status := models.PaymentRequestStatus(c.Query("status"))
	requests, err := h.requests.ListForWallet(c.UserContext(), c.Params("id"), status)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "payment requests retrieved", requests)
}

func (h *WalletHandler) Freeze(c *fiber.Ctx) error {
	return h.changeStatus(c, h.service.Freeze, "wallet frozen")
}

func (h *WalletHandler) Unfreeze(c *fiber.Ctx) error {
	return h.changeStatus(c, h.service.Unfreeze, "wallet unfrozen")
}

func (h *WalletHandler) Close(c *fiber.Ctx) error {
	return h.changeStatus(c, h.service.Close, "wallet closed")
}

func (h *WalletHandler) changeStatus(c *fiber.Ctx, change func(ctx context.Context, walletID string) (*models.Wallet, error), message string) error {
	w, err := change(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, message, w)
}

// SetLimits handles PUT /wallets/:id/limits. Zero means uncapped.
func (h *WalletHandler) SetLimits(c *fiber.Ctx) error {
	var req limitsRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	w, err := h.service.SetLimits(c.UserContext(), c.Params("id"), models.WalletLimits{
		Daily:   req.DailyLimit,
		Monthly: req.MonthlyLimit,
		Single:  req.SingleTxnLimit,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "limits updated", w)
}
