package handlers

import (
	"parkpay/internal/services/transfer"
	"parkpay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// TransferHandler exposes every money movement of the transfer engine.
type TransferHandler struct {
	service transfer.Service
	logger  *zap.Logger
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(s transfer.Service, logger *zap.Logger) *TransferHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferHandler{service: s, logger: logger}
}

type transferRequest struct {
	FromWalletID string `json:"from_wallet_id" validate:"required"`
	ToWalletID   string `json:"to_wallet_id" validate:"required"`
	Amount       int64  `json:"amount" validate:"gt=0"`
	ReferenceID  string `json:"reference_id" validate:"reference"`
	Note         string `json:"note" validate:"max=255"`
}

type refundRequest struct {
	OriginalReferenceID string `json:"original_reference_id" validate:"required,ledger_reference"`
	Note                string `json:"note" validate:"max=255"`
}

type bankMovementRequest struct {
	WalletID      string `json:"wallet_id" validate:"required"`
	BankAccountID string `json:"bank_account_id" validate:"required"`
	Amount        int64  `json:"amount" validate:"gt=0"`
	ReferenceID   string `json:"reference_id" validate:"reference"`
}

type parkingFeeRequest struct {
	WalletID    string `json:"wallet_id" validate:"required"`
	TokenID     string `json:"token_id" validate:"required"`
	Amount      int64  `json:"amount" validate:"gt=0"`
	ReferenceID string `json:"reference_id" validate:"reference"`
}

type settleRequest struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason" validate:"max=255"`
}

// Transfer handles POST /transfers.
func (h *TransferHandler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	ref, err := referenceID(c, req.ReferenceID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.service.Transfer(c.UserContext(), transfer.TransferRequest{
		FromWalletID: req.FromWalletID,
		ToWalletID:   req.ToWalletID,
		Amount:       req.Amount,
		ReferenceID:  ref,
		Note:         req.Note,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return movement(c, "transfer completed", result)
}

// Refund handles POST /transfers/refund. Only the receiving side may refund.
func (h *TransferHandler) Refund(c *fiber.Ctx) error {
	var req refundRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.service.Refund(c.UserContext(), transfer.RefundRequest{
		OriginalReferenceID: req.OriginalReferenceID,
		Note:                req.Note,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return movement(c, "refund completed", result)
}

// Deposit handles POST /deposits.
func (h *TransferHandler) Deposit(c *fiber.Ctx) error {
	req, ref, err := h.bankMovement(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.service.Deposit(c.UserContext(), transfer.DepositRequest{
		WalletID:      req.WalletID,
		BankAccountID: req.BankAccountID,
		Amount:        req.Amount,
		ReferenceID:   ref,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return movement(c, "deposit accepted", result)
}

// Withdraw handles POST /withdrawals.
func (h *TransferHandler) Withdraw(c *fiber.Ctx) error {
	req, ref, err := h.bankMovement(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.service.Withdraw(c.UserContext(), transfer.WithdrawRequest{
		WalletID:      req.WalletID,
		BankAccountID: req.BankAccountID,
		Amount:        req.Amount,
		ReferenceID:   ref,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return movement(c, "withdrawal accepted", result)
}

func (h *TransferHandler) bankMovement(c *fiber.Ctx) (bankMovementRequest, string, error) {
	var req bankMovementRequest
	if err := parseBody(c, &req); err != nil {
		return req, "", err
	}
	ref, err := referenceID(c, req.ReferenceID)
	return req, ref, err
}

// PayParkingFee handles POST /system/parking-fees, called by gate controllers
// when a vehicle exits.
func (h *TransferHandler) PayParkingFee(c *fiber.Ctx) error {
	var req parkingFeeRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	ref, err := referenceID(c, req.ReferenceID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.service.PayParkingFee(c.UserContext(), transfer.ParkingFeeRequest{
		WalletID:    req.WalletID,
		TokenID:     req.TokenID,
		Amount:      req.Amount,
		ReferenceID: ref,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return movement(c, "parking fee paid", result)
}

// Settle handles POST /system/deposits/:ref/settle with the bank's verdict
// on a pending deposit or withdrawal.
func (h *TransferHandler) Settle(c *fiber.Ctx) error {
	var req settleRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.service.Settle(c.UserContext(), c.Params("ref"), transfer.SettlementOutcome{
		Success: req.Success,
		Reason:  req.Reason,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return movement(c, "settlement recorded", result)
}

// movement answers 201 for a new movement and 200 for a replay.
func movement(c *fiber.Ctx, message string, result *transfer.Result) error {
	if result.Replayed {
		return response.Success(c, message, result)
	}
	return response.Created(c, message, result)
}
