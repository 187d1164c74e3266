package handlers

import (
	"errors"

	apperrors "parkpay/internal/errors"
	"parkpay/internal/utils/response"
	"parkpay/internal/validation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader may carry the reference id instead of the body field.
const IdempotencyKeyHeader = "Idempotency-Key"

var (
	errInvalidBody = &apperrors.DomainError{
		Code:    response.CodeBadRequest,
		Message: "request body is not valid JSON",
	}
	errReferenceMismatch = &apperrors.DomainError{
		Code:    "REFERENCE_MISMATCH",
		Message: "Idempotency-Key header and reference_id differ",
	}
)

// statusByCode maps domain error codes to HTTP statuses. Codes not listed
// are business rule failures and map to 422.
var statusByCode = map[string]int{
	response.CodeBadRequest:                  fiber.StatusBadRequest,
	errReferenceMismatch.Code:                fiber.StatusBadRequest,
	apperrors.ErrInvalidAmount.Code:          fiber.StatusBadRequest,
	apperrors.ErrMissingReference.Code:       fiber.StatusBadRequest,
	apperrors.ErrReferenceTooLong.Code:       fiber.StatusBadRequest,
	apperrors.ErrReservedReference.Code:      fiber.StatusBadRequest,
	apperrors.ErrInvalidCurrency.Code:        fiber.StatusBadRequest,
	apperrors.ErrInvalidLimits.Code:          fiber.StatusBadRequest,
	apperrors.ErrInvalidExpiry.Code:          fiber.StatusBadRequest,
	apperrors.ErrWalletNotFound.Code:         fiber.StatusNotFound,
	apperrors.ErrTransactionNotFound.Code:    fiber.StatusNotFound,
	apperrors.ErrBankAccountNotFound.Code:    fiber.StatusNotFound,
	apperrors.ErrTokenNotFound.Code:          fiber.StatusNotFound,
	apperrors.ErrPaymentRequestNotFound.Code: fiber.StatusNotFound,
	apperrors.ErrNotOwner.Code:               fiber.StatusForbidden,
	apperrors.ErrPayerMismatch.Code:          fiber.StatusForbidden,
	apperrors.ErrConflictRetryExhausted.Code: fiber.StatusConflict,
	apperrors.ErrReferenceReused.Code:        fiber.StatusConflict,
}

// respondError writes err with the status its kind maps to.
func respondError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return response.ValidationError(c, verr.Fields)
	}

	var limitErr *apperrors.LimitExceededError
	if errors.As(err, &limitErr) {
		return response.ErrorWithDetails(c, fiber.StatusUnprocessableEntity, apperrors.ErrLimitExceeded.Code, limitErr.Error(),
			map[string]string{"limit": string(limitErr.Kind)})
	}

	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		status, ok := statusByCode[domainErr.Code]
		if !ok {
			status = fiber.StatusUnprocessableEntity
		}
		return response.Error(c, status, domainErr.Code, domainErr.Message)
	}

	logger.Error("request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))
	return response.ServerError(c)
}

// parseBody decodes the JSON body into dst and runs its validation tags.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return errInvalidBody
	}
	return validation.Struct(dst)
}

// referenceID picks the idempotency key from the header or the body field.
func referenceID(c *fiber.Ctx, fromBody string) (string, error) {
	header := c.Get(IdempotencyKeyHeader)
	switch {
	case header == "":
		return fromBody, nil
	case fromBody != "" && fromBody != header:
		return "", errReferenceMismatch
	default:
		return header, nil
	}
}
