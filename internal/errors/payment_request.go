package errors

var (
	ErrPaymentRequestNotFound = &DomainError{
		Code:    "PAYMENT_REQUEST_NOT_FOUND",
		Message: "payment request not found",
	}
	ErrPaymentRequestExpired = &DomainError{
		Code:    "PAYMENT_REQUEST_EXPIRED",
		Message: "payment request has expired",
	}
	ErrPaymentRequestNotPending = &DomainError{
		Code:    "PAYMENT_REQUEST_NOT_PENDING",
		Message: "payment request is no longer pending",
	}
	ErrPayerMismatch = &DomainError{
		Code:    "PAYER_MISMATCH",
		Message: "payment request is bound to a different payer",
	}
	ErrInvalidExpiry = &DomainError{
		Code:    "INVALID_EXPIRY",
		Message: "expiry is outside the allowed range",
	}
)
