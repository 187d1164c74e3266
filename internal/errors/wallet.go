package errors

var (
	ErrInsufficientFunds = &DomainError{
		Code:    "INSUFFICIENT_FUNDS",
		Message: "insufficient wallet balance",
	}
	ErrInvalidAmount = &DomainError{
		Code:    "INVALID_AMOUNT",
		Message: "amount must be a positive number of minor units",
	}
	ErrWalletNotFound = &DomainError{
		Code:    "WALLET_NOT_FOUND",
		Message: "wallet not found",
	}
	ErrWalletNotActive = &DomainError{
		Code:    "WALLET_NOT_ACTIVE",
		Message: "wallet is not active",
	}
	ErrWalletExists = &DomainError{
		Code:    "WALLET_EXISTS",
		Message: "owner already has a wallet of this type",
	}
	ErrWalletNotEmpty = &DomainError{
		Code:    "WALLET_NOT_EMPTY",
		Message: "wallet balance must be zero before closing",
	}
	ErrLimitExceeded = &DomainError{
		Code:    "LIMIT_EXCEEDED",
		Message: "spending limit exceeded",
	}
	ErrInvalidLimits = &DomainError{
		Code:    "INVALID_LIMITS",
		Message: "limits must not be negative",
	}
	ErrInvalidCurrency = &DomainError{
		Code:    "INVALID_CURRENCY",
		Message: "currency must be a three letter ISO code",
	}
	ErrNotOwner = &DomainError{
		Code:    "NOT_OWNER",
		Message: "wallet does not belong to the caller",
	}
)
