package errors

var (
	ErrSelfTransfer = &DomainError{
		Code:    "SELF_TRANSFER",
		Message: "sender and receiver must differ",
	}
	ErrCurrencyMismatch = &DomainError{
		Code:    "CURRENCY_MISMATCH",
		Message: "wallet currencies do not match",
	}
	ErrMissingReference = &DomainError{
		Code:    "MISSING_REFERENCE",
		Message: "reference id is required",
	}
	ErrReferenceTooLong = &DomainError{
		Code:    "REFERENCE_TOO_LONG",
		Message: "reference id must be at most 128 characters",
	}
	ErrReservedReference = &DomainError{
		Code:    "RESERVED_REFERENCE",
		Message: "reference id uses a namespace reserved for derived entries",
	}
	ErrReferenceReused = &DomainError{
		Code:    "REFERENCE_REUSED",
		Message: "reference id was already used for a different request",
	}
	ErrConflictRetryExhausted = &DomainError{
		Code:    "CONFLICT_RETRY_EXHAUSTED",
		Message: "wallet is busy, please retry",
	}
	ErrTransactionNotFound = &DomainError{
		Code:    "TRANSACTION_NOT_FOUND",
		Message: "transaction not found",
	}
	ErrTransactionNotPending = &DomainError{
		Code:    "TRANSACTION_NOT_PENDING",
		Message: "transaction is already settled",
	}
	ErrNotRefundable = &DomainError{
		Code:    "NOT_REFUNDABLE",
		Message: "transaction cannot be refunded",
	}
	ErrBankAccountNotFound = &DomainError{
		Code:    "BANK_ACCOUNT_NOT_FOUND",
		Message: "bank account not found",
	}
	ErrBankAccountNotVerified = &DomainError{
		Code:    "BANK_ACCOUNT_NOT_VERIFIED",
		Message: "bank account is not verified",
	}
	ErrBankInsufficientFunds = &DomainError{
		Code:    "BANK_INSUFFICIENT_FUNDS",
		Message: "insufficient funds in linked bank account",
	}
	ErrTokenNotFound = &DomainError{
		Code:    "TOKEN_NOT_FOUND",
		Message: "parking token not found",
	}
	ErrTokenNotActive = &DomainError{
		Code:    "TOKEN_NOT_ACTIVE",
		Message: "parking token is not active",
	}
	ErrLotWalletMissing = &DomainError{
		Code:    "LOT_WALLET_MISSING",
		Message: "parking lot has no merchant wallet",
	}
)
