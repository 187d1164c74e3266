package wallet

// Default configuration values
const (
	DefaultCurrency = "INR"
)

// Operation names used for metrics
const (
	opProvision = "wallet_provision"
	opBalance   = "wallet_balance"
	opStatus    = "wallet_status"
	opLimits    = "wallet_limits"
)
