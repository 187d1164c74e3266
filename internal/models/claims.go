package models

import "github.com/golang-jwt/jwt/v5"

// Roles carried in access tokens.
const (
	RoleUser     = "user"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
	RoleSystem   = "system"
)

// Application permissions
const (
	PermissionWalletRead    = "wallet:read"
	PermissionWalletWrite   = "wallet:write"
	PermissionWalletManage  = "wallet:manage"
	PermissionTransferWrite = "transfer:write"
	PermissionPaymentWrite  = "payment:write"
	PermissionDepositWrite  = "deposit:write"
	PermissionRefundWrite   = "refund:write"
)

// UserClaims is issued by the external auth service; this service only verifies it.
type UserClaims struct {
	jwt.RegisteredClaims
	UserID      string   `json:"user_id"`
	Role        string   `json:"role"`
	LotIDs      []string `json:"lot_ids,omitempty"`
	Permissions []string `json:"permissions"`
}

// HasPermission checks if the claims include a specific permission
func (c *UserClaims) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// GetDefaultPermissions returns default permissions based on role
func GetDefaultPermissions(role string) []string {
	switch role {
	case RoleAdmin:
		return []string{
			PermissionWalletRead,
			PermissionWalletWrite,
			PermissionWalletManage,
			PermissionTransferWrite,
			PermissionPaymentWrite,
			PermissionDepositWrite,
			PermissionRefundWrite,
		}
	case RoleOperator:
		return []string{
			PermissionWalletRead,
			PermissionPaymentWrite,
			PermissionRefundWrite,
		}
	case RoleUser:
		return []string{
			PermissionWalletRead,
			PermissionWalletWrite,
			PermissionTransferWrite,
			PermissionPaymentWrite,
			PermissionDepositWrite,
		}
	default:
		return []string{}
	}
}
