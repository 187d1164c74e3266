// Package actor carries the authenticated caller through request contexts so
// services can check wallet ownership inside their transactions.
package actor

import (
	"context"

	"parkpay/internal/models"
)

type contextKey string

const actorContextKey contextKey = "actor"

// Actor is the caller on whose behalf an operation runs.
type Actor struct {
	UserID string
	Role   string
	LotIDs []string
}

// System is the actor used by gate controllers and internal jobs.
func System() Actor {
	return Actor{UserID: "system", Role: models.RoleSystem}
}

// User is a plain wallet holder.
func User(userID string) Actor {
	return Actor{UserID: userID, Role: models.RoleUser}
}

// FromClaims maps verified token claims to an actor.
func FromClaims(c *models.UserClaims) Actor {
	return Actor{UserID: c.UserID, Role: c.Role, LotIDs: c.LotIDs}
}

func (a Actor) IsSystem() bool {
	return a.Role == models.RoleSystem
}

// Privileged actors may act on any wallet.
func (a Actor) Privileged() bool {
	return a.Role == models.RoleSystem || a.Role == models.RoleAdmin
}

// CanUse reports whether the actor may move funds out of or manage the wallet.
func (a Actor) CanUse(w *models.Wallet) bool {
	if a.Privileged() {
		return true
	}
	switch w.OwnerType {
	case models.OwnerTypeUser:
		return a.UserID != "" && w.OwnerID == a.UserID
	case models.OwnerTypeParkingLot:
		if a.Role != models.RoleOperator {
			return false
		}
		for _, id := range a.LotIDs {
			if id == w.OwnerID {
				return true
			}
		}
	}
	return false
}

// WithActor returns a copy of ctx carrying a.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, a)
}

// FromContext returns the actor stored in ctx, if any.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorContextKey).(Actor)
	return a, ok
}
