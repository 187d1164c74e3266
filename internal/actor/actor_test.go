package actor

import (
	"context"
	"testing"

	"parkpay/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestActor_CanUse(t *testing.T) {
	userWallet := &models.Wallet{OwnerType: models.OwnerTypeUser, OwnerID: "u-1"}
	lotWallet := &models.Wallet{OwnerType: models.OwnerTypeParkingLot, OwnerID: "lot-1"}

	tests := []struct {
		name   string
		actor  Actor
		wallet *models.Wallet
		want   bool
	}{
		{name: "owner", actor: User("u-1"), wallet: userWallet, want: true},
		{name: "other user", actor: User("u-2"), wallet: userWallet, want: false},
		{name: "anonymous", actor: Actor{}, wallet: userWallet, want: false},
		{name: "system", actor: System(), wallet: userWallet, want: true},
		{name: "admin", actor: Actor{UserID: "a", Role: models.RoleAdmin}, wallet: lotWallet, want: true},
		{name: "lot operator", actor: Actor{UserID: "op", Role: models.RoleOperator, LotIDs: []string{"lot-1"}}, wallet: lotWallet, want: true},
		{name: "foreign operator", actor: Actor{UserID: "op", Role: models.RoleOperator, LotIDs: []string{"lot-2"}}, wallet: lotWallet, want: false},
		{name: "user on lot wallet", actor: User("lot-1"), wallet: lotWallet, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.actor.CanUse(tt.wallet))
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithActor(context.Background(), User("u-9"))
	got, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u-9", got.UserID)
}
