package transfer

import (
	"context"
	"testing"

	apperrors "parkpay/internal/errors"
	"parkpay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type parkingFixture struct {
	lot       *models.ParkingLot
	slot      *models.ParkingSlot
	token     *models.ParkingToken
	lotWallet *models.Wallet
}

func (h *harness) parking(t *testing.T, withWallet bool) parkingFixture {
	t.Helper()
	ctx := context.Background()
	f := parkingFixture{
		lot: &models.ParkingLot{Name: "Central", Currency: "INR"},
	}
	require.NoError(t, h.mem.Parking().CreateLot(ctx, f.lot))
	f.slot = &models.ParkingSlot{LotID: f.lot.ID, Code: "A1"}
	require.NoError(t, h.mem.Parking().CreateSlot(ctx, f.slot))
	f.token = &models.ParkingToken{LotID: f.lot.ID, SlotID: f.slot.ID, VehiclePlate: "KA01AB1234"}
	require.NoError(t, h.mem.Parking().OpenToken(ctx, f.token))
	if withWallet {
		f.lotWallet = h.wallet(t, models.OwnerTypeParkingLot, f.lot.ID, models.WalletTypeMerchant, 0, models.WalletLimits{})
	}
	return f
}

func (h *harness) bankAccount(t *testing.T, ownerID string, verified bool, sandbox int64) *models.BankAccount {
	t.Helper()
	acct := &models.BankAccount{OwnerID: ownerID, BankName: "Test Bank", AccountMask: "XXXX1234", Currency: "INR", Verified: verified, SandboxBalance: sandbox}
	require.NoError(t, h.mem.BankAccounts().Create(context.Background(), acct))
	return acct
}

func (h *harness) sandboxBalance(t *testing.T, accountID string) int64 {
	t.Helper()
	acct, err := h.mem.BankAccounts().GetByID(context.Background(), accountID)
	require.NoError(t, err)
	return acct.SandboxBalance
}

func TestPayParkingFee(t *testing.T) {
	h := newHarness(t, Config{}, 0)
	f := h.parking(t, true)
	payer := h.user(t, "driver", 5_000)

	res, err := h.svc.PayParkingFee(systemCtx(), ParkingFeeRequest{WalletID: payer.ID, TokenID: f.token.ID, Amount: 4_000})
	require.NoError(t, err)
	assert.Equal(t, ParkingReferencePrefix+f.token.ID, res.Transaction.ReferenceID)
	assert.Equal(t, models.TransactionTypePayment, res.Transaction.Type)
	assert.Equal(t, f.token.ID, res.Transaction.Metadata["token_id"])

	assert.Equal(t, int64(1_000), h.balance(t, payer.ID))
	assert.Equal(t, int64(4_000), h.balance(t, f.lotWallet.ID))

	token, err := h.mem.Parking().GetToken(context.Background(), f.token.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TokenStatusCompleted, token.Status)
	assert.Equal(t, int64(4_000), token.Fee)

	slot, err := h.mem.Parking().GetSlot(context.Background(), f.slot.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotStatusAvailable, slot.Status)

	replay, err := h.svc.PayParkingFee(systemCtx(), ParkingFeeRequest{WalletID: payer.ID, TokenID: f.token.ID, Amount: 4_000})
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Equal(t, int64(1_000), h.balance(t, payer.ID))

	_, err = h.svc.PayParkingFee(systemCtx(), ParkingFeeRequest{WalletID: payer.ID, TokenID: f.token.ID, Amount: 500, ReferenceID: "gate-retry"})
	assert.ErrorIs(t, err, apperrors.ErrTokenNotActive)
}

func TestPayParkingFee_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		ctx     context.Context
		wallet  bool
		balance int64
		tokenID func(f parkingFixture) string
		wantErr error
	}{
		{name: "unknown token", ctx: systemCtx(), wallet: true, balance: 5_000, tokenID: func(parkingFixture) string { return "missing" }, wantErr: apperrors.ErrTokenNotFound},
		{name: "lot has no wallet", ctx: systemCtx(), wallet: false, balance: 5_000, wantErr: apperrors.ErrLotWalletMissing},
		{name: "insufficient funds", ctx: systemCtx(), wallet: true, balance: 100, wantErr: apperrors.ErrInsufficientFunds},
		{name: "driver pays from someone else's wallet", ctx: userCtx("stranger"), wallet: true, balance: 5_000, wantErr: apperrors.ErrNotOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{}, 0)
			f := h.parking(t, tt.wallet)
			payer := h.user(t, "driver", tt.balance)
			tokenID := f.token.ID
			if tt.tokenID != nil {
				tokenID = tt.tokenID(f)
			}

			_, err := h.svc.PayParkingFee(tt.ctx, ParkingFeeRequest{WalletID: payer.ID, TokenID: tokenID, Amount: 4_000})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.balance, h.balance(t, payer.ID))

			token, err := h.mem.Parking().GetToken(context.Background(), f.token.ID)
			require.NoError(t, err)
			assert.Equal(t, models.TokenStatusActive, token.Status)
		})
	}
}

func TestDeposit_Sandbox(t *testing.T) {
	tests := []struct {
		name        string
		ctx         context.Context
		account     func(t *testing.T, h *harness) *models.BankAccount
		amount      int64
		wantErr     error
		wantBalance int64
	}{
		{
			name:        "credits wallet from bank mirror",
			ctx:         userCtx("alice"),
			account:     func(t *testing.T, h *harness) *models.BankAccount { return h.bankAccount(t, "alice", true, 10_000) },
			amount:      3_000,
			wantBalance: 3_000,
		},
		{
			name:    "bank mirror short",
			ctx:     userCtx("alice"),
			account: func(t *testing.T, h *harness) *models.BankAccount { return h.bankAccount(t, "alice", true, 1_000) },
			amount:  3_000,
			wantErr: apperrors.ErrBankInsufficientFunds,
		},
		{
			name:    "unverified account",
			ctx:     userCtx("alice"),
			account: func(t *testing.T, h *harness) *models.BankAccount { return h.bankAccount(t, "alice", false, 10_000) },
			amount:  3_000,
			wantErr: apperrors.ErrBankAccountNotVerified,
		},
		{
			name:    "someone else's account",
			ctx:     userCtx("alice"),
			account: func(t *testing.T, h *harness) *models.BankAccount { return h.bankAccount(t, "bob", true, 10_000) },
			amount:  3_000,
			wantErr: apperrors.ErrNotOwner,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{SandboxBanking: true}, 0)
			w := h.user(t, "alice", 0)
			acct := tt.account(t, h)

			res, err := h.svc.Deposit(tt.ctx, DepositRequest{WalletID: w.ID, BankAccountID: acct.ID, Amount: tt.amount, ReferenceID: "dep-1"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, acct.SandboxBalance, h.sandboxBalance(t, acct.ID))
			} else {
				require.NoError(t, err)
				assert.Equal(t, models.TransactionStatusCompleted, res.Transaction.Status)
				assert.Nil(t, res.Transaction.SenderWalletID)
				assert.Equal(t, acct.SandboxBalance-tt.amount, h.sandboxBalance(t, acct.ID))
			}
			assert.Equal(t, tt.wantBalance, h.balance(t, w.ID))
		})
	}
}

func TestDeposit_LiveSettlement(t *testing.T) {
	h := newHarness(t, Config{}, 0)
	w := h.user(t, "alice", 0)
	acct := h.bankAccount(t, "alice", true, 0)
	ctx := userCtx("alice")

	res, err := h.svc.Deposit(ctx, DepositRequest{WalletID: w.ID, BankAccountID: acct.ID, Amount: 3_000, ReferenceID: "dep-live"})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, res.Transaction.Status)
	assert.Empty(t, res.Balances)
	assert.Zero(t, h.balance(t, w.ID))
	assert.Empty(t, h.notifier.settled)

	_, err = h.svc.Settle(ctx, "dep-live", SettlementOutcome{Success: true})
	assert.ErrorIs(t, err, apperrors.ErrNotOwner)

	settled, err := h.svc.Settle(systemCtx(), "dep-live", SettlementOutcome{Success: true})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, settled.Transaction.Status)
	require.NotNil(t, settled.Transaction.BalanceAfter)
	assert.Equal(t, int64(3_000), *settled.Transaction.BalanceAfter)
	assert.Equal(t, int64(3_000), h.balance(t, w.ID))
	require.Len(t, h.notifier.settled, 1)

	again, err := h.svc.Settle(systemCtx(), "dep-live", SettlementOutcome{Success: true})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, int64(3_000), h.balance(t, w.ID))

	_, err = h.svc.Settle(systemCtx(), "dep-live", SettlementOutcome{Success: false, Reason: "late reject"})
	assert.ErrorIs(t, err, apperrors.ErrTransactionNotPending)

	_, err = h.svc.Deposit(ctx, DepositRequest{WalletID: w.ID, BankAccountID: acct.ID, Amount: 500, ReferenceID: "dep-bounce"})
	require.NoError(t, err)
	failed, err := h.svc.Settle(systemCtx(), "dep-bounce", SettlementOutcome{Success: false, Reason: "insufficient funds at bank"})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, failed.Transaction.Status)
	assert.Equal(t, int64(3_000), h.balance(t, w.ID))

	_, err = h.svc.Settle(systemCtx(), "nope", SettlementOutcome{Success: true})
	assert.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
}

func TestWithdraw_SandboxChargesFee(t *testing.T) {
	h := newHarness(t, Config{SandboxBanking: true, WithdrawalFeeBPS: 100}, 0)
	platform := h.wallet(t, models.OwnerTypePlatform, "parkpay", models.WalletTypeMerchant, 0, models.WalletLimits{})
	h = h.reconfigure(Config{SandboxBanking: true, WithdrawalFeeBPS: 100, PlatformFeeWalletID: platform.ID})
	w := h.user(t, "alice", 10_000)
	acct := h.bankAccount(t, "alice", true, 0)

	res, err := h.svc.Withdraw(userCtx("alice"), WithdrawRequest{WalletID: w.ID, BankAccountID: acct.ID, Amount: 5_000, ReferenceID: "wd-1"})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, res.Transaction.Status)
	assert.Equal(t, int64(50), res.Transaction.Fee)
	require.Len(t, res.Related, 1)
	assert.Equal(t, models.TransactionTypeFee, res.Related[0].Type)
	assert.Equal(t, "wd-1"+FeeReferenceSuffix, res.Related[0].ReferenceID)

	assert.Equal(t, int64(4_950), h.balance(t, w.ID))
	assert.Equal(t, int64(50), h.balance(t, platform.ID))
	assert.Equal(t, int64(5_000), h.sandboxBalance(t, acct.ID))

	_, err = h.svc.Withdraw(userCtx("alice"), WithdrawRequest{WalletID: w.ID, BankAccountID: acct.ID, Amount: 4_950, ReferenceID: "wd-2"})
	assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds, "fee must be covered too")
}

func TestWithdraw_LiveFailureReturnsFundsAndFee(t *testing.T) {
	h := newHarness(t, Config{}, 0)
	platform := h.wallet(t, models.OwnerTypePlatform, "parkpay", models.WalletTypeMerchant, 0, models.WalletLimits{})
	h = h.reconfigure(Config{WithdrawalFeeBPS: 100, PlatformFeeWalletID: platform.ID})
	w := h.user(t, "alice", 10_000)
	acct := h.bankAccount(t, "alice", true, 0)

	res, err := h.svc.Withdraw(userCtx("alice"), WithdrawRequest{WalletID: w.ID, BankAccountID: acct.ID, Amount: 5_000, ReferenceID: "wd-live"})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, res.Transaction.Status)
	assert.Equal(t, int64(4_950), h.balance(t, w.ID))
	feeEntryID := res.Related[0].ID

	failed, err := h.svc.Settle(systemCtx(), "wd-live", SettlementOutcome{Success: false, Reason: "account closed"})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, failed.Transaction.Status)
	require.Len(t, failed.Related, 1)
	assert.Equal(t, RefundReferencePrefix+feeEntryID, failed.Related[0].ReferenceID)

	assert.Equal(t, int64(10_000), h.balance(t, w.ID))
	assert.Zero(t, h.balance(t, platform.ID))
	assert.Zero(t, h.sandboxBalance(t, acct.ID))
}

func TestRefund(t *testing.T) {
	h := newHarness(t, Config{}, 0)
	alice := h.user(t, "alice", 5_000)
	bob := h.user(t, "bob", 0)

	orig, err := h.svc.Transfer(userCtx("alice"), TransferRequest{FromWalletID: alice.ID, ToWalletID: bob.ID, Amount: 2_000, ReferenceID: "pay-1"})
	require.NoError(t, err)

	_, err = h.svc.Refund(userCtx("alice"), RefundRequest{OriginalReferenceID: "pay-1"})
	assert.ErrorIs(t, err, apperrors.ErrNotOwner, "only the receiver can give money back")

	res, err := h.svc.Refund(userCtx("bob"), RefundRequest{OriginalReferenceID: "pay-1", Note: "wrong amount"})
	require.NoError(t, err)
	assert.Equal(t, RefundReferencePrefix+orig.Transaction.ID, res.Transaction.ReferenceID)
	assert.Equal(t, models.TransactionTypeRefund, res.Transaction.Type)
	assert.Equal(t, bob.ID, models.Deref(res.Transaction.SenderWalletID))
	assert.Equal(t, int64(5_000), h.balance(t, alice.ID))
	assert.Zero(t, h.balance(t, bob.ID))

	again, err := h.svc.Refund(userCtx("bob"), RefundRequest{OriginalReferenceID: "pay-1"})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, int64(5_000), h.balance(t, alice.ID))

	_, err = h.svc.Refund(userCtx("alice"), RefundRequest{OriginalReferenceID: res.Transaction.ReferenceID})
	assert.ErrorIs(t, err, apperrors.ErrNotRefundable)

	_, err = h.svc.Refund(userCtx("bob"), RefundRequest{OriginalReferenceID: "missing"})
	assert.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
}
