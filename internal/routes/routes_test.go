package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"parkpay/internal/handlers"
	"parkpay/internal/metrics"
	"parkpay/internal/middleware"
	"parkpay/internal/models"
	"parkpay/internal/repositories"
	"parkpay/internal/repositories/cache"
	"parkpay/internal/repositories/memory"
	"parkpay/internal/services/ledger"
	"parkpay/internal/services/limits"
	"parkpay/internal/services/paymentrequest"
	"parkpay/internal/services/transfer"
	"parkpay/internal/services/wallet"
	"parkpay/internal/utils"
	"parkpay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret    = "routes-test-secret"
	testSystemKey = "gate-controller-key"
)

type envelope struct {
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorBody `json:"error"`
}

type server struct {
	app   *fiber.App
	store *memory.Store
}

type option func(*Dependencies)

func newServer(t *testing.T, cfg transfer.Config, opts ...option) *server {
	t.Helper()
	store := memory.NewStore()
	book := ledger.New(store)
	retry := repositories.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	cfg.RetryPolicy = retry

	engine := transfer.NewService(store, book, limits.NewEnforcer(time.UTC), cache.Noop{}, nil, cfg, nil, nil)
	hash, err := utils.HashSecret(testSystemKey)
	require.NoError(t, err)

	deps := Dependencies{
		Wallets:         wallet.NewService(store, cache.Noop{}, book, wallet.WalletConfig{RetryPolicy: retry}, nil, nil),
		Transfers:       engine,
		PaymentRequests: paymentrequest.NewService(store, engine, paymentrequest.Config{}, nil, nil),
		JWTSecret:       testSecret,
		SystemKeyHash:   hash,
		HealthChecks:    map[string]handlers.Pinger{"database": store.Ping},
		Version:         "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	app := fiber.New()
	SetupRoutes(app, deps)
	return &server{app: app, store: store}
}

func bearer(t *testing.T, userID, role string, lotIDs ...string) string {
	t.Helper()
	tok, err := utils.GenerateAccessToken(models.UserClaims{UserID: userID, Role: role, LotIDs: lotIDs}, testSecret, time.Minute)
	require.NoError(t, err)
	return "Bearer " + tok
}

type call struct {
	method  string
	path    string
	auth    string
	body    interface{}
	headers map[string]string
}

func (s *server) do(t *testing.T, c call) (int, envelope) {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if c.auth != "" {
		req.Header.Set(fiber.HeaderAuthorization, c.auth)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func (s *server) wallet(t *testing.T, ownerType models.OwnerType, ownerID string, walletType models.WalletType, balance int64) *models.Wallet {
	t.Helper()
	ctx := context.Background()
	w := &models.Wallet{OwnerType: ownerType, OwnerID: ownerID, WalletType: walletType, Currency: "INR", Status: models.WalletStatusActive}
	require.NoError(t, s.store.Wallets().Create(ctx, w))
	if balance > 0 {
		_, err := s.store.Wallets().AdjustBalance(ctx, w.ID, balance, 0)
		require.NoError(t, err)
	}
	return w
}

func (s *server) balance(t *testing.T, walletID string) int64 {
	t.Helper()
	w, err := s.store.Wallets().GetByID(context.Background(), walletID)
	require.NoError(t, err)
	return w.Balance
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestWalletRoutes(t *testing.T) {
	s := newServer(t, transfer.Config{SandboxBanking: true})
	alice := bearer(t, "alice", models.RoleUser)
	admin := bearer(t, "root", models.RoleAdmin)

	status, env := s.do(t, call{method: "POST", path: "/api/wallets", auth: alice})
	require.Equal(t, fiber.StatusCreated, status)
	w := decode[models.Wallet](t, env)
	assert.Equal(t, "alice", w.OwnerID)
	assert.Equal(t, models.WalletTypePersonal, w.WalletType)
	assert.Equal(t, "INR", w.Currency)

	status, env = s.do(t, call{method: "POST", path: "/api/wallets", auth: alice})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, w.ID, decode[models.Wallet](t, env).ID)

	tests := []struct {
		name   string
		call   call
		status int
		code   string
	}{
		{name: "owner reads wallet", call: call{method: "GET", path: "/api/wallets/" + w.ID, auth: alice}, status: fiber.StatusOK},
		{name: "owner reads balance", call: call{method: "GET", path: "/api/wallets/" + w.ID + "/balance", auth: alice}, status: fiber.StatusOK},
		{name: "stranger is forbidden", call: call{method: "GET", path: "/api/wallets/" + w.ID, auth: bearer(t, "mallory", models.RoleUser)}, status: fiber.StatusForbidden, code: "NOT_OWNER"},
		{name: "unknown wallet", call: call{method: "GET", path: "/api/wallets/missing", auth: alice}, status: fiber.StatusNotFound, code: "WALLET_NOT_FOUND"},
		{name: "no token", call: call{method: "GET", path: "/api/wallets/" + w.ID}, status: fiber.StatusUnauthorized, code: response.CodeUnauthorized},
		{name: "bad currency", call: call{method: "POST", path: "/api/wallets", auth: alice, body: fiber.Map{"currency": "rupees"}}, status: fiber.StatusBadRequest, code: response.CodeValidation},
		{name: "user cannot set limits", call: call{method: "PUT", path: "/api/wallets/" + w.ID + "/limits", auth: alice, body: fiber.Map{"daily_limit": 1}}, status: fiber.StatusForbidden, code: response.CodeForbidden},
		{name: "admin sets limits", call: call{method: "PUT", path: "/api/wallets/" + w.ID + "/limits", auth: admin, body: fiber.Map{"daily_limit": 5_000}}, status: fiber.StatusOK},
		{name: "negative limit", call: call{method: "PUT", path: "/api/wallets/" + w.ID + "/limits", auth: admin, body: fiber.Map{"daily_limit": -1}}, status: fiber.StatusBadRequest, code: response.CodeValidation},
		{name: "owner freezes", call: call{method: "POST", path: "/api/wallets/" + w.ID + "/freeze", auth: alice}, status: fiber.StatusOK},
		{name: "owner cannot unfreeze", call: call{method: "POST", path: "/api/wallets/" + w.ID + "/unfreeze", auth: alice}, status: fiber.StatusForbidden, code: response.CodeForbidden},
		{name: "admin unfreezes", call: call{method: "POST", path: "/api/wallets/" + w.ID + "/unfreeze", auth: admin}, status: fiber.StatusOK},
		{name: "history", call: call{method: "GET", path: "/api/wallets/" + w.ID + "/history?limit=5", auth: alice}, status: fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := s.do(t, tt.call)
			assert.Equal(t, tt.status, status)
			if tt.code != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.code, env.Error.Code)
			}
		})
	}

	stored, err := s.store.Wallets().GetByID(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WalletStatusActive, stored.Status)
	assert.Equal(t, int64(5_000), stored.DailyLimit)
}

func TestTransferRoutes(t *testing.T) {
	s := newServer(t, transfer.Config{SandboxBanking: true})
	alice := bearer(t, "alice", models.RoleUser)
	from := s.wallet(t, models.OwnerTypeUser, "alice", models.WalletTypePersonal, 10_000)
	to := s.wallet(t, models.OwnerTypeUser, "bob", models.WalletTypePersonal, 0)

	body := fiber.Map{"from_wallet_id": from.ID, "to_wallet_id": to.ID, "amount": 2_500, "note": "lunch"}
	key := map[string]string{handlers.IdempotencyKeyHeader: "lunch-1"}

	status, env := s.do(t, call{method: "POST", path: "/api/transfers", auth: alice, body: body, headers: key})
	require.Equal(t, fiber.StatusCreated, status)
	res := decode[transfer.Result](t, env)
	assert.False(t, res.Replayed)
	assert.Equal(t, "lunch-1", res.Transaction.ReferenceID)
	assert.Equal(t, models.TransactionStatusCompleted, res.Transaction.Status)

	status, env = s.do(t, call{method: "POST", path: "/api/transfers", auth: alice, body: body, headers: key})
	require.Equal(t, fiber.StatusOK, status)
	assert.True(t, decode[transfer.Result](t, env).Replayed)
	assert.Equal(t, int64(7_500), s.balance(t, from.ID))
	assert.Equal(t, int64(2_500), s.balance(t, to.ID))

	tests := []struct {
		name   string
		call   call
		status int
		code   string
	}{
		{
			name:   "reference reused for a different amount",
			call:   call{method: "POST", path: "/api/transfers", auth: alice, headers: key, body: fiber.Map{"from_wallet_id": from.ID, "to_wallet_id": to.ID, "amount": 1}},
			status: fiber.StatusConflict,
			code:   "REFERENCE_REUSED",
		},
		{
			name:   "header and body references differ",
			call:   call{method: "POST", path: "/api/transfers", auth: alice, headers: key, body: fiber.Map{"from_wallet_id": from.ID, "to_wallet_id": to.ID, "amount": 1, "reference_id": "other"}},
			status: fiber.StatusBadRequest,
			code:   "REFERENCE_MISMATCH",
		},
		{
			name:   "missing reference",
			call:   call{method: "POST", path: "/api/transfers", auth: alice, body: fiber.Map{"from_wallet_id": from.ID, "to_wallet_id": to.ID, "amount": 1}},
			status: fiber.StatusBadRequest,
			code:   "MISSING_REFERENCE",
		},
		{
			name:   "derived reference in body",
			call:   call{method: "POST", path: "/api/transfers", auth: alice, body: fiber.Map{"from_wallet_id": from.ID, "to_wallet_id": to.ID, "amount": 1, "reference_id": "payreq:abc"}},
			status: fiber.StatusBadRequest,
			code:   response.CodeValidation,
		},
		{
			name:   "derived reference in header",
			call:   call{method: "POST", path: "/api/transfers", auth: alice, headers: map[string]string{handlers.IdempotencyKeyHeader: "parking:abc"}, body: fiber.Map{"from_wallet_id": from.ID, "to_wallet_id": to.ID, "amount": 1}},
			status: fiber.StatusBadRequest,
			code:   "RESERVED_REFERENCE",
		},
		{
			name:   "zero amount",
			call:   call{method: "POST", path: "/api/transfers", auth: alice, body: fiber.Map{"from_wallet_id": from.ID, "to_wallet_id": to.ID, "reference_id": "z"}},
			status: fiber.StatusBadRequest,
			code:   response.CodeValidation,
		},
		{
			name:   "malformed json",
			call:   call{method: "POST", path: "/api/transfers", auth: alice, body: "not an object"},
			status: fiber.StatusBadRequest,
			code:   response.CodeBadRequest,
		},
		{
			name:   "insufficient funds",
			call:   call{method: "POST", path: "/api/transfers", auth: alice, body: fiber.Map{"from_wallet_id": from.ID, "to_wallet_id": to.ID, "amount": 1_000_000, "reference_id": "big"}},
			status: fiber.StatusUnprocessableEntity,
			code:   "INSUFFICIENT_FUNDS",
		},
		{
			name:   "self transfer",
			call:   call{method: "POST", path: "/api/transfers", auth: alice, body: fiber.Map{"from_wallet_id": from.ID, "to_wallet_id": from.ID, "amount": 1, "reference_id": "self"}},
			status: fiber.StatusUnprocessableEntity,
			code:   "SELF_TRANSFER",
		},
		{
			name:   "spending from someone else's wallet",
			call:   call{method: "POST", path: "/api/transfers", auth: bearer(t, "bob", models.RoleUser), body: fiber.Map{"from_wallet_id": from.ID, "to_wallet_id": to.ID, "amount": 1, "reference_id": "steal"}},
			status: fiber.StatusForbidden,
			code:   "NOT_OWNER",
		},
		{
			name:   "operator lacks transfer permission",
			call:   call{method: "POST", path: "/api/transfers", auth: bearer(t, "op", models.RoleOperator), body: body},
			status: fiber.StatusForbidden,
			code:   response.CodeForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := s.do(t, tt.call)
			assert.Equal(t, tt.status, status)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}

	assert.Equal(t, int64(7_500), s.balance(t, from.ID))
}

func TestRefundRoute(t *testing.T) {
	s := newServer(t, transfer.Config{SandboxBanking: true})
	driver := s.wallet(t, models.OwnerTypeUser, "driver", models.WalletTypePersonal, 5_000)
	lot := s.wallet(t, models.OwnerTypeParkingLot, "lot-1", models.WalletTypeMerchant, 0)

	status, _ := s.do(t, call{method: "POST", path: "/api/transfers", auth: bearer(t, "driver", models.RoleUser),
		body: fiber.Map{"from_wallet_id": driver.ID, "to_wallet_id": lot.ID, "amount": 3_000, "reference_id": "overpaid"}})
	require.Equal(t, fiber.StatusCreated, status)

	refund := call{method: "POST", path: "/api/transfers/refund", auth: bearer(t, "op", models.RoleOperator, "lot-1"),
		body: fiber.Map{"original_reference_id": "overpaid", "note": "double charge"}}
	status, env := s.do(t, refund)
	require.Equal(t, fiber.StatusCreated, status)
	res := decode[transfer.Result](t, env)
	assert.Equal(t, models.TransactionTypeRefund, res.Transaction.Type)
	assert.Equal(t, int64(5_000), s.balance(t, driver.ID))

	status, _ = s.do(t, refund)
	assert.Equal(t, fiber.StatusOK, status)

	status, env = s.do(t, call{method: "POST", path: "/api/transfers/refund", auth: bearer(t, "op", models.RoleOperator, "lot-2"),
		body: fiber.Map{"original_reference_id": "overpaid"}})
	assert.Equal(t, fiber.StatusForbidden, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_OWNER", env.Error.Code)
}

func TestSystemRoutes(t *testing.T) {
	s := newServer(t, transfer.Config{SandboxBanking: false})
	ctx := context.Background()

	lot := &models.ParkingLot{Name: "Central", Currency: "INR"}
	require.NoError(t, s.store.Parking().CreateLot(ctx, lot))
	slot := &models.ParkingSlot{LotID: lot.ID, Code: "B2"}
	require.NoError(t, s.store.Parking().CreateSlot(ctx, slot))
	token := &models.ParkingToken{LotID: lot.ID, SlotID: slot.ID, VehiclePlate: "KA01AB1234"}
	require.NoError(t, s.store.Parking().OpenToken(ctx, token))
	lotWallet := s.wallet(t, models.OwnerTypeParkingLot, lot.ID, models.WalletTypeMerchant, 0)
	driver := s.wallet(t, models.OwnerTypeUser, "driver", models.WalletTypePersonal, 6_000)

	gate := map[string]string{middleware.SystemKeyHeader: testSystemKey}
	fee := fiber.Map{"wallet_id": driver.ID, "token_id": token.ID, "amount": 4_000}

	t.Run("parking fee needs the system key", func(t *testing.T) {
		status, _ := s.do(t, call{method: "POST", path: "/api/system/parking-fees", body: fee,
			headers: map[string]string{middleware.SystemKeyHeader: "wrong"}})
		assert.Equal(t, fiber.StatusUnauthorized, status)

		status, _ = s.do(t, call{method: "POST", path: "/api/system/parking-fees", body: fee, auth: bearer(t, "root", models.RoleAdmin)})
		assert.Equal(t, fiber.StatusUnauthorized, status)
	})

	t.Run("parking fee settles the session", func(t *testing.T) {
		status, env := s.do(t, call{method: "POST", path: "/api/system/parking-fees", body: fee, headers: gate})
		require.Equal(t, fiber.StatusCreated, status)
		res := decode[transfer.Result](t, env)
		assert.Equal(t, transfer.ParkingReferencePrefix+token.ID, res.Transaction.ReferenceID)
		assert.Equal(t, int64(2_000), s.balance(t, driver.ID))
		assert.Equal(t, int64(4_000), s.balance(t, lotWallet.ID))

		status, _ = s.do(t, call{method: "POST", path: "/api/system/parking-fees", body: fee, headers: gate})
		assert.Equal(t, fiber.StatusOK, status)
	})

	t.Run("live deposit waits for settlement", func(t *testing.T) {
		acct := &models.BankAccount{OwnerID: "driver", BankName: "Test Bank", Currency: "INR", Verified: true}
		require.NoError(t, s.store.BankAccounts().Create(ctx, acct))

		status, env := s.do(t, call{method: "POST", path: "/api/deposits", auth: bearer(t, "driver", models.RoleUser),
			body: fiber.Map{"wallet_id": driver.ID, "bank_account_id": acct.ID, "amount": 1_500, "reference_id": "dep-1"}})
		require.Equal(t, fiber.StatusCreated, status)
		assert.Equal(t, models.TransactionStatusPending, decode[transfer.Result](t, env).Transaction.Status)
		assert.Equal(t, int64(2_000), s.balance(t, driver.ID))

		settle := call{method: "POST", path: "/api/system/deposits/dep-1/settle", body: fiber.Map{"success": true}, headers: gate}
		status, env = s.do(t, settle)
		require.Equal(t, fiber.StatusCreated, status)
		assert.Equal(t, models.TransactionStatusCompleted, decode[transfer.Result](t, env).Transaction.Status)
		assert.Equal(t, int64(3_500), s.balance(t, driver.ID))

		status, _ = s.do(t, settle)
		assert.Equal(t, fiber.StatusOK, status)

		status, env = s.do(t, call{method: "POST", path: "/api/system/deposits/dep-1/settle", body: fiber.Map{"success": false}, headers: gate})
		assert.Equal(t, fiber.StatusUnprocessableEntity, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, "TRANSACTION_NOT_PENDING", env.Error.Code)

		status, _ = s.do(t, call{method: "POST", path: "/api/system/deposits/unknown/settle", body: fiber.Map{"success": true}, headers: gate})
		assert.Equal(t, fiber.StatusNotFound, status)
	})
}

func TestPaymentRequestRoutes(t *testing.T) {
	s := newServer(t, transfer.Config{SandboxBanking: true})
	payee := s.wallet(t, models.OwnerTypeParkingLot, "lot-1", models.WalletTypeMerchant, 0)
	payer := s.wallet(t, models.OwnerTypeUser, "driver", models.WalletTypePersonal, 10_000)
	other := s.wallet(t, models.OwnerTypeUser, "rider", models.WalletTypePersonal, 10_000)
	operator := bearer(t, "op-1", models.RoleOperator, "lot-1")
	driver := bearer(t, "driver", models.RoleUser)

	status, env := s.do(t, call{method: "POST", path: "/api/payment-requests", auth: operator,
		body: fiber.Map{"payee_wallet_id": payee.ID, "amount": 4_000, "description": "slot A1", "expires_in_seconds": 600}})
	require.Equal(t, fiber.StatusCreated, status)
	pr := decode[models.PaymentRequest](t, env)
	require.NotEmpty(t, pr.QRCode)

	status, env = s.do(t, call{method: "GET", path: "/api/payment-requests/" + pr.PaymentRef, auth: driver})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, pr.ID, decode[models.PaymentRequest](t, env).ID)

	req := httptest.NewRequest("GET", "/api/payment-requests/"+pr.PaymentRef+"/qr.png", nil)
	req.Header.Set(fiber.HeaderAuthorization, driver)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get(fiber.HeaderContentType))
	png, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	scan := call{method: "POST", path: "/api/payment-requests/scan", auth: driver,
		body: fiber.Map{"payload": pr.QRCode, "payer_wallet_id": payer.ID}}
	status, env = s.do(t, scan)
	require.Equal(t, fiber.StatusCreated, status)
	done := decode[paymentrequest.Fulfillment](t, env)
	assert.Equal(t, models.PaymentRequestCompleted, done.Request.Status)
	assert.Equal(t, int64(6_000), s.balance(t, payer.ID))
	assert.Equal(t, int64(4_000), s.balance(t, payee.ID))

	status, _ = s.do(t, scan)
	assert.Equal(t, fiber.StatusOK, status)

	status, env = s.do(t, call{method: "POST", path: "/api/payment-requests/" + pr.PaymentRef + "/fulfill", auth: bearer(t, "rider", models.RoleUser),
		body: fiber.Map{"payer_wallet_id": other.ID}})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "PAYMENT_REQUEST_NOT_PENDING", env.Error.Code)

	status, env = s.do(t, call{method: "POST", path: "/api/payment-requests/" + pr.PaymentRef + "/cancel", auth: operator})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	require.NotNil(t, env.Error)

	status, env = s.do(t, call{method: "GET", path: "/api/wallets/" + payee.ID + "/payment-requests?status=COMPLETED", auth: operator})
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]models.PaymentRequest](t, env), 1)

	status, env = s.do(t, call{method: "POST", path: "/api/payment-requests/scan", auth: driver,
		body: fiber.Map{"payload": strings.Replace(pr.QRCode, "sum=", "sum=0", 1), "payer_wallet_id": payer.ID}})
	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "PAYMENT_REQUEST_NOT_FOUND", env.Error.Code)
}

func TestRateLimit(t *testing.T) {
	s := newServer(t, transfer.Config{SandboxBanking: true}, func(d *Dependencies) { d.RateLimit = 2 })
	alice := bearer(t, "alice", models.RoleUser)

	for i := 0; i < 2; i++ {
		status, _ := s.do(t, call{method: "POST", path: "/api/wallets", auth: alice})
		require.Equal(t, fiber.StatusCreated, status)
	}
	status, env := s.do(t, call{method: "POST", path: "/api/wallets", auth: alice})
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, response.CodeRateLimited, env.Error.Code)

	status, _ = s.do(t, call{method: "POST", path: "/api/wallets", auth: bearer(t, "bob", models.RoleUser)})
	assert.Equal(t, fiber.StatusCreated, status)
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewPrometheusCollector(reg)
	collector.RecordOperationResult("transfer", "COMPLETED")

	healthy := newServer(t, transfer.Config{}, func(d *Dependencies) { d.Gatherer = reg })
	status, _ := healthy.do(t, call{method: "GET", path: "/health"})
	assert.Equal(t, fiber.StatusOK, status)

	resp, err := healthy.app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "parkpay_")

	broken := newServer(t, transfer.Config{}, func(d *Dependencies) {
		d.HealthChecks["redis"] = func(context.Context) error { return errors.New("connection refused") }
	})
	status, _ = broken.do(t, call{method: "GET", path: "/health"})
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
}
