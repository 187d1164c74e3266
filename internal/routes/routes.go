// Package routes defines the API routing configuration.
// It mounts every handler with the middleware its caller class needs:
// bearer tokens for wallet holders and operators, the system key for gate
// controllers.
package routes

import (
	"time"

	"parkpay/internal/handlers"
	"parkpay/internal/middleware"
	"parkpay/internal/models"
	"parkpay/internal/services/paymentrequest"
	"parkpay/internal/services/transfer"
	"parkpay/internal/services/wallet"
	"parkpay/internal/utils"
	"parkpay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies is everything the routes need, built once in main.
type Dependencies struct {
	Wallets         wallet.Service
	Transfers       transfer.Service
	PaymentRequests paymentrequest.Service

	JWTSecret     string
	SystemKeyHash string

	// Gatherer serves /metrics when set.
	Gatherer     prometheus.Gatherer
	HealthChecks map[string]handlers.Pinger
	Version      string

	// RateLimit caps mutating requests per caller per minute. Zero disables it.
	RateLimit int
	Logger    *zap.Logger
}

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	health := handlers.NewHealthHandler(deps.Version, deps.HealthChecks)
	app.Get("/health", health.HealthCheck)
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	walletHandler := handlers.NewWalletHandler(deps.Wallets, deps.PaymentRequests, logger)
	transferHandler := handlers.NewTransferHandler(deps.Transfers, logger)
	requestHandler := handlers.NewPaymentRequestHandler(deps.PaymentRequests, logger)

	api := app.Group("/api")
	mutating := rateLimit(deps.RateLimit)

	// System routes authenticate with the shared key, not a bearer token.
	system := api.Group("/system", middleware.SystemKey(deps.SystemKeyHash, logger))
	system.Post("/parking-fees", transferHandler.PayParkingFee)
	system.Post("/deposits/:ref/settle", transferHandler.Settle)

	authMiddleware := middleware.NewAuthMiddleware(deps.JWTSecret, logger)
	protected := api.Group("", authMiddleware.Handler)

	setupWalletRoutes(protected, walletHandler, mutating)
	setupMoneyRoutes(protected, transferHandler, mutating)
	setupPaymentRequestRoutes(protected, requestHandler, mutating)
}

func setupWalletRoutes(router fiber.Router, h *handlers.WalletHandler, mutating fiber.Handler) {
	wallets := router.Group("/wallets")
	wallets.Post("/", mutating, middleware.HasPermission(models.PermissionWalletWrite), h.Provision)
	wallets.Get("/:id", middleware.HasPermission(models.PermissionWalletRead), h.GetWallet)
	wallets.Get("/:id/balance", middleware.HasPermission(models.PermissionWalletRead), h.GetBalance)
	wallets.Get("/:id/history", middleware.HasPermission(models.PermissionWalletRead), h.History)
	wallets.Get("/:id/payment-requests", middleware.HasPermission(models.PermissionWalletRead), h.PaymentRequests)

	// Owners may freeze or close their own wallet; lifting a freeze and
	// changing limits is for administrators.
	wallets.Post("/:id/freeze", mutating, middleware.HasPermission(models.PermissionWalletWrite), h.Freeze)
	wallets.Post("/:id/close", mutating, middleware.HasPermission(models.PermissionWalletWrite), h.Close)
	wallets.Post("/:id/unfreeze", mutating, middleware.HasPermission(models.PermissionWalletManage), h.Unfreeze)
	wallets.Put("/:id/limits", mutating, middleware.HasPermission(models.PermissionWalletManage), h.SetLimits)
}

func setupMoneyRoutes(router fiber.Router, h *handlers.TransferHandler, mutating fiber.Handler) {
	transfers := router.Group("/transfers", mutating)
	transfers.Post("/", middleware.HasPermission(models.PermissionTransferWrite), h.Transfer)
	transfers.Post("/refund", middleware.HasPermission(models.PermissionRefundWrite), h.Refund)

	router.Post("/deposits", mutating, middleware.HasPermission(models.PermissionDepositWrite), h.Deposit)
	router.Post("/withdrawals", mutating, middleware.HasPermission(models.PermissionDepositWrite), h.Withdraw)
}

func setupPaymentRequestRoutes(router fiber.Router, h *handlers.PaymentRequestHandler, mutating fiber.Handler) {
	requests := router.Group("/payment-requests")
	requests.Post("/", mutating, middleware.HasPermission(models.PermissionPaymentWrite), h.Create)
	requests.Post("/scan", mutating, middleware.HasPermission(models.PermissionPaymentWrite), h.Scan)
	requests.Get("/:ref", middleware.HasPermission(models.PermissionWalletRead), h.Get)
	requests.Get("/:ref/qr.png", middleware.HasPermission(models.PermissionWalletRead), h.QRCode)
	requests.Post("/:ref/fulfill", mutating, middleware.HasPermission(models.PermissionPaymentWrite), h.Fulfill)
	requests.Post("/:ref/cancel", mutating, middleware.HasPermission(models.PermissionPaymentWrite), h.Cancel)
}

// rateLimit limits mutating requests per authenticated user, falling back
// to the client IP.
func rateLimit(perMinute int) fiber.Handler {
	if perMinute <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        perMinute,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if claims, err := utils.GetUserClaims(c); err == nil {
				return "user:" + claims.UserID
			}
			return "ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return response.Error(c, fiber.StatusTooManyRequests, response.CodeRateLimited, "too many requests, please try again later")
		},
	})
}
