// Command seed provisions a demo parking lot, its merchant wallet, a driver
// wallet with a verified sandbox bank account, and prints the credentials
// needed to call the API. Running it twice is harmless.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"parkpay/internal/actor"
	"parkpay/internal/config"
	"parkpay/internal/logging"
	"parkpay/internal/models"
	"parkpay/internal/repositories"
	"parkpay/internal/repositories/cache"
	"parkpay/internal/services/ledger"
	"parkpay/internal/services/wallet"
	"parkpay/internal/utils"

	"go.uber.org/zap"
)

const (
	demoLotID       = "lot-demo"
	demoDriverID    = "demo-driver"
	demoOperatorID  = "demo-operator"
	demoBankAccount = "bank-demo-driver"
	sandboxFunds    = 10_000_000
	tokenTTL        = 24 * time.Hour
)

var demoSlots = []string{"A1", "A2", "A3", "A4"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.IsProduction() {
		logger.Fatal("refusing to seed demo data in production")
	}

	db, err := repositories.InitDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("database unavailable", zap.Error(err))
	}
	defer func() {
		if err := repositories.CloseDB(db); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
	}()

	store := repositories.NewStore(db)
	ctx := actor.WithActor(context.Background(), actor.System())
	if err := seed(ctx, store, cfg, logger); err != nil {
		logger.Fatal("seeding failed", zap.Error(err))
	}
	if err := printCredentials(cfg); err != nil {
		logger.Fatal("failed to issue credentials", zap.Error(err))
	}
}

func seed(ctx context.Context, store repositories.Store, cfg *config.Config, logger *zap.Logger) error {
	currency := cfg.Wallet.DefaultCurrency
	if err := store.WithinTx(ctx, func(tx repositories.Store) error {
		return seedParking(ctx, tx, currency, logger)
	}); err != nil {
		return err
	}

	wallets := wallet.NewService(store, cache.Noop{}, ledger.New(store), wallet.WalletConfig{
		DefaultCurrency: currency,
		DefaultLimits: models.WalletLimits{
			Daily:   cfg.Wallet.DefaultDailyLimit,
			Monthly: cfg.Wallet.DefaultMonthlyLimit,
			Single:  cfg.Wallet.DefaultSingleTxnLimit,
		},
	}, nil, logger.Named("wallet"))

	for _, req := range []wallet.ProvisionRequest{
		{OwnerType: models.OwnerTypeParkingLot, OwnerID: demoLotID, WalletType: models.WalletTypeMerchant},
		{OwnerType: models.OwnerTypeUser, OwnerID: demoDriverID, WalletType: models.WalletTypePersonal},
		{OwnerType: models.OwnerTypePlatform, OwnerID: "parkpay", WalletType: models.WalletTypeMerchant},
	} {
		w, err := wallets.Provision(ctx, req)
		if err != nil {
			return fmt.Errorf("provision %s wallet for %s: %w", req.WalletType, req.OwnerID, err)
		}
		fmt.Printf("wallet %-9s %-14s %s\n", w.OwnerType, w.OwnerID, w.ID)
	}

	_, err := store.BankAccounts().GetByID(ctx, demoBankAccount)
	if errors.Is(err, repositories.ErrBankAccountNotFound) {
		err = store.BankAccounts().Create(ctx, &models.BankAccount{
			ID:             demoBankAccount,
			OwnerID:        demoDriverID,
			BankName:       "Sandbox Bank",
			AccountMask:    "XXXX4242",
			Currency:       currency,
			Verified:       true,
			SandboxBalance: sandboxFunds,
		})
	}
	if err != nil {
		return fmt.Errorf("seed bank account: %w", err)
	}
	fmt.Printf("bank account %s (sandbox balance %d)\n", demoBankAccount, sandboxFunds)
	return nil
}

func seedParking(ctx context.Context, tx repositories.Store, currency string, logger *zap.Logger) error {
	_, err := tx.Parking().GetLot(ctx, demoLotID)
	if err == nil {
		logger.Info("demo lot already present", zap.String("lot_id", demoLotID))
		return nil
	}
	if !errors.Is(err, repositories.ErrLotNotFound) {
		return err
	}

	if err := tx.Parking().CreateLot(ctx, &models.ParkingLot{ID: demoLotID, Name: "Demo Central", Currency: currency}); err != nil {
		return err
	}
	for _, code := range demoSlots {
		slot := &models.ParkingSlot{ID: demoLotID + "-" + code, LotID: demoLotID, Code: code}
		if err := tx.Parking().CreateSlot(ctx, slot); err != nil {
			return err
		}
	}
	// One open session so the exit gate flow can be tried right away.
	token := &models.ParkingToken{LotID: demoLotID, SlotID: demoLotID + "-" + demoSlots[0], VehiclePlate: "KA01AB1234"}
	if err := tx.Parking().OpenToken(ctx, token); err != nil {
		return err
	}
	fmt.Printf("parking lot %s with %d slots, open token %s\n", demoLotID, len(demoSlots), token.ID)
	return nil
}

// printCredentials issues demo tokens and a system key hash. SYSTEM_KEY is
// used when set, otherwise a random key is generated.
func printCredentials(cfg *config.Config) error {
	key := os.Getenv("SYSTEM_KEY")
	if key == "" {
		generated, err := utils.GenerateSecureCode()
		if err != nil {
			return err
		}
		key = generated
	}
	hash, err := utils.HashSecret(key)
	if err != nil {
		return err
	}

	driver, err := utils.GenerateAccessToken(models.UserClaims{UserID: demoDriverID, Role: models.RoleUser}, cfg.JWTSecret, tokenTTL)
	if err != nil {
		return err
	}
	operator, err := utils.GenerateAccessToken(models.UserClaims{UserID: demoOperatorID, Role: models.RoleOperator, LotIDs: []string{demoLotID}}, cfg.JWTSecret, tokenTTL)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("X-System-Key: %s\n", key)
	fmt.Printf("SYSTEM_KEY_HASH=%s\n", hash)
	fmt.Printf("driver token:   %s\n", driver)
	fmt.Printf("operator token: %s\n", operator)
	return nil
}
