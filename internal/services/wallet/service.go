package wallet

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"parkpay/internal/actor"
	apperrors "parkpay/internal/errors"
	"parkpay/internal/metrics"
	"parkpay/internal/models"
	"parkpay/internal/repositories"

	"go.uber.org/zap"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type service struct {
	store   repositories.Store
	cache   Cache
	history HistoryReader
	config  WalletConfig
	metrics metrics.Collector
	logger  *zap.Logger
}

// NewService creates a new wallet service
func NewService(
	store repositories.Store,
	cache Cache,
	history HistoryReader,
	config WalletConfig,
	collector metrics.Collector,
	logger *zap.Logger,
) Service {
	if store == nil {
		panic("store is required")
	}
	if cache == nil {
		panic("cache is required")
	}
	if history == nil {
		panic("history reader is required")
	}

	if config.DefaultCurrency == "" {
		config.DefaultCurrency = DefaultCurrency
	}
	if config.RetryPolicy.MaxAttempts <= 0 {
		config.RetryPolicy = repositories.DefaultRetryPolicy
	}
	// Metrics is optional, create no-op collector if nil
	if collector == nil {
		collector = metrics.NoopCollector{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &service{
		store:   store,
		cache:   cache,
		history: history,
		config:  config,
		metrics: collector,
		logger:  logger,
	}
}

func (s *service) Provision(ctx context.Context, req ProvisionRequest) (*models.Wallet, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration(opProvision, time.Since(start)) }()

	if req.Currency == "" {
		req.Currency = s.config.DefaultCurrency
	}
	if !currencyPattern.MatchString(req.Currency) {
		return nil, apperrors.ErrInvalidCurrency
	}
	if req.OwnerID == "" {
		return nil, fmt.Errorf("owner id is required")
	}

	w := &models.Wallet{
		OwnerType:  req.OwnerType,
		OwnerID:    req.OwnerID,
		WalletType: req.WalletType,
		Currency:   req.Currency,
		Status:     models.WalletStatusActive,
	}
	if err := authorize(ctx, w); err != nil {
		return nil, err
	}
	if req.WalletType == models.WalletTypePersonal {
		w.DailyLimit = s.config.DefaultLimits.Daily
		w.MonthlyLimit = s.config.DefaultLimits.Monthly
		w.SingleTxnLimit = s.config.DefaultLimits.Single
	}

	err := s.store.Wallets().Create(ctx, w)
	if errors.Is(err, repositories.ErrDuplicateWallet) {
		existing, getErr := s.store.Wallets().GetByOwner(ctx, req.OwnerType, req.OwnerID, req.WalletType)
		if getErr != nil {
			return nil, fmt.Errorf("failed to load existing wallet: %w", getErr)
		}
		if existing.Currency != req.Currency {
			return nil, apperrors.ErrWalletExists
		}
		s.metrics.RecordOperationResult(opProvision, "existing")
		return existing, nil
	}
	if err != nil {
		s.metrics.RecordError(opProvision, "storage")
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	s.metrics.RecordOperationResult(opProvision, "created")
	s.logger.Info("wallet provisioned",
		zap.String("wallet_id", w.ID),
		zap.String("owner_type", string(w.OwnerType)),
		zap.String("owner_id", w.OwnerID),
		zap.String("wallet_type", string(w.WalletType)))
	return w, nil
}

func (s *service) GetWallet(ctx context.Context, walletID string) (*models.Wallet, error) {
	w, err := s.load(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *service) GetByOwner(ctx context.Context, ownerType models.OwnerType, ownerID string, walletType models.WalletType) (*models.Wallet, error) {
	w, err := s.store.Wallets().GetByOwner(ctx, ownerType, ownerID, walletType)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if err := authorize(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *service) GetBalance(ctx context.Context, walletID string) (*Balance, error) {
	w, generation, cacheErr := s.cache.GetWallet(ctx, walletID)
	if cacheErr != nil {
		s.logger.Warn("wallet cache read failed", zap.String("wallet_id", walletID), zap.Error(cacheErr))
		w = nil
	}
	if w != nil {
		s.metrics.RecordCacheHit(walletID)
	} else {
		s.metrics.RecordCacheMiss(walletID)
		var err error
		if w, err = s.load(ctx, walletID); err != nil {
			return nil, err
		}
		// Without a generation the fill could overwrite a newer invalidation.
		if cacheErr == nil {
			if err := s.cache.SetWallet(ctx, w, generation); err != nil {
				s.logger.Warn("wallet cache write failed", zap.String("wallet_id", walletID), zap.Error(err))
			}
		}
	}

	if err := authorize(ctx, w); err != nil {
		return nil, err
	}
	s.metrics.RecordOperationResult(opBalance, "success")
	return &Balance{
		WalletID: w.ID,
		Balance:  w.Balance,
		Currency: w.Currency,
		Status:   w.Status,
		Version:  w.Version,
	}, nil
}

func (s *service) Freeze(ctx context.Context, walletID string) (*models.Wallet, error) {
	return s.changeStatus(ctx, walletID, models.WalletStatusFrozen, func(w *models.Wallet) error {
		if w.Status != models.WalletStatusActive {
			return apperrors.ErrWalletNotActive
		}
		return nil
	})
}

func (s *service) Unfreeze(ctx context.Context, walletID string) (*models.Wallet, error) {
	return s.changeStatus(ctx, walletID, models.WalletStatusActive, func(w *models.Wallet) error {
		a, _ := actor.FromContext(ctx)
		if !a.Privileged() {
			return apperrors.ErrNotOwner
		}
		if w.Status != models.WalletStatusFrozen {
			return apperrors.ErrWalletNotActive
		}
		return nil
	})
}

func (s *service) Close(ctx context.Context, walletID string) (*models.Wallet, error) {
	return s.changeStatus(ctx, walletID, models.WalletStatusClosed, func(w *models.Wallet) error {
		if w.Status == models.WalletStatusClosed {
			return apperrors.ErrWalletNotActive
		}
		if w.Balance != 0 {
			return apperrors.ErrWalletNotEmpty
		}
		return nil
	})
}

func (s *service) changeStatus(ctx context.Context, walletID string, status models.WalletStatus, check func(w *models.Wallet) error) (*models.Wallet, error) {
	var result *models.Wallet
	err := repositories.Retry(ctx, s.config.RetryPolicy, func(int) { s.metrics.RecordConflictRetry(opStatus) }, func() error {
		w, err := s.load(ctx, walletID)
		if err != nil {
			return err
		}
		if err := authorize(ctx, w); err != nil {
			return err
		}
		if err := check(w); err != nil {
			return err
		}

		version, err := s.store.Wallets().UpdateStatus(ctx, w.ID, status, w.Version)
		if err != nil {
			return err
		}
		w.Status = status
		w.Version = version
		result = w
		return nil
	})
	if err != nil {
		return nil, s.fail(opStatus, err)
	}

	s.invalidate(ctx, walletID)
	s.metrics.RecordOperationResult(opStatus, string(status))
	s.logger.Info("wallet status changed",
		zap.String("wallet_id", walletID),
		zap.String("status", string(status)))
	return result, nil
}

func (s *service) SetLimits(ctx context.Context, walletID string, limits models.WalletLimits) (*models.Wallet, error) {
	if limits.Daily < 0 || limits.Monthly < 0 || limits.Single < 0 {
		return nil, apperrors.ErrInvalidLimits
	}

	var result *models.Wallet
	err := repositories.Retry(ctx, s.config.RetryPolicy, func(int) { s.metrics.RecordConflictRetry(opLimits) }, func() error {
		w, err := s.load(ctx, walletID)
		if err != nil {
			return err
		}
		if err := authorize(ctx, w); err != nil {
			return err
		}

		version, err := s.store.Wallets().UpdateLimits(ctx, w.ID, limits, w.Version)
		if err != nil {
			return err
		}
		w.DailyLimit, w.MonthlyLimit, w.SingleTxnLimit = limits.Daily, limits.Monthly, limits.Single
		w.Version = version
		result = w
		return nil
	})
	if err != nil {
		return nil, s.fail(opLimits, err)
	}

	s.invalidate(ctx, walletID)
	s.metrics.RecordOperationResult(opLimits, "success")
	return result, nil
}

func (s *service) History(ctx context.Context, walletID string, limit, offset int) ([]models.WalletTransaction, int64, error) {
	if _, err := s.GetWallet(ctx, walletID); err != nil {
		return nil, 0, err
	}
	entries, total, err := s.history.History(ctx, walletID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load history: %w", err)
	}
	return entries, total, nil
}

func (s *service) load(ctx context.Context, walletID string) (*models.Wallet, error) {
	w, err := s.store.Wallets().GetByID(ctx, walletID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return w, nil
}

func (s *service) invalidate(ctx context.Context, walletID string) {
	if err := s.cache.InvalidateWallets(ctx, walletID); err != nil {
		s.logger.Warn("wallet cache invalidation failed", zap.String("wallet_id", walletID), zap.Error(err))
	}
}

func (s *service) fail(op string, err error) error {
	if errors.Is(err, repositories.ErrConflict) {
		s.metrics.RecordError(op, "conflict")
		return apperrors.ErrConflictRetryExhausted
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		s.metrics.RecordError(op, domainErr.Code)
		return err
	}
	s.metrics.RecordError(op, "storage")
	return fmt.Errorf("failed to update wallet: %w", mapNotFound(err))
}

func authorize(ctx context.Context, w *models.Wallet) error {
	a, ok := actor.FromContext(ctx)
	if !ok || !a.CanUse(w) {
		return apperrors.ErrNotOwner
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, repositories.ErrWalletNotFound) {
		return apperrors.ErrWalletNotFound
	}
	return err
}
