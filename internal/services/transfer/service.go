package transfer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"parkpay/internal/actor"
	apperrors "parkpay/internal/errors"
	"parkpay/internal/metrics"
	"parkpay/internal/models"
	"parkpay/internal/repositories"
	"parkpay/internal/services/ledger"
	"parkpay/internal/services/notification"

	"go.uber.org/zap"
)

type service struct {
	store    repositories.Store
	ledger   Ledger
	limits   LimitAuthorizer
	cache    CacheInvalidator
	notifier notification.Notifier
	config   Config
	metrics  metrics.Collector
	logger   *zap.Logger
}

// NewService creates the transfer engine.
func NewService(
	store repositories.Store,
	ledger Ledger,
	limits LimitAuthorizer,
	cache CacheInvalidator,
	notifier notification.Notifier,
	config Config,
	collector metrics.Collector,
	logger *zap.Logger,
) Service {
	if store == nil {
		panic("store is required")
	}
	if ledger == nil {
		panic("ledger is required")
	}
	if limits == nil {
		panic("limit authorizer is required")
	}
	if cache == nil {
		panic("cache is required")
	}

	if notifier == nil {
		notifier = notification.Noop{}
	}
	if config.RetryPolicy.MaxAttempts <= 0 {
		config.RetryPolicy = repositories.DefaultRetryPolicy
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if collector == nil {
		collector = metrics.NoopCollector{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &service{
		store:    store,
		ledger:   ledger,
		limits:   limits,
		cache:    cache,
		notifier: notifier,
		config:   config,
		metrics:  collector,
		logger:   logger,
	}
}

// posting is what one attempt of a movement wrote.
type posting struct {
	entry    *models.WalletTransaction
	related  []*models.WalletTransaction
	balances []BalanceUpdate
	currency string
}

func (p *posting) result() *Result {
	return &Result{Transaction: p.entry, Related: p.related, Balances: p.balances}
}

// execute runs one idempotent movement. intent describes the request for
// replay detection; post performs the writes inside a transaction and is
// retried from scratch on version conflicts.
func (s *service) execute(ctx context.Context, op string, intent *models.WalletTransaction, post func(ctx context.Context, tx repositories.Store, now time.Time) (*posting, error)) (*Result, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration(op, time.Since(start)) }()

	if replay, err := s.replay(ctx, nil, intent); err != nil || replay != nil {
		return s.finishReplay(op, replay, err)
	}

	var (
		committed *posting
		replayed  *Result
	)
	err := repositories.Retry(ctx, s.config.RetryPolicy, func(int) { s.metrics.RecordConflictRetry(op) }, func() error {
		committed, replayed = nil, nil
		return s.store.WithinTx(ctx, func(tx repositories.Store) error {
			// Re-check under the transaction so a request that lost the race
			// replays instead of tripping over balances the winner changed.
			replay, err := s.replay(ctx, tx, intent)
			if err != nil || replay != nil {
				replayed = replay
				return err
			}
			p, err := post(ctx, tx, s.now())
			if err != nil {
				return err
			}
			committed = p
			return nil
		})
	})
	if err == nil && replayed != nil {
		return s.finishReplay(op, replayed, nil)
	}
	if errors.Is(err, ledger.ErrDuplicateReference) {
		// A concurrent request with the same reference won the insert.
		replay, replayErr := s.replay(ctx, nil, intent)
		if replayErr != nil || replay != nil {
			return s.finishReplay(op, replay, replayErr)
		}
	}
	if err != nil {
		return nil, s.fail(op, intent.ReferenceID, err)
	}

	s.afterCommit(ctx, op, committed)
	return committed.result(), nil
}

// replay returns the stored outcome when intent's reference was already used
// for the same movement, and ErrReferenceReused when it was used for another.
func (s *service) replay(ctx context.Context, tx repositories.Store, intent *models.WalletTransaction) (*Result, error) {
	existing, err := s.ledger.FindByReference(ctx, tx, intent.ReferenceID)
	if errors.Is(err, apperrors.ErrTransactionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !existing.SameRequest(intent) {
		return nil, apperrors.ErrReferenceReused
	}
	if err := s.authorizeEntry(ctx, tx, existing); err != nil {
		return nil, err
	}
	return &Result{Transaction: existing, Replayed: true}, nil
}

func (s *service) finishReplay(op string, replay *Result, err error) (*Result, error) {
	if err != nil {
		return nil, s.fail(op, "", err)
	}
	s.metrics.RecordOperationResult(op, "replayed")
	return replay, nil
}

// authorizeEntry checks the caller against the wallet that initiated entry:
// the sender, or the receiver for inbound movements.
func (s *service) authorizeEntry(ctx context.Context, tx repositories.Store, entry *models.WalletTransaction) error {
	if tx == nil {
		tx = s.store
	}
	walletID := entry.SenderWalletID
	if entry.Type == models.TransactionTypeDeposit || walletID == nil {
		walletID = entry.ReceiverWalletID
	}
	w, err := s.loadWallet(ctx, tx, models.Deref(walletID))
	if err != nil {
		return err
	}
	return authorize(ctx, w)
}

func (s *service) loadWallet(ctx context.Context, tx repositories.Store, walletID string) (*models.Wallet, error) {
	w, err := tx.Wallets().GetByID(ctx, walletID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return w, nil
}

// leg is one balance adjustment of a movement.
type leg struct {
	wallet *models.Wallet
	delta  int64
}

// applyLegs adjusts balances in wallet id order so concurrent movements over
// the same pair of wallets lock rows in the same order. Legs on the same
// wallet are merged into one guarded update.
func (s *service) applyLegs(ctx context.Context, tx repositories.Store, legs ...leg) ([]BalanceUpdate, error) {
	merged := make(map[string]*leg, len(legs))
	order := make([]string, 0, len(legs))
	for _, l := range legs {
		if m, ok := merged[l.wallet.ID]; ok {
			m.delta += l.delta
			continue
		}
		l := l
		merged[l.wallet.ID] = &l
		order = append(order, l.wallet.ID)
	}
	sort.Strings(order)

	updates := make([]BalanceUpdate, 0, len(order))
	for _, id := range order {
		l := merged[id]
		if l.delta == 0 {
			continue
		}
		change, err := tx.Wallets().AdjustBalance(ctx, id, l.delta, l.wallet.Version)
		if err != nil {
			return nil, mapStoreError(err)
		}
		updates = append(updates, BalanceUpdate{BalanceChange: change, Delta: l.delta})
	}
	return updates, nil
}

// balanceOf returns the post-movement balance of walletID.
func balanceOf(updates []BalanceUpdate, walletID string) *int64 {
	for _, u := range updates {
		if u.WalletID == walletID {
			b := u.Balance
			return &b
		}
	}
	return nil
}

// afterCommit runs outside the transaction. Nothing here can fail the movement.
func (s *service) afterCommit(ctx context.Context, op string, p *posting) {
	ids := make([]string, 0, len(p.balances))
	for _, b := range p.balances {
		ids = append(ids, b.WalletID)
	}
	if len(ids) > 0 {
		if err := s.cache.InvalidateWallets(ctx, ids...); err != nil {
			s.logger.Warn("wallet cache invalidation failed", zap.Strings("wallet_ids", ids), zap.Error(err))
		}
	}

	s.metrics.RecordOperationResult(op, string(p.entry.Status))
	s.metrics.RecordTransactionVolume(string(p.entry.Type), p.entry.Currency, p.entry.Amount)

	for _, b := range p.balances {
		s.notifier.OnBalanceChanged(ctx, notification.BalanceChanged{
			WalletID:      b.WalletID,
			TransactionID: p.entry.ID,
			ReferenceID:   p.entry.ReferenceID,
			Delta:         b.Delta,
			Balance:       b.Balance,
			Version:       b.Version,
			Currency:      p.currency,
			OccurredAt:    s.config.Clock().UTC(),
		})
	}
	for _, entry := range append([]*models.WalletTransaction{p.entry}, p.related...) {
		s.notifySettled(ctx, entry)
	}

	s.logger.Info("movement committed",
		zap.String("operation", op),
		zap.String("transaction_id", p.entry.ID),
		zap.String("reference_id", p.entry.ReferenceID),
		zap.String("type", string(p.entry.Type)),
		zap.String("status", string(p.entry.Status)),
		zap.Int64("amount", p.entry.Amount))
}

func (s *service) notifySettled(ctx context.Context, entry *models.WalletTransaction) {
	if entry.Status == models.TransactionStatusPending {
		return
	}
	base := notification.TransactionSettled{
		TransactionID: entry.ID,
		ReferenceID:   entry.ReferenceID,
		Type:          string(entry.Type),
		Status:        string(entry.Status),
		Amount:        entry.Amount,
		Currency:      entry.Currency,
		Note:          entry.Note,
		OccurredAt:    s.config.Clock().UTC(),
	}
	if entry.SenderWalletID != nil {
		e := base
		e.WalletID = *entry.SenderWalletID
		e.CounterpartyID = models.Deref(entry.ReceiverWalletID)
		e.Direction = notification.DirectionDebit
		s.notifier.OnTransactionSettled(ctx, e)
	}
	if entry.ReceiverWalletID != nil {
		e := base
		e.WalletID = *entry.ReceiverWalletID
		e.CounterpartyID = models.Deref(entry.SenderWalletID)
		e.Direction = notification.DirectionCredit
		s.notifier.OnTransactionSettled(ctx, e)
	}
}

func (s *service) fail(op, referenceID string, err error) error {
	if errors.Is(err, repositories.ErrConflict) {
		s.metrics.RecordError(op, "conflict")
		s.logger.Warn("movement retries exhausted", zap.String("operation", op), zap.String("reference_id", referenceID))
		return apperrors.ErrConflictRetryExhausted
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		s.metrics.RecordError(op, domainErr.Code)
		return err
	}
	var limitErr *apperrors.LimitExceededError
	if errors.As(err, &limitErr) {
		s.metrics.RecordError(op, "limit_"+string(limitErr.Kind))
		return err
	}
	s.metrics.RecordError(op, "storage")
	s.logger.Error("movement failed", zap.String("operation", op), zap.String("reference_id", referenceID), zap.Error(err))
	return fmt.Errorf("failed to %s: %w", op, err)
}

func (s *service) now() time.Time {
	return s.config.Clock().UTC()
}

func authorize(ctx context.Context, w *models.Wallet) error {
	a, ok := actor.FromContext(ctx)
	if !ok || !a.CanUse(w) {
		return apperrors.ErrNotOwner
	}
	return nil
}

func requirePrivileged(ctx context.Context) error {
	a, ok := actor.FromContext(ctx)
	if !ok || !a.Privileged() {
		return apperrors.ErrNotOwner
	}
	return nil
}

func validateReference(ref string) error {
	if ref == "" {
		return apperrors.ErrMissingReference
	}
	if len(ref) > maxReferenceLength {
		return apperrors.ErrReferenceTooLong
	}
	return nil
}

// validateCallerReference also keeps callers out of the namespaces the engine
// derives its own references from.
func validateCallerReference(ref string) error {
	if err := validateReference(ref); err != nil {
		return err
	}
	if models.IsReservedReference(ref) {
		return apperrors.ErrReservedReference
	}
	return nil
}

// mapStoreError turns repository sentinels into domain errors. ErrConflict
// passes through untouched so Retry can see it.
func mapStoreError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrWalletNotFound):
		return apperrors.ErrWalletNotFound
	case errors.Is(err, repositories.ErrInsufficientFunds):
		return apperrors.ErrInsufficientFunds
	}
	return err
}
