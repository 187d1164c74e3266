package paymentrequest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"parkpay/internal/actor"
	apperrors "parkpay/internal/errors"
	"parkpay/internal/metrics"
	"parkpay/internal/models"
	"parkpay/internal/repositories"
	"parkpay/internal/services/transfer"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const maxRefAttempts = 3

type service struct {
	store     repositories.Store
	transfers Transferer
	config    Config
	metrics   metrics.Collector
	logger    *zap.Logger
}

// NewService creates the payment request service.
func NewService(store repositories.Store, transfers Transferer, config Config, collector metrics.Collector, logger *zap.Logger) Service {
	if store == nil {
		panic("store is required")
	}
	if transfers == nil {
		panic("transfer service is required")
	}

	if config.DefaultTTL <= 0 {
		config.DefaultTTL = defaultTTL
	}
	if config.MaxTTL <= 0 {
		config.MaxTTL = defaultMaxTTL
	}
	if config.QRBaseURL == "" {
		config.QRBaseURL = defaultQRBaseURL
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
		store:     store,
		transfers: transfers,
		config:    config,
		metrics:   collector,
		logger:    logger,
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*models.PaymentRequest, error) {
	if req.Amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	ttl := req.TTL
	if ttl == 0 {
		ttl = s.config.DefaultTTL
	}
	if ttl < 0 || ttl > s.config.MaxTTL {
		return nil, apperrors.ErrInvalidExpiry
	}

	payee, err := s.wallet(ctx, req.PayeeWalletID)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, payee); err != nil {
		return nil, err
	}
	if !payee.IsActive() {
		return nil, apperrors.ErrWalletNotActive
	}
	if req.PayerWalletID != "" {
		if req.PayerWalletID == payee.ID {
			return nil, apperrors.ErrSelfTransfer
		}
		payer, err := s.wallet(ctx, req.PayerWalletID)
		if err != nil {
			return nil, err
		}
		if payer.Currency != payee.Currency {
			return nil, apperrors.ErrCurrencyMismatch
		}
	}

	expiresAt := s.now().Add(ttl)
	pr := &models.PaymentRequest{
		PayeeWalletID: payee.ID,
		PayerWalletID: models.StringRef(req.PayerWalletID),
		Amount:        req.Amount,
		Currency:      payee.Currency,
		Description:   req.Description,
		Status:        models.PaymentRequestPending,
		ExpiresAt:     &expiresAt,
	}

	for attempt := 1; ; attempt++ {
		ref, err := newPaymentRef()
		if err != nil {
			return nil, err
		}
		pr.PaymentRef = ref
		if pr.PayerWalletID == nil {
			pr.QRCode = Payload(s.config.QRBaseURL, ref)
		}

		err = s.store.PaymentRequests().Create(ctx, pr)
		if err == nil {
			break
		}
		if !errors.Is(err, repositories.ErrDuplicatePaymentRef) || attempt == maxRefAttempts {
			s.metrics.RecordError(opCreate, "storage")
			return nil, fmt.Errorf("failed to create payment request: %w", err)
		}
		pr.ID = ""
	}

	s.metrics.RecordOperationResult(opCreate, "success")
	s.logger.Info("payment request created",
		zap.String("payment_ref", pr.PaymentRef),
		zap.String("payee_wallet_id", pr.PayeeWalletID),
		zap.Int64("amount", pr.Amount))
	return pr, nil
}

func (s *service) Get(ctx context.Context, refOrID string) (*models.PaymentRequest, error) {
	pr, err := s.lookup(ctx, refOrID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(ctx, pr); err != nil {
		return nil, err
	}
	s.expireIfDue(ctx, pr)
	return pr, nil
}

func (s *service) Fulfill(ctx context.Context, refOrID, payerWalletID string) (*Fulfillment, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration(opFulfill, time.Since(start)) }()

	pr, err := s.lookup(ctx, refOrID)
	if err != nil {
		return nil, s.fail(opFulfill, err)
	}
	if s.expireIfDue(ctx, pr) || pr.Status == models.PaymentRequestExpired {
		return nil, s.fail(opFulfill, apperrors.ErrPaymentRequestExpired)
	}
	if pr.Status == models.PaymentRequestCancelled {
		return nil, s.fail(opFulfill, apperrors.ErrPaymentRequestNotPending)
	}
	if pr.PayerWalletID != nil && *pr.PayerWalletID != payerWalletID {
		return nil, s.fail(opFulfill, apperrors.ErrPayerMismatch)
	}

	// A COMPLETED request falls through to the transfer, which replays for the
	// payer that paid it and rejects the reference for anyone else.
	res, err := s.transfers.TransferWith(ctx, transfer.TransferRequest{
		FromWalletID: payerWalletID,
		ToWalletID:   pr.PayeeWalletID,
		Amount:       pr.Amount,
		ReferenceID:  TransferReferencePrefix + pr.ID,
		Note:         pr.Description,
	}, func(ctx context.Context, tx repositories.Store, entry *models.WalletTransaction) error {
		current, err := tx.PaymentRequests().GetByID(ctx, pr.ID)
		if err != nil {
			return err
		}
		if current.IsExpired(entry.CreatedAt) {
			return apperrors.ErrPaymentRequestExpired
		}
		err = tx.PaymentRequests().Transition(ctx, pr.ID, models.PaymentRequestPending, models.PaymentRequestCompleted, &entry.ID)
		if errors.Is(err, repositories.ErrInvalidTransition) {
			return apperrors.ErrPaymentRequestNotPending
		}
		return err
	})
	if errors.Is(err, apperrors.ErrReferenceReused) {
		err = apperrors.ErrPaymentRequestNotPending
	}
	if err != nil {
		return nil, s.fail(opFulfill, err)
	}
	if res.Replayed {
		// The reference alone does not prove the request was paid by this
		// entry; the stored request must point at it.
		stored, err := s.store.PaymentRequests().GetByID(ctx, pr.ID)
		if err != nil {
			return nil, s.fail(opFulfill, fmt.Errorf("failed to reload payment request: %w", err))
		}
		if stored.Status != models.PaymentRequestCompleted || models.Deref(stored.TransactionID) != res.Transaction.ID {
			s.logger.Warn("payment request reference replayed without completing the request",
				zap.String("payment_ref", pr.PaymentRef),
				zap.String("transaction_id", res.Transaction.ID))
			return nil, s.fail(opFulfill, apperrors.ErrPaymentRequestNotPending)
		}
	}

	pr.Status = models.PaymentRequestCompleted
	pr.TransactionID = &res.Transaction.ID
	if res.Replayed {
		s.metrics.RecordOperationResult(opFulfill, "replayed")
	} else {
		s.metrics.RecordOperationResult(opFulfill, "success")
		s.logger.Info("payment request fulfilled",
			zap.String("payment_ref", pr.PaymentRef),
			zap.String("payer_wallet_id", payerWalletID),
			zap.String("transaction_id", res.Transaction.ID))
	}
	return &Fulfillment{Request: pr, Transfer: res}, nil
}

func (s *service) Cancel(ctx context.Context, refOrID string) (*models.PaymentRequest, error) {
	pr, err := s.lookup(ctx, refOrID)
	if err != nil {
		return nil, s.fail(opCancel, err)
	}
	payee, err := s.wallet(ctx, pr.PayeeWalletID)
	if err != nil {
		return nil, s.fail(opCancel, err)
	}
	if err := authorize(ctx, payee); err != nil {
		return nil, s.fail(opCancel, err)
	}
	if s.expireIfDue(ctx, pr) {
		return nil, s.fail(opCancel, apperrors.ErrPaymentRequestExpired)
	}
	if pr.Status != models.PaymentRequestPending {
		return nil, s.fail(opCancel, apperrors.ErrPaymentRequestNotPending)
	}

	err = s.store.PaymentRequests().Transition(ctx, pr.ID, models.PaymentRequestPending, models.PaymentRequestCancelled, nil)
	if errors.Is(err, repositories.ErrInvalidTransition) {
		return nil, s.fail(opCancel, apperrors.ErrPaymentRequestNotPending)
	}
	if err != nil {
		return nil, s.fail(opCancel, err)
	}
	pr.Status = models.PaymentRequestCancelled
	s.metrics.RecordOperationResult(opCancel, "success")
	return pr, nil
}

func (s *service) QRImage(ctx context.Context, refOrID string) ([]byte, error) {
	pr, err := s.Get(ctx, refOrID)
	if err != nil {
		return nil, err
	}
	if pr.Status != models.PaymentRequestPending {
		return nil, apperrors.ErrPaymentRequestNotPending
	}
	png, err := qrcode.Encode(Payload(s.config.QRBaseURL, pr.PaymentRef), qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR code: %w", err)
	}
	return png, nil
}

func (s *service) ListForWallet(ctx context.Context, walletID string, status models.PaymentRequestStatus) ([]models.PaymentRequest, error) {
	w, err := s.wallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, w); err != nil {
		return nil, err
	}

	requests, err := s.store.PaymentRequests().ListByPayee(ctx, walletID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment requests: %w", err)
	}
	out := requests[:0]
	for i := range requests {
		s.expireIfDue(ctx, &requests[i])
		if status == "" || requests[i].Status == status {
			out = append(out, requests[i])
		}
	}
	return out, nil
}

// lookup resolves a payment ref, a scanned payload or a request id.
func (s *service) lookup(ctx context.Context, refOrID string) (*models.PaymentRequest, error) {
	var (
		pr  *models.PaymentRequest
		err error
	)
	switch {
	case isPayload(refOrID):
		ref, parseErr := ParsePayload(refOrID)
		if parseErr != nil {
			return nil, parseErr
		}
		pr, err = s.store.PaymentRequests().GetByRef(ctx, ref)
	case strings.HasPrefix(refOrID, RefPrefix):
		pr, err = s.store.PaymentRequests().GetByRef(ctx, refOrID)
	default:
		pr, err = s.store.PaymentRequests().GetByID(ctx, refOrID)
	}
	if errors.Is(err, repositories.ErrPaymentRequestNotFound) {
		return nil, apperrors.ErrPaymentRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment request: %w", err)
	}
	return pr, nil
}

// expireIfDue persists the EXPIRED state of a pending request past its
// deadline and reports whether it did.
func (s *service) expireIfDue(ctx context.Context, pr *models.PaymentRequest) bool {
	if !pr.IsExpired(s.now()) {
		return false
	}
	err := s.store.PaymentRequests().Transition(ctx, pr.ID, models.PaymentRequestPending, models.PaymentRequestExpired, nil)
	if err != nil && !errors.Is(err, repositories.ErrInvalidTransition) {
		s.logger.Warn("failed to expire payment request", zap.String("payment_ref", pr.PaymentRef), zap.Error(err))
	}
	pr.Status = models.PaymentRequestExpired
	return true
}

// authorizeView lets anyone see an open request, since its QR code is meant
// to be shared. Bound requests are visible to the payee and the payer.
func (s *service) authorizeView(ctx context.Context, pr *models.PaymentRequest) error {
	a, ok := actor.FromContext(ctx)
	if !ok {
		return apperrors.ErrNotOwner
	}
	if pr.PayerWalletID == nil || a.Privileged() {
		return nil
	}
	for _, id := range []string{pr.PayeeWalletID, *pr.PayerWalletID} {
		w, err := s.wallet(ctx, id)
		if err != nil {
			continue
		}
		if a.CanUse(w) {
			return nil
		}
	}
	return apperrors.ErrNotOwner
}

func (s *service) wallet(ctx context.Context, walletID string) (*models.Wallet, error) {
	w, err := s.store.Wallets().GetByID(ctx, walletID)
	if errors.Is(err, repositories.ErrWalletNotFound) {
		return nil, apperrors.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return w, nil
}

func (s *service) fail(op string, err error) error {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		s.metrics.RecordError(op, domainErr.Code)
	} else {
		s.metrics.RecordError(op, "other")
	}
	return err
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
