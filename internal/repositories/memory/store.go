// Package memory is an in-process Store with the same guarded-update
// semantics as the postgres implementation. Transactions are serialized and
// run against a private copy that replaces the committed state on success.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"parkpay/internal/models"
	"parkpay/internal/repositories"

	"github.com/google/uuid"
)

type state struct {
	wallets      map[string]models.Wallet
	txns         map[string]models.WalletTransaction
	txnSeq       map[string]int64
	txnByRef     map[string]string
	requests     map[string]models.PaymentRequest
	requestByRef map[string]string
	banks        map[string]models.BankAccount
	lots         map[string]models.ParkingLot
	slots        map[string]models.ParkingSlot
	tokens       map[string]models.ParkingToken
	seq          int64
}

func newState() *state {
	return &state{
		wallets:      map[string]models.Wallet{},
		txns:         map[string]models.WalletTransaction{},
		txnSeq:       map[string]int64{},
		txnByRef:     map[string]string{},
		requests:     map[string]models.PaymentRequest{},
		requestByRef: map[string]string{},
		banks:        map[string]models.BankAccount{},
		lots:         map[string]models.ParkingLot{},
		slots:        map[string]models.ParkingSlot{},
		tokens:       map[string]models.ParkingToken{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.txns {
		c.txns[k] = v
	}
	for k, v := range s.txnSeq {
		c.txnSeq[k] = v
	}
	for k, v := range s.txnByRef {
		c.txnByRef[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.requestByRef {
		c.requestByRef[k] = v
	}
	for k, v := range s.banks {
		c.banks[k] = v
	}
	for k, v := range s.lots {
		c.lots[k] = v
	}
	for k, v := range s.slots {
		c.slots[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	c.seq = s.seq
	return c
}

type engine struct {
	mu        sync.Mutex
	committed *state
}

// Store implements repositories.Store in memory.
type Store struct {
	eng  *engine
	st   *state
	inTx bool
}

// NewStore returns an empty in-memory Store.
func NewStore() *Store {
	return &Store{eng: &engine{committed: newState()}}
}

var _ repositories.Store = (*Store)(nil)

func (s *Store) WithinTx(ctx context.Context, fn func(tx repositories.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.eng.mu.Lock()
	defer s.eng.mu.Unlock()

	work := s.eng.committed.clone()
	if err := fn(&Store{eng: s.eng, st: work, inTx: true}); err != nil {
		return err
	}
	s.eng.committed = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// do runs fn against the transaction's working copy, or against the
// committed state under the lock when called outside a transaction.
func (s *Store) do(fn func(st *state) error) error {
	if s.inTx {
		return fn(s.st)
	}
	s.eng.mu.Lock()
	defer s.eng.mu.Unlock()
	return fn(s.eng.committed)
}

func (s *Store) Wallets() repositories.WalletRepository {
	return &walletRepo{s}
}

func (s *Store) Transactions() repositories.TransactionRepository {
	return &transactionRepo{s}
}

func (s *Store) PaymentRequests() repositories.PaymentRequestRepository {
	return &paymentRequestRepo{s}
}

func (s *Store) BankAccounts() repositories.BankAccountRepository {
	return &bankAccountRepo{s}
}

func (s *Store) Parking() repositories.ParkingRepository {
	return &parkingRepo{s}
}

type walletRepo struct{ s *Store }

func (r *walletRepo) Create(ctx context.Context, wallet *models.Wallet) error {
	return r.s.do(func(st *state) error {
		for _, w := range st.wallets {
			if w.OwnerType == wallet.OwnerType && w.OwnerID == wallet.OwnerID && w.WalletType == wallet.WalletType {
				return repositories.ErrDuplicateWallet
			}
		}
		if wallet.ID == "" {
			wallet.ID = uuid.NewString()
		}
		if wallet.Status == "" {
			wallet.Status = models.WalletStatusActive
		}
		now := time.Now()
		wallet.CreatedAt, wallet.UpdatedAt = now, now
		st.wallets[wallet.ID] = *wallet
		return nil
	})
}

func (r *walletRepo) GetByID(ctx context.Context, id string) (*models.Wallet, error) {
	var out models.Wallet
	err := r.s.do(func(st *state) error {
		w, ok := st.wallets[id]
		if !ok {
			return repositories.ErrWalletNotFound
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *walletRepo) GetByOwner(ctx context.Context, ownerType models.OwnerType, ownerID string, walletType models.WalletType) (*models.Wallet, error) {
	var out models.Wallet
	err := r.s.do(func(st *state) error {
		for _, w := range st.wallets {
			if w.OwnerType == ownerType && w.OwnerID == ownerID && w.WalletType == walletType {
				out = w
				return nil
			}
		}
		return repositories.ErrWalletNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *walletRepo) AdjustBalance(ctx context.Context, id string, delta, expectedVersion int64) (models.BalanceChange, error) {
	var change models.BalanceChange
	err := r.s.do(func(st *state) error {
		w, ok := st.wallets[id]
		switch {
		case !ok:
			return repositories.ErrWalletNotFound
		case w.Version != expectedVersion:
			return repositories.ErrConflict
		case w.Balance+delta < 0:
			return repositories.ErrInsufficientFunds
		}
		w.Balance += delta
		w.Version++
		w.UpdatedAt = time.Now()
		st.wallets[id] = w
		change = models.BalanceChange{WalletID: id, Balance: w.Balance, Version: w.Version}
		return nil
	})
	return change, err
}

func (r *walletRepo) UpdateStatus(ctx context.Context, id string, status models.WalletStatus, expectedVersion int64) (int64, error) {
	return r.guarded(id, expectedVersion, func(w *models.Wallet) { w.Status = status })
}

func (r *walletRepo) UpdateLimits(ctx context.Context, id string, limits models.WalletLimits, expectedVersion int64) (int64, error) {
	return r.guarded(id, expectedVersion, func(w *models.Wallet) {
		w.DailyLimit = limits.Daily
		w.MonthlyLimit = limits.Monthly
		w.SingleTxnLimit = limits.Single
	})
}

func (r *walletRepo) guarded(id string, expectedVersion int64, apply func(w *models.Wallet)) (int64, error) {
	var version int64
	err := r.s.do(func(st *state) error {
		w, ok := st.wallets[id]
		if !ok {
			return repositories.ErrWalletNotFound
		}
		if w.Version != expectedVersion {
			return repositories.ErrConflict
		}
		apply(&w)
		w.Version++
		w.UpdatedAt = time.Now()
		st.wallets[id] = w
		version = w.Version
		return nil
	})
	return version, err
}

type transactionRepo struct{ s *Store }

func (r *transactionRepo) Create(ctx context.Context, txn *models.WalletTransaction) error {
	return r.s.do(func(st *state) error {
		if _, exists := st.txnByRef[txn.ReferenceID]; exists {
			return repositories.ErrDuplicateReference
		}
		if txn.ID == "" {
			txn.ID = uuid.NewString()
		}
		if txn.CreatedAt.IsZero() {
			txn.CreatedAt = time.Now()
		}
		st.seq++
		st.txns[txn.ID] = *txn
		st.txnSeq[txn.ID] = st.seq
		st.txnByRef[txn.ReferenceID] = txn.ID
		return nil
	})
}

func (r *transactionRepo) GetByID(ctx context.Context, id string) (*models.WalletTransaction, error) {
	var out models.WalletTransaction
	err := r.s.do(func(st *state) error {
		t, ok := st.txns[id]
		if !ok {
			return repositories.ErrTransactionNotFound
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *transactionRepo) GetByReference(ctx context.Context, referenceID string) (*models.WalletTransaction, error) {
	var out models.WalletTransaction
	err := r.s.do(func(st *state) error {
		id, ok := st.txnByRef[referenceID]
		if !ok {
			return repositories.ErrTransactionNotFound
		}
		out = st.txns[id]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *transactionRepo) Settle(ctx context.Context, id string, status models.TransactionStatus, balanceAfter *int64, at time.Time) error {
	return r.s.do(func(st *state) error {
		t, ok := st.txns[id]
		if !ok {
			return repositories.ErrTransactionNotFound
		}
		if t.Status != models.TransactionStatusPending {
			return repositories.ErrInvalidTransition
		}
		t.Status = status
		completedAt := at
		t.CompletedAt = &completedAt
		if balanceAfter != nil {
			b := *balanceAfter
			t.BalanceAfter = &b
		}
		st.txns[id] = t
		return nil
	})
}

func (r *transactionRepo) SumOutgoingSince(ctx context.Context, walletID string, since time.Time) (int64, error) {
	var total int64
	err := r.s.do(func(st *state) error {
		for _, t := range st.txns {
			if t.SenderWalletID == nil || *t.SenderWalletID != walletID {
				continue
			}
			if t.Status == models.TransactionStatusFailed || t.CreatedAt.Before(since) {
				continue
			}
			total += t.Amount
		}
		return nil
	})
	return total, err
}

func (r *transactionRepo) ListByWallet(ctx context.Context, walletID string, limit, offset int) ([]models.WalletTransaction, int64, error) {
	var page []models.WalletTransaction
	var total int64
	err := r.s.do(func(st *state) error {
		var all []models.WalletTransaction
		for _, t := range st.txns {
			if t.Involves(walletID) {
				all = append(all, t)
			}
		}
		sort.Slice(all, func(i, j int) bool {
			if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
				return all[i].CreatedAt.After(all[j].CreatedAt)
			}
			return st.txnSeq[all[i].ID] > st.txnSeq[all[j].ID]
		})
		total = int64(len(all))
		if offset >= len(all) {
			return nil
		}
		end := len(all)
		if limit > 0 && offset+limit < end {
			end = offset + limit
		}
		page = all[offset:end]
		return nil
	})
	return page, total, err
}

type paymentRequestRepo struct{ s *Store }

func (r *paymentRequestRepo) Create(ctx context.Context, req *models.PaymentRequest) error {
	return r.s.do(func(st *state) error {
		if _, exists := st.requestByRef[req.PaymentRef]; exists {
			return repositories.ErrDuplicatePaymentRef
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		now := time.Now()
		req.CreatedAt, req.UpdatedAt = now, now
		st.requests[req.ID] = *req
		st.requestByRef[req.PaymentRef] = req.ID
		return nil
	})
}

func (r *paymentRequestRepo) GetByID(ctx context.Context, id string) (*models.PaymentRequest, error) {
	var out models.PaymentRequest
	err := r.s.do(func(st *state) error {
		req, ok := st.requests[id]
		if !ok {
			return repositories.ErrPaymentRequestNotFound
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *paymentRequestRepo) GetByRef(ctx context.Context, paymentRef string) (*models.PaymentRequest, error) {
	var out models.PaymentRequest
	err := r.s.do(func(st *state) error {
		id, ok := st.requestByRef[paymentRef]
		if !ok {
			return repositories.ErrPaymentRequestNotFound
		}
		out = st.requests[id]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *paymentRequestRepo) Transition(ctx context.Context, id string, from, to models.PaymentRequestStatus, transactionID *string) error {
	return r.s.do(func(st *state) error {
		req, ok := st.requests[id]
		if !ok {
			return repositories.ErrPaymentRequestNotFound
		}
		if req.Status != from {
			return repositories.ErrInvalidTransition
		}
		req.Status = to
		if transactionID != nil {
			txID := *transactionID
			req.TransactionID = &txID
		}
		req.UpdatedAt = time.Now()
		st.requests[id] = req
		return nil
	})
}

func (r *paymentRequestRepo) ListByPayee(ctx context.Context, payeeWalletID string, status models.PaymentRequestStatus) ([]models.PaymentRequest, error) {
	var out []models.PaymentRequest
	err := r.s.do(func(st *state) error {
		for _, req := range st.requests {
			if req.PayeeWalletID != payeeWalletID {
				continue
			}
			if status != "" && req.Status != status {
				continue
			}
			out = append(out, req)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		return nil
	})
	return out, err
}

type bankAccountRepo struct{ s *Store }

func (r *bankAccountRepo) Create(ctx context.Context, account *models.BankAccount) error {
	return r.s.do(func(st *state) error {
		if account.ID == "" {
			account.ID = uuid.NewString()
		}
		now := time.Now()
		account.CreatedAt, account.UpdatedAt = now, now
		st.banks[account.ID] = *account
		return nil
	})
}

func (r *bankAccountRepo) GetByID(ctx context.Context, id string) (*models.BankAccount, error) {
	var out models.BankAccount
	err := r.s.do(func(st *state) error {
		b, ok := st.banks[id]
		if !ok {
			return repositories.ErrBankAccountNotFound
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *bankAccountRepo) AdjustSandboxBalance(ctx context.Context, id string, delta int64) error {
	return r.s.do(func(st *state) error {
		b, ok := st.banks[id]
		if !ok {
			return repositories.ErrBankAccountNotFound
		}
		if b.SandboxBalance+delta < 0 {
			return repositories.ErrInsufficientFunds
		}
		b.SandboxBalance += delta
		b.UpdatedAt = time.Now()
		st.banks[id] = b
		return nil
	})
}

type parkingRepo struct{ s *Store }

func (r *parkingRepo) CreateLot(ctx context.Context, lot *models.ParkingLot) error {
	return r.s.do(func(st *state) error {
		if lot.ID == "" {
			lot.ID = uuid.NewString()
		}
		lot.CreatedAt = time.Now()
		st.lots[lot.ID] = *lot
		return nil
	})
}

func (r *parkingRepo) GetLot(ctx context.Context, id string) (*models.ParkingLot, error) {
	var out models.ParkingLot
	err := r.s.do(func(st *state) error {
		lot, ok := st.lots[id]
		if !ok {
			return repositories.ErrLotNotFound
		}
		out = lot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *parkingRepo) CreateSlot(ctx context.Context, slot *models.ParkingSlot) error {
	return r.s.do(func(st *state) error {
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		if slot.Status == "" {
			slot.Status = models.SlotStatusAvailable
		}
		slot.UpdatedAt = time.Now()
		st.slots[slot.ID] = *slot
		return nil
	})
}

func (r *parkingRepo) GetSlot(ctx context.Context, id string) (*models.ParkingSlot, error) {
	var out models.ParkingSlot
	err := r.s.do(func(st *state) error {
		slot, ok := st.slots[id]
		if !ok {
			return repositories.ErrSlotNotFound
		}
		out = slot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *parkingRepo) OpenToken(ctx context.Context, token *models.ParkingToken) error {
	return r.s.do(func(st *state) error {
		slot, ok := st.slots[token.SlotID]
		if !ok {
			return repositories.ErrSlotNotFound
		}
		if slot.Status != models.SlotStatusAvailable {
			return repositories.ErrInvalidTransition
		}
		if token.ID == "" {
			token.ID = uuid.NewString()
		}
		token.Status = models.TokenStatusActive
		if token.EntryAt.IsZero() {
			token.EntryAt = time.Now()
		}
		st.tokens[token.ID] = *token

		tokenID := token.ID
		slot.Status = models.SlotStatusOccupied
		slot.TokenID = &tokenID
		slot.UpdatedAt = time.Now()
		st.slots[slot.ID] = slot
		return nil
	})
}

func (r *parkingRepo) GetToken(ctx context.Context, id string) (*models.ParkingToken, error) {
	var out models.ParkingToken
	err := r.s.do(func(st *state) error {
		token, ok := st.tokens[id]
		if !ok {
			return repositories.ErrTokenNotFound
		}
		out = token
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *parkingRepo) CompleteToken(ctx context.Context, id string, fee int64, at time.Time) error {
	return r.s.do(func(st *state) error {
		token, ok := st.tokens[id]
		if !ok {
			return repositories.ErrTokenNotFound
		}
		if token.Status != models.TokenStatusActive {
			return repositories.ErrInvalidTransition
		}
		completedAt := at
		token.Status = models.TokenStatusCompleted
		token.Fee = fee
		token.CompletedAt = &completedAt
		st.tokens[id] = token
		return nil
	})
}

func (r *parkingRepo) ReleaseSlot(ctx context.Context, slotID, tokenID string) error {
	return r.s.do(func(st *state) error {
		slot, ok := st.slots[slotID]
		if !ok {
			return repositories.ErrSlotNotFound
		}
		if slot.TokenID == nil || *slot.TokenID != tokenID {
			return repositories.ErrInvalidTransition
		}
		slot.Status = models.SlotStatusAvailable
		slot.TokenID = nil
		slot.UpdatedAt = time.Now()
		st.slots[slotID] = slot
		return nil
	})
}
