package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type gormStore struct {
	db   *gorm.DB
	inTx bool
}

// NewStore returns a Store backed by gorm.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// WithinTx runs fn in a database transaction. Nested calls join the outer one.
func (s *gormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx, inTx: true})
	})
}

func (s *gormStore) Wallets() WalletRepository {
	return &walletRepository{db: s.db}
}

func (s *gormStore) Transactions() TransactionRepository {
	return &transactionRepository{db: s.db}
}

func (s *gormStore) PaymentRequests() PaymentRequestRepository {
	return &paymentRequestRepository{db: s.db}
}

func (s *gormStore) BankAccounts() BankAccountRepository {
	return &bankAccountRepository{db: s.db}
}

func (s *gormStore) Parking() ParkingRepository {
	return &parkingRepository{db: s.db}
}

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// notFound maps gorm.ErrRecordNotFound to the repository sentinel.
func notFound(err error, sentinel error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
