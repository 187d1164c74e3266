package notification

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event types
const (
	EventBalanceChanged     = "wallet.balance_changed"
	EventTransactionSettled = "wallet.transaction_settled"
)

// BalanceChanged is emitted once per wallet touched by a committed movement.
type BalanceChanged struct {
	WalletID      string    `json:"wallet_id"`
	TransactionID string    `json:"transaction_id"`
	ReferenceID   string    `json:"reference_id"`
	Delta         int64     `json:"delta"`
	Balance       int64     `json:"balance"`
	Version       int64     `json:"version"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// TransactionSettled tells one party that a ledger entry reached a final state.
type TransactionSettled struct {
	WalletID       string    `json:"wallet_id"`
	CounterpartyID string    `json:"counterparty_id,omitempty"`
	TransactionID  string    `json:"transaction_id"`
	ReferenceID    string    `json:"reference_id"`
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	Direction      string    `json:"direction"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	Note           string    `json:"note,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Directions for TransactionSettled.
const (
	DirectionDebit  = "debit"
	DirectionCredit = "credit"
)

// Event is the envelope delivered to sinks.
type Event struct {
	ID         string          `json:"event_id"`
	Type       string          `json:"type"`
	WalletID   string          `json:"wallet_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// NewEvent wraps data in an envelope with a fresh ULID.
func NewEvent(eventType, walletID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		WalletID:   walletID,
		OccurredAt: time.Now().UTC(),
		Data:       dataBytes,
	}, nil
}

// DecodeData decodes the event data into v.
func (e *Event) DecodeData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}
