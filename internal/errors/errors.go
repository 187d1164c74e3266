// Package errors holds the domain error taxonomy shared by services and handlers.
// Callers match with errors.Is against the exported values.
package errors

import "fmt"

// DomainError is a stable, client-facing failure with a machine-readable code.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so wrapped copies still compare equal.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// LimitKind names which spending cap was hit.
type LimitKind string

const (
	LimitSingle  LimitKind = "single"
	LimitDaily   LimitKind = "daily"
	LimitMonthly LimitKind = "monthly"
)

// LimitExceededError reports the cap that rejected a debit.
type LimitExceededError struct {
	Kind      LimitKind
	Limit     int64
	Used      int64
	Requested int64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit exceeded: limit %d, used %d, requested %d", e.Kind, e.Limit, e.Used, e.Requested)
}

func (e *LimitExceededError) Unwrap() error {
	return ErrLimitExceeded
}

// NewLimitExceeded builds a LimitExceededError.
func NewLimitExceeded(kind LimitKind, limit, used, requested int64) error {
	return &LimitExceededError{Kind: kind, Limit: limit, Used: used, Requested: requested}
}
