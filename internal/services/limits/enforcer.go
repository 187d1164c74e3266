// Package limits enforces per-wallet spending caps. Authorize must run inside
// the same transaction as the debit it guards: the rolling sums are read there
// and the debit is conditioned on the wallet version read at the start, so a
// concurrent debit forces a retry that sees the new totals.
package limits

import (
	"context"
	"fmt"
	"time"

	apperrors "parkpay/internal/errors"
	"parkpay/internal/models"
	"parkpay/internal/repositories"
)

// Enforcer checks single, daily and monthly caps in that order.
type Enforcer struct {
	loc *time.Location
}

// NewEnforcer computes calendar windows in loc. A nil loc means UTC.
func NewEnforcer(loc *time.Location) *Enforcer {
	if loc == nil {
		loc = time.UTC
	}
	return &Enforcer{loc: loc}
}

// Authorize returns a *errors.LimitExceededError when debiting amount from
// wallet at asOf would break one of its caps. Caps <= 0 are ignored.
func (e *Enforcer) Authorize(ctx context.Context, txns repositories.TransactionRepository, wallet *models.Wallet, amount int64, asOf time.Time) error {
	limits := wallet.Limits()

	if limits.Single > 0 && amount > limits.Single {
		return apperrors.NewLimitExceeded(apperrors.LimitSingle, limits.Single, 0, amount)
	}

	dayStart, monthStart := Windows(asOf, e.loc)

	if limits.Daily > 0 {
		used, err := txns.SumOutgoingSince(ctx, wallet.ID, dayStart)
		if err != nil {
			return fmt.Errorf("failed to compute daily usage: %w", err)
		}
		if used+amount > limits.Daily {
			return apperrors.NewLimitExceeded(apperrors.LimitDaily, limits.Daily, used, amount)
		}
	}

	if limits.Monthly > 0 {
		used, err := txns.SumOutgoingSince(ctx, wallet.ID, monthStart)
		if err != nil {
			return fmt.Errorf("failed to compute monthly usage: %w", err)
		}
		if used+amount > limits.Monthly {
			return apperrors.NewLimitExceeded(apperrors.LimitMonthly, limits.Monthly, used, amount)
		}
	}

	return nil
}

// Windows returns local midnight and the local first of the month for asOf.
func Windows(asOf time.Time, loc *time.Location) (dayStart, monthStart time.Time) {
	local := asOf.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc), time.Date(y, m, 1, 0, 0, 0, 0, loc)
}
