// Package policy decides the cancellation tier and refund owed for an annual
// membership at a given moment.
package policy

import (
	"errors"
	"time"

	"club-directory-be/internal/entity"
)

var ErrInvalidStartDate = errors.New("membership start date is not set")

const (
	GracePeriodDays  = 30
	TestExpireWindow = 3 * time.Minute
)

// Calculate is pure: the same inputs always yield the same decision.
// testMode must only be true when the billing configuration allows it.
func Calculate(startDate, now time.Time, testMode bool) (entity.CancellationDecision, error) {
	if startDate.IsZero() {
		return entity.CancellationDecision{}, ErrInvalidStartDate
	}

	renewal := startDate.AddDate(1, 0, 0)
	graceEnd := renewal.AddDate(0, 0, GracePeriodDays)
	sixMonth := renewal.AddDate(0, 6, 0)

	switch {
	case testMode:
		return entity.CancellationDecision{
			CancelDate:       now.Add(TestExpireWindow),
			RefundPercentage: 0,
			CancellationType: entity.CancellationTestExpire,
		}, nil
	case now.Before(renewal):
		return entity.CancellationDecision{
			CancelDate:       renewal,
			RefundPercentage: 0,
			CancellationType: entity.CancellationFirstYear,
		}, nil
	case now.Before(graceEnd):
		return entity.CancellationDecision{
			CancelDate:       now,
			RefundPercentage: 1,
			CancellationType: entity.CancellationGracePeriod,
		}, nil
	case now.Before(sixMonth):
		return entity.CancellationDecision{
			CancelDate:       sixMonth,
			RefundPercentage: 0.5,
			CancellationType: entity.CancellationBefore6Months,
		}, nil
	default:
		return entity.CancellationDecision{
			CancelDate:       renewal,
			RefundPercentage: 0,
			CancellationType: entity.CancellationAfter6Months,
		}, nil
	}
}

// RefundMinorUnits converts a paid amount in minor units into the refund owed
// for the given percentage, rounded to the nearest minor unit.
func RefundMinorUnits(amountPaid int64, percentage float64) int64 {
	if amountPaid <= 0 || percentage <= 0 {
		return 0
	}
	v := float64(amountPaid) * percentage
	return int64(v + 0.5)
}
