// FILE: internal/entity/cancellation_entity.go
package entity

import "time"

// CancellationType is the tier a cancellation falls into
type CancellationType string

const (
	CancellationTestExpire    CancellationType = "test_expire"
	CancellationFirstYear     CancellationType = "first_year"
	CancellationGracePeriod   CancellationType = "grace_period"
	CancellationBefore6Months CancellationType = "before_6_months"
	CancellationAfter6Months  CancellationType = "after_6_months"
)

// CancellationDecision is computed on every evaluation and never stored.
type CancellationDecision struct {
	CancelDate       time.Time
	RefundPercentage float64 // 0, 0.5 or 1
	CancellationType CancellationType
}

// IsImmediate reports whether the provider should cancel right away
func (d CancellationDecision) IsImmediate() bool {
	return d.CancellationType == CancellationGracePeriod
}
