// FILE: internal/entity/membership_entity.go
package entity

import (
	"time"

	"github.com/google/uuid"
)

type MembershipStatus string
type RefundStatus string
type PaymentStatus string
type UserMembershipStatus string

const (
	MembershipStatusInactive MembershipStatus = "inactive"
	MembershipStatusActive   MembershipStatus = "active"
	MembershipStatusPastDue  MembershipStatus = "past_due"
	MembershipStatusCanceled MembershipStatus = "canceled"

	RefundStatusPending  RefundStatus = "pending"
	RefundStatusRefunded RefundStatus = "Refunded"
	RefundStatusPartial  RefundStatus = "Partial Refund"

	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusFailed    PaymentStatus = "failed"

	// User-facing projection written onto the user profile
	UserMembershipActive   UserMembershipStatus = "Active"
	UserMembershipInactive UserMembershipStatus = "Inactive"
	UserMembershipExpired  UserMembershipStatus = "Expired"
)

// Membership is one user's recurring billing relationship. Records are never
// hard-deleted; a canceled membership stays as billing history.
type Membership struct {
	Id                   uuid.UUID
	UserId               uuid.UUID
	StripeCustomerId     string
	StripeSubscriptionId string
	Status               MembershipStatus
	StartDate            time.Time
	EndDate              time.Time
	AutoRenew            bool
	RefundAmount         *float64
	RefundStatus         *RefundStatus
	RefundDate           *time.Time
	StripeChargeId       *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Payment is an immutable ledger entry for one billing attempt.
type Payment struct {
	Id                    uuid.UUID
	UserId                uuid.UUID
	MembershipId          uuid.UUID
	StripePaymentIntentId string
	StripeInvoiceId       string
	Amount                float64 // major currency units
	Currency              string
	Status                PaymentStatus
	PaymentDate           time.Time
	CreatedAt             time.Time
}
