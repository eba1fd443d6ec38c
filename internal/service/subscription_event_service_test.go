package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"club-directory-be/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
)

func TestCheckoutCompleted_CreatesMembership(t *testing.T) {
	now := day(2025, 1, 1)
	h := newHarness(now)
	userId := h.seedUser(entity.UserMembershipInactive)

	res := h.svc.CheckoutCompleted(context.Background(), &stripe.CheckoutSession{
		ID:           "cs_1",
		Metadata:     map[string]string{"userId": userId.String()},
		Subscription: &stripe.Subscription{ID: "sub_1"},
		Customer:     &stripe.Customer{ID: "cus_1"},
	})

	require.Equal(t, OutcomeApplied, res.Outcome, res.String())
	m, err := h.factory.NewUnitOfWork(context.Background()).MembershipRepository().FindByUserId(context.Background(), userId)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, entity.MembershipStatusActive, m.Status)
	assert.Equal(t, "sub_1", m.StripeSubscriptionId)
	assert.Equal(t, "cus_1", m.StripeCustomerId)
	assert.False(t, m.AutoRenew)
	assert.True(t, m.StartDate.Equal(now))
	assert.True(t, m.EndDate.Equal(day(2026, 1, 1)))
	assert.Equal(t, entity.UserMembershipActive, h.userStatus(t, userId))
	assert.Equal(t, []string{"activated"}, h.publisher.events)
}

func TestCheckoutCompleted_UpdatesExistingMembershipInPlace(t *testing.T) {
	now := day(2026, 3, 10)
	h := newHarness(now)
	userId := h.seedUser(entity.UserMembershipExpired)
	existing := h.seedMembership(t, entity.Membership{
		UserId:               userId,
		StripeSubscriptionId: "sub_old",
		Status:               entity.MembershipStatusCanceled,
		StartDate:            day(2024, 1, 1),
		EndDate:              day(2025, 1, 1),
	})

	res := h.svc.CheckoutCompleted(context.Background(), &stripe.CheckoutSession{
		ID:                "cs_2",
		ClientReferenceID: userId.String(),
		Subscription:      &stripe.Subscription{ID: "sub_new"},
		Customer:          &stripe.Customer{ID: "cus_2"},
	})

	require.Equal(t, OutcomeApplied, res.Outcome, res.String())
	m := h.membership(t, existing.Id)
	assert.Equal(t, "sub_new", m.StripeSubscriptionId)
	assert.Equal(t, entity.MembershipStatusActive, m.Status)
	assert.True(t, m.AutoRenew)
	assert.True(t, m.EndDate.Equal(now.AddDate(1, 0, 0)))
	assert.Equal(t, entity.UserMembershipActive, h.userStatus(t, userId))
}

func TestCheckoutCompleted_UnknownUserIsSkipped(t *testing.T) {
	h := newHarness(day(2025, 1, 1))

	res := h.svc.CheckoutCompleted(context.Background(), &stripe.CheckoutSession{
		ID:       "cs_3",
		Metadata: map[string]string{"userId": "not-a-uuid"},
	})

	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.False(t, res.Retryable)
	assert.ErrorIs(t, res.Err, ErrUserNotFound)
}

func TestInvoicePaid_RenewalExtendsEndDate(t *testing.T) {
	h := newHarness(day(2026, 1, 2))
	userId := h.seedUser(entity.UserMembershipActive)
	m := h.seedMembership(t, entity.Membership{
		UserId:               userId,
		StripeSubscriptionId: "sub_1",
		Status:               entity.MembershipStatusPastDue,
		StartDate:            day(2025, 1, 1),
		EndDate:              day(2026, 1, 1),
		AutoRenew:            true,
	})

	res := h.svc.InvoicePaid(context.Background(), &stripe.Invoice{
		ID:                "in_1",
		Subscription:      &stripe.Subscription{ID: "sub_1"},
		PaymentIntent:     &stripe.PaymentIntent{ID: "pi_1"},
		AmountPaid:        12000,
		Currency:          stripe.CurrencyUSD,
		BillingReason:     stripe.InvoiceBillingReasonSubscriptionCycle,
		StatusTransitions: &stripe.InvoiceStatusTransitions{PaidAt: day(2026, 1, 1).Unix()},
	})

	require.Equal(t, OutcomeApplied, res.Outcome, res.String())
	got := h.membership(t, m.Id)
	assert.Equal(t, entity.MembershipStatusActive, got.Status)
	assert.True(t, got.EndDate.Equal(day(2027, 1, 1)), "end date %s", got.EndDate)

	payments := h.store.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, 120.0, payments[0].Amount)
	assert.Equal(t, entity.PaymentStatusSucceeded, payments[0].Status)
	assert.Equal(t, "pi_1", payments[0].StripePaymentIntentId)
	assert.True(t, payments[0].PaymentDate.Equal(day(2026, 1, 1)))
	assert.Equal(t, []string{"renewed"}, h.publisher.events)
}

func TestInvoicePaid_IsIdempotent(t *testing.T) {
	h := newHarness(day(2026, 1, 2))
	m := h.seedMembership(t, entity.Membership{
		UserId:               h.seedUser(entity.UserMembershipActive),
		StripeSubscriptionId: "sub_1",
		Status:               entity.MembershipStatusActive,
		StartDate:            day(2025, 1, 1),
		EndDate:              day(2026, 1, 1),
	})
	invoice := &stripe.Invoice{
		ID:            "in_1",
		Subscription:  &stripe.Subscription{ID: "sub_1"},
		AmountPaid:    12000,
		BillingReason: stripe.InvoiceBillingReasonSubscriptionCycle,
	}

	for i := 0; i < 2; i++ {
		res := h.svc.InvoicePaid(context.Background(), invoice)
		require.Equal(t, OutcomeApplied, res.Outcome, res.String())
	}

	assert.Len(t, h.store.Payments(), 1)
	assert.True(t, h.membership(t, m.Id).EndDate.Equal(day(2027, 1, 1)))
}

func TestInvoicePaid_FirstInvoiceDoesNotExtend(t *testing.T) {
	h := newHarness(day(2025, 1, 1))
	m := h.seedMembership(t, entity.Membership{
		UserId:               h.seedUser(entity.UserMembershipActive),
		StripeSubscriptionId: "sub_1",
		Status:               entity.MembershipStatusActive,
		StartDate:            day(2025, 1, 1),
		EndDate:              day(2026, 1, 1),
	})

	res := h.svc.InvoicePaid(context.Background(), &stripe.Invoice{
		ID:            "in_1",
		Subscription:  &stripe.Subscription{ID: "sub_1"},
		AmountPaid:    12000,
		BillingReason: stripe.InvoiceBillingReasonSubscriptionCreate,
	})

	require.Equal(t, OutcomeApplied, res.Outcome)
	assert.True(t, h.membership(t, m.Id).EndDate.Equal(day(2026, 1, 1)))
}

func TestInvoicePaid_UnknownSubscriptionIsSkipped(t *testing.T) {
	h := newHarness(day(2025, 1, 1))

	res := h.svc.InvoicePaid(context.Background(), &stripe.Invoice{ID: "in_x", Subscription: &stripe.Subscription{ID: "sub_x"}})

	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.False(t, res.Retryable)
	assert.ErrorIs(t, res.Err, ErrMembershipNotFound)
	assert.Empty(t, h.store.Payments())
}

func TestInvoicePaid_StoreFailureIsRetryable(t *testing.T) {
	h := newHarness(day(2025, 1, 1))
	h.seedMembership(t, entity.Membership{
		UserId:               h.seedUser(entity.UserMembershipActive),
		StripeSubscriptionId: "sub_1",
		StartDate:            day(2025, 1, 1),
	})
	svc := h.newEventService(brokenFactory{inner: h.factory}, false)

	res := svc.InvoicePaid(context.Background(), &stripe.Invoice{ID: "in_1", Subscription: &stripe.Subscription{ID: "sub_1"}})

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, res.Retryable)
	assert.Empty(t, h.store.Payments(), "transaction should roll back the payment row")
}

func TestInvoicePaymentFailed_MarksPastDue(t *testing.T) {
	now := day(2025, 6, 1)
	h := newHarness(now)
	m := h.seedMembership(t, entity.Membership{
		UserId:               h.seedUser(entity.UserMembershipActive),
		StripeSubscriptionId: "sub_1",
		Status:               entity.MembershipStatusActive,
		StartDate:            day(2025, 1, 1),
	})

	res := h.svc.InvoicePaymentFailed(context.Background(), &stripe.Invoice{
		ID:           "in_2",
		Subscription: &stripe.Subscription{ID: "sub_1"},
		AmountDue:    4550,
	})

	require.Equal(t, OutcomeApplied, res.Outcome, res.String())
	assert.Equal(t, entity.MembershipStatusPastDue, h.membership(t, m.Id).Status)
	payments := h.store.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, entity.PaymentStatusFailed, payments[0].Status)
	assert.Equal(t, 45.5, payments[0].Amount)
	assert.True(t, payments[0].PaymentDate.Equal(now))
}

func TestSubscriptionUpdated_MapsStatus(t *testing.T) {
	tests := []struct {
		name              string
		providerStatus    stripe.SubscriptionStatus
		cancelAtPeriodEnd bool
		wantStatus        entity.MembershipStatus
		wantUser          entity.UserMembershipStatus
		wantAutoRenew     bool
	}{
		{"active", stripe.SubscriptionStatusActive, false, entity.MembershipStatusActive, entity.UserMembershipActive, true},
		{"active scheduled to end", stripe.SubscriptionStatusActive, true, entity.MembershipStatusActive, entity.UserMembershipActive, false},
		{"past due", stripe.SubscriptionStatusPastDue, false, entity.MembershipStatusPastDue, entity.UserMembershipInactive, true},
		{"canceled", stripe.SubscriptionStatusCanceled, false, entity.MembershipStatusCanceled, entity.UserMembershipInactive, true},
		{"unpaid", stripe.SubscriptionStatusUnpaid, false, entity.MembershipStatusInactive, entity.UserMembershipInactive, true},
		{"trialing", stripe.SubscriptionStatusTrialing, false, entity.MembershipStatusInactive, entity.UserMembershipInactive, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(day(2025, 6, 1))
			userId := h.seedUser(entity.UserMembershipExpired)
			m := h.seedMembership(t, entity.Membership{UserId: userId, StripeSubscriptionId: "sub_1", StartDate: day(2025, 1, 1)})

			res := h.svc.SubscriptionUpdated(context.Background(), &stripe.Subscription{
				ID:                "sub_1",
				Status:            tt.providerStatus,
				CancelAtPeriodEnd: tt.cancelAtPeriodEnd,
			})

			require.Equal(t, OutcomeApplied, res.Outcome, res.String())
			got := h.membership(t, m.Id)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantAutoRenew, got.AutoRenew)
			assert.Equal(t, tt.wantUser, h.userStatus(t, userId))
		})
	}
}

// Natural lapse: nothing was scheduled, period still running, upstream not canceled.
func TestSubscriptionDeleted_NotExpiredBeforePeriodEnd(t *testing.T) {
	now := day(2025, 6, 1)
	h := newHarness(now)
	userId := h.seedUser(entity.UserMembershipActive)
	m := h.seedMembership(t, entity.Membership{
		UserId:               userId,
		StripeSubscriptionId: "sub_1",
		Status:               entity.MembershipStatusActive,
		StartDate:            day(2025, 1, 1),
		AutoRenew:            false,
	})

	res := h.svc.SubscriptionDeleted(context.Background(), &stripe.Subscription{
		ID:                "sub_1",
		Status:            stripe.SubscriptionStatusActive,
		CancelAtPeriodEnd: false,
		CurrentPeriodEnd:  day(2026, 1, 1).Unix(),
	})

	require.Equal(t, OutcomeApplied, res.Outcome, res.String())
	assert.Equal(t, entity.UserMembershipActive, h.userStatus(t, userId))
	got := h.membership(t, m.Id)
	assert.Equal(t, entity.MembershipStatusCanceled, got.Status)
	assert.False(t, got.AutoRenew)
	assert.Empty(t, h.provider.Calls())
}

func TestSubscriptionDeleted_ScheduledCancellationExpires(t *testing.T) {
	h := newHarness(day(2025, 6, 1))
	userId := h.seedUser(entity.UserMembershipActive)
	h.seedMembership(t, entity.Membership{
		UserId:               userId,
		StripeSubscriptionId: "sub_1",
		StartDate:            day(2025, 1, 1),
	})

	res := h.svc.SubscriptionDeleted(context.Background(), &stripe.Subscription{
		ID:                "sub_1",
		Status:            stripe.SubscriptionStatusActive,
		CancelAtPeriodEnd: true,
		CurrentPeriodEnd:  day(2026, 1, 1).Unix(),
	})

	require.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, entity.UserMembershipExpired, h.userStatus(t, userId))
}

func TestSubscriptionDeleted_GracePeriodRefundsInFull(t *testing.T) {
	h := newHarness(day(2026, 1, 15))
	userId := h.seedUser(entity.UserMembershipActive)
	m := h.seedMembership(t, entity.Membership{
		UserId:               userId,
		StripeSubscriptionId: "sub_1",
		Status:               entity.MembershipStatusActive,
		StartDate:            day(2025, 1, 1),
		AutoRenew:            true,
	})
	h.provider.invoice = &stripe.Invoice{ID: "in_9", AmountPaid: 12000, Charge: &stripe.Charge{ID: "ch_9"}}

	res := h.svc.SubscriptionDeleted(context.Background(), &stripe.Subscription{
		ID:               "sub_1",
		Status:           stripe.SubscriptionStatusCanceled,
		CurrentPeriodEnd: day(2027, 1, 1).Unix(),
	})

	require.Equal(t, OutcomeApplied, res.Outcome, res.String())
	assert.Equal(t, []string{"CancelNow", "LatestInvoice", "CreateRefund"}, h.provider.Calls())
	require.Len(t, h.provider.refunds, 1)
	assert.Equal(t, refundCall{ChargeId: "ch_9", Amount: 12000, IdempotencyKey: "refund-sub_1-in_9"}, h.provider.refunds[0])

	got := h.membership(t, m.Id)
	assert.Equal(t, entity.MembershipStatusCanceled, got.Status)
	assert.False(t, got.AutoRenew)
	require.NotNil(t, got.RefundAmount)
	assert.Equal(t, 120.0, *got.RefundAmount)
	require.NotNil(t, got.RefundStatus)
	assert.Equal(t, entity.RefundStatusPending, *got.RefundStatus)
	require.NotNil(t, got.StripeChargeId)
	assert.Equal(t, "ch_9", *got.StripeChargeId)
	// Inactive wins over the Expired check for grace-period deletions; see DESIGN.md §6.4.
	assert.Equal(t, entity.UserMembershipInactive, h.userStatus(t, userId))
}

func TestSubscriptionDeleted_BeforeSixMonthsRefundsHalf(t *testing.T) {
	h := newHarness(day(2026, 3, 1))
	userId := h.seedUser(entity.UserMembershipActive)
	m := h.seedMembership(t, entity.Membership{
		UserId:               userId,
		StripeSubscriptionId: "sub_1",
		StartDate:            day(2025, 1, 1),
		AutoRenew:            true,
	})
	h.provider.invoice = &stripe.Invoice{ID: "in_9", AmountPaid: 9999, Charge: &stripe.Charge{ID: "ch_9"}}

	res := h.svc.SubscriptionDeleted(context.Background(), &stripe.Subscription{
		ID:               "sub_1",
		Status:           stripe.SubscriptionStatusCanceled,
		CurrentPeriodEnd: day(2027, 1, 1).Unix(),
	})

	require.Equal(t, OutcomeApplied, res.Outcome, res.String())
	assert.Equal(t, "ScheduleCancelAt", h.provider.Calls()[0])
	assert.True(t, h.provider.cancelAt.Equal(day(2026, 7, 1)))
	require.Len(t, h.provider.refunds, 1)
	assert.Equal(t, int64(5000), h.provider.refunds[0].Amount)
	assert.Equal(t, 50.0, *h.membership(t, m.Id).RefundAmount)
	assert.Equal(t, entity.UserMembershipExpired, h.userStatus(t, userId))
}

func TestSubscriptionDeleted_FirstYearSchedulesAtPeriodEnd(t *testing.T) {
	h := newHarness(day(2025, 6, 1))
	m := h.seedMembership(t, entity.Membership{
		UserId:               h.seedUser(entity.UserMembershipActive),
		StripeSubscriptionId: "sub_1",
		StartDate:            day(2025, 1, 1),
		AutoRenew:            true,
	})

	res := h.svc.SubscriptionDeleted(context.Background(), &stripe.Subscription{
		ID:               "sub_1",
		Status:           stripe.SubscriptionStatusCanceled,
		CurrentPeriodEnd: day(2026, 1, 1).Unix(),
	})

	require.Equal(t, OutcomeApplied, res.Outcome, res.String())
	assert.Equal(t, []string{"ScheduleCancelAtPeriodEnd"}, h.provider.Calls())
	assert.Nil(t, h.membership(t, m.Id).RefundAmount)
}

func TestSubscriptionDeleted_TestModeSchedulesShortExpiry(t *testing.T) {
	now := day(2025, 6, 1)
	h := newHarness(now)
	h.seedMembership(t, entity.Membership{
		UserId:               h.seedUser(entity.UserMembershipActive),
		StripeSubscriptionId: "sub_1",
		StartDate:            day(2025, 1, 1),
		AutoRenew:            true,
	})
	svc := h.newEventService(h.factory, true)

	res := svc.SubscriptionDeleted(context.Background(), &stripe.Subscription{ID: "sub_1", Status: stripe.SubscriptionStatusActive})

	require.Equal(t, OutcomeApplied, res.Outcome, res.String())
	assert.True(t, h.provider.cancelAt.Equal(now.Add(3*time.Minute)))
}

func TestSubscriptionDeleted_ProviderFailureIsRetryable(t *testing.T) {
	h := newHarness(day(2026, 1, 15))
	m := h.seedMembership(t, entity.Membership{
		UserId:               h.seedUser(entity.UserMembershipActive),
		StripeSubscriptionId: "sub_1",
		Status:               entity.MembershipStatusActive,
		StartDate:            day(2025, 1, 1),
		AutoRenew:            true,
	})
	h.provider.actionErr = &stripe.Error{HTTPStatusCode: http.StatusBadGateway}

	res := h.svc.SubscriptionDeleted(context.Background(), &stripe.Subscription{ID: "sub_1", Status: stripe.SubscriptionStatusActive})

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, res.Retryable)
	got := h.membership(t, m.Id)
	assert.Equal(t, entity.MembershipStatusActive, got.Status)
	assert.True(t, got.AutoRenew)
}

func TestSubscriptionDeleted_RejectedActionOnCanceledSubscriptionContinues(t *testing.T) {
	h := newHarness(day(2025, 6, 1))
	m := h.seedMembership(t, entity.Membership{
		UserId:               h.seedUser(entity.UserMembershipActive),
		StripeSubscriptionId: "sub_1",
		StartDate:            day(2025, 1, 1),
		AutoRenew:            true,
	})
	h.provider.actionErr = &stripe.Error{HTTPStatusCode: http.StatusBadRequest, Msg: "subscription is canceled"}

	res := h.svc.SubscriptionDeleted(context.Background(), &stripe.Subscription{ID: "sub_1", Status: stripe.SubscriptionStatusCanceled})

	require.Equal(t, OutcomeApplied, res.Outcome, res.String())
	assert.Equal(t, entity.MembershipStatusCanceled, h.membership(t, m.Id).Status)
}

func TestSubscriptionDeleted_RefundFailureIsRetryable(t *testing.T) {
	h := newHarness(day(2026, 1, 15))
	m := h.seedMembership(t, entity.Membership{
		UserId:               h.seedUser(entity.UserMembershipActive),
		StripeSubscriptionId: "sub_1",
		StartDate:            day(2025, 1, 1),
		AutoRenew:            true,
	})
	h.provider.invoice = &stripe.Invoice{ID: "in_9", AmountPaid: 12000, Charge: &stripe.Charge{ID: "ch_9"}}
	h.provider.refundErr = errors.New("timeout")

	res := h.svc.SubscriptionDeleted(context.Background(), &stripe.Subscription{ID: "sub_1", Status: stripe.SubscriptionStatusCanceled})

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, res.Retryable)
	got := h.membership(t, m.Id)
	assert.Equal(t, entity.MembershipStatusActive, got.Status)
	assert.True(t, got.AutoRenew)
	// The pending refund stays linked so a redelivery reuses the same idempotency key.
	require.NotNil(t, got.StripeChargeId)
	assert.Equal(t, "ch_9", *got.StripeChargeId)
	assert.Equal(t, entity.RefundStatusPending, *got.RefundStatus)
}

func TestSubscriptionDeleted_RefundBookkeepingFailureSkipsRefund(t *testing.T) {
	h := newHarness(day(2026, 1, 15))
	h.seedMembership(t, entity.Membership{
		UserId:               h.seedUser(entity.UserMembershipActive),
		StripeSubscriptionId: "sub_1",
		StartDate:            day(2025, 1, 1),
		AutoRenew:            true,
	})
	h.provider.invoice = &stripe.Invoice{ID: "in_9", AmountPaid: 12000, Charge: &stripe.Charge{ID: "ch_9"}}
	svc := h.newEventService(brokenFactory{inner: h.factory}, false)

	res := svc.SubscriptionDeleted(context.Background(), &stripe.Subscription{ID: "sub_1", Status: stripe.SubscriptionStatusCanceled})

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, res.Retryable)
	assert.Equal(t, []string{"CancelNow", "LatestInvoice"}, h.provider.Calls())
	assert.Empty(t, h.provider.refunds)
}

func TestSubscriptionDeleted_ChargeRefundedDuringRefundIsRecorded(t *testing.T) {
	now := day(2026, 1, 15)
	h := newHarness(now)
	m := h.seedMembership(t, entity.Membership{
		UserId:               h.seedUser(entity.UserMembershipActive),
		StripeSubscriptionId: "sub_1",
		StartDate:            day(2025, 1, 1),
		AutoRenew:            true,
	})
	h.provider.invoice = &stripe.Invoice{ID: "in_9", AmountPaid: 12000, Charge: &stripe.Charge{ID: "ch_9"}}

	var refundedRes HandlerResult
	h.provider.onRefund = func() {
		stored := h.membership(t, m.Id)
		require.NotNil(t, stored.StripeChargeId)
		assert.Equal(t, "ch_9", *stored.StripeChargeId)
		assert.Equal(t, entity.RefundStatusPending, *stored.RefundStatus)

		refundedRes = h.svc.ChargeRefunded(context.Background(), &stripe.Charge{
			ID:             "ch_9",
			Amount:         12000,
			AmountRefunded: 12000,
			Refunded:       true,
			ReceiptEmail:   "member@example.com",
			Invoice:        &stripe.Invoice{ID: "in_9"},
		})
	}

	res := h.svc.SubscriptionDeleted(context.Background(), &stripe.Subscription{ID: "sub_1", Status: stripe.SubscriptionStatusCanceled})

	require.Equal(t, OutcomeApplied, res.Outcome, res.String())
	require.Equal(t, OutcomeApplied, refundedRes.Outcome, refundedRes.String())
	assert.Len(t, h.mails.Emails(), 1)

	got := h.membership(t, m.Id)
	assert.Equal(t, entity.MembershipStatusCanceled, got.Status)
	assert.False(t, got.AutoRenew)
	assert.Equal(t, entity.RefundStatusRefunded, *got.RefundStatus)
	require.NotNil(t, got.RefundDate)
	assert.True(t, got.RefundDate.Equal(now))
}

func TestSubscriptionDeleted_MissingStartDateFailsValidation(t *testing.T) {
	h := newHarness(day(2025, 6, 1))
	h.seedMembership(t, entity.Membership{
		UserId:               h.seedUser(entity.UserMembershipActive),
		StripeSubscriptionId: "sub_1",
		AutoRenew:            true,
	})

	res := h.svc.SubscriptionDeleted(context.Background(), &stripe.Subscription{ID: "sub_1", Status: stripe.SubscriptionStatusCanceled})

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.False(t, res.Retryable)
	assert.Empty(t, h.provider.Calls())
}

func TestSubscriptionDeleted_UnknownSubscriptionIsSkipped(t *testing.T) {
	h := newHarness(day(2025, 6, 1))

	res := h.svc.SubscriptionDeleted(context.Background(), &stripe.Subscription{ID: "sub_missing"})

	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.False(t, res.Retryable)
}

func chargeMembership(t *testing.T, h *harness, chargeId string) *entity.Membership {
	pending := entity.RefundStatusPending
	return h.seedMembership(t, entity.Membership{
		UserId:               h.seedUser(entity.UserMembershipActive),
		StripeSubscriptionId: "sub_1",
		Status:               entity.MembershipStatusActive,
		StartDate:            day(2025, 1, 1),
		StripeChargeId:       &chargeId,
		RefundStatus:         &pending,
	})
}

func TestChargeRefunded_Full(t *testing.T) {
	now := day(2026, 1, 20)
	h := newHarness(now)
	m := chargeMembership(t, h, "ch_1")

	res := h.svc.ChargeRefunded(context.Background(), &stripe.Charge{
		ID:             "ch_1",
		Amount:         12000,
		AmountRefunded: 12000,
		Refunded:       true,
		BillingDetails: &stripe.ChargeBillingDetails{Email: "billing@example.com"},
	})

	require.Equal(t, OutcomeApplied, res.Outcome, res.String())
	got := h.membership(t, m.Id)
	assert.Equal(t, entity.MembershipStatusCanceled, got.Status)
	assert.Equal(t, entity.RefundStatusRefunded, *got.RefundStatus)
	assert.Equal(t, 120.0, *got.RefundAmount)
	assert.True(t, got.RefundDate.Equal(now))
	require.Len(t, h.mails.emails, 1)
	assert.Equal(t, queuedEmail{To: "billing@example.com", Subject: RefundEmailSubject, Amount: 120}, h.mails.emails[0])
	assert.Equal(t, []string{"refunded"}, h.publisher.events)
}

func TestChargeRefunded_PartialUsesCustomerEmail(t *testing.T) {
	h := newHarness(day(2026, 3, 2))
	m := chargeMembership(t, h, "ch_1")
	h.provider.customers["cus_1"] = &stripe.Customer{ID: "cus_1", Email: "profile@example.com"}

	res := h.svc.ChargeRefunded(context.Background(), &stripe.Charge{
		ID:             "ch_1",
		Amount:         12000,
		AmountRefunded: 6000,
		Customer:       &stripe.Customer{ID: "cus_1"},
	})

	require.Equal(t, OutcomeApplied, res.Outcome, res.String())
	got := h.membership(t, m.Id)
	assert.Equal(t, entity.MembershipStatusActive, got.Status)
	assert.Equal(t, entity.RefundStatusPartial, *got.RefundStatus)
	assert.Equal(t, 60.0, *got.RefundAmount)
	require.Len(t, h.mails.emails, 1)
	assert.Equal(t, "profile@example.com", h.mails.emails[0].To)
}

func TestChargeRefunded_ZeroAmountKeepsActive(t *testing.T) {
	h := newHarness(day(2026, 3, 2))
	m := chargeMembership(t, h, "ch_1")

	res := h.svc.ChargeRefunded(context.Background(), &stripe.Charge{ID: "ch_1", Amount: 12000, ReceiptEmail: "r@example.com"})

	require.Equal(t, OutcomeApplied, res.Outcome)
	got := h.membership(t, m.Id)
	assert.Equal(t, entity.MembershipStatusActive, got.Status)
	assert.Equal(t, entity.RefundStatusPending, *got.RefundStatus)
	assert.Empty(t, h.mails.emails)
}

func TestChargeRefunded_UnlinkedInvoiceChargeIsRetryable(t *testing.T) {
	h := newHarness(day(2026, 3, 2))
	h.seedMembership(t, entity.Membership{
		UserId:               h.seedUser(entity.UserMembershipActive),
		StripeSubscriptionId: "sub_1",
		StartDate:            day(2025, 1, 1),
	})

	res := h.svc.ChargeRefunded(context.Background(), &stripe.Charge{
		ID:             "ch_9",
		Amount:         12000,
		AmountRefunded: 12000,
		Refunded:       true,
		ReceiptEmail:   "r@example.com",
		Invoice:        &stripe.Invoice{ID: "in_9"},
	})

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, res.Retryable)
	assert.ErrorIs(t, res.Err, ErrMembershipNotFound)
	assert.Empty(t, h.mails.Emails())
}

func TestChargeRefunded_UnknownChargeIsSkipped(t *testing.T) {
	h := newHarness(day(2026, 3, 2))

	res := h.svc.ChargeRefunded(context.Background(), &stripe.Charge{ID: "ch_404", Amount: 100, AmountRefunded: 100})

	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Empty(t, h.mails.emails)
}
