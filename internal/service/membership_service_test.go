package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"club-directory-be/internal/dto"
	"club-directory-be/internal/entity"
	"club-directory-be/pkg/lock"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
)

func (h *harness) newMembershipService() IMembershipService {
	return NewMembershipService(h.factory, h.provider, NewUserStatusService(h.log), h.publisher, lock.NewLocalLocker(), time.Second, h.clock, false, h.log)
}

func TestGetMembership(t *testing.T) {
	h := newHarness(day(2026, 1, 2))
	userId := h.seedUser(entity.UserMembershipActive)
	m := h.seedMembership(t, entity.Membership{
		UserId:               userId,
		StripeSubscriptionId: "sub_1",
		Status:               entity.MembershipStatusActive,
		StartDate:            day(2025, 1, 1),
		EndDate:              day(2026, 1, 1),
		AutoRenew:            true,
	})
	h.svc.InvoicePaid(context.Background(), &stripe.Invoice{ID: "in_1", Subscription: &stripe.Subscription{ID: "sub_1"}, AmountPaid: 12000})

	res, err := h.newMembershipService().GetMembership(context.Background(), userId)

	require.NoError(t, err)
	assert.Equal(t, m.Id, res.Id)
	assert.Equal(t, "active", res.Status)
	assert.True(t, res.AutoRenew)
	require.Len(t, res.Payments, 1)
	assert.Equal(t, "in_1", res.Payments[0].InvoiceId)
	assert.Equal(t, 120.0, res.Payments[0].Amount)
}

func TestGetMembership_NotFound(t *testing.T) {
	h := newHarness(day(2026, 1, 2))

	_, err := h.newMembershipService().GetMembership(context.Background(), uuid.New())

	assert.ErrorIs(t, err, ErrMembershipNotFound)
}

func TestPreviewCancellation_GracePeriod(t *testing.T) {
	h := newHarness(day(2026, 1, 2))
	userId := h.seedUser(entity.UserMembershipActive)
	h.seedMembership(t, entity.Membership{
		UserId:               userId,
		StripeSubscriptionId: "sub_1",
		Status:               entity.MembershipStatusActive,
		StartDate:            day(2025, 1, 1),
		AutoRenew:            true,
	})
	h.svc.InvoicePaid(context.Background(), &stripe.Invoice{ID: "in_1", Subscription: &stripe.Subscription{ID: "sub_1"}, AmountPaid: 12000})

	res, err := h.newMembershipService().PreviewCancellation(context.Background(), userId)

	require.NoError(t, err)
	assert.Equal(t, string(entity.CancellationGracePeriod), res.CancellationType)
	assert.True(t, res.Immediate)
	require.NotNil(t, res.EstimatedRefund)
	assert.Equal(t, 120.0, *res.EstimatedRefund)
	assert.Empty(t, h.provider.Calls(), "preview must not touch the provider")
}

func TestRequestCancellation_FirstYearDefersToRenewal(t *testing.T) {
	h := newHarness(day(2025, 6, 1))
	userId := h.seedUser(entity.UserMembershipActive)
	m := h.seedMembership(t, entity.Membership{
		UserId:               userId,
		StripeSubscriptionId: "sub_1",
		Status:               entity.MembershipStatusActive,
		StartDate:            day(2025, 1, 1),
		AutoRenew:            true,
	})
	svc := h.newMembershipService()

	res, err := svc.RequestCancellation(context.Background(), userId, &dto.CancelMembershipRequest{Reason: "moving"})

	require.NoError(t, err)
	assert.Equal(t, string(entity.CancellationFirstYear), res.CancellationType)
	assert.True(t, res.CancelDate.Equal(day(2026, 1, 1)))
	assert.Equal(t, "active", res.Status)
	assert.Nil(t, res.RefundAmount)
	assert.Equal(t, []string{"ScheduleCancelAtPeriodEnd"}, h.provider.Calls())

	got := h.membership(t, m.Id)
	assert.False(t, got.AutoRenew)
	assert.Equal(t, entity.MembershipStatusActive, got.Status)
	assert.Equal(t, entity.UserMembershipActive, h.userStatus(t, userId))
	assert.Equal(t, []string{"canceled"}, h.publisher.events)

	_, err = svc.RequestCancellation(context.Background(), userId, &dto.CancelMembershipRequest{Reason: "again"})
	assert.ErrorIs(t, err, ErrAlreadyCanceled)
}

func TestRequestCancellation_GracePeriodCancelsAndRefunds(t *testing.T) {
	h := newHarness(day(2026, 1, 10))
	userId := h.seedUser(entity.UserMembershipActive)
	m := h.seedMembership(t, entity.Membership{
		UserId:               userId,
		StripeSubscriptionId: "sub_1",
		Status:               entity.MembershipStatusActive,
		StartDate:            day(2025, 1, 1),
		AutoRenew:            true,
	})
	h.provider.invoice = &stripe.Invoice{ID: "in_7", AmountPaid: 8000, Charge: &stripe.Charge{ID: "ch_7"}}

	res, err := h.newMembershipService().RequestCancellation(context.Background(), userId, &dto.CancelMembershipRequest{Reason: "changed my mind"})

	require.NoError(t, err)
	assert.Equal(t, "canceled", res.Status)
	require.NotNil(t, res.RefundAmount)
	assert.Equal(t, 80.0, *res.RefundAmount)
	assert.Equal(t, []string{"CancelNow", "LatestInvoice", "CreateRefund"}, h.provider.Calls())

	got := h.membership(t, m.Id)
	assert.Equal(t, entity.MembershipStatusCanceled, got.Status)
	assert.Equal(t, "ch_7", *got.StripeChargeId)
	assert.Equal(t, entity.UserMembershipInactive, h.userStatus(t, userId))
}

func TestRequestCancellation_BeforeSixMonthsKeepsAccessUntilCancelDate(t *testing.T) {
	h := newHarness(day(2026, 3, 1))
	userId := h.seedUser(entity.UserMembershipActive)
	m := h.seedMembership(t, entity.Membership{
		UserId:               userId,
		StripeSubscriptionId: "sub_1",
		Status:               entity.MembershipStatusActive,
		StartDate:            day(2025, 1, 1),
		AutoRenew:            true,
	})
	h.provider.invoice = &stripe.Invoice{ID: "in_7", AmountPaid: 8000, Charge: &stripe.Charge{ID: "ch_7"}}

	res, err := h.newMembershipService().RequestCancellation(context.Background(), userId, &dto.CancelMembershipRequest{Reason: "too expensive"})

	require.NoError(t, err)
	assert.Equal(t, 40.0, *res.RefundAmount)
	got := h.membership(t, m.Id)
	assert.Equal(t, entity.MembershipStatusActive, got.Status)
	assert.Equal(t, entity.RefundStatusPending, *got.RefundStatus)
	assert.True(t, h.provider.cancelAt.Equal(day(2026, 7, 1)))
}

func TestRequestCancellation_StoresChargeBeforeRefund(t *testing.T) {
	h := newHarness(day(2026, 1, 10))
	userId := h.seedUser(entity.UserMembershipActive)
	m := h.seedMembership(t, entity.Membership{
		UserId:               userId,
		StripeSubscriptionId: "sub_1",
		Status:               entity.MembershipStatusActive,
		StartDate:            day(2025, 1, 1),
		AutoRenew:            true,
	})
	h.provider.invoice = &stripe.Invoice{ID: "in_7", AmountPaid: 8000, Charge: &stripe.Charge{ID: "ch_7"}}
	h.provider.refundErr = errors.New("timeout")

	_, err := h.newMembershipService().RequestCancellation(context.Background(), userId, &dto.CancelMembershipRequest{Reason: "moving"})

	require.Error(t, err)
	got := h.membership(t, m.Id)
	assert.True(t, got.AutoRenew)
	require.NotNil(t, got.StripeChargeId)
	assert.Equal(t, "ch_7", *got.StripeChargeId)
	assert.Equal(t, entity.RefundStatusPending, *got.RefundStatus)
	assert.Empty(t, h.publisher.events)
}

func TestRequestCancellation_NoMembership(t *testing.T) {
	h := newHarness(day(2026, 3, 1))

	_, err := h.newMembershipService().RequestCancellation(context.Background(), uuid.New(), &dto.CancelMembershipRequest{Reason: "x"})

	assert.ErrorIs(t, err, ErrMembershipNotFound)
}
