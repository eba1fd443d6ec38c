package service

import (
	"context"
	"errors"
	"fmt"

	"club-directory-be/internal/entity"
	"club-directory-be/internal/pkg/logger"
	"club-directory-be/internal/repository/contract"
	"club-directory-be/internal/repository/unitofwork"
	"club-directory-be/pkg/billing/policy"
	"club-directory-be/pkg/payment"
)

// cancellationExecutor carries out the provider side of a CancellationDecision.
// Shared by the subscription-deleted handler and member-initiated cancellation.
type cancellationExecutor struct {
	uowFactory unitofwork.RepositoryFactory
	provider   payment.Provider
	logger     logger.ILogger
}

// errRefundBookkeeping marks a refund that was not attempted because the
// pending refund could not be stored.
var errRefundBookkeeping = errors.New("refund bookkeeping failed")

type refundOutcome struct {
	Issued   bool
	Amount   int64 // minor units
	ChargeId string
}

func (e *cancellationExecutor) applyProviderAction(ctx context.Context, subscriptionId string, d entity.CancellationDecision) error {
	var err error
	switch d.CancellationType {
	case entity.CancellationTestExpire, entity.CancellationBefore6Months:
		_, err = e.provider.ScheduleCancelAt(ctx, subscriptionId, d.CancelDate)
	case entity.CancellationFirstYear, entity.CancellationAfter6Months:
		_, err = e.provider.ScheduleCancelAtPeriodEnd(ctx, subscriptionId)
	case entity.CancellationGracePeriod:
		_, err = e.provider.CancelNow(ctx, subscriptionId)
	default:
		return fmt.Errorf("unknown cancellation type %q", d.CancellationType)
	}
	if err != nil {
		return err
	}

	e.logger.Info(logger.ModuleBilling, "Cancellation applied at provider", map[string]interface{}{
		"subscription_id":   subscriptionId,
		"cancellation_type": string(d.CancellationType),
		"cancel_date":       d.CancelDate,
	})
	return nil
}

// refund pays back the decision's share of the latest invoice. Nothing is
// refunded when the share is zero or the invoice has no paid charge.
// The charge id and a pending refund status are committed on m before the
// refund is created, so a charge.refunded delivery always finds the membership.
func (e *cancellationExecutor) refund(ctx context.Context, m *entity.Membership, d entity.CancellationDecision) (refundOutcome, error) {
	if d.RefundPercentage <= 0 {
		return refundOutcome{}, nil
	}
	subscriptionId := m.StripeSubscriptionId

	inv, err := e.provider.LatestInvoice(ctx, subscriptionId)
	if errors.Is(err, payment.ErrNoInvoice) {
		e.logger.Warn(logger.ModuleBilling, "No invoice to refund", map[string]interface{}{"subscription_id": subscriptionId})
		return refundOutcome{}, nil
	}
	if err != nil {
		return refundOutcome{}, err
	}
	if inv.Charge == nil || inv.Charge.ID == "" || inv.AmountPaid <= 0 {
		e.logger.Warn(logger.ModuleBilling, "Latest invoice has nothing to refund", map[string]interface{}{
			"subscription_id": subscriptionId,
			"invoice_id":      inv.ID,
			"amount_paid":     inv.AmountPaid,
		})
		return refundOutcome{}, nil
	}

	out := refundOutcome{
		Issued:   true,
		Amount:   policy.RefundMinorUnits(inv.AmountPaid, d.RefundPercentage),
		ChargeId: inv.Charge.ID,
	}
	if err := e.savePendingRefund(ctx, m, out); err != nil {
		return refundOutcome{}, fmt.Errorf("%w: %v", errRefundBookkeeping, err)
	}

	idempotencyKey := fmt.Sprintf("refund-%s-%s", subscriptionId, inv.ID)
	if _, err := e.provider.CreateRefund(ctx, out.ChargeId, out.Amount, idempotencyKey); err != nil {
		return refundOutcome{}, err
	}

	e.logger.Info(logger.ModuleBilling, "Refund issued", map[string]interface{}{
		"subscription_id": subscriptionId,
		"charge_id":       out.ChargeId,
		"amount_minor":    out.Amount,
		"percentage":      d.RefundPercentage,
	})
	return out, nil
}

func (e *cancellationExecutor) savePendingRefund(ctx context.Context, m *entity.Membership, out refundOutcome) error {
	uow := e.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	recordPendingRefund(m, out)
	if err := uow.MembershipRepository().Update(ctx, m); err != nil {
		return err
	}
	return uow.Commit()
}

func recordPendingRefund(m *entity.Membership, out refundOutcome) {
	amount := float64(out.Amount) / 100
	status := entity.RefundStatusPending
	chargeId := out.ChargeId
	m.RefundAmount = &amount
	m.RefundStatus = &status
	m.StripeChargeId = &chargeId
}

// storedMembership returns the current row for m. Refund fields on it may
// have moved past pending since m was read.
func storedMembership(ctx context.Context, repo contract.MembershipRepository, m *entity.Membership) (*entity.Membership, error) {
	current, err := repo.FindById(ctx, m.Id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return m, nil
	}
	return current, nil
}
