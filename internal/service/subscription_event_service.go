package service

import (
	"context"
	"errors"
	"time"

	"club-directory-be/internal/entity"
	"club-directory-be/internal/pkg/clock"
	"club-directory-be/internal/pkg/logger"
	"club-directory-be/internal/repository/unitofwork"
	"club-directory-be/pkg/billing/policy"
	"club-directory-be/pkg/billing/status"
	membershipEvents "club-directory-be/pkg/membership/events"
	"club-directory-be/pkg/payment"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v78"
)

const (
	HandlerCheckoutCompleted    = "CheckoutCompleted"
	HandlerInvoicePaid          = "InvoicePaid"
	HandlerInvoicePaymentFailed = "InvoicePaymentFailed"
	HandlerSubscriptionUpdated  = "SubscriptionUpdated"
	HandlerSubscriptionDeleted  = "SubscriptionDeleted"
	HandlerChargeRefunded       = "ChargeRefunded"
)

const (
	RefundEmailSubject        = "Your membership refund has been processed"
	checkoutMetadataUserIdKey = "userId"
)

// ISubscriptionEventService holds one handler per billing lifecycle event.
// Handlers are idempotent and never return raw errors; callers decide on
// redelivery from the HandlerResult.
type ISubscriptionEventService interface {
	CheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) HandlerResult
	InvoicePaid(ctx context.Context, invoice *stripe.Invoice) HandlerResult
	InvoicePaymentFailed(ctx context.Context, invoice *stripe.Invoice) HandlerResult
	SubscriptionUpdated(ctx context.Context, subscription *stripe.Subscription) HandlerResult
	SubscriptionDeleted(ctx context.Context, subscription *stripe.Subscription) HandlerResult
	ChargeRefunded(ctx context.Context, charge *stripe.Charge) HandlerResult
}

type subscriptionEventService struct {
	uowFactory  unitofwork.RepositoryFactory
	provider    payment.Provider
	userStatus  IUserStatusService
	refundMails IRefundEmailQueue
	publisher   membershipEvents.Publisher
	executor    *cancellationExecutor
	clock       clock.Clock
	testMode    bool
	logger      logger.ILogger
}

func NewSubscriptionEventService(
	uowFactory unitofwork.RepositoryFactory,
	provider payment.Provider,
	userStatus IUserStatusService,
	refundMails IRefundEmailQueue,
	publisher membershipEvents.Publisher,
	clk clock.Clock,
	testMode bool,
	log logger.ILogger,
) ISubscriptionEventService {
	return &subscriptionEventService{
		uowFactory:  uowFactory,
		provider:    provider,
		userStatus:  userStatus,
		refundMails: refundMails,
		publisher:   publisher,
		executor:    &cancellationExecutor{uowFactory: uowFactory, provider: provider, logger: log},
		clock:       clk,
		testMode:    testMode,
		logger:      log,
	}
}

func (s *subscriptionEventService) storeFailure(handler string, err error, details map[string]interface{}) HandlerResult {
	details["error"] = err.Error()
	s.logger.Error(logger.ModuleBilling, handler+": store failure", details)
	return failed(handler, err, true)
}

func (s *subscriptionEventService) notFound(handler string, err error, details map[string]interface{}) HandlerResult {
	s.logger.Warn(logger.ModuleBilling, handler+": "+err.Error(), details)
	return skipped(handler, err)
}

func (s *subscriptionEventService) CheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) HandlerResult {
	const h = HandlerCheckoutCompleted
	if session == nil {
		return failed(h, ErrInvalidEventData, false)
	}

	rawUserId := session.Metadata[checkoutMetadataUserIdKey]
	if rawUserId == "" {
		rawUserId = session.ClientReferenceID
	}
	userId, err := uuid.Parse(rawUserId)
	if err != nil {
		return s.notFound(h, ErrUserNotFound, map[string]interface{}{"session_id": session.ID, "user_id": rawUserId})
	}

	var subscriptionId, customerId string
	if session.Subscription != nil {
		subscriptionId = session.Subscription.ID
	}
	if session.Customer != nil {
		customerId = session.Customer.ID
	}
	details := map[string]interface{}{"session_id": session.ID, "user_id": userId.String(), "subscription_id": subscriptionId}

	now := s.clock.Now()
	endDate := now.AddDate(1, 0, 0)

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return s.storeFailure(h, err, details)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().FindById(ctx, userId)
	if err != nil {
		return s.storeFailure(h, err, details)
	}
	if user == nil {
		return s.notFound(h, ErrUserNotFound, details)
	}

	membership, err := uow.MembershipRepository().FindByUserId(ctx, userId)
	if err != nil {
		return s.storeFailure(h, err, details)
	}

	if membership != nil {
		membership.StripeCustomerId = customerId
		membership.StripeSubscriptionId = subscriptionId
		membership.Status = entity.MembershipStatusActive
		membership.StartDate = now
		membership.EndDate = endDate
		membership.AutoRenew = true
		if err := uow.MembershipRepository().Update(ctx, membership); err != nil {
			return s.storeFailure(h, err, details)
		}
	} else {
		// New memberships start with auto_renew=false; the first
		// customer.subscription.updated event corrects it.
		membership = &entity.Membership{
			Id:                   uuid.New(),
			UserId:               userId,
			StripeCustomerId:     customerId,
			StripeSubscriptionId: subscriptionId,
			Status:               entity.MembershipStatusActive,
			StartDate:            now,
			EndDate:              endDate,
			AutoRenew:            false,
		}
		if err := uow.MembershipRepository().Create(ctx, membership); err != nil {
			return s.storeFailure(h, err, details)
		}
	}

	if err := s.userStatus.Sync(ctx, uow.UserRepository(), userId, entity.UserMembershipActive); err != nil {
		return s.storeFailure(h, err, details)
	}
	if err := uow.Commit(); err != nil {
		return s.storeFailure(h, err, details)
	}

	s.logger.Info(logger.ModuleBilling, "Membership activated", details)
	s.publisher.PublishActivated(ctx, membership)
	return applied(h)
}

func invoiceSubscriptionId(invoice *stripe.Invoice) string {
	if invoice.Subscription == nil {
		return ""
	}
	return invoice.Subscription.ID
}

func invoicePaymentIntentId(invoice *stripe.Invoice) string {
	if invoice.PaymentIntent == nil {
		return ""
	}
	return invoice.PaymentIntent.ID
}

func (s *subscriptionEventService) InvoicePaid(ctx context.Context, invoice *stripe.Invoice) HandlerResult {
	const h = HandlerInvoicePaid
	if invoice == nil || invoice.ID == "" {
		return failed(h, ErrInvalidEventData, false)
	}

	subscriptionId := invoiceSubscriptionId(invoice)
	details := map[string]interface{}{"invoice_id": invoice.ID, "subscription_id": subscriptionId}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return s.storeFailure(h, err, details)
	}
	defer uow.Rollback()

	membership, err := uow.MembershipRepository().FindBySubscriptionId(ctx, subscriptionId)
	if err != nil {
		return s.storeFailure(h, err, details)
	}
	if membership == nil {
		return s.notFound(h, ErrMembershipNotFound, details)
	}

	paidAt := s.clock.Now()
	if invoice.StatusTransitions != nil && invoice.StatusTransitions.PaidAt > 0 {
		paidAt = time.Unix(invoice.StatusTransitions.PaidAt, 0).UTC()
	}

	created, err := uow.PaymentRepository().Append(ctx, &entity.Payment{
		Id:                    uuid.New(),
		UserId:                membership.UserId,
		MembershipId:          membership.Id,
		StripePaymentIntentId: invoicePaymentIntentId(invoice),
		StripeInvoiceId:       invoice.ID,
		Amount:                float64(invoice.AmountPaid) / 100,
		Currency:              string(invoice.Currency),
		Status:                entity.PaymentStatusSucceeded,
		PaymentDate:           paidAt,
	})
	if err != nil {
		return s.storeFailure(h, err, details)
	}

	membership.Status = entity.MembershipStatusActive
	renewed := false
	// Only a newly recorded renewal invoice extends the term, so redelivery cannot compound it twice.
	if created && invoice.BillingReason == stripe.InvoiceBillingReasonSubscriptionCycle {
		base := membership.EndDate
		if base.IsZero() {
			base = s.clock.Now()
		}
		membership.EndDate = base.AddDate(1, 0, 0)
		renewed = true
	}

	if err := uow.MembershipRepository().Update(ctx, membership); err != nil {
		return s.storeFailure(h, err, details)
	}
	if err := uow.Commit(); err != nil {
		return s.storeFailure(h, err, details)
	}

	details["duplicate"] = !created
	details["renewed"] = renewed
	s.logger.Info(logger.ModuleBilling, "Invoice paid", details)
	if renewed {
		s.publisher.PublishRenewed(ctx, membership, invoice.ID)
	}
	return applied(h)
}

func (s *subscriptionEventService) InvoicePaymentFailed(ctx context.Context, invoice *stripe.Invoice) HandlerResult {
	const h = HandlerInvoicePaymentFailed
	if invoice == nil || invoice.ID == "" {
		return failed(h, ErrInvalidEventData, false)
	}

	subscriptionId := invoiceSubscriptionId(invoice)
	details := map[string]interface{}{"invoice_id": invoice.ID, "subscription_id": subscriptionId}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return s.storeFailure(h, err, details)
	}
	defer uow.Rollback()

	membership, err := uow.MembershipRepository().FindBySubscriptionId(ctx, subscriptionId)
	if err != nil {
		return s.storeFailure(h, err, details)
	}
	if membership == nil {
		return s.notFound(h, ErrMembershipNotFound, details)
	}

	created, err := uow.PaymentRepository().Append(ctx, &entity.Payment{
		Id:                    uuid.New(),
		UserId:                membership.UserId,
		MembershipId:          membership.Id,
		StripePaymentIntentId: invoicePaymentIntentId(invoice),
		StripeInvoiceId:       invoice.ID,
		Amount:                float64(invoice.AmountDue) / 100,
		Currency:              string(invoice.Currency),
		Status:                entity.PaymentStatusFailed,
		PaymentDate:           s.clock.Now(),
	})
	if err != nil {
		return s.storeFailure(h, err, details)
	}

	membership.Status = entity.MembershipStatusPastDue
	if err := uow.MembershipRepository().Update(ctx, membership); err != nil {
		return s.storeFailure(h, err, details)
	}
	if err := uow.Commit(); err != nil {
		return s.storeFailure(h, err, details)
	}

	s.logger.Warn(logger.ModuleBilling, "Invoice payment failed", details)
	if created {
		s.publisher.PublishPastDue(ctx, membership, invoice.ID)
	}
	return applied(h)
}

func (s *subscriptionEventService) SubscriptionUpdated(ctx context.Context, subscription *stripe.Subscription) HandlerResult {
	const h = HandlerSubscriptionUpdated
	if subscription == nil || subscription.ID == "" {
		return failed(h, ErrInvalidEventData, false)
	}
	details := map[string]interface{}{"subscription_id": subscription.ID, "provider_status": string(subscription.Status)}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return s.storeFailure(h, err, details)
	}
	defer uow.Rollback()

	membership, err := uow.MembershipRepository().FindBySubscriptionId(ctx, subscription.ID)
	if err != nil {
		return s.storeFailure(h, err, details)
	}
	if membership == nil {
		return s.notFound(h, ErrMembershipNotFound, details)
	}

	membership.Status = status.FromProvider(string(subscription.Status))
	membership.AutoRenew = !subscription.CancelAtPeriodEnd
	if err := uow.MembershipRepository().Update(ctx, membership); err != nil {
		return s.storeFailure(h, err, details)
	}
	if err := s.userStatus.Sync(ctx, uow.UserRepository(), membership.UserId, status.ToUser(membership.Status)); err != nil {
		return s.storeFailure(h, err, details)
	}
	if err := uow.Commit(); err != nil {
		return s.storeFailure(h, err, details)
	}

	details["status"] = string(membership.Status)
	details["auto_renew"] = membership.AutoRenew
	s.logger.Info(logger.ModuleBilling, "Subscription updated", details)
	return applied(h)
}

func (s *subscriptionEventService) SubscriptionDeleted(ctx context.Context, subscription *stripe.Subscription) HandlerResult {
	const h = HandlerSubscriptionDeleted
	if subscription == nil || subscription.ID == "" {
		return failed(h, ErrInvalidEventData, false)
	}
	details := map[string]interface{}{"subscription_id": subscription.ID, "provider_status": string(subscription.Status)}

	membership, err := s.uowFactory.NewUnitOfWork(ctx).MembershipRepository().FindBySubscriptionId(ctx, subscription.ID)
	if err != nil {
		return s.storeFailure(h, err, details)
	}
	if membership == nil {
		return s.notFound(h, ErrMembershipNotFound, details)
	}

	now := s.clock.Now()
	upstreamCanceled := subscription.Status == stripe.SubscriptionStatusCanceled
	var userStatus *entity.UserMembershipStatus
	var decision *entity.CancellationDecision
	var refunded refundOutcome

	// An auto-renewing membership should not be deleted upstream: treat it as
	// an early termination and settle it by the cancellation policy.
	if membership.AutoRenew {
		d, err := policy.Calculate(membership.StartDate, now, s.testMode)
		if err != nil {
			details["error"] = err.Error()
			s.logger.Error(logger.ModuleBilling, h+": cannot evaluate cancellation policy", details)
			return failed(h, err, false)
		}
		decision = &d
		details["cancellation_type"] = string(d.CancellationType)

		if err := s.executor.applyProviderAction(ctx, subscription.ID, d); err != nil {
			if !upstreamCanceled {
				return s.providerFailure(h, err, details)
			}
			details["error"] = err.Error()
			s.logger.Warn(logger.ModuleProvider, h+": provider action rejected for already canceled subscription", details)
			delete(details, "error")
		}

		refunded, err = s.executor.refund(ctx, membership, d)
		if errors.Is(err, errRefundBookkeeping) {
			return s.storeFailure(h, err, details)
		}
		if err != nil {
			return s.providerFailure(h, err, details)
		}

		if d.CancellationType == entity.CancellationGracePeriod {
			inactive := entity.UserMembershipInactive
			userStatus = &inactive
		}
	}

	periodEnd := time.Unix(subscription.CurrentPeriodEnd, 0)
	scheduled := subscription.CancelAtPeriodEnd
	if userStatus == nil && (!(!scheduled && now.Before(periodEnd)) || upstreamCanceled) {
		expired := entity.UserMembershipExpired
		userStatus = &expired
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return s.storeFailure(h, err, details)
	}
	defer uow.Rollback()

	membership, err = storedMembership(ctx, uow.MembershipRepository(), membership)
	if err != nil {
		return s.storeFailure(h, err, details)
	}
	membership.Status = entity.MembershipStatusCanceled
	membership.AutoRenew = false
	if err := uow.MembershipRepository().Update(ctx, membership); err != nil {
		return s.storeFailure(h, err, details)
	}
	if userStatus != nil {
		if err := s.userStatus.Sync(ctx, uow.UserRepository(), membership.UserId, *userStatus); err != nil {
			return s.storeFailure(h, err, details)
		}
	}
	if err := uow.Commit(); err != nil {
		return s.storeFailure(h, err, details)
	}

	details["refund_issued"] = refunded.Issued
	s.logger.Info(logger.ModuleBilling, "Subscription deleted", details)
	s.publisher.PublishCanceled(ctx, membership, decision, "subscription deleted")
	return applied(h)
}

func (s *subscriptionEventService) providerFailure(handler string, err error, details map[string]interface{}) HandlerResult {
	details["error"] = err.Error()
	s.logger.Error(logger.ModuleProvider, handler+": provider call failed", details)
	return failed(handler, err, true)
}

// refundEmailAddress prefers addresses on the charge and falls back to the customer profile.
func (s *subscriptionEventService) refundEmailAddress(ctx context.Context, charge *stripe.Charge) string {
	if charge.BillingDetails != nil && charge.BillingDetails.Email != "" {
		return charge.BillingDetails.Email
	}
	if charge.ReceiptEmail != "" {
		return charge.ReceiptEmail
	}
	if charge.Customer == nil || charge.Customer.ID == "" {
		return ""
	}
	if charge.Customer.Email != "" {
		return charge.Customer.Email
	}
	customer, err := s.provider.GetCustomer(ctx, charge.Customer.ID)
	if err != nil {
		s.logger.Warn(logger.ModuleProvider, "Failed to resolve refund email from customer", map[string]interface{}{
			"charge_id":   charge.ID,
			"customer_id": charge.Customer.ID,
			"error":       err.Error(),
		})
		return ""
	}
	return customer.Email
}

func (s *subscriptionEventService) ChargeRefunded(ctx context.Context, charge *stripe.Charge) HandlerResult {
	const h = HandlerChargeRefunded
	if charge == nil || charge.ID == "" {
		return failed(h, ErrInvalidEventData, false)
	}
	details := map[string]interface{}{"charge_id": charge.ID, "amount": charge.Amount, "amount_refunded": charge.AmountRefunded}

	email := s.refundEmailAddress(ctx, charge)

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return s.storeFailure(h, err, details)
	}
	defer uow.Rollback()

	membership, err := uow.MembershipRepository().FindByChargeId(ctx, charge.ID)
	if err != nil {
		return s.storeFailure(h, err, details)
	}
	if membership == nil && charge.Invoice != nil && charge.Invoice.ID != "" {
		// Subscription charges are linked when their refund is booked; retry until that write lands.
		details["invoice_id"] = charge.Invoice.ID
		s.logger.Warn(logger.ModuleBilling, h+": invoice charge not linked to a membership yet", details)
		return failed(h, ErrMembershipNotFound, true)
	}
	if membership == nil {
		return s.notFound(h, ErrMembershipNotFound, details)
	}

	full := charge.AmountRefunded > 0 && (charge.Refunded || charge.AmountRefunded >= charge.Amount)
	partial := charge.AmountRefunded > 0 && !full

	switch {
	case full:
		membership.Status = entity.MembershipStatusCanceled
	default:
		membership.Status = entity.MembershipStatusActive
	}

	var refundAmount float64
	if full || partial {
		refundAmount = float64(charge.AmountRefunded) / 100
		refundStatus := entity.RefundStatusPartial
		if full {
			refundStatus = entity.RefundStatusRefunded
		}
		refundDate := s.clock.Now()
		membership.RefundAmount = &refundAmount
		membership.RefundStatus = &refundStatus
		membership.RefundDate = &refundDate
	}

	if err := uow.MembershipRepository().Update(ctx, membership); err != nil {
		return s.storeFailure(h, err, details)
	}
	if err := uow.Commit(); err != nil {
		return s.storeFailure(h, err, details)
	}

	if !full && !partial {
		s.logger.Warn(logger.ModuleBilling, "Charge refunded event without a refunded amount", details)
		return applied(h)
	}

	details["full_refund"] = full
	s.logger.Info(logger.ModuleBilling, "Refund recorded", details)
	s.publisher.PublishRefunded(ctx, membership, refundAmount, full)

	if email == "" {
		s.logger.Warn(logger.ModuleMailer, "No address for refund email", details)
		return applied(h)
	}
	if err := s.refundMails.EnqueueRefundEmail(ctx, email, RefundEmailSubject, refundAmount); err != nil {
		details["error"] = err.Error()
		s.logger.Error(logger.ModuleMailer, "Failed to queue refund email", details)
	}
	return applied(h)
}
