package service

import (
	"context"
	"errors"
	"time"

	"club-directory-be/internal/dto"
	"club-directory-be/internal/entity"
	"club-directory-be/internal/pkg/clock"
	"club-directory-be/internal/pkg/logger"
	"club-directory-be/internal/repository/unitofwork"
	"club-directory-be/pkg/billing/policy"
	"club-directory-be/pkg/lock"
	membershipEvents "club-directory-be/pkg/membership/events"
	"club-directory-be/pkg/payment"

	"github.com/google/uuid"
)

const recentPaymentsLimit = 10

var ErrNoSubscription = errors.New("membership has no provider subscription")

type IMembershipService interface {
	GetMembership(ctx context.Context, userId uuid.UUID) (*dto.MembershipResponse, error)
	PreviewCancellation(ctx context.Context, userId uuid.UUID) (*dto.CancellationPreviewResponse, error)
	RequestCancellation(ctx context.Context, userId uuid.UUID, req *dto.CancelMembershipRequest) (*dto.CancelMembershipResponse, error)
}

type membershipService struct {
	uowFactory unitofwork.RepositoryFactory
	provider   payment.Provider
	userStatus IUserStatusService
	publisher  membershipEvents.Publisher
	executor   *cancellationExecutor
	locker     lock.Locker
	lockTTL    time.Duration
	clock      clock.Clock
	testMode   bool
	logger     logger.ILogger
}

func NewMembershipService(
	uowFactory unitofwork.RepositoryFactory,
	provider payment.Provider,
	userStatus IUserStatusService,
	publisher membershipEvents.Publisher,
	locker lock.Locker,
	lockTTL time.Duration,
	clk clock.Clock,
	testMode bool,
	log logger.ILogger,
) IMembershipService {
	return &membershipService{
		uowFactory: uowFactory,
		provider:   provider,
		userStatus: userStatus,
		publisher:  publisher,
		executor:   &cancellationExecutor{uowFactory: uowFactory, provider: provider, logger: log},
		locker:     locker,
		lockTTL:    lockTTL,
		clock:      clk,
		testMode:   testMode,
		logger:     log,
	}
}

func (s *membershipService) GetMembership(ctx context.Context, userId uuid.UUID) (*dto.MembershipResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	m, err := uow.MembershipRepository().FindByUserId(ctx, userId)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMembershipNotFound
	}

	payments, err := uow.PaymentRepository().FindAllByMembershipId(ctx, m.Id, recentPaymentsLimit, 0)
	if err != nil {
		return nil, err
	}

	res := &dto.MembershipResponse{
		Id:           m.Id,
		Status:       string(m.Status),
		StartDate:    m.StartDate,
		EndDate:      m.EndDate,
		AutoRenew:    m.AutoRenew,
		RefundAmount: m.RefundAmount,
		RefundDate:   m.RefundDate,
		Payments:     make([]dto.PaymentResponse, 0, len(payments)),
	}
	if m.RefundStatus != nil {
		rs := string(*m.RefundStatus)
		res.RefundStatus = &rs
	}
	for _, p := range payments {
		res.Payments = append(res.Payments, dto.PaymentResponse{
			Id:          p.Id,
			InvoiceId:   p.StripeInvoiceId,
			Amount:      p.Amount,
			Currency:    p.Currency,
			Status:      string(p.Status),
			PaymentDate: p.PaymentDate,
		})
	}
	return res, nil
}

func (s *membershipService) cancellable(ctx context.Context, userId uuid.UUID) (*entity.Membership, error) {
	m, err := s.uowFactory.NewUnitOfWork(ctx).MembershipRepository().FindByUserId(ctx, userId)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMembershipNotFound
	}
	if m.Status == entity.MembershipStatusCanceled || !m.AutoRenew {
		return nil, ErrAlreadyCanceled
	}
	if m.StripeSubscriptionId == "" {
		return nil, ErrNoSubscription
	}
	return m, nil
}

func (s *membershipService) PreviewCancellation(ctx context.Context, userId uuid.UUID) (*dto.CancellationPreviewResponse, error) {
	m, err := s.cancellable(ctx, userId)
	if err != nil {
		return nil, err
	}

	d, err := policy.Calculate(m.StartDate, s.clock.Now(), s.testMode)
	if err != nil {
		return nil, err
	}

	res := &dto.CancellationPreviewResponse{
		CancellationType: string(d.CancellationType),
		CancelDate:       d.CancelDate,
		RefundPercentage: d.RefundPercentage,
		Immediate:        d.IsImmediate(),
	}
	// Estimate from the last recorded successful payment; the actual refund uses the provider's latest invoice.
	if d.RefundPercentage > 0 {
		payments, err := s.uowFactory.NewUnitOfWork(ctx).PaymentRepository().FindAllByMembershipId(ctx, m.Id, recentPaymentsLimit, 0)
		if err != nil {
			return nil, err
		}
		for _, p := range payments {
			if p.Status == entity.PaymentStatusSucceeded {
				est := float64(policy.RefundMinorUnits(int64(p.Amount*100+0.5), d.RefundPercentage)) / 100
				res.EstimatedRefund = &est
				break
			}
		}
	}
	return res, nil
}

func (s *membershipService) RequestCancellation(ctx context.Context, userId uuid.UUID, req *dto.CancelMembershipRequest) (*dto.CancelMembershipResponse, error) {
	m, err := s.cancellable(ctx, userId)
	if err != nil {
		return nil, err
	}

	var res *dto.CancelMembershipResponse
	err = lock.WithLock(ctx, s.locker, m.StripeSubscriptionId, s.lockTTL, func(ctx context.Context) error {
		// Re-read under the lock: a webhook may have changed it meanwhile.
		m, err := s.cancellable(ctx, userId)
		if err != nil {
			return err
		}
		res, err = s.cancel(ctx, m, req.Reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *membershipService) cancel(ctx context.Context, m *entity.Membership, reason string) (*dto.CancelMembershipResponse, error) {
	d, err := policy.Calculate(m.StartDate, s.clock.Now(), s.testMode)
	if err != nil {
		return nil, err
	}

	if err := s.executor.applyProviderAction(ctx, m.StripeSubscriptionId, d); err != nil {
		return nil, err
	}
	refunded, err := s.executor.refund(ctx, m, d)
	if err != nil {
		return nil, err
	}
	var refundAmount *float64
	if refunded.Issued {
		refundAmount = m.RefundAmount
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	m, err = storedMembership(ctx, uow.MembershipRepository(), m)
	if err != nil {
		return nil, err
	}
	m.AutoRenew = false
	if d.IsImmediate() {
		m.Status = entity.MembershipStatusCanceled
	}
	if err := uow.MembershipRepository().Update(ctx, m); err != nil {
		return nil, err
	}
	if d.IsImmediate() {
		if err := s.userStatus.Sync(ctx, uow.UserRepository(), m.UserId, entity.UserMembershipInactive); err != nil {
			return nil, err
		}
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info(logger.ModuleBilling, "Member requested cancellation", map[string]interface{}{
		"user_id":           m.UserId.String(),
		"subscription_id":   m.StripeSubscriptionId,
		"cancellation_type": string(d.CancellationType),
		"refund_issued":     refunded.Issued,
	})
	s.publisher.PublishCanceled(ctx, m, &d, reason)

	res := &dto.CancelMembershipResponse{
		Status:           string(m.Status),
		CancellationType: string(d.CancellationType),
		CancelDate:       d.CancelDate,
		RefundPercentage: d.RefundPercentage,
		RefundAmount:     refundAmount,
		Message:          cancellationMessage(d),
	}
	return res, nil
}

func cancellationMessage(d entity.CancellationDecision) string {
	switch d.CancellationType {
	case entity.CancellationGracePeriod:
		return "Your membership has been canceled and a full refund is on its way."
	case entity.CancellationBefore6Months:
		return "Your membership will end on " + d.CancelDate.Format("January 2, 2006") + " and half of your last payment will be refunded."
	case entity.CancellationTestExpire:
		return "Your membership will expire in a few minutes."
	default:
		return "Your membership will end on " + d.CancelDate.Format("January 2, 2006") + "."
	}
}
