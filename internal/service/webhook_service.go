package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"club-directory-be/internal/entity"
	"club-directory-be/internal/pkg/clock"
	"club-directory-be/internal/pkg/logger"
	"club-directory-be/internal/repository/unitofwork"
	"club-directory-be/pkg/lock"
	"club-directory-be/pkg/payment"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/stripe/stripe-go/v78"
)

const ProviderStripe = "stripe"

const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventInvoicePaid              = "invoice.paid"
	EventInvoicePaymentSucceeded  = "invoice.payment_succeeded"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventChargeRefunded           = "charge.refunded"
)

// WebhookOutcome is the result of one webhook delivery.
type WebhookOutcome struct {
	EventId   string
	EventType string
	Status    entity.WebhookEventStatus
	Duplicate bool
	Result    *HandlerResult
}

// ShouldRetry reports whether the provider should redeliver the event.
func (o *WebhookOutcome) ShouldRetry() bool {
	return o.Result != nil && o.Result.Failed() && o.Result.Retryable
}

type IWebhookService interface {
	Handle(ctx context.Context, payload []byte, signature string) (*WebhookOutcome, error)
}

type WebhookOptions struct {
	LockTTL  time.Duration
	LockWait time.Duration
	DedupTTL time.Duration
}

type webhookService struct {
	uowFactory unitofwork.RepositoryFactory
	provider   payment.Provider
	handlers   ISubscriptionEventService
	locker     lock.Locker
	recent     *cache.Cache
	opts       WebhookOptions
	clock      clock.Clock
	logger     logger.ILogger
}

func NewWebhookService(
	uowFactory unitofwork.RepositoryFactory,
	provider payment.Provider,
	handlers ISubscriptionEventService,
	locker lock.Locker,
	opts WebhookOptions,
	clk clock.Clock,
	log logger.ILogger,
) IWebhookService {
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = 24 * time.Hour
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 10 * time.Second
	}
	return &webhookService{
		uowFactory: uowFactory,
		provider:   provider,
		handlers:   handlers,
		locker:     locker,
		recent:     cache.New(opts.DedupTTL, 10*time.Minute),
		opts:       opts,
		clock:      clk,
		logger:     log,
	}
}

// dispatch is a decoded event ready to run under its lock.
type dispatch struct {
	lockKey string
	run     func(ctx context.Context) HandlerResult
}

func (s *webhookService) Handle(ctx context.Context, payload []byte, signature string) (*WebhookOutcome, error) {
	event, err := s.provider.ConstructEvent(payload, signature)
	if err != nil {
		s.logger.Warn(logger.ModuleWebhook, "Rejected webhook", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	eventType := string(event.Type)
	outcome := &WebhookOutcome{EventId: event.ID, EventType: eventType}
	details := map[string]interface{}{"event_id": event.ID, "event_type": eventType}

	if _, seen := s.recent.Get(event.ID); seen {
		outcome.Duplicate = true
		s.logger.Debug(logger.ModuleWebhook, "Duplicate event acknowledged", details)
		return outcome, nil
	}

	record, handled, err := s.claim(ctx, event, payload, outcome, details)
	if err != nil {
		return s.lookupFailure(outcome, details, err), nil
	}
	if handled {
		return outcome, nil
	}

	d, err := s.decode(ctx, event)
	if err != nil {
		res := failed("Decode", fmt.Errorf("%w: %v", ErrInvalidEventData, err), false)
		outcome.Result = &res
		s.finish(ctx, record, outcome, details)
		return outcome, nil
	}
	if d == nil {
		outcome.Status = entity.WebhookEventIgnored
		s.finish(ctx, record, outcome, details)
		return outcome, nil
	}
	details["lock_key"] = d.lockKey

	lockCtx, cancel := context.WithTimeout(ctx, s.opts.LockWait)
	defer cancel()
	var lookupErr error
	err = lock.WithLock(lockCtx, s.locker, d.lockKey, s.opts.LockTTL, func(context.Context) error {
		// A concurrent delivery of the same event may have finished while this one waited.
		record, handled, lookupErr = s.claim(ctx, event, payload, outcome, details)
		if lookupErr != nil || handled {
			return nil
		}
		// Handlers keep the request context; only lock acquisition is bounded by LockWait.
		res := d.run(ctx)
		outcome.Result = &res
		s.finish(ctx, record, outcome, details)
		return nil
	})
	switch {
	case err != nil:
		res := failed("Lock", err, true)
		outcome.Result = &res
		s.finish(ctx, record, outcome, details)
	case lookupErr != nil:
		return s.lookupFailure(outcome, details, lookupErr), nil
	}
	return outcome, nil
}

// claim loads the stored record of event. handled is true when an earlier
// delivery already settled it; otherwise the returned record belongs to this attempt.
func (s *webhookService) claim(ctx context.Context, event stripe.Event, payload []byte, outcome *WebhookOutcome, details map[string]interface{}) (*entity.WebhookEvent, bool, error) {
	record, err := s.uowFactory.NewUnitOfWork(ctx).WebhookEventRepository().FindByProviderEventId(ctx, ProviderStripe, event.ID)
	if err != nil {
		return nil, false, err
	}
	if record != nil && record.Status != entity.WebhookEventFailed {
		s.recent.Set(event.ID, record.Status, cache.DefaultExpiration)
		outcome.Duplicate = true
		outcome.Status = record.Status
		s.logger.Info(logger.ModuleWebhook, "Event already handled", details)
		return nil, true, nil
	}
	if record == nil {
		record = &entity.WebhookEvent{
			Id:              uuid.New(),
			Provider:        ProviderStripe,
			ProviderEventId: event.ID,
			EventType:       string(event.Type),
		}
	}
	record.Payload = payload
	record.Attempts++
	return record, false, nil
}

func (s *webhookService) lookupFailure(outcome *WebhookOutcome, details map[string]interface{}, err error) *WebhookOutcome {
	details["error"] = err.Error()
	s.logger.Error(logger.ModuleWebhook, "Failed to look up webhook event", details)
	res := failed("WebhookLookup", err, true)
	outcome.Result = &res
	return outcome
}

// finish derives the stored status, persists the audit row and primes the dedup cache.
func (s *webhookService) finish(ctx context.Context, record *entity.WebhookEvent, outcome *WebhookOutcome, details map[string]interface{}) {
	if outcome.Result != nil {
		switch outcome.Result.Outcome {
		case OutcomeApplied:
			outcome.Status = entity.WebhookEventProcessed
		case OutcomeSkipped:
			outcome.Status = entity.WebhookEventSkipped
		default:
			outcome.Status = entity.WebhookEventFailed
		}
	}

	record.Status = outcome.Status
	record.ProcessingError = ""
	record.ProcessedAt = nil
	if outcome.Result != nil && outcome.Result.Err != nil {
		record.ProcessingError = outcome.Result.Err.Error()
	}
	if outcome.Status != entity.WebhookEventFailed {
		now := s.clock.Now()
		record.ProcessedAt = &now
	}

	if err := s.uowFactory.NewUnitOfWork(ctx).WebhookEventRepository().Save(ctx, record); err != nil {
		details["error"] = err.Error()
		s.logger.Error(logger.ModuleWebhook, "Failed to record webhook event", details)
		delete(details, "error")
	}

	if outcome.ShouldRetry() {
		details["error"] = record.ProcessingError
		s.logger.Error(logger.ModuleWebhook, "Webhook handling failed, provider will retry", details)
		return
	}
	if outcome.Status != entity.WebhookEventFailed {
		s.recent.Set(record.ProviderEventId, outcome.Status, cache.DefaultExpiration)
	}
	details["status"] = string(outcome.Status)
	s.logger.Info(logger.ModuleWebhook, "Webhook handled", details)
}

// decode returns nil for event types the billing core does not handle.
func (s *webhookService) decode(ctx context.Context, event stripe.Event) (*dispatch, error) {
	if event.Data == nil {
		return nil, errors.New("event has no data")
	}
	raw := event.Data.Raw

	switch string(event.Type) {
	case EventCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(raw, &session); err != nil {
			return nil, err
		}
		key := "checkout:" + session.ID
		if session.Subscription != nil && session.Subscription.ID != "" {
			key = session.Subscription.ID
		}
		return &dispatch{lockKey: key, run: func(ctx context.Context) HandlerResult {
			return s.handlers.CheckoutCompleted(ctx, &session)
		}}, nil

	case EventInvoicePaid, EventInvoicePaymentSucceeded, EventInvoicePaymentFailed:
		var invoice stripe.Invoice
		if err := json.Unmarshal(raw, &invoice); err != nil {
			return nil, err
		}
		key := invoiceSubscriptionId(&invoice)
		if key == "" {
			key = "invoice:" + invoice.ID
		}
		if string(event.Type) == EventInvoicePaymentFailed {
			return &dispatch{lockKey: key, run: func(ctx context.Context) HandlerResult {
				return s.handlers.InvoicePaymentFailed(ctx, &invoice)
			}}, nil
		}
		return &dispatch{lockKey: key, run: func(ctx context.Context) HandlerResult {
			return s.handlers.InvoicePaid(ctx, &invoice)
		}}, nil

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, err
		}
		if string(event.Type) == EventSubscriptionDeleted {
			return &dispatch{lockKey: sub.ID, run: func(ctx context.Context) HandlerResult {
				return s.handlers.SubscriptionDeleted(ctx, &sub)
			}}, nil
		}
		return &dispatch{lockKey: sub.ID, run: func(ctx context.Context) HandlerResult {
			return s.handlers.SubscriptionUpdated(ctx, &sub)
		}}, nil

	case EventChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(raw, &charge); err != nil {
			return nil, err
		}
		return &dispatch{lockKey: s.chargeLockKey(ctx, &charge), run: func(ctx context.Context) HandlerResult {
			return s.handlers.ChargeRefunded(ctx, &charge)
		}}, nil
	}

	return nil, nil
}

// chargeLockKey resolves the subscription a charge belongs to so refunds
// serialize with the other events of that subscription.
func (s *webhookService) chargeLockKey(ctx context.Context, charge *stripe.Charge) string {
	if charge.Invoice != nil && charge.Invoice.Subscription != nil && charge.Invoice.Subscription.ID != "" {
		return charge.Invoice.Subscription.ID
	}
	m, err := s.uowFactory.NewUnitOfWork(ctx).MembershipRepository().FindByChargeId(ctx, charge.ID)
	if err == nil && m != nil && m.StripeSubscriptionId != "" {
		return m.StripeSubscriptionId
	}
	// Unexpanded invoice: only its id arrives on the charge.
	if charge.Invoice != nil && charge.Invoice.ID != "" {
		inv, err := s.provider.GetInvoice(ctx, charge.Invoice.ID)
		if err != nil {
			s.logger.Warn(logger.ModuleProvider, "Failed to resolve invoice for refunded charge", map[string]interface{}{
				"charge_id":  charge.ID,
				"invoice_id": charge.Invoice.ID,
				"error":      err.Error(),
			})
		} else if id := invoiceSubscriptionId(inv); id != "" {
			return id
		}
	}
	return "charge:" + charge.ID
}
