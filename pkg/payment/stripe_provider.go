package payment

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"club-directory-be/internal/pkg/logger"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

type StripeProvider struct {
	api     *client.API
	cfg     Config
	breaker *gobreaker.CircuitBreaker[any]
	logger  logger.ILogger
}

func NewStripeProvider(cfg Config, log logger.ILogger) *StripeProvider {
	// Retries are owned by call; the SDK's own network retries are disabled.
	backends := &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			MaxNetworkRetries: stripe.Int64(0),
		}),
		Connect: stripe.GetBackend(stripe.ConnectBackend),
		Uploads: stripe.GetBackend(stripe.UploadsBackend),
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, backends)

	p := &StripeProvider{api: api, cfg: cfg, logger: log}
	p.breaker = newBreaker("stripe", cfg, log)
	return p
}

func newBreaker(name string, cfg Config, log logger.ILogger) *gobreaker.CircuitBreaker[any] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Declined requests are the caller's fault and must not trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || !isTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(logger.ModuleProvider, "Circuit breaker state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
}

// call runs fn with a per-attempt timeout, retrying transient failures
// through the circuit breaker.
func call[T any](ctx context.Context, p *StripeProvider, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		var zero T

		callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
		defer cancel()

		out, err := p.breaker.Execute(func() (any, error) {
			return fn(callCtx)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return zero, backoff.Permanent(ErrCircuitOpen)
			}
			if !isTransient(err) || ctx.Err() != nil {
				return zero, backoff.Permanent(err)
			}
			p.logger.Warn(logger.ModuleProvider, "Transient provider failure", map[string]interface{}{
				"operation": op,
				"attempt":   attempt,
				"error":     err.Error(),
			})
			return zero, err
		}
		v, _ := out.(T)
		return v, nil
	}

	maxTries := p.cfg.MaxRetries
	if maxTries == 0 {
		maxTries = 1
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	v, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(maxTries))
	if err != nil {
		return v, fmt.Errorf("stripe %s: %w", op, err)
	}
	return v, nil
}

// isTransient reports whether a failed provider call is worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode == http.StatusTooManyRequests ||
			stripeErr.HTTPStatusCode >= http.StatusInternalServerError ||
			stripeErr.HTTPStatusCode == 0
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

func (p *StripeProvider) ScheduleCancelAt(ctx context.Context, subscriptionID string, at time.Time) (*stripe.Subscription, error) {
	return call(ctx, p, "schedule cancel", func(ctx context.Context) (*stripe.Subscription, error) {
		params := &stripe.SubscriptionParams{CancelAt: stripe.Int64(at.Unix())}
		params.Context = ctx
		return p.api.Subscriptions.Update(subscriptionID, params)
	})
}

func (p *StripeProvider) ScheduleCancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	return call(ctx, p, "cancel at period end", func(ctx context.Context) (*stripe.Subscription, error) {
		params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
		params.Context = ctx
		return p.api.Subscriptions.Update(subscriptionID, params)
	})
}

func (p *StripeProvider) CancelNow(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	return call(ctx, p, "cancel subscription", func(ctx context.Context) (*stripe.Subscription, error) {
		params := &stripe.SubscriptionCancelParams{}
		params.Context = ctx
		return p.api.Subscriptions.Cancel(subscriptionID, params)
	})
}

func (p *StripeProvider) LatestInvoice(ctx context.Context, subscriptionID string) (*stripe.Invoice, error) {
	return call(ctx, p, "list invoices", func(ctx context.Context) (*stripe.Invoice, error) {
		params := &stripe.InvoiceListParams{Subscription: stripe.String(subscriptionID)}
		params.Limit = stripe.Int64(1)
		params.Context = ctx

		iter := p.api.Invoices.List(params)
		if iter.Next() {
			return iter.Invoice(), nil
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNoInvoice
	})
}

func (p *StripeProvider) GetInvoice(ctx context.Context, invoiceID string) (*stripe.Invoice, error) {
	return call(ctx, p, "get invoice", func(ctx context.Context) (*stripe.Invoice, error) {
		params := &stripe.InvoiceParams{}
		params.Context = ctx
		return p.api.Invoices.Get(invoiceID, params)
	})
}

func (p *StripeProvider) CreateRefund(ctx context.Context, chargeID string, amount int64, idempotencyKey string) (*stripe.Refund, error) {
	return call(ctx, p, "create refund", func(ctx context.Context) (*stripe.Refund, error) {
		params := &stripe.RefundParams{
			Charge: stripe.String(chargeID),
			Amount: stripe.Int64(amount),
		}
		params.Context = ctx
		if idempotencyKey != "" {
			params.SetIdempotencyKey(idempotencyKey)
		}
		return p.api.Refunds.New(params)
	})
}

func (p *StripeProvider) GetCustomer(ctx context.Context, customerID string) (*stripe.Customer, error) {
	return call(ctx, p, "get customer", func(ctx context.Context) (*stripe.Customer, error) {
		params := &stripe.CustomerParams{}
		params.Context = ctx
		return p.api.Customers.Get(customerID, params)
	})
}

func (p *StripeProvider) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}
