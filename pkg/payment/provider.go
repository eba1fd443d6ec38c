// Package payment wraps the subscription billing provider.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v78"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrCircuitOpen      = errors.New("payment provider circuit open")
	ErrNoInvoice        = errors.New("subscription has no invoices")
)

// Provider is everything the billing core needs from the payment SaaS.
// Every call is bounded by the configured timeout and retried on transient failures.
type Provider interface {
	ScheduleCancelAt(ctx context.Context, subscriptionID string, at time.Time) (*stripe.Subscription, error)
	ScheduleCancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	CancelNow(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	LatestInvoice(ctx context.Context, subscriptionID string) (*stripe.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*stripe.Invoice, error)
	CreateRefund(ctx context.Context, chargeID string, amount int64, idempotencyKey string) (*stripe.Refund, error)
	GetCustomer(ctx context.Context, customerID string) (*stripe.Customer, error)
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type Config struct {
	SecretKey        string
	WebhookSecret    string
	CallTimeout      time.Duration
	MaxRetries       uint
	FailureThreshold uint32
	BreakerTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		CallTimeout:      10 * time.Second,
		MaxRetries:       3,
		FailureThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}
