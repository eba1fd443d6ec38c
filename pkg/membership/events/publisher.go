package events

import (
	"context"
	"time"

	"club-directory-be/internal/entity"
	"club-directory-be/internal/pkg/logger"
	pkgEvents "club-directory-be/pkg/events"
)

const (
	MembershipActivated = "MEMBERSHIP_ACTIVATED"
	MembershipRenewed   = "MEMBERSHIP_RENEWED"
	MembershipPastDue   = "MEMBERSHIP_PAST_DUE"
	MembershipCanceled  = "MEMBERSHIP_CANCELED"
	MembershipRefunded  = "MEMBERSHIP_REFUNDED"
)

// Bus is satisfied by *nats.Publisher.
type Bus interface {
	Publish(ctx context.Context, event pkgEvents.Event) error
}

// Publisher emits membership lifecycle events. Publishing is best-effort:
// failures are logged and never returned.
type Publisher interface {
	PublishActivated(ctx context.Context, m *entity.Membership)
	PublishRenewed(ctx context.Context, m *entity.Membership, invoiceId string)
	PublishPastDue(ctx context.Context, m *entity.Membership, invoiceId string)
	PublishCanceled(ctx context.Context, m *entity.Membership, decision *entity.CancellationDecision, reason string)
	PublishRefunded(ctx context.Context, m *entity.Membership, amount float64, full bool)
}

type NatsPublisher struct {
	bus    Bus
	logger logger.ILogger
}

// NewNatsPublisher accepts a nil bus, which disables publishing.
func NewNatsPublisher(bus Bus, logger logger.ILogger) *NatsPublisher {
	return &NatsPublisher{bus: bus, logger: logger}
}

func baseData(m *entity.Membership) map[string]interface{} {
	return map[string]interface{}{
		"membership_id":   m.Id,
		"user_id":         m.UserId,
		"subscription_id": m.StripeSubscriptionId,
		"status":          m.Status,
		"end_date":        m.EndDate,
		"entity_type":     "membership",
		"entity_id":       m.Id.String(),
	}
}

func (p *NatsPublisher) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if p.bus == nil {
		return
	}
	evt := pkgEvents.New(eventType, data, time.Now().UTC())
	if err := p.bus.Publish(ctx, evt); err != nil {
		p.logger.Error(logger.ModuleEvents, "Failed to publish "+eventType+" event", map[string]interface{}{"error": err.Error()})
	}
}

func (p *NatsPublisher) PublishActivated(ctx context.Context, m *entity.Membership) {
	p.publish(ctx, MembershipActivated, baseData(m))
}

func (p *NatsPublisher) PublishRenewed(ctx context.Context, m *entity.Membership, invoiceId string) {
	data := baseData(m)
	data["invoice_id"] = invoiceId
	p.publish(ctx, MembershipRenewed, data)
}

func (p *NatsPublisher) PublishPastDue(ctx context.Context, m *entity.Membership, invoiceId string) {
	data := baseData(m)
	data["invoice_id"] = invoiceId
	p.publish(ctx, MembershipPastDue, data)
}

func (p *NatsPublisher) PublishCanceled(ctx context.Context, m *entity.Membership, decision *entity.CancellationDecision, reason string) {
	data := baseData(m)
	if decision != nil {
		data["cancellation_type"] = decision.CancellationType
		data["cancel_date"] = decision.CancelDate
		data["refund_percentage"] = decision.RefundPercentage
	}
	if reason != "" {
		data["reason"] = reason
	}
	p.publish(ctx, MembershipCanceled, data)
}

func (p *NatsPublisher) PublishRefunded(ctx context.Context, m *entity.Membership, amount float64, full bool) {
	data := baseData(m)
	data["amount"] = amount
	data["full_refund"] = full
	p.publish(ctx, MembershipRefunded, data)
}
