package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BySubscriptionId matches the provider subscription a membership is bound to
type BySubscriptionId struct {
	SubscriptionId string
}

func (s BySubscriptionId) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("stripe_subscription_id = ?", s.SubscriptionId)
}

type ByChargeId struct {
	ChargeId string
}

func (s ByChargeId) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("stripe_charge_id = ?", s.ChargeId)
}

type ByMembership struct {
	MembershipId uuid.UUID
}

func (s ByMembership) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("membership_id = ?", s.MembershipId)
}

type ByProviderEvent struct {
	Provider        string
	ProviderEventId string
}

func (s ByProviderEvent) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("provider = ? AND provider_event_id = ?", s.Provider, s.ProviderEventId)
}
