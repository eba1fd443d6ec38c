package model

import (
	"time"

	"github.com/google/uuid"
)

type Membership struct {
	Id                   uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId               uuid.UUID  `gorm:"type:uuid;not null;index"`
	StripeCustomerId     string     `gorm:"type:varchar(255);index"`
	StripeSubscriptionId string     `gorm:"type:varchar(255);index"`
	Status               string     `gorm:"type:varchar(50);not null;default:'inactive'"`
	StartDate            time.Time  `gorm:"not null"`
	EndDate              time.Time  `gorm:"not null"`
	AutoRenew            bool       `gorm:"default:false"`
	RefundAmount         *float64   `gorm:"type:decimal(10,2)"`
	RefundStatus         *string    `gorm:"type:varchar(50)"`
	RefundDate           *time.Time
	StripeChargeId       *string   `gorm:"type:varchar(255);index"`
	CreatedAt            time.Time `gorm:"autoCreateTime"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime"`
}

func (Membership) TableName() string {
	return "memberships"
}

type Payment struct {
	Id                    uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId                uuid.UUID `gorm:"type:uuid;not null;index"`
	MembershipId          uuid.UUID `gorm:"type:uuid;not null;index"`
	StripePaymentIntentId string    `gorm:"type:varchar(255)"`
	StripeInvoiceId       string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_payments_invoice_status,priority:1"`
	Amount                float64   `gorm:"type:decimal(10,2);not null"`
	Currency              string    `gorm:"type:varchar(10);not null"`
	Status                string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_payments_invoice_status,priority:2"`
	PaymentDate           time.Time `gorm:"not null"`
	CreatedAt             time.Time `gorm:"autoCreateTime"`

	// Relations
	Membership Membership `gorm:"foreignKey:MembershipId"`
}

func (Payment) TableName() string {
	return "payments"
}
