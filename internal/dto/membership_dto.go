// FILE: internal/dto/membership_dto.go
package dto

import (
	"time"

	"github.com/google/uuid"
)

type PaymentResponse struct {
	Id          uuid.UUID `json:"id"`
	InvoiceId   string    `json:"invoice_id"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	PaymentDate time.Time `json:"payment_date"`
}

type MembershipResponse struct {
	Id           uuid.UUID         `json:"id"`
	Status       string            `json:"status"`
	StartDate    time.Time         `json:"start_date"`
	EndDate      time.Time         `json:"end_date"`
	AutoRenew    bool              `json:"auto_renew"`
	RefundAmount *float64          `json:"refund_amount,omitempty"`
	RefundStatus *string           `json:"refund_status,omitempty"`
	RefundDate   *time.Time        `json:"refund_date,omitempty"`
	Payments     []PaymentResponse `json:"payments"`
}

// RefundEmailMessage is the queued payload for a refund notification
type RefundEmailMessage struct {
	To      string  `json:"to"`
	Subject string  `json:"subject"`
	Amount  float64 `json:"amount"`
}

// WebhookResponse is returned to the billing provider
type WebhookResponse struct {
	Received bool   `json:"received"`
	EventId  string `json:"event_id,omitempty"`
	Status   string `json:"status,omitempty"`
}
