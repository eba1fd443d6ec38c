package entity

import (
	"time"

	"github.com/google/uuid"
)

type WebhookEventStatus string

const (
	WebhookEventProcessed WebhookEventStatus = "processed"
	WebhookEventSkipped   WebhookEventStatus = "skipped"
	WebhookEventIgnored   WebhookEventStatus = "ignored"
	WebhookEventFailed    WebhookEventStatus = "failed"
)

// WebhookEvent records a provider notification for deduplication and audit
type WebhookEvent struct {
	Id              uuid.UUID
	Provider        string
	ProviderEventId string
	EventType       string
	Payload         []byte
	Status          WebhookEventStatus
	ProcessedAt     *time.Time
	ProcessingError string
	Attempts        int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
