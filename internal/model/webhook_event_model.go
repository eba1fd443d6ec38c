package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// WebhookEvent keeps provider notifications with deduplication metadata
type WebhookEvent struct {
	Id              uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Provider        string         `gorm:"type:varchar(20);not null;uniqueIndex:idx_webhook_events_provider_event,priority:1"`
	ProviderEventId string         `gorm:"type:varchar(191);not null;uniqueIndex:idx_webhook_events_provider_event,priority:2"`
	EventType       string         `gorm:"type:varchar(100);not null;index"`
	Payload         datatypes.JSON `gorm:"type:jsonb"`
	Status          string         `gorm:"type:varchar(20);not null;index"`
	ProcessedAt     *time.Time
	ProcessingError string    `gorm:"type:text"`
	Attempts        int       `gorm:"default:0"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
