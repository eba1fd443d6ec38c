package mapper

import (
	"club-directory-be/internal/entity"
	"club-directory-be/internal/model"

	"gorm.io/datatypes"
)

type WebhookEventMapper struct{}

func NewWebhookEventMapper() *WebhookEventMapper {
	return &WebhookEventMapper{}
}

func (m *WebhookEventMapper) ToEntity(e *model.WebhookEvent) *entity.WebhookEvent {
	if e == nil {
		return nil
	}
	return &entity.WebhookEvent{
		Id:              e.Id,
		Provider:        e.Provider,
		ProviderEventId: e.ProviderEventId,
		EventType:       e.EventType,
		Payload:         []byte(e.Payload),
		Status:          entity.WebhookEventStatus(e.Status),
		ProcessedAt:     e.ProcessedAt,
		ProcessingError: e.ProcessingError,
		Attempts:        e.Attempts,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func (m *WebhookEventMapper) ToModel(e *entity.WebhookEvent) *model.WebhookEvent {
	if e == nil {
		return nil
	}
	return &model.WebhookEvent{
		Id:              e.Id,
		Provider:        e.Provider,
		ProviderEventId: e.ProviderEventId,
		EventType:       e.EventType,
		Payload:         datatypes.JSON(e.Payload),
		Status:          string(e.Status),
		ProcessedAt:     e.ProcessedAt,
		ProcessingError: e.ProcessingError,
		Attempts:        e.Attempts,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}
