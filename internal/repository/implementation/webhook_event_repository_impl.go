package implementation

import (
	"context"
	"errors"

	"club-directory-be/internal/entity"
	"club-directory-be/internal/mapper"
	"club-directory-be/internal/model"
	"club-directory-be/internal/repository/contract"
	"club-directory-be/internal/repository/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type webhookEventRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.WebhookEventMapper
}

func NewWebhookEventRepository(db *gorm.DB) contract.WebhookEventRepository {
	return &webhookEventRepositoryImpl{
		db:     db,
		mapper: mapper.NewWebhookEventMapper(),
	}
}

func (r *webhookEventRepositoryImpl) FindByProviderEventId(ctx context.Context, provider, providerEventId string) (*entity.WebhookEvent, error) {
	var m model.WebhookEvent
	query := specification.ByProviderEvent{Provider: provider, ProviderEventId: providerEventId}.Apply(r.db.WithContext(ctx))
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

// Save upserts on (provider, provider_event_id)
func (r *webhookEventRepositoryImpl) Save(ctx context.Context, event *entity.WebhookEvent) error {
	m := r.mapper.ToModel(event)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_event_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "processed_at", "processing_error", "attempts", "payload", "updated_at"}),
		}).
		Create(m).Error
	if err != nil {
		return err
	}
	*event = *r.mapper.ToEntity(m)
	return nil
}
