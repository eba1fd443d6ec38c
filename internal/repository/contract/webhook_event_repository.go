package contract

import (
	"context"

	"club-directory-be/internal/entity"
)

type WebhookEventRepository interface {
	FindByProviderEventId(ctx context.Context, provider, providerEventId string) (*entity.WebhookEvent, error)
	Save(ctx context.Context, event *entity.WebhookEvent) error
}
