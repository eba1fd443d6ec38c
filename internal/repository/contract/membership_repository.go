package contract

import (
	"context"

	"club-directory-be/internal/entity"

	"github.com/google/uuid"
)

type MembershipRepository interface {
	Create(ctx context.Context, membership *entity.Membership) error
	Update(ctx context.Context, membership *entity.Membership) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.Membership, error)
	FindByUserId(ctx context.Context, userId uuid.UUID) (*entity.Membership, error)
	FindBySubscriptionId(ctx context.Context, subscriptionId string) (*entity.Membership, error)
	FindByChargeId(ctx context.Context, chargeId string) (*entity.Membership, error)
}
