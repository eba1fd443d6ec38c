package contract

import (
	"context"

	"club-directory-be/internal/entity"

	"github.com/google/uuid"
)

type UserRepository interface {
	FindById(ctx context.Context, id uuid.UUID) (*entity.User, error)
	UpdateMembershipStatus(ctx context.Context, id uuid.UUID, status entity.UserMembershipStatus) error
}
