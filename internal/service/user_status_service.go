package service

import (
	"context"
	"fmt"

	"club-directory-be/internal/entity"
	"club-directory-be/internal/pkg/logger"
	"club-directory-be/internal/repository/contract"

	"github.com/google/uuid"
)

// IUserStatusService writes the membership projection onto the user profile.
// Callers pass an already-mapped status; see pkg/billing/status.
type IUserStatusService interface {
	Sync(ctx context.Context, users contract.UserRepository, userId uuid.UUID, status entity.UserMembershipStatus) error
}

type userStatusService struct {
	logger logger.ILogger
}

func NewUserStatusService(logger logger.ILogger) IUserStatusService {
	return &userStatusService{logger: logger}
}

func (s *userStatusService) Sync(ctx context.Context, users contract.UserRepository, userId uuid.UUID, status entity.UserMembershipStatus) error {
	if err := users.UpdateMembershipStatus(ctx, userId, status); err != nil {
		return fmt.Errorf("sync membership status of user %s: %w", userId, err)
	}
	s.logger.Info(logger.ModuleBilling, "User membership status synced", map[string]interface{}{
		"user_id": userId.String(),
		"status":  string(status),
	})
	return nil
}
