package unitofwork

import (
	"context"

	"club-directory-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() contract.UserRepository
	MembershipRepository() contract.MembershipRepository
	PaymentRepository() contract.PaymentRepository
	WebhookEventRepository() contract.WebhookEventRepository
}
