package contract

import (
	"context"

	"club-directory-be/internal/entity"

	"github.com/google/uuid"
)

type PaymentRepository interface {
	// Append inserts the payment unless a row with the same invoice id and
	// status already exists. The boolean reports whether a row was written.
	Append(ctx context.Context, payment *entity.Payment) (bool, error)
	FindAllByMembershipId(ctx context.Context, membershipId uuid.UUID, limit, offset int) ([]*entity.Payment, error)
}
