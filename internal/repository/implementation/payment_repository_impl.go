package implementation

import (
	"context"

	"club-directory-be/internal/entity"
	"club-directory-be/internal/mapper"
	"club-directory-be/internal/model"
	"club-directory-be/internal/repository/contract"
	"club-directory-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type paymentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.MembershipMapper
}

func NewPaymentRepository(db *gorm.DB) contract.PaymentRepository {
	return &paymentRepositoryImpl{
		db:     db,
		mapper: mapper.NewMembershipMapper(),
	}
}

func (r *paymentRepositoryImpl) Append(ctx context.Context, payment *entity.Payment) (bool, error) {
	m := r.mapper.PaymentToModel(payment)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_invoice_id"}, {Name: "status"}},
			DoNothing: true,
		}).
		Omit("Membership").
		Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	*payment = *r.mapper.PaymentToEntity(m)
	return true, nil
}

func (r *paymentRepositoryImpl) FindAllByMembershipId(ctx context.Context, membershipId uuid.UUID, limit, offset int) ([]*entity.Payment, error) {
	var models []*model.Payment
	query := r.db.WithContext(ctx)
	for _, spec := range []specification.Specification{
		specification.ByMembership{MembershipId: membershipId},
		specification.OrderBy{Field: "payment_date", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	} {
		query = spec.Apply(query)
	}

	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	payments := make([]*entity.Payment, len(models))
	for i, m := range models {
		payments[i] = r.mapper.PaymentToEntity(m)
	}
	return payments, nil
}
