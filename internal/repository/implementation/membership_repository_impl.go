package implementation

import (
	"context"
	"errors"

	"club-directory-be/internal/entity"
	"club-directory-be/internal/mapper"
	"club-directory-be/internal/model"
	"club-directory-be/internal/repository/contract"
	"club-directory-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MembershipRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.MembershipMapper
}

func NewMembershipRepository(db *gorm.DB) contract.MembershipRepository {
	return &MembershipRepositoryImpl{
		db:     db,
		mapper: mapper.NewMembershipMapper(),
	}
}

func (r *MembershipRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *MembershipRepositoryImpl) Create(ctx context.Context, membership *entity.Membership) error {
	m := r.mapper.ToModel(membership)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*membership = *r.mapper.ToEntity(m)
	return nil
}

func (r *MembershipRepositoryImpl) Update(ctx context.Context, membership *entity.Membership) error {
	m := r.mapper.ToModel(membership)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*membership = *r.mapper.ToEntity(m)
	return nil
}

func (r *MembershipRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.Membership, error) {
	return r.findOne(ctx, specification.ByID{ID: id})
}

// FindByUserId returns the most recently updated membership of the user
func (r *MembershipRepositoryImpl) FindByUserId(ctx context.Context, userId uuid.UUID) (*entity.Membership, error) {
	return r.findOne(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
}

func (r *MembershipRepositoryImpl) FindBySubscriptionId(ctx context.Context, subscriptionId string) (*entity.Membership, error) {
	if subscriptionId == "" {
		return nil, nil
	}
	return r.findOne(ctx, specification.BySubscriptionId{SubscriptionId: subscriptionId})
}

func (r *MembershipRepositoryImpl) FindByChargeId(ctx context.Context, chargeId string) (*entity.Membership, error) {
	if chargeId == "" {
		return nil, nil
	}
	return r.findOne(ctx, specification.ByChargeId{ChargeId: chargeId})
}

func (r *MembershipRepositoryImpl) findOne(ctx context.Context, specs ...specification.Specification) (*entity.Membership, error) {
	var m model.Membership
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}
