package mapper

import (
	"club-directory-be/internal/entity"
	"club-directory-be/internal/model"
)

type MembershipMapper struct{}

func NewMembershipMapper() *MembershipMapper {
	return &MembershipMapper{}
}

func (m *MembershipMapper) ToEntity(s *model.Membership) *entity.Membership {
	if s == nil {
		return nil
	}
	var refundStatus *entity.RefundStatus
	if s.RefundStatus != nil {
		rs := entity.RefundStatus(*s.RefundStatus)
		refundStatus = &rs
	}
	return &entity.Membership{
		Id:                   s.Id,
		UserId:               s.UserId,
		StripeCustomerId:     s.StripeCustomerId,
		StripeSubscriptionId: s.StripeSubscriptionId,
		Status:               entity.MembershipStatus(s.Status),
		StartDate:            s.StartDate,
		EndDate:              s.EndDate,
		AutoRenew:            s.AutoRenew,
		RefundAmount:         s.RefundAmount,
		RefundStatus:         refundStatus,
		RefundDate:           s.RefundDate,
		StripeChargeId:       s.StripeChargeId,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

func (m *MembershipMapper) ToModel(s *entity.Membership) *model.Membership {
	if s == nil {
		return nil
	}
	var refundStatus *string
	if s.RefundStatus != nil {
		rs := string(*s.RefundStatus)
		refundStatus = &rs
	}
	return &model.Membership{
		Id:                   s.Id,
		UserId:               s.UserId,
		StripeCustomerId:     s.StripeCustomerId,
		StripeSubscriptionId: s.StripeSubscriptionId,
		Status:               string(s.Status),
		StartDate:            s.StartDate,
		EndDate:              s.EndDate,
		AutoRenew:            s.AutoRenew,
		RefundAmount:         s.RefundAmount,
		RefundStatus:         refundStatus,
		RefundDate:           s.RefundDate,
		StripeChargeId:       s.StripeChargeId,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

func (m *MembershipMapper) PaymentToEntity(p *model.Payment) *entity.Payment {
	if p == nil {
		return nil
	}
	return &entity.Payment{
		Id:                    p.Id,
		UserId:                p.UserId,
		MembershipId:          p.MembershipId,
		StripePaymentIntentId: p.StripePaymentIntentId,
		StripeInvoiceId:       p.StripeInvoiceId,
		Amount:                p.Amount,
		Currency:              p.Currency,
		Status:                entity.PaymentStatus(p.Status),
		PaymentDate:           p.PaymentDate,
		CreatedAt:             p.CreatedAt,
	}
}

func (m *MembershipMapper) PaymentToModel(p *entity.Payment) *model.Payment {
	if p == nil {
		return nil
	}
	return &model.Payment{
		Id:                    p.Id,
		UserId:                p.UserId,
		MembershipId:          p.MembershipId,
		StripePaymentIntentId: p.StripePaymentIntentId,
		StripeInvoiceId:       p.StripeInvoiceId,
		Amount:                p.Amount,
		Currency:              p.Currency,
		Status:                string(p.Status),
		PaymentDate:           p.PaymentDate,
		CreatedAt:             p.CreatedAt,
	}
}
