package status

import (
	"testing"

	"club-directory-be/internal/entity"

	"github.com/stretchr/testify/assert"
)

func TestMapping(t *testing.T) {
	tests := []struct {
		provider  string
		wantLocal entity.MembershipStatus
		wantUser  entity.UserMembershipStatus
	}{
		{"active", entity.MembershipStatusActive, entity.UserMembershipActive},
		{"past_due", entity.MembershipStatusPastDue, entity.UserMembershipInactive},
		{"canceled", entity.MembershipStatusCanceled, entity.UserMembershipInactive},
		{"unpaid", entity.MembershipStatusInactive, entity.UserMembershipInactive},
		{"trialing", entity.MembershipStatusInactive, entity.UserMembershipInactive},
		{"incomplete_expired", entity.MembershipStatusInactive, entity.UserMembershipInactive},
		{"", entity.MembershipStatusInactive, entity.UserMembershipInactive},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			assert.Equal(t, tt.wantLocal, FromProvider(tt.provider))
			assert.Equal(t, tt.wantUser, UserFromProvider(tt.provider))
		})
	}
}
