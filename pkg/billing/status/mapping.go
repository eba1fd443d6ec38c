// Package status is the single mapping from provider subscription states to
// local membership states and the user-facing projection.
package status

import "club-directory-be/internal/entity"

var providerToLocal = map[string]entity.MembershipStatus{
	"active":   entity.MembershipStatusActive,
	"past_due": entity.MembershipStatusPastDue,
	"canceled": entity.MembershipStatusCanceled,
	"unpaid":   entity.MembershipStatusInactive,
}

// FromProvider maps an upstream subscription status. Unknown values map to inactive.
func FromProvider(providerStatus string) entity.MembershipStatus {
	if s, ok := providerToLocal[providerStatus]; ok {
		return s
	}
	return entity.MembershipStatusInactive
}

// ToUser projects a local status onto the user profile: only active counts as Active.
func ToUser(s entity.MembershipStatus) entity.UserMembershipStatus {
	if s == entity.MembershipStatusActive {
		return entity.UserMembershipActive
	}
	return entity.UserMembershipInactive
}

// UserFromProvider composes FromProvider and ToUser.
func UserFromProvider(providerStatus string) entity.UserMembershipStatus {
	return ToUser(FromProvider(providerStatus))
}
