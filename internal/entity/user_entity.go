// FILE: internal/entity/user_entity.go
package entity

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleMember    UserRole = "member"
	UserRoleClubOwner UserRole = "club_owner"
	UserRoleAdmin     UserRole = "admin"
)

// User is owned by the account module; billing only ever writes
// MembershipStatus.
type User struct {
	Id               uuid.UUID
	Email            string
	FullName         string
	Role             UserRole
	MembershipStatus UserMembershipStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
