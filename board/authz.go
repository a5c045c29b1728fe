package board

import "taskboard-api/domain"

// Role is the outcome of classifying a principal against a board.
type Role int

const (
	RoleNone Role = iota
	RoleMember
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleMember:
		return "member"
	}
	return "none"
}

// Classify is a pure decision: owner wins over member, membership covers
// everyone else with access, and anything outside the member set is none.
func Classify(principal string, b *domain.Board) Role {
	if principal == "" || b == nil {
		return RoleNone
	}
	if b.OwnerID == principal {
		return RoleOwner
	}
	if b.HasMember(principal) {
		return RoleMember
	}
	return RoleNone
}
