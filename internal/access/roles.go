package access

import "github.com/penguinmails/tenantcore/internal/database"

// Role levels form a strict total order: member < admin < owner.
const (
	levelNone   = 0
	levelMember = 1
	levelAdmin  = 2
	levelOwner  = 3
)

// Level maps a role to its rank in the hierarchy. Unknown roles rank
// below member.
func Level(role database.Role) int {
	switch role {
	case database.RoleMember:
		return levelMember
	case database.RoleAdmin:
		return levelAdmin
	case database.RoleOwner:
		return levelOwner
	default:
		return levelNone
	}
}

// AtLeast reports whether role meets the minimum required role.
func AtLeast(role, min database.Role) bool {
	return Level(role) >= Level(min)
}

// MaxRole returns the highest-ranked role among the given roles. When
// a user holds multiple role signals the maximum wins.
func MaxRole(roles ...database.Role) database.Role {
	var best database.Role
	bestLevel := levelNone
	for _, r := range roles {
		if l := Level(r); l > bestLevel {
			best = r
			bestLevel = l
		}
	}
	return best
}

// ValidRole reports whether the role is one of the known values.
func ValidRole(role database.Role) bool {
	return Level(role) != levelNone
}
