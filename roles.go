package accounts

// ValidRole checks if the role is one of the predefined valid roles
func ValidRole(r AccountRole) bool {
	switch r {
	case RoleGuest, RoleMember, RoleAdmin, RoleOwner:
		return true
	default:
		return false
	}
}

// RoleCanDeactivate reports whether the role may soft delete accounts.
// Members deactivate their own account; the routing layer scopes which
// target ids a member may address.
func RoleCanDeactivate(r AccountRole) bool {
	switch r {
	case RoleMember, RoleAdmin, RoleOwner:
		return true
	default:
		return false
	}
}

// RoleCanReactivate reports whether the role may restore a soft deleted
// account. Restore is an admin surface.
func RoleCanReactivate(r AccountRole) bool {
	switch r {
	case RoleAdmin, RoleOwner:
		return true
	default:
		return false
	}
}

// RoleAtLeast checks if the role meets the minimum required level
func RoleAtLeast(r, minRole AccountRole) bool {
	currentLevel, ok := roleLevel(r)
	if !ok {
		return false
	}

	minLevel, ok := roleLevel(minRole)
	if !ok {
		return false
	}

	return currentLevel >= minLevel
}

func roleLevel(r AccountRole) (int, bool) {
	switch r {
	case RoleGuest:
		return 0, true
	case RoleMember:
		return 1, true
	case RoleAdmin:
		return 2, true
	case RoleOwner:
		return 3, true
	default:
		return 0, false
	}
}

// AllRoles returns all predefined roles in hierarchical order
func AllRoles() []AccountRole {
	return []AccountRole{
		RoleGuest,
		RoleMember,
		RoleAdmin,
		RoleOwner,
	}
}

// ParseRole safely parses a string into an AccountRole
func ParseRole(raw string) (AccountRole, bool) {
	role := AccountRole(raw)
	return role, ValidRole(role)
}
