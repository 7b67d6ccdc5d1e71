package domain

// RoleOf resolves a user's role on the board from ownership and the member
// list. A board without an owner id has no owner.
func RoleOf(b Board, userID int) Role {
	if userID <= 0 {
		return RoleNone
	}
	if b.OwnerID != 0 && b.OwnerID == userID {
		return RoleOwner
	}
	for _, m := range b.Members {
		if m.ID != userID {
			continue
		}
		if m.Role == RoleNone {
			return RoleMember
		}
		return m.Role
	}
	return RoleNone
}

// Access is the viewer's effective capability set.
type Access struct {
	Role           Role `json:"role"`
	CanEdit        bool `json:"canEdit"`
	CanDelete      bool `json:"canDelete"`
	CanManageUsers bool `json:"canManageUsers"`
}

// AccessFor derives a caller's rights from their board role alone.
func AccessFor(b Board, userID int) Access {
	role := RoleOf(b, userID)
	return Access{
		Role:           role,
		CanEdit:        role == RoleOwner || role == RoleAdmin,
		CanDelete:      role == RoleOwner,
		CanManageUsers: role == RoleOwner || role == RoleAdmin,
	}
}

// ServiceAccess is the access of the identity the board was fetched with,
// as reported by the server in the board's permissions.
func ServiceAccess(b Board) Access {
	return Access{
		CanEdit:        b.Permissions.CanEdit,
		CanDelete:      b.Permissions.CanDelete,
		CanManageUsers: b.Permissions.CanInvite,
	}
}
