package domain

import "testing"

func TestAccessFor(t *testing.T) {
	b := Board{
		OwnerID:     1,
		Members:     []Member{{ID: 2, Role: RoleAdmin}, {ID: 3, Role: RoleMember}, {ID: 4}},
		Permissions: BoardPermissions{CanEdit: true, CanDelete: true},
	}
	tests := []struct {
		name   string
		userID int
		want   Access
	}{
		{"owner", 1, Access{Role: RoleOwner, CanEdit: true, CanDelete: true, CanManageUsers: true}},
		{"admin", 2, Access{Role: RoleAdmin, CanEdit: true, CanManageUsers: true}},
		{"member ignores service grant", 3, Access{Role: RoleMember}},
		{"member without role", 4, Access{Role: RoleMember}},
		{"stranger ignores service grant", 9, Access{Role: RoleNone}},
		{"unknown caller", 0, Access{Role: RoleNone}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AccessFor(b, tt.userID); got != tt.want {
				t.Fatalf("AccessFor(%d) = %+v, want %+v", tt.userID, got, tt.want)
			}
		})
	}
}

func TestBoardWithoutOwnerHasNoOwner(t *testing.T) {
	b := Board{Members: []Member{{ID: 5, Role: RoleMember}}}
	if got := RoleOf(b, 0); got != RoleNone {
		t.Fatalf("caller 0 resolved to %q on an ownerless board", got)
	}
	if got := AccessFor(b, 0); got.CanEdit || got.CanDelete {
		t.Fatalf("caller 0 gained rights on an ownerless board: %+v", got)
	}
}

func TestServiceAccess(t *testing.T) {
	b := Board{Permissions: BoardPermissions{CanEdit: true, CanInvite: true}}
	got := ServiceAccess(b)
	if !got.CanEdit || got.CanDelete || !got.CanManageUsers || got.Role != RoleNone {
		t.Fatalf("unexpected service access %+v", got)
	}
}
