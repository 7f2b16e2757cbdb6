package model

import (
	"fmt"
	"time"
)

// User represents an authentication user (staff member, not a customer).
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Roles.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
	RoleViewer  = "viewer"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var roleLevels = map[string]int{
	RoleAdmin:   4,
	RoleManager: 3,
	RoleStaff:   2,
	RoleViewer:  1,
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	_, ok := roleLevels[role]
	return ok
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	return roleLevels[role] >= roleLevels[minimum] && roleLevels[minimum] > 0
}

// ValidatePassword checks password strength requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// Permission is a capability granted to a role.
type Permission string

// Permissions.
const (
	PermCatalogView   Permission = "catalog.view"
	PermCatalogBook   Permission = "catalog.book"
	PermCatalogManage Permission = "catalog.manage"
	PermSalesView     Permission = "sales.view"
	PermSalesInitiate Permission = "sales.initiate"
	PermSalesConfirm  Permission = "sales.confirm"
	PermSalesRollback Permission = "sales.rollback"
	PermSalesApprove  Permission = "sales.approve"
	PermUsersManage   Permission = "users.manage"
)

// rolePermissions is the full role to permission-set table.
var rolePermissions = map[string]map[Permission]bool{
	RoleAdmin: permissionSet(
		PermCatalogView, PermCatalogBook, PermCatalogManage,
		PermSalesView, PermSalesInitiate, PermSalesConfirm, PermSalesRollback, PermSalesApprove,
		PermUsersManage,
	),
	RoleManager: permissionSet(
		PermCatalogView, PermCatalogBook, PermCatalogManage,
		PermSalesView, PermSalesInitiate, PermSalesConfirm, PermSalesRollback, PermSalesApprove,
	),
	RoleStaff: permissionSet(
		PermCatalogView, PermCatalogBook,
		PermSalesView, PermSalesInitiate, PermSalesConfirm, PermSalesRollback,
	),
	RoleViewer: permissionSet(PermCatalogView, PermSalesView),
}

func permissionSet(perms ...Permission) map[Permission]bool {
	set := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		set[p] = true
	}
	return set
}

// Can reports whether role holds perm. Unknown roles hold nothing.
func Can(role string, perm Permission) bool {
	return rolePermissions[role][perm]
}

// Actor is the authenticated user a request is executed on behalf of.
type Actor struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Can reports whether the actor's role holds perm.
func (a Actor) Can(perm Permission) bool {
	return Can(a.Role, perm)
}
