package tenant

import (
	"github.com/google/uuid"

	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

// Roles an admin session may carry.
const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
	RoleStaff = "staff"
	// RoleSystem marks sessions built by background consumers and the seeder.
	RoleSystem = "system"
)

// Session identifies the authenticated admin and the tenant every query is scoped to.
// It is passed explicitly through handlers and services.
type Session struct {
	TenantID uuid.UUID
	AdminID  uuid.UUID
	Role     string
}

// ErrMissingTenant is returned when an operation runs without tenant context.
var ErrMissingTenant = errorbank.Unauthorized("tenant context is required")

// Validate rejects sessions that cannot scope a query.
func (s Session) Validate() error {
	if s.TenantID == uuid.Nil {
		return ErrMissingTenant
	}
	return nil
}

// Actor returns the admin id as a nullable reference for audit columns.
func (s Session) Actor() *uuid.UUID {
	if s.AdminID == uuid.Nil {
		return nil
	}
	id := s.AdminID
	return &id
}

// CanManage reports whether the session may perform administrative writes such as deletes.
func (s Session) CanManage() bool {
	return s.Role == RoleOwner || s.Role == RoleAdmin
}
