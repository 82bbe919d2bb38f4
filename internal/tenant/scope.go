package tenant

import "github.com/uptrace/bun"

// Column is the tenant discriminator present on every tenant-owned table.
const Column = "tenant_id"

type whereQuery[Q any] interface {
	Where(query string, args ...interface{}) Q
}

// Scope restricts a bun select, update or delete query to the session tenant.
func Scope[Q whereQuery[Q]](q Q, s Session) Q {
	return q.Where("?TableAlias.? = ?", bun.Ident(Column), s.TenantID)
}

// ScopeTo restricts a query over an explicit table alias, for joins.
func ScopeTo[Q whereQuery[Q]](q Q, alias string, s Session) Q {
	return q.Where("?.? = ?", bun.Ident(alias), bun.Ident(Column), s.TenantID)
}
