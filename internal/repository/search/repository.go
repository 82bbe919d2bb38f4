package search

import (
	"context"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/cannadmin/internal/database"
	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/tenant"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/cannadmin/repository/search")

// Repository runs substring lookups over the searchable tables.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a repository over the read connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// Users matches admin users by name or email.
func (r *Repository) Users(ctx context.Context, s tenant.Session, term string, limit int) ([]entity.AdminUser, error) {
	var out []entity.AdminUser
	err := r.run(ctx, "users", term, r.match(r.reader.NewSelect().Model(&out), s, term, limit, "full_name", "email"))
	return out, err
}

// Orders matches orders by number.
func (r *Repository) Orders(ctx context.Context, s tenant.Session, term string, limit int) ([]entity.Order, error) {
	var out []entity.Order
	err := r.run(ctx, "orders", term, r.match(r.reader.NewSelect().Model(&out), s, term, limit, "number"))
	return out, err
}

// Products matches products by name, sku or barcode.
func (r *Repository) Products(ctx context.Context, s tenant.Session, term string, limit int) ([]entity.Product, error) {
	var out []entity.Product
	err := r.run(ctx, "products", term, r.match(r.reader.NewSelect().Model(&out), s, term, limit, "name", "sku", "barcode"))
	return out, err
}

// Addresses matches addresses by street, city or postal code.
func (r *Repository) Addresses(ctx context.Context, s tenant.Session, term string, limit int) ([]entity.Address, error) {
	var out []entity.Address
	err := r.run(ctx, "addresses", term, r.match(r.reader.NewSelect().Model(&out), s, term, limit, "line1", "city", "postal_code"))
	return out, err
}

func (r *Repository) run(ctx context.Context, entityName, term string, q *bun.SelectQuery) error {
	ctx, span := repoTracer.Start(ctx, "SearchRepository."+entityName, trace.WithAttributes(
		attribute.String("search.entity", entityName),
		attribute.Int("search.term_length", len(term)),
	))
	defer span.End()

	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return err
	}
	return nil
}

// match builds a tenant-scoped, unranked substring lookup across columns.
func (r *Repository) match(q *bun.SelectQuery, s tenant.Session, term string, limit int, columns ...string) *bun.SelectQuery {
	op := "LIKE"
	if r.reader.Dialect().Name() == dialect.PG {
		op = "ILIKE"
	}
	pattern := "%" + escapeLike(term) + "%"
	q = tenant.Scope(q, s).WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, col := range columns {
			q = q.WhereOr("?TableAlias.? "+op+" ?", bun.Ident(col), pattern)
		}
		return q
	})
	return q.Limit(limit)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
