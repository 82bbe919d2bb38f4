package customer

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/cannadmin/internal/database"
	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/tenant"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/cannadmin/repository/customer")

// ErrNotFound is returned when a customer is missing for the tenant.
var ErrNotFound = errors.New("customer not found")

// Repository encapsulates read/write access for customers.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Create inserts a customer for the session tenant.
func (r *Repository) Create(ctx context.Context, s tenant.Session, c *entity.Customer) error {
	ctx, span := repoTracer.Start(ctx, "CustomerRepository.Create")
	defer span.End()

	c.TenantID = s.TenantID
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if _, err := r.writer.NewInsert().Model(c).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// GetByID loads a customer within the tenant.
func (r *Repository) GetByID(ctx context.Context, s tenant.Session, id uuid.UUID) (*entity.Customer, error) {
	ctx, span := repoTracer.Start(ctx, "CustomerRepository.GetByID", trace.WithAttributes(attribute.String("customer.id", id.String())))
	defer span.End()

	c := new(entity.Customer)
	err := tenant.Scope(r.reader.NewSelect().Model(c).Where("?TableAlias.? = ?", bun.Ident("id"), id), s).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return c, nil
}

// List returns customers ordered by name, optionally filtered by type.
func (r *Repository) List(ctx context.Context, s tenant.Session, customerType entity.CustomerType, limit, offset int) ([]entity.Customer, int, error) {
	ctx, span := repoTracer.Start(ctx, "CustomerRepository.List")
	defer span.End()

	var customers []entity.Customer
	count, err := r.listQuery(s, customerType, limit, offset, &customers).ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	return customers, count, nil
}

func (r *Repository) listQuery(s tenant.Session, customerType entity.CustomerType, limit, offset int, dest *[]entity.Customer) *bun.SelectQuery {
	q := tenant.Scope(r.reader.NewSelect().Model(dest), s)
	if customerType != "" {
		q = q.Where("?TableAlias.? = ?", bun.Ident("customer_type"), customerType)
	}
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	return q.Order("name ASC")
}

// UpdateType changes the pricing class of a customer.
func (r *Repository) UpdateType(ctx context.Context, s tenant.Session, id uuid.UUID, customerType entity.CustomerType) error {
	ctx, span := repoTracer.Start(ctx, "CustomerRepository.UpdateType", trace.WithAttributes(attribute.String("customer.id", id.String())))
	defer span.End()

	q := r.writer.NewUpdate().Model((*entity.Customer)(nil)).
		Set("customer_type = ?", customerType).
		Set("updated_at = ?", time.Now().UTC()).
		Where("?TableAlias.? = ?", bun.Ident("id"), id)
	return r.expectOne(ctx, span, tenant.Scope(q, s))
}

// AddLoyaltyPoints accrues points with an in-place increment.
func (r *Repository) AddLoyaltyPoints(ctx context.Context, s tenant.Session, id uuid.UUID, points int64) error {
	ctx, span := repoTracer.Start(ctx, "CustomerRepository.AddLoyaltyPoints", trace.WithAttributes(
		attribute.String("customer.id", id.String()),
		attribute.Int64("loyalty.points", points),
	))
	defer span.End()

	return r.expectOne(ctx, span, r.loyaltyQuery(s, id, points))
}

func (r *Repository) loyaltyQuery(s tenant.Session, id uuid.UUID, points int64) *bun.UpdateQuery {
	q := r.writer.NewUpdate().Model((*entity.Customer)(nil)).
		Set("loyalty_points = loyalty_points + ?", points).
		Set("updated_at = ?", time.Now().UTC()).
		Where("?TableAlias.? = ?", bun.Ident("id"), id)
	return tenant.Scope(q, s)
}

func (r *Repository) expectOne(ctx context.Context, span trace.Span, q *bun.UpdateQuery) error {
	res, err := q.Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
