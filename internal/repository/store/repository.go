package store

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

var repoTracer = otel.Tracer("github.com/Additional-Code/cannadmin/repository/store")

var (
	// ErrNotFound is returned when a store is missing for the tenant.
	ErrNotFound = errors.New("store not found")
	// ErrDuplicateSlug is returned when the slug is already taken.
	ErrDuplicateSlug = errors.New("duplicate store slug")
)

// Repository encapsulates read/write access for storefront configuration.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Create inserts a store for the session tenant.
func (r *Repository) Create(ctx context.Context, s tenant.Session, st *entity.Store) error {
	ctx, span := repoTracer.Start(ctx, "StoreRepository.Create", trace.WithAttributes(attribute.String("store.slug", st.Slug)))
	defer span.End()

	st.TenantID = s.TenantID
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	if _, err := r.writer.NewInsert().Model(st).Exec(ctx); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// GetByID loads a store within the tenant.
func (r *Repository) GetByID(ctx context.Context, s tenant.Session, id uuid.UUID) (*entity.Store, error) {
	ctx, span := repoTracer.Start(ctx, "StoreRepository.GetByID", trace.WithAttributes(attribute.String("store.id", id.String())))
	defer span.End()

	st := new(entity.Store)
	err := tenant.Scope(r.reader.NewSelect().Model(st).Where("?TableAlias.? = ?", bun.Ident("id"), id), s).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return st, nil
}

// List returns every store of the tenant.
func (r *Repository) List(ctx context.Context, s tenant.Session) ([]entity.Store, error) {
	ctx, span := repoTracer.Start(ctx, "StoreRepository.List")
	defer span.End()

	var stores []entity.Store
	if err := tenant.Scope(r.reader.NewSelect().Model(&stores), s).Order("name ASC").Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return stores, nil
}

// Update writes the branding and visibility columns.
func (r *Repository) Update(ctx context.Context, s tenant.Session, st *entity.Store) error {
	ctx, span := repoTracer.Start(ctx, "StoreRepository.Update", trace.WithAttributes(attribute.String("store.id", st.ID.String())))
	defer span.End()

	st.UpdatedAt = time.Now().UTC()
	q := r.writer.NewUpdate().Model(st).
		Column("slug", "name", "logo_url", "primary_color", "secondary_color", "is_active", "is_public", "updated_at").
		Where("?TableAlias.? = ?", bun.Ident("id"), st.ID)
	res, err := tenant.Scope(q, s).Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates order counters for a store. Cancelled and rejected orders are excluded.
func (r *Repository) Stats(ctx context.Context, s tenant.Session, storeID uuid.UUID) (entity.StoreStats, error) {
	ctx, span := repoTracer.Start(ctx, "StoreRepository.Stats", trace.WithAttributes(attribute.String("store.id", storeID.String())))
	defer span.End()

	var stats entity.StoreStats
	if err := r.statsQuery(s, storeID).Scan(ctx, &stats); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return entity.StoreStats{}, err
	}
	return stats, nil
}

func (r *Repository) statsQuery(s tenant.Session, storeID uuid.UUID) *bun.SelectQuery {
	q := r.reader.NewSelect().Model((*entity.Order)(nil)).
		ColumnExpr("COUNT(*) AS total_orders").
		ColumnExpr("COALESCE(SUM(?TableAlias.?), 0) AS total_revenue", bun.Ident("total")).
		ColumnExpr("COUNT(DISTINCT ?TableAlias.?) AS total_customers", bun.Ident("customer_id")).
		Where("?TableAlias.? = ?", bun.Ident("store_id"), storeID).
		Where("?TableAlias.? NOT IN (?)", bun.Ident("status"), bun.In([]entity.OrderStatus{entity.OrderStatusCancelled, entity.OrderStatusRejected}))
	return tenant.Scope(q, s)
}
