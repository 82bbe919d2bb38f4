package order

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

var repoTracer = otel.Tracer("github.com/Additional-Code/cannadmin/repository/order")

var (
	// ErrNotFound is returned when an order is missing.
	ErrNotFound = errors.New("order not found")
	// ErrStatusChanged is returned when the stored status no longer matches the expected one.
	ErrStatusChanged = errors.New("order status changed concurrently")
)

// Filter narrows order listings.
type Filter struct {
	Status     entity.OrderStatus
	Source     entity.OrderSource
	CustomerID *uuid.UUID
	StoreID    *uuid.UUID
	Limit      int
	Offset     int
}

// Transition describes a compare-and-set status change.
type Transition struct {
	OrderID uuid.UUID
	From    entity.OrderStatus
	To      entity.OrderStatus
	At      time.Time
}

// Repository encapsulates read/write access for orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new order and its items in one transaction.
func (r *Repository) Create(ctx context.Context, s tenant.Session, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.number", order.Number)))
	defer span.End()

	order.TenantID = s.TenantID
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Items {
		order.Items[i].TenantID = s.TenantID
		order.Items[i].OrderID = order.ID
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
	}

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return err
		}
		if len(order.Items) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&order.Items).Exec(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an order with its items using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, s tenant.Session, id uuid.UUID) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	order := new(entity.Order)
	err := r.getQuery(r.reader, s, id, order).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

func (r *Repository) getQuery(db bun.IDB, s tenant.Session, id uuid.UUID, order *entity.Order) *bun.SelectQuery {
	q := db.NewSelect().Model(order).
		Relation("Items", func(q *bun.SelectQuery) *bun.SelectQuery {
			return tenant.Scope(q, s)
		}).
		Where("?TableAlias.? = ?", bun.Ident("id"), id)
	return tenant.Scope(q, s)
}

// List returns a page of orders, newest first, with the total match count.
func (r *Repository) List(ctx context.Context, s tenant.Session, f Filter) ([]entity.Order, int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	var orders []entity.Order
	count, err := r.listQuery(s, f, &orders).ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	return orders, count, nil
}

func (r *Repository) listQuery(s tenant.Session, f Filter, dest *[]entity.Order) *bun.SelectQuery {
	q := tenant.Scope(r.reader.NewSelect().Model(dest), s)
	if f.Status != "" {
		q = q.Where("?TableAlias.? = ?", bun.Ident("status"), f.Status)
	}
	if f.Source != "" {
		q = q.Where("?TableAlias.? = ?", bun.Ident("source"), f.Source)
	}
	if f.CustomerID != nil {
		q = q.Where("?TableAlias.? = ?", bun.Ident("customer_id"), *f.CustomerID)
	}
	if f.StoreID != nil {
		q = q.Where("?TableAlias.? = ?", bun.Ident("store_id"), *f.StoreID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	return q.Order("created_at DESC")
}

// TransitionStatus moves an order from t.From to t.To, stamping the lifecycle columns
// that belong to the target status. The write only lands if the stored status is still t.From.
func (r *Repository) TransitionStatus(ctx context.Context, s tenant.Session, t Transition) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.TransitionStatus", trace.WithAttributes(
		attribute.String("order.id", t.OrderID.String()),
		attribute.String("order.status.from", string(t.From)),
		attribute.String("order.status.to", string(t.To)),
	))
	defer span.End()

	res, err := r.transitionQuery(s, t).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.loadForWrite(ctx, s, t.OrderID); err != nil {
			return nil, err
		}
		return nil, ErrStatusChanged
	}
	return r.loadForWrite(ctx, s, t.OrderID)
}

func (r *Repository) transitionQuery(s tenant.Session, t Transition) *bun.UpdateQuery {
	at := t.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	q := r.writer.NewUpdate().Model((*entity.Order)(nil)).
		Set("status = ?", t.To).
		Set("updated_at = ?", at)
	switch t.To {
	case entity.OrderStatusConfirmed:
		q = q.Set("accepted_at = ?", at)
	case entity.OrderStatusInTransit, entity.OrderStatusOutForDelivery:
		q = q.Set("courier_assigned_at = ?", at)
	case entity.OrderStatusDelivered:
		q = q.Set("delivered_at = ?", at)
	}
	q = q.Where("?TableAlias.? = ?", bun.Ident("id"), t.OrderID).
		Where("?TableAlias.? = ?", bun.Ident("status"), t.From)
	return tenant.Scope(q, s)
}

// MarkCompleted closes a pending order that was rung up at the register.
func (r *Repository) MarkCompleted(ctx context.Context, s tenant.Session, orderID, transactionID uuid.UUID) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.MarkCompleted", trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	res, err := r.completeQuery(s, orderID, transactionID).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.loadForWrite(ctx, s, orderID); err != nil {
			return err
		}
		return ErrStatusChanged
	}
	return nil
}

func (r *Repository) completeQuery(s tenant.Session, orderID, transactionID uuid.UUID) *bun.UpdateQuery {
	q := r.writer.NewUpdate().Model((*entity.Order)(nil)).
		Set("status = ?", entity.OrderStatusCompleted).
		Set("completed_transaction_id = ?", transactionID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("?TableAlias.? = ?", bun.Ident("id"), orderID).
		Where("?TableAlias.? = ?", bun.Ident("status"), entity.OrderStatusPending)
	return tenant.Scope(q, s)
}

func (r *Repository) loadForWrite(ctx context.Context, s tenant.Session, id uuid.UUID) (*entity.Order, error) {
	order := new(entity.Order)
	err := r.getQuery(r.writer, s, id, order).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}
