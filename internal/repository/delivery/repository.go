package delivery

import (
	"context"

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

var repoTracer = otel.Tracer("github.com/Additional-Code/cannadmin/repository/delivery")

// Repository stores courier location pings.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Insert records a ping for the session tenant.
func (r *Repository) Insert(ctx context.Context, s tenant.Session, p *entity.DeliveryPing) error {
	ctx, span := repoTracer.Start(ctx, "DeliveryRepository.Insert", trace.WithAttributes(attribute.String("order.id", p.OrderID.String())))
	defer span.End()

	p.TenantID = s.TenantID
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if _, err := r.writer.NewInsert().Model(p).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// Trail returns the pings of an order, newest first.
func (r *Repository) Trail(ctx context.Context, s tenant.Session, orderID uuid.UUID, limit int) ([]entity.DeliveryPing, error) {
	ctx, span := repoTracer.Start(ctx, "DeliveryRepository.Trail", trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	var out []entity.DeliveryPing
	if err := r.trailQuery(s, orderID, limit, &out).Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return out, nil
}

func (r *Repository) trailQuery(s tenant.Session, orderID uuid.UUID, limit int, dest *[]entity.DeliveryPing) *bun.SelectQuery {
	q := tenant.Scope(r.reader.NewSelect().Model(dest).Where("?TableAlias.? = ?", bun.Ident("order_id"), orderID), s).
		Order("recorded_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}
