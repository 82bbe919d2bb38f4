package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/Additional-Code/cannadmin/internal/database"
	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/tenant"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/cannadmin/repository/inventory")

// MovementFilter narrows the movement ledger.
type MovementFilter struct {
	ProductID *uuid.UUID
	Type      entity.MovementType
	Limit     int
	Offset    int
}

// Repository reads the append-only movement ledger. Movements are written alongside
// the stock update they describe, in the product repository transaction.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a repository over the read connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// ListMovements returns movements newest first with the total match count.
func (r *Repository) ListMovements(ctx context.Context, s tenant.Session, f MovementFilter) ([]entity.InventoryMovement, int, error) {
	ctx, span := repoTracer.Start(ctx, "InventoryRepository.ListMovements")
	defer span.End()

	var out []entity.InventoryMovement
	count, err := r.movementsQuery(s, f, &out).ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	return out, count, nil
}

func (r *Repository) movementsQuery(s tenant.Session, f MovementFilter, dest *[]entity.InventoryMovement) *bun.SelectQuery {
	q := tenant.Scope(r.reader.NewSelect().Model(dest), s)
	if f.ProductID != nil {
		q = q.Where("?TableAlias.? = ?", bun.Ident("product_id"), *f.ProductID)
	}
	if f.Type != "" {
		q = q.Where("?TableAlias.? = ?", bun.Ident("movement_type"), f.Type)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	return q.Order("created_at DESC")
}
