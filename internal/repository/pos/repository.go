package pos

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
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

var repoTracer = otel.Tracer("github.com/Additional-Code/cannadmin/repository/pos")

// CommitFunction is the stored procedure that records a sale atomically.
const CommitFunction = "pos_commit_sale"

var (
	// ErrNotFound is returned when a transaction is missing for the tenant.
	ErrNotFound = errors.New("transaction not found")
	// ErrCommitUnavailable is returned when the database has no atomic commit function.
	ErrCommitUnavailable = errors.New("atomic sale commit is not installed")
)

// Repository encapsulates read/write access for register transactions.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

func prepare(s tenant.Session, t *entity.PosTransaction) {
	t.TenantID = s.TenantID
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	for i := range t.Items {
		t.Items[i].TenantID = s.TenantID
		t.Items[i].TransactionID = t.ID
		if t.Items[i].ID == uuid.Nil {
			t.Items[i].ID = uuid.New()
		}
	}
}

// CommitSale records the transaction, decrements stock and accrues loyalty in a single
// database call. ErrCommitUnavailable means the function is not installed and nothing was written.
func (r *Repository) CommitSale(ctx context.Context, s tenant.Session, t *entity.PosTransaction) error {
	prepare(s, t)
	ctx, span := repoTracer.Start(ctx, "PosRepository.CommitSale", trace.WithAttributes(
		attribute.String("pos.transaction.id", t.ID.String()),
		attribute.Int("pos.items", len(t.Items)),
	))
	defer span.End()

	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}

	var id uuid.UUID
	err = r.commitQuery(payload).Scan(ctx, &id)
	if database.IsUndefinedFunction(err) {
		span.SetStatus(codes.Error, "commit function missing")
		return ErrCommitUnavailable
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return err
	}
	return nil
}

// commitQuery only casts on postgres; elsewhere the plain call fails as an unknown function,
// which selects the fallback path.
func (r *Repository) commitQuery(payload []byte) *bun.RawQuery {
	if r.writer.Dialect().Name() == dialect.PG {
		return r.writer.NewRaw("SELECT "+CommitFunction+"(?::jsonb)", string(payload))
	}
	return r.writer.NewRaw("SELECT "+CommitFunction+"(?)", string(payload))
}

// InsertTransaction writes the transaction row and its items without touching stock.
func (r *Repository) InsertTransaction(ctx context.Context, s tenant.Session, t *entity.PosTransaction) error {
	prepare(s, t)
	ctx, span := repoTracer.Start(ctx, "PosRepository.InsertTransaction", trace.WithAttributes(attribute.String("pos.transaction.id", t.ID.String())))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(t).Exec(ctx); err != nil {
			return err
		}
		if len(t.Items) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&t.Items).Exec(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// DeleteTransaction removes a transaction and its items. Only used to compensate a
// partially applied fallback sale.
func (r *Repository) DeleteTransaction(ctx context.Context, s tenant.Session, id uuid.UUID) error {
	ctx, span := repoTracer.Start(ctx, "PosRepository.DeleteTransaction", trace.WithAttributes(attribute.String("pos.transaction.id", id.String())))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		items := tx.NewDelete().Model((*entity.PosTransactionItem)(nil)).Where("?TableAlias.? = ?", bun.Ident("transaction_id"), id)
		if _, err := tenant.Scope(items, s).Exec(ctx); err != nil {
			return err
		}
		row := tx.NewDelete().Model((*entity.PosTransaction)(nil)).Where("?TableAlias.? = ?", bun.Ident("id"), id)
		_, err := tenant.Scope(row, s).Exec(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
	}
	return err
}

// GetByID loads a transaction with its items.
func (r *Repository) GetByID(ctx context.Context, s tenant.Session, id uuid.UUID) (*entity.PosTransaction, error) {
	ctx, span := repoTracer.Start(ctx, "PosRepository.GetByID", trace.WithAttributes(attribute.String("pos.transaction.id", id.String())))
	defer span.End()

	t := new(entity.PosTransaction)
	err := r.getQuery(s, id, t).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return t, nil
}

func (r *Repository) getQuery(s tenant.Session, id uuid.UUID, t *entity.PosTransaction) *bun.SelectQuery {
	q := r.reader.NewSelect().Model(t).
		Relation("Items", func(q *bun.SelectQuery) *bun.SelectQuery {
			return tenant.Scope(q, s)
		}).
		Where("?TableAlias.? = ?", bun.Ident("id"), id)
	return tenant.Scope(q, s)
}

// List returns recent transactions, newest first.
func (r *Repository) List(ctx context.Context, s tenant.Session, limit, offset int) ([]entity.PosTransaction, int, error) {
	ctx, span := repoTracer.Start(ctx, "PosRepository.List")
	defer span.End()

	var out []entity.PosTransaction
	q := tenant.Scope(r.reader.NewSelect().Model(&out), s).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	count, err := q.ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	return out, count, nil
}
