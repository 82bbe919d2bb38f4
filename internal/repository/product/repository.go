package product

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

var repoTracer = otel.Tracer("github.com/Additional-Code/cannadmin/repository/product")

var (
	// ErrNotFound is returned when a product is missing for the tenant.
	ErrNotFound = errors.New("product not found")
	// ErrStale is returned when a compare-and-set write lost against a concurrent writer.
	ErrStale = errors.New("product changed concurrently")
	// ErrDuplicateSKU is returned when the tenant already has the SKU.
	ErrDuplicateSKU = errors.New("duplicate sku")
)

// Filter narrows product listings.
type Filter struct {
	Category string
	InStock  *bool
	LowStock bool
	Limit    int
	Offset   int
}

// Repository encapsulates read/write access for products.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

func fail(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

// Create inserts a product owned by the session tenant.
func (r *Repository) Create(ctx context.Context, s tenant.Session, p *entity.Product) error {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.Create", trace.WithAttributes(attribute.String("product.sku", p.SKU)))
	defer span.End()

	p.TenantID = s.TenantID
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.SetAvailable(p.AvailableQuantity)
	if p.Version == 0 {
		p.Version = 1
	}

	if _, err := r.writer.NewInsert().Model(p).Exec(ctx); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateSKU
		}
		fail(span, err, "insert failed")
		return err
	}
	return nil
}

// Get loads a product by id within the tenant.
func (r *Repository) Get(ctx context.Context, s tenant.Session, id uuid.UUID) (*entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.Get", trace.WithAttributes(attribute.String("product.id", id.String())))
	defer span.End()

	return r.get(ctx, r.reader, s, id)
}

// GetPrimary loads a product from the write connection, for read-modify-write cycles.
func (r *Repository) GetPrimary(ctx context.Context, s tenant.Session, id uuid.UUID) (*entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.GetPrimary", trace.WithAttributes(attribute.String("product.id", id.String())))
	defer span.End()

	return r.get(ctx, r.writer, s, id)
}

func (r *Repository) get(ctx context.Context, db bun.IDB, s tenant.Session, id uuid.UUID) (*entity.Product, error) {
	p := new(entity.Product)
	err := r.selectByID(db, s, id, p).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) selectByID(db bun.IDB, s tenant.Session, id uuid.UUID, p *entity.Product) *bun.SelectQuery {
	return tenant.Scope(db.NewSelect().Model(p).Where("?TableAlias.? = ?", bun.Ident("id"), id), s)
}

// List returns a page of products and the total match count.
func (r *Repository) List(ctx context.Context, s tenant.Session, f Filter) ([]entity.Product, int, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.List")
	defer span.End()

	var products []entity.Product
	count, err := r.listQuery(s, f, &products).ScanAndCount(ctx)
	if err != nil {
		fail(span, err, "select failed")
		return nil, 0, err
	}
	return products, count, nil
}

func (r *Repository) listQuery(s tenant.Session, f Filter, dest *[]entity.Product) *bun.SelectQuery {
	q := tenant.Scope(r.reader.NewSelect().Model(dest), s)
	if f.Category != "" {
		q = q.Where("?TableAlias.? = ?", bun.Ident("category"), f.Category)
	}
	if f.InStock != nil {
		q = q.Where("?TableAlias.? = ?", bun.Ident("in_stock"), *f.InStock)
	}
	if f.LowStock {
		q = q.Where("?TableAlias.? > 0", bun.Ident("low_stock_threshold")).
			Where("?TableAlias.? <= ?TableAlias.?", bun.Ident("available_quantity"), bun.Ident("low_stock_threshold"))
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	return q.Order("name ASC")
}

// Update writes catalog fields when the stored version matches expectedVersion.
// Quantities are owned by the inventory paths and are not touched here.
func (r *Repository) Update(ctx context.Context, s tenant.Session, p *entity.Product, expectedVersion int64) error {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.Update", trace.WithAttributes(attribute.String("product.id", p.ID.String())))
	defer span.End()

	p.UpdatedAt = time.Now().UTC()
	res, err := r.updateQuery(s, p, expectedVersion).Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateSKU
		}
		fail(span, err, "update failed")
		return err
	}
	if affected(res) == 0 {
		if _, err := r.get(ctx, r.writer, s, p.ID); err != nil {
			return err
		}
		return ErrStale
	}
	p.Version = expectedVersion + 1
	return nil
}

func (r *Repository) updateQuery(s tenant.Session, p *entity.Product, expectedVersion int64) *bun.UpdateQuery {
	q := r.writer.NewUpdate().Model(p).
		Column("name", "sku", "barcode", "category", "cost_price", "wholesale_price", "retail_price", "low_stock_threshold", "updated_at").
		Set("version = version + 1").
		Where("?TableAlias.? = ?", bun.Ident("id"), p.ID).
		Where("?TableAlias.? = ?", bun.Ident("version"), expectedVersion)
	return tenant.Scope(q, s)
}

// Delete removes a product from the tenant catalog.
func (r *Repository) Delete(ctx context.Context, s tenant.Session, id uuid.UUID) error {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.Delete", trace.WithAttributes(attribute.String("product.id", id.String())))
	defer span.End()

	q := tenant.Scope(r.writer.NewDelete().Model((*entity.Product)(nil)).Where("?TableAlias.? = ?", bun.Ident("id"), id), s)
	res, err := q.Exec(ctx)
	if err != nil {
		fail(span, err, "delete failed")
		return err
	}
	if affected(res) == 0 {
		return ErrNotFound
	}
	return nil
}

// StockUpdate is a compare-and-set change of the stock counters.
type StockUpdate struct {
	ProductID       uuid.UUID
	BeforeAvailable int64
	BeforeFronted   int64
	Available       int64
	Fronted         int64
}

// WriteStock applies u if the stored counters still equal the before values.
func (r *Repository) WriteStock(ctx context.Context, s tenant.Session, u StockUpdate) (*entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.WriteStock", trace.WithAttributes(attribute.String("product.id", u.ProductID.String())))
	defer span.End()

	var out *entity.Product
	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		p, err := r.writeStock(ctx, tx, s, u)
		out = p
		return err
	})
	if err != nil && !errors.Is(err, ErrStale) && !errors.Is(err, ErrNotFound) {
		fail(span, err, "stock write failed")
	}
	return out, err
}

// WriteStockWithMovement applies u and appends the movement in one transaction.
func (r *Repository) WriteStockWithMovement(ctx context.Context, s tenant.Session, u StockUpdate, m *entity.InventoryMovement) (*entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.WriteStockWithMovement", trace.WithAttributes(attribute.String("product.id", u.ProductID.String())))
	defer span.End()

	var out *entity.Product
	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		p, err := r.writeStock(ctx, tx, s, u)
		if err != nil {
			return err
		}
		m.TenantID = s.TenantID
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		if _, err := tx.NewInsert().Model(m).Exec(ctx); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil && !errors.Is(err, ErrStale) && !errors.Is(err, ErrNotFound) {
		fail(span, err, "stock write failed")
	}
	return out, err
}

func (r *Repository) writeStock(ctx context.Context, db bun.IDB, s tenant.Session, u StockUpdate) (*entity.Product, error) {
	res, err := r.stockQuery(db, s, u).Exec(ctx)
	if err != nil {
		return nil, err
	}
	if affected(res) == 0 {
		if _, err := r.get(ctx, db, s, u.ProductID); err != nil {
			return nil, err
		}
		return nil, ErrStale
	}
	return r.get(ctx, db, s, u.ProductID)
}

func (r *Repository) stockQuery(db bun.IDB, s tenant.Session, u StockUpdate) *bun.UpdateQuery {
	available := u.Available
	if available < 0 {
		available = 0
	}
	q := db.NewUpdate().Model((*entity.Product)(nil)).
		Set("available_quantity = ?", available).
		Set("fronted_quantity = ?", u.Fronted).
		Set("total_quantity = ? + reserved_quantity + ?", available, u.Fronted).
		Set("in_stock = ?", available > 0).
		Set("version = version + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("?TableAlias.? = ?", bun.Ident("id"), u.ProductID).
		Where("?TableAlias.? = ?", bun.Ident("available_quantity"), u.BeforeAvailable).
		Where("?TableAlias.? = ?", bun.Ident("fronted_quantity"), u.BeforeFronted)
	return tenant.Scope(q, s)
}

func affected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
