package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Additional-Code/cannadmin/internal/cache"
	"github.com/Additional-Code/cannadmin/internal/config"
	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/realtime"
	activityrepo "github.com/Additional-Code/cannadmin/internal/repository/activity"
	repo "github.com/Additional-Code/cannadmin/internal/repository/product"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/cannadmin/service/product")

// Repository is the catalog persistence the service depends on.
type Repository interface {
	Create(ctx context.Context, s tenant.Session, p *entity.Product) error
	Get(ctx context.Context, s tenant.Session, id uuid.UUID) (*entity.Product, error)
	List(ctx context.Context, s tenant.Session, f repo.Filter) ([]entity.Product, int, error)
	Update(ctx context.Context, s tenant.Session, p *entity.Product, expectedVersion int64) error
	Delete(ctx context.Context, s tenant.Session, id uuid.UUID) error
}

// ActivityStore appends audit entries.
type ActivityStore interface {
	Append(ctx context.Context, s tenant.Session, entries ...entity.ActivityLog) error
}

// Input carries the editable catalog fields.
type Input struct {
	Name              string          `json:"name"`
	SKU               string          `json:"sku"`
	Barcode           string          `json:"barcode"`
	Category          string          `json:"category"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	WholesalePrice    decimal.Decimal `json:"wholesale_price"`
	RetailPrice       decimal.Decimal `json:"retail_price"`
	LowStockThreshold int64           `json:"low_stock_threshold"`
	// InitialQuantity is only read on create.
	InitialQuantity int64 `json:"initial_quantity"`
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.SKU) == "" {
		return errorbank.BadRequest("name and sku are required")
	}
	if in.CostPrice.IsNegative() || in.WholesalePrice.IsNegative() || in.RetailPrice.IsNegative() {
		return errorbank.BadRequest("prices must not be negative")
	}
	if in.LowStockThreshold < 0 || in.InitialQuantity < 0 {
		return errorbank.BadRequest("quantities must not be negative")
	}
	return nil
}

func (in Input) apply(p *entity.Product) {
	p.Name = strings.TrimSpace(in.Name)
	p.SKU = strings.TrimSpace(in.SKU)
	p.Barcode = in.Barcode
	p.Category = in.Category
	p.CostPrice = in.CostPrice
	p.WholesalePrice = in.WholesalePrice
	p.RetailPrice = in.RetailPrice
	p.LowStockThreshold = in.LowStockThreshold
}

// Service manages the product catalog with cache-aside reads.
type Service struct {
	repo       Repository
	activities ActivityStore
	cache      cache.Store
	cacheTTL   time.Duration
	emitter    realtime.Emitter
	logger     *zap.Logger
	// loads collapses concurrent misses for the same product into one query.
	loads singleflight.Group
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Activities *activityrepo.Repository
	Cache      cache.Store
	Config     config.Config
	Emitter    realtime.Emitter
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(p.Repository, p.Activities, p.Cache, p.Config.Cache.DefaultTTL, p.Emitter, p.Logger)
}

// New builds a Service.
func New(r Repository, activities ActivityStore, c cache.Store, ttl time.Duration, emitter realtime.Emitter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: r, activities: activities, cache: c, cacheTTL: ttl, emitter: emitter, logger: logger}
}

// Get retrieves a product, consulting cache when available.
func (s *Service) Get(ctx context.Context, sess tenant.Session, id uuid.UUID) (*entity.Product, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	ctx, span := serviceTracer.Start(ctx, "ProductService.Get", trace.WithAttributes(attribute.String("product.id", id.String())))
	defer span.End()

	if p, err := s.getFromCache(ctx, sess, id); err == nil {
		return p, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("products cache read failed", zap.String("id", id.String()), zap.Error(err))
	}

	v, err, shared := s.loads.Do(cache.ProductKey(sess.TenantID, id), func() (any, error) {
		p, err := s.repo.Get(ctx, sess, id)
		if err != nil {
			return nil, err
		}
		s.storeInCache(ctx, sess, p)
		return p, nil
	})
	if err != nil {
		return nil, s.mapError(span, err, "failed to load product")
	}
	span.SetAttributes(attribute.Bool("product.load_shared", shared))
	p := *v.(*entity.Product)
	return &p, nil
}

// List returns a page of products.
func (s *Service) List(ctx context.Context, sess tenant.Session, f repo.Filter) ([]entity.Product, int, error) {
	if err := sess.Validate(); err != nil {
		return nil, 0, err
	}
	out, total, err := s.repo.List(ctx, sess, f)
	if err != nil {
		return nil, 0, errorbank.Internal("failed to list products", errorbank.WithCause(err))
	}
	return out, total, nil
}

// Create adds a product to the catalog.
func (s *Service) Create(ctx context.Context, sess tenant.Session, in Input) (*entity.Product, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	ctx, span := serviceTracer.Start(ctx, "ProductService.Create", trace.WithAttributes(attribute.String("product.sku", in.SKU)))
	defer span.End()

	p := &entity.Product{}
	in.apply(p)
	p.SetAvailable(in.InitialQuantity)
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	if err := s.repo.Create(ctx, sess, p); err != nil {
		return nil, s.mapError(span, err, "failed to create product")
	}
	s.storeInCache(ctx, sess, p)
	s.after(ctx, sess, p, realtime.EventInsert, entity.ActivityProductCreated)
	return p, nil
}

// Update writes catalog fields if the product is still at expectedVersion.
func (s *Service) Update(ctx context.Context, sess tenant.Session, id uuid.UUID, expectedVersion int64, in Input) (*entity.Product, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	ctx, span := serviceTracer.Start(ctx, "ProductService.Update", trace.WithAttributes(attribute.String("product.id", id.String())))
	defer span.End()

	p, err := s.repo.Get(ctx, sess, id)
	if err != nil {
		return nil, s.mapError(span, err, "failed to load product")
	}
	in.apply(p)
	if err := s.repo.Update(ctx, sess, p, expectedVersion); err != nil {
		return nil, s.mapError(span, err, "failed to update product")
	}
	s.invalidate(ctx, sess, id)
	s.after(ctx, sess, p, realtime.EventUpdate, entity.ActivityProductUpdated)
	return p, nil
}

// Delete removes a product. Only owners and admins may delete.
func (s *Service) Delete(ctx context.Context, sess tenant.Session, id uuid.UUID) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	if !sess.CanManage() {
		return errorbank.Forbidden("only owners and admins can delete products")
	}
	ctx, span := serviceTracer.Start(ctx, "ProductService.Delete", trace.WithAttributes(attribute.String("product.id", id.String())))
	defer span.End()

	p, err := s.repo.Get(ctx, sess, id)
	if err != nil {
		return s.mapError(span, err, "failed to load product")
	}
	if err := s.repo.Delete(ctx, sess, id); err != nil {
		return s.mapError(span, err, "failed to delete product")
	}
	s.invalidate(ctx, sess, id)
	s.after(ctx, sess, p, realtime.EventDelete, entity.ActivityProductDeleted)
	return nil
}

func (s *Service) after(ctx context.Context, sess tenant.Session, p *entity.Product, typ realtime.EventType, activity string) {
	if s.emitter != nil {
		s.emitter.Emit(ctx, realtime.NewChange(realtime.TableProducts, typ, sess.TenantID, p.ID))
	}
	if s.activities == nil {
		return
	}
	entry := entity.ActivityLog{
		ActivityType: activity,
		Description:  fmt.Sprintf("%s (%s)", p.Name, p.SKU),
		Entity:       "product",
		EntityID:     &p.ID,
	}
	if err := s.activities.Append(ctx, sess, entry); err != nil {
		s.logger.Warn("activity log append failed", zap.String("product_id", p.ID.String()), zap.Error(err))
	}
}

func (s *Service) mapError(span trace.Span, err error, msg string) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return errorbank.NotFound("product not found")
	case errors.Is(err, repo.ErrStale):
		return errorbank.Conflict("product was modified by someone else, reload and retry")
	case errors.Is(err, repo.ErrDuplicateSKU):
		return errorbank.Conflict("sku already exists")
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "repository error")
	return errorbank.Internal(msg, errorbank.WithCause(err))
}

func (s *Service) getFromCache(ctx context.Context, sess tenant.Session, id uuid.UUID) (*entity.Product, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	raw, err := s.cache.Get(ctx, cache.ProductKey(sess.TenantID, id))
	if err != nil {
		return nil, err
	}
	var p entity.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) storeInCache(ctx context.Context, sess tenant.Session, p *entity.Product) {
	if s.cache == nil || p == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err == nil {
		err = s.cache.Set(ctx, cache.ProductKey(sess.TenantID, p.ID), raw, s.cacheTTL)
	}
	if err != nil {
		s.logger.Warn("products cache write failed", zap.String("id", p.ID.String()), zap.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context, sess tenant.Session, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.ProductKey(sess.TenantID, id)); err != nil {
		s.logger.Warn("products cache invalidation failed", zap.String("id", id.String()), zap.Error(err))
	}
}
