package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/cannadmin/internal/cache"
	"github.com/Additional-Code/cannadmin/internal/config"
	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/realtime"
	activityrepo "github.com/Additional-Code/cannadmin/internal/repository/activity"
	inventoryrepo "github.com/Additional-Code/cannadmin/internal/repository/inventory"
	productrepo "github.com/Additional-Code/cannadmin/internal/repository/product"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/cannadmin/service/inventory")

// staleRetries bounds re-reads when a compare-and-set write loses to a writer that
// bypassed the lock, such as the atomic sale function.
const staleRetries = 3

var (
	// ErrQuickDelta is returned for quick adjustments other than ±1 and ±10.
	ErrQuickDelta = errorbank.BadRequest("quick adjustments must be ±1 or ±10")
	// ErrNegativeStock is returned when a manual adjustment would drive stock below zero.
	ErrNegativeStock = errorbank.Unprocessable("adjustment would make stock negative")
	// ErrLocked is returned when another writer holds the product lock.
	ErrLocked = errorbank.Conflict("product stock is being updated, try again")
)

// ProductStore is the stock persistence the service depends on.
type ProductStore interface {
	GetPrimary(ctx context.Context, s tenant.Session, id uuid.UUID) (*entity.Product, error)
	WriteStockWithMovement(ctx context.Context, s tenant.Session, u productrepo.StockUpdate, m *entity.InventoryMovement) (*entity.Product, error)
	List(ctx context.Context, s tenant.Session, f productrepo.Filter) ([]entity.Product, int, error)
}

// MovementStore reads the movement ledger.
type MovementStore interface {
	ListMovements(ctx context.Context, s tenant.Session, f inventoryrepo.MovementFilter) ([]entity.InventoryMovement, int, error)
}

// ActivityStore appends audit entries.
type ActivityStore interface {
	Append(ctx context.Context, s tenant.Session, entries ...entity.ActivityLog) error
}

// Change is one requested stock change.
type Change struct {
	ProductID     uuid.UUID
	Delta         int64
	Type          entity.MovementType
	Reason        string
	ReferenceType string
	ReferenceID   *uuid.UUID
	// Strict rejects changes that would go below zero instead of clamping.
	Strict bool
	// Silent skips the activity entry; the caller records its own.
	Silent bool
}

// Result is the outcome of an applied change.
type Result struct {
	Product  *entity.Product          `json:"product"`
	Movement *entity.InventoryMovement `json:"movement"`
	Clamped  bool                     `json:"clamped"`
}

// Service serializes stock writes per product and records every change in the ledger.
type Service struct {
	products   ProductStore
	movements  MovementStore
	activities ActivityStore
	cache      cache.Store
	locker     cache.Locker
	emitter    realtime.Emitter
	logger     *zap.Logger
	cfg        config.Inventory
	sleep      func(time.Duration)
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Products   *productrepo.Repository
	Movements  *inventoryrepo.Repository
	Activities *activityrepo.Repository
	Cache      cache.Store
	Locker     cache.Locker
	Emitter    realtime.Emitter
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(p.Products, p.Movements, p.Activities, p.Cache, p.Locker, p.Emitter, p.Config.Inventory, p.Logger)
}

// New builds a Service from its collaborators.
func New(products ProductStore, movements MovementStore, activities ActivityStore, c cache.Store, locker cache.Locker, emitter realtime.Emitter, cfg config.Inventory, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LockAttempts <= 0 {
		cfg.LockAttempts = 3
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Second
	}
	return &Service{
		products:   products,
		movements:  movements,
		activities: activities,
		cache:      c,
		locker:     locker,
		emitter:    emitter,
		logger:     logger,
		cfg:        cfg,
		sleep:      time.Sleep,
	}
}

// Adjust applies delta and clamps the result at zero.
func (s *Service) Adjust(ctx context.Context, sess tenant.Session, productID uuid.UUID, delta int64, reason string) (*Result, error) {
	return s.Apply(ctx, sess, Change{ProductID: productID, Delta: delta, Type: entity.MovementAdjustment, Reason: reason})
}

// QuickAdjust applies one of the register shortcuts: ±1 or ±10, clamped.
func (s *Service) QuickAdjust(ctx context.Context, sess tenant.Session, productID uuid.UUID, delta int64) (*Result, error) {
	switch delta {
	case 1, -1, 10, -10:
	default:
		return nil, ErrQuickDelta
	}
	return s.Apply(ctx, sess, Change{ProductID: productID, Delta: delta, Type: entity.MovementAdjustment, Reason: "quick adjust"})
}

// ManualAdjust applies a free-form delta and refuses to go below zero.
func (s *Service) ManualAdjust(ctx context.Context, sess tenant.Session, productID uuid.UUID, delta int64, movementType entity.MovementType, reason string) (*Result, error) {
	if movementType == "" {
		movementType = entity.MovementAdjustment
	}
	return s.Apply(ctx, sess, Change{ProductID: productID, Delta: delta, Type: movementType, Reason: reason, Strict: true})
}

// Apply runs a change under the product lock.
func (s *Service) Apply(ctx context.Context, sess tenant.Session, c Change) (*Result, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	ctx, span := serviceTracer.Start(ctx, "InventoryService.Apply", trace.WithAttributes(
		attribute.String("product.id", c.ProductID.String()),
		attribute.Int64("inventory.delta", c.Delta),
		attribute.String("inventory.movement_type", string(c.Type)),
	))
	defer span.End()

	var res *Result
	err := s.withLock(ctx, sess, c.ProductID, func(ctx context.Context) error {
		var err error
		res, err = s.write(ctx, sess, c.ProductID, func(p *entity.Product) (productrepo.StockUpdate, *entity.InventoryMovement, bool, error) {
			before := p.AvailableQuantity
			target := before + c.Delta
			clamped := false
			if target < 0 {
				if c.Strict {
					return productrepo.StockUpdate{}, nil, false, ErrNegativeStock
				}
				target = 0
				clamped = true
			}
			u := productrepo.StockUpdate{
				ProductID:       p.ID,
				BeforeAvailable: before,
				BeforeFronted:   p.FrontedQuantity,
				Available:       target,
				Fronted:         p.FrontedQuantity,
			}
			m := &entity.InventoryMovement{
				ProductID:      p.ID,
				MovementType:   c.Type,
				QuantityChange: target - before,
				QuantityBefore: before,
				QuantityAfter:  target,
				Reason:         c.Reason,
				ReferenceType:  c.ReferenceType,
				ReferenceID:    c.ReferenceID,
				CreatedBy:      sess.Actor(),
			}
			return u, m, clamped, nil
		})
		return err
	})
	if err != nil {
		if _, ok := errorbank.As(err); !ok {
			span.RecordError(err)
			span.SetStatus(codes.Error, "stock write failed")
		}
		return nil, err
	}

	if !c.Silent {
		s.audit(ctx, sess, res)
	}
	return res, nil
}

// Front moves quantity from available stock to fronted (on credit) stock.
func (s *Service) Front(ctx context.Context, sess tenant.Session, productID uuid.UUID, qty int64, reason string) (*Result, error) {
	if qty <= 0 {
		return nil, errorbank.BadRequest("front quantity must be positive")
	}
	return s.moveFronted(ctx, sess, productID, entity.MovementFront, reason, func(p *entity.Product) (int64, int64, error) {
		if p.AvailableQuantity < qty {
			return 0, 0, errorbank.Unprocessable("not enough available stock to front",
				errorbank.WithDetail("available", p.AvailableQuantity))
		}
		return p.AvailableQuantity - qty, p.FrontedQuantity + qty, nil
	})
}

// SettleFront closes qty fronted units. Paid units leave stock; returned units go back to available.
func (s *Service) SettleFront(ctx context.Context, sess tenant.Session, productID uuid.UUID, qty int64, returned bool, reason string) (*Result, error) {
	if qty <= 0 {
		return nil, errorbank.BadRequest("settle quantity must be positive")
	}
	movementType := entity.MovementFrontSettle
	if returned {
		movementType = entity.MovementFrontReturn
	}
	return s.moveFronted(ctx, sess, productID, movementType, reason, func(p *entity.Product) (int64, int64, error) {
		if p.FrontedQuantity < qty {
			return 0, 0, errorbank.Unprocessable("settle quantity exceeds fronted stock",
				errorbank.WithDetail("fronted", p.FrontedQuantity))
		}
		available := p.AvailableQuantity
		if returned {
			available += qty
		}
		return available, p.FrontedQuantity - qty, nil
	})
}

func (s *Service) moveFronted(ctx context.Context, sess tenant.Session, productID uuid.UUID, movementType entity.MovementType, reason string, next func(*entity.Product) (int64, int64, error)) (*Result, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	ctx, span := serviceTracer.Start(ctx, "InventoryService.moveFronted", trace.WithAttributes(
		attribute.String("product.id", productID.String()),
		attribute.String("inventory.movement_type", string(movementType)),
	))
	defer span.End()

	var res *Result
	err := s.withLock(ctx, sess, productID, func(ctx context.Context) error {
		var err error
		res, err = s.write(ctx, sess, productID, func(p *entity.Product) (productrepo.StockUpdate, *entity.InventoryMovement, bool, error) {
			available, fronted, err := next(p)
			if err != nil {
				return productrepo.StockUpdate{}, nil, false, err
			}
			u := productrepo.StockUpdate{
				ProductID:       p.ID,
				BeforeAvailable: p.AvailableQuantity,
				BeforeFronted:   p.FrontedQuantity,
				Available:       available,
				Fronted:         fronted,
			}
			m := &entity.InventoryMovement{
				ProductID:      p.ID,
				MovementType:   movementType,
				QuantityChange: available - p.AvailableQuantity,
				QuantityBefore: p.AvailableQuantity,
				QuantityAfter:  available,
				Reason:         reason,
				CreatedBy:      sess.Actor(),
			}
			return u, m, false, nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, sess, res)
	return res, nil
}

type planFunc func(p *entity.Product) (productrepo.StockUpdate, *entity.InventoryMovement, bool, error)

// write reads the product, plans the update and writes it, re-reading when the
// stored counters moved underneath.
func (s *Service) write(ctx context.Context, sess tenant.Session, productID uuid.UUID, plan planFunc) (*Result, error) {
	for attempt := 0; ; attempt++ {
		p, err := s.products.GetPrimary(ctx, sess, productID)
		if err != nil {
			return nil, mapRepoError(err)
		}
		u, m, clamped, err := plan(p)
		if err != nil {
			return nil, err
		}
		updated, err := s.products.WriteStockWithMovement(ctx, sess, u, m)
		if errors.Is(err, productrepo.ErrStale) && attempt < staleRetries {
			continue
		}
		if err != nil {
			return nil, mapRepoError(err)
		}
		s.afterWrite(ctx, sess, updated.ID, m.ID)
		return &Result{Product: updated, Movement: m, Clamped: clamped}, nil
	}
}

func (s *Service) afterWrite(ctx context.Context, sess tenant.Session, productID, movementID uuid.UUID) {
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cache.ProductKey(sess.TenantID, productID)); err != nil {
			s.logger.Warn("product cache invalidation failed", zap.String("product_id", productID.String()), zap.Error(err))
		}
	}
	if s.emitter != nil {
		s.emitter.Emit(ctx, realtime.NewChange(realtime.TableProducts, realtime.EventUpdate, sess.TenantID, productID))
		s.emitter.Emit(ctx, realtime.NewChange(realtime.TableMovements, realtime.EventInsert, sess.TenantID, movementID))
	}
}

func (s *Service) audit(ctx context.Context, sess tenant.Session, res *Result) {
	if s.activities == nil || res == nil {
		return
	}
	m := res.Movement
	entry := entity.ActivityLog{
		ActivityType: entity.ActivityInventoryAdjustment,
		Description: fmt.Sprintf("%s %s: %d -> %d (%+d)",
			m.MovementType, res.Product.Name, m.QuantityBefore, m.QuantityAfter, m.QuantityChange),
		Entity:   "product",
		EntityID: &res.Product.ID,
	}
	if err := s.activities.Append(ctx, sess, entry); err != nil {
		s.logger.Warn("activity log append failed", zap.String("product_id", res.Product.ID.String()), zap.Error(err))
	}
}

func (s *Service) withLock(ctx context.Context, sess tenant.Session, productID uuid.UUID, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	key := lockKey(sess.TenantID, productID)
	token := uuid.NewString()

	acquired := false
	for attempt := 0; attempt < s.cfg.LockAttempts; attempt++ {
		ok, err := s.locker.AcquireLock(ctx, key, token, s.cfg.LockTTL)
		if err != nil {
			return errorbank.Unavailable("product lock unavailable", errorbank.WithCause(err))
		}
		if ok {
			acquired = true
			break
		}
		if attempt+1 < s.cfg.LockAttempts {
			s.sleep(s.cfg.LockBackoff * time.Duration(attempt+1))
		}
	}
	if !acquired {
		return ErrLocked
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger.Warn("product lock release failed", zap.String("key", key), zap.Error(err))
		}
	}()
	return fn(ctx)
}

func lockKey(tenantID, productID uuid.UUID) string {
	return "locks:" + cache.ProductKey(tenantID, productID)
}

// Movements lists the ledger.
func (s *Service) Movements(ctx context.Context, sess tenant.Session, f inventoryrepo.MovementFilter) ([]entity.InventoryMovement, int, error) {
	if err := sess.Validate(); err != nil {
		return nil, 0, err
	}
	out, total, err := s.movements.ListMovements(ctx, sess, f)
	if err != nil {
		return nil, 0, errorbank.Internal("failed to list movements", errorbank.WithCause(err))
	}
	return out, total, nil
}

// LowStock lists products at or below their threshold.
func (s *Service) LowStock(ctx context.Context, sess tenant.Session, limit, offset int) ([]entity.Product, int, error) {
	if err := sess.Validate(); err != nil {
		return nil, 0, err
	}
	out, total, err := s.products.List(ctx, sess, productrepo.Filter{LowStock: true, Limit: limit, Offset: offset})
	if err != nil {
		return nil, 0, errorbank.Internal("failed to list low stock products", errorbank.WithCause(err))
	}
	return out, total, nil
}

func mapRepoError(err error) error {
	switch {
	case errors.Is(err, productrepo.ErrNotFound):
		return errorbank.NotFound("product not found")
	case errors.Is(err, productrepo.ErrStale):
		return errorbank.Conflict("product stock changed concurrently", errorbank.WithCause(err))
	default:
		return errorbank.Internal("failed to update stock", errorbank.WithCause(err))
	}
}
