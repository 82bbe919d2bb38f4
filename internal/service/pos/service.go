package pos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/cannadmin/internal/cache"
	"github.com/Additional-Code/cannadmin/internal/config"
	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/pricing"
	"github.com/Additional-Code/cannadmin/internal/realtime"
	activityrepo "github.com/Additional-Code/cannadmin/internal/repository/activity"
	customerrepo "github.com/Additional-Code/cannadmin/internal/repository/customer"
	posrepo "github.com/Additional-Code/cannadmin/internal/repository/pos"
	productrepo "github.com/Additional-Code/cannadmin/internal/repository/product"
	"github.com/Additional-Code/cannadmin/internal/service/inventory"
	ordersvc "github.com/Additional-Code/cannadmin/internal/service/order"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

var (
	serviceTracer = otel.Tracer("github.com/Additional-Code/cannadmin/service/pos")
	meter         = otel.Meter("github.com/Additional-Code/cannadmin/service/pos")
)

// Commit paths reported on receipts and metrics.
const (
	PathAtomic   = "atomic"
	PathFallback = "fallback"
)

// Checkout guard errors.
var (
	ErrEmptyCart        = errorbank.BadRequest("cart is empty")
	ErrInsufficientCash = errorbank.BadRequest("cash tendered is less than the total")
	ErrPaymentMethod    = errorbank.BadRequest("unsupported payment method")
)

// ProductReader resolves cart products.
type ProductReader interface {
	Get(ctx context.Context, s tenant.Session, id uuid.UUID) (*entity.Product, error)
}

// CustomerStore reads buyers and accrues their loyalty points.
type CustomerStore interface {
	GetByID(ctx context.Context, s tenant.Session, id uuid.UUID) (*entity.Customer, error)
	AddLoyaltyPoints(ctx context.Context, s tenant.Session, id uuid.UUID, points int64) error
}

// TransactionStore persists register transactions.
type TransactionStore interface {
	CommitSale(ctx context.Context, s tenant.Session, t *entity.PosTransaction) error
	InsertTransaction(ctx context.Context, s tenant.Session, t *entity.PosTransaction) error
	DeleteTransaction(ctx context.Context, s tenant.Session, id uuid.UUID) error
	GetByID(ctx context.Context, s tenant.Session, id uuid.UUID) (*entity.PosTransaction, error)
	List(ctx context.Context, s tenant.Session, limit, offset int) ([]entity.PosTransaction, int, error)
}

// StockAdjuster applies stock changes under the product lock.
type StockAdjuster interface {
	Apply(ctx context.Context, s tenant.Session, c inventory.Change) (*inventory.Result, error)
}

// OrderCompleter closes the order a sale was rung up for.
type OrderCompleter interface {
	CompleteFromSale(ctx context.Context, s tenant.Session, orderID, transactionID uuid.UUID) error
}

// ActivityStore appends audit entries.
type ActivityStore interface {
	Append(ctx context.Context, s tenant.Session, entries ...entity.ActivityLog) error
}

// CartItem is one product line requested at the register.
type CartItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int64     `json:"quantity"`
}

// CheckoutRequest is a sale as submitted by the register.
type CheckoutRequest struct {
	Items         []CartItem           `json:"items"`
	CustomerID    *uuid.UUID           `json:"customer_id,omitempty"`
	PaymentMethod entity.PaymentMethod `json:"payment_method"`
	CashTendered  decimal.Decimal      `json:"cash_tendered"`
	SourceOrderID *uuid.UUID           `json:"source_order_id,omitempty"`
}

// Receipt is the result of a completed sale.
type Receipt struct {
	Transaction *entity.PosTransaction `json:"transaction"`
	Totals      pricing.Totals         `json:"totals"`
	Path        string                 `json:"path"`
}

// Service rings up sales.
type Service struct {
	products     ProductReader
	customers    CustomerStore
	transactions TransactionStore
	stock        StockAdjuster
	orders       OrderCompleter
	activities   ActivityStore
	cache        cache.Store
	emitter      realtime.Emitter
	logger       *zap.Logger
	rules        pricing.Rules
	loyaltyRate  decimal.Decimal
	compensate   bool
	now          func() time.Time
	checkouts    metric.Int64Counter
	latency      metric.Float64Histogram
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Products     *productrepo.Repository
	Customers    *customerrepo.Repository
	Transactions *posrepo.Repository
	Inventory    *inventory.Service
	Orders       *ordersvc.Service
	Activities   *activityrepo.Repository
	Cache        cache.Store
	Emitter      realtime.Emitter
	Config       config.Config
	Logger       *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(Deps{
		Products:     p.Products,
		Customers:    p.Customers,
		Transactions: p.Transactions,
		Stock:        p.Inventory,
		Orders:       p.Orders,
		Activities:   p.Activities,
		Cache:        p.Cache,
		Emitter:      p.Emitter,
	}, p.Config.POS, p.Logger)
}

// Deps groups the collaborators of Service.
type Deps struct {
	Products     ProductReader
	Customers    CustomerStore
	Transactions TransactionStore
	Stock        StockAdjuster
	Orders       OrderCompleter
	Activities   ActivityStore
	Cache        cache.Store
	Emitter      realtime.Emitter
}

// New builds a Service.
func New(d Deps, cfg config.POS, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	checkouts, err := meter.Int64Counter("pos.checkouts",
		metric.WithDescription("Register checkouts by commit path and outcome"))
	if err != nil {
		logger.Warn("checkout counter unavailable", zap.Error(err))
	}
	latency, err := meter.Float64Histogram("pos.checkout.duration",
		metric.WithDescription("Time to commit a register sale"), metric.WithUnit("s"))
	if err != nil {
		logger.Warn("checkout latency histogram unavailable", zap.Error(err))
	}
	return &Service{
		products:     d.Products,
		customers:    d.Customers,
		transactions: d.Transactions,
		stock:        d.Stock,
		orders:       d.Orders,
		activities:   d.Activities,
		cache:        d.Cache,
		emitter:      d.Emitter,
		logger:       logger,
		rules:        pricing.RulesFromConfig(cfg),
		loyaltyRate:  cfg.LoyaltyPointsPerUnit,
		compensate:   cfg.CompensateFallback,
		now:          func() time.Time { return time.Now().UTC() },
		checkouts:    checkouts,
		latency:      latency,
	}
}

// Quote prices a cart without committing it.
func (s *Service) Quote(ctx context.Context, sess tenant.Session, req CheckoutRequest) (pricing.Totals, error) {
	if err := sess.Validate(); err != nil {
		return pricing.Totals{}, err
	}
	_, _, totals, err := s.price(ctx, sess, req)
	return totals, err
}

// Checkout validates and prices the cart, then commits the sale through the atomic
// database function, falling back to step-by-step writes when it is not installed.
func (s *Service) Checkout(ctx context.Context, sess tenant.Session, req CheckoutRequest) (*Receipt, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	ctx, span := serviceTracer.Start(ctx, "PosService.Checkout", trace.WithAttributes(
		attribute.Int("pos.items", len(req.Items)),
		attribute.String("pos.payment_method", string(req.PaymentMethod)),
	))
	defer span.End()

	if err := validatePayment(req.PaymentMethod); err != nil {
		return nil, err
	}
	customer, items, totals, err := s.price(ctx, sess, req)
	if err != nil {
		return nil, err
	}

	tx := &entity.PosTransaction{
		ID:            uuid.New(),
		Number:        s.transactionNumber(),
		CustomerID:    req.CustomerID,
		CashierID:     sess.Actor(),
		PaymentMethod: req.PaymentMethod,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Discount:      totals.Discount,
		Total:         totals.Total,
		CashTendered:  decimal.Zero,
		ChangeDue:     decimal.Zero,
		SourceOrderID: req.SourceOrderID,
		CreatedAt:     s.now(),
		Items:         items,
	}
	if req.PaymentMethod == entity.PaymentCash {
		if req.CashTendered.LessThan(totals.Total) {
			return nil, ErrInsufficientCash
		}
		tx.CashTendered = req.CashTendered
		tx.ChangeDue = req.CashTendered.Sub(totals.Total)
	}
	if customer != nil {
		tx.LoyaltyPointsEarned = pricing.LoyaltyPoints(totals.Total, s.loyaltyRate)
	}

	path := PathAtomic
	started := time.Now()
	err = s.transactions.CommitSale(ctx, sess, tx)
	if errors.Is(err, posrepo.ErrCommitUnavailable) {
		s.logger.Warn("atomic sale commit unavailable; using fallback", zap.String("transaction", tx.Number))
		path = PathFallback
		err = s.commitFallback(ctx, sess, tx)
	}
	if err != nil {
		s.count(ctx, path, "failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		if appErr, ok := errorbank.As(err); ok {
			return nil, appErr
		}
		return nil, errorbank.Internal("failed to complete sale", errorbank.WithCause(err))
	}
	s.count(ctx, path, "completed")
	if s.latency != nil {
		s.latency.Record(ctx, time.Since(started).Seconds(), metric.WithAttributes(attribute.String("path", path)))
	}
	span.SetAttributes(attribute.String("pos.path", path))

	s.afterSale(ctx, sess, tx, path)
	return &Receipt{Transaction: tx, Totals: totals, Path: path}, nil
}

func validatePayment(m entity.PaymentMethod) error {
	switch m {
	case entity.PaymentCash, entity.PaymentCard, entity.PaymentDebit:
		return nil
	}
	return ErrPaymentMethod
}

// price resolves the customer and products and computes the totals.
func (s *Service) price(ctx context.Context, sess tenant.Session, req CheckoutRequest) (*entity.Customer, []entity.PosTransactionItem, pricing.Totals, error) {
	if len(req.Items) == 0 {
		return nil, nil, pricing.Totals{}, ErrEmptyCart
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, nil, pricing.Totals{}, errorbank.BadRequest("item quantity must be positive",
				errorbank.WithDetail("product_id", item.ProductID))
		}
	}

	var customer *entity.Customer
	customerType := ""
	if req.CustomerID != nil {
		c, err := s.customers.GetByID(ctx, sess, *req.CustomerID)
		if errors.Is(err, customerrepo.ErrNotFound) {
			return nil, nil, pricing.Totals{}, errorbank.BadRequest("customer not found")
		}
		if err != nil {
			return nil, nil, pricing.Totals{}, errorbank.Internal("failed to load customer", errorbank.WithCause(err))
		}
		customer = c
		customerType = string(c.Type)
	}

	lines := make([]pricing.Line, 0, len(req.Items))
	items := make([]entity.PosTransactionItem, 0, len(req.Items))
	for _, item := range req.Items {
		p, err := s.products.Get(ctx, sess, item.ProductID)
		if errors.Is(err, productrepo.ErrNotFound) {
			return nil, nil, pricing.Totals{}, errorbank.BadRequest("product not found",
				errorbank.WithDetail("product_id", item.ProductID))
		}
		if err != nil {
			return nil, nil, pricing.Totals{}, errorbank.Internal("failed to load product", errorbank.WithCause(err))
		}
		line := pricing.Line{UnitPrice: p.RetailPrice, Quantity: item.Quantity}
		lines = append(lines, line)
		items = append(items, entity.PosTransactionItem{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  item.Quantity,
			UnitPrice: p.RetailPrice,
			LineTotal: pricing.Round2(line.Total()),
		})
	}

	totals, err := s.rules.Compute(lines, customerType)
	if err != nil {
		return nil, nil, pricing.Totals{}, errorbank.BadRequest(err.Error())
	}
	return customer, items, totals, nil
}

// commitFallback writes the sale step by step. It is not atomic: a failure leaves the
// completed steps in place unless compensation is enabled.
func (s *Service) commitFallback(ctx context.Context, sess tenant.Session, tx *entity.PosTransaction) error {
	ctx, span := serviceTracer.Start(ctx, "PosService.commitFallback")
	defer span.End()

	var completed []string
	var decrements []*inventory.Result

	fail := func(step string, err error) error {
		s.logger.Error("fallback sale partially applied",
			zap.String("transaction", tx.Number),
			zap.String("failed_step", step),
			zap.Strings("completed_steps", completed),
			zap.Error(err),
		)
		if s.compensate {
			s.rollback(ctx, sess, tx, completed, decrements)
		}
		return err
	}

	if err := s.transactions.InsertTransaction(ctx, sess, tx); err != nil {
		return fail("insert_transaction", err)
	}
	completed = append(completed, "insert_transaction")

	for _, item := range tx.Items {
		res, err := s.stock.Apply(ctx, sess, inventory.Change{
			ProductID:     item.ProductID,
			Delta:         -item.Quantity,
			Type:          entity.MovementSale,
			Reason:        "pos sale " + tx.Number,
			ReferenceType: "pos_transaction",
			ReferenceID:   &tx.ID,
			Silent:        true,
		})
		if err != nil {
			return fail("decrement:"+item.ProductID.String(), err)
		}
		decrements = append(decrements, res)
		completed = append(completed, "decrement:"+item.ProductID.String())
	}

	if tx.CustomerID != nil && tx.LoyaltyPointsEarned > 0 {
		if err := s.customers.AddLoyaltyPoints(ctx, sess, *tx.CustomerID, tx.LoyaltyPointsEarned); err != nil {
			return fail("loyalty", err)
		}
		completed = append(completed, "loyalty")
	}
	return nil
}

// rollback undoes completed fallback steps in reverse order. Restored stock is the
// amount actually removed, which is less than the sold quantity when the decrement clamped.
func (s *Service) rollback(ctx context.Context, sess tenant.Session, tx *entity.PosTransaction, completed []string, decrements []*inventory.Result) {
	ctx = context.WithoutCancel(ctx)
	for i := len(decrements) - 1; i >= 0; i-- {
		m := decrements[i].Movement
		if m.QuantityChange == 0 {
			continue
		}
		_, err := s.stock.Apply(ctx, sess, inventory.Change{
			ProductID:     m.ProductID,
			Delta:         -m.QuantityChange,
			Type:          entity.MovementCompensate,
			Reason:        "reverse failed sale " + tx.Number,
			ReferenceType: "pos_transaction",
			ReferenceID:   &tx.ID,
			Silent:        true,
		})
		if err != nil {
			s.logger.Error("compensation failed", zap.String("transaction", tx.Number),
				zap.String("product_id", m.ProductID.String()), zap.Error(err))
		}
	}
	if len(completed) > 0 && completed[0] == "insert_transaction" {
		if err := s.transactions.DeleteTransaction(ctx, sess, tx.ID); err != nil {
			s.logger.Error("compensation failed", zap.String("transaction", tx.Number), zap.Error(err))
		}
	}
	s.logger.Warn("fallback sale compensated", zap.String("transaction", tx.Number),
		zap.String("reversed", strings.Join(completed, ",")))
}

func (s *Service) afterSale(ctx context.Context, sess tenant.Session, tx *entity.PosTransaction, path string) {
	if path == PathAtomic {
		for _, item := range tx.Items {
			if s.cache != nil {
				if err := s.cache.Delete(ctx, cache.ProductKey(sess.TenantID, item.ProductID)); err != nil {
					s.logger.Warn("product cache invalidation failed", zap.String("product_id", item.ProductID.String()), zap.Error(err))
				}
			}
			s.emit(ctx, realtime.NewChange(realtime.TableProducts, realtime.EventUpdate, sess.TenantID, item.ProductID))
		}
	}
	s.emit(ctx, realtime.NewChange(realtime.TablePosTransactions, realtime.EventInsert, sess.TenantID, tx.ID))

	if s.activities != nil {
		entries := make([]entity.ActivityLog, 0, len(tx.Items))
		for _, item := range tx.Items {
			productID := item.ProductID
			entries = append(entries, entity.ActivityLog{
				ActivityType: entity.ActivitySaleCompleted,
				Description:  fmt.Sprintf("sold %d x %s on %s", item.Quantity, item.Name, tx.Number),
				Entity:       "product",
				EntityID:     &productID,
			})
		}
		if err := s.activities.Append(ctx, sess, entries...); err != nil {
			s.logger.Warn("activity log append failed", zap.String("transaction", tx.Number), zap.Error(err))
		}
	}

	if tx.SourceOrderID != nil && s.orders != nil {
		if err := s.orders.CompleteFromSale(ctx, sess, *tx.SourceOrderID, tx.ID); err != nil {
			s.logger.Warn("source order not completed",
				zap.String("order_id", tx.SourceOrderID.String()),
				zap.String("transaction", tx.Number),
				zap.Error(err),
			)
		}
	}
}

// Get returns a recorded transaction.
func (s *Service) Get(ctx context.Context, sess tenant.Session, id uuid.UUID) (*entity.PosTransaction, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	tx, err := s.transactions.GetByID(ctx, sess, id)
	if errors.Is(err, posrepo.ErrNotFound) {
		return nil, errorbank.NotFound("transaction not found")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load transaction", errorbank.WithCause(err))
	}
	return tx, nil
}

// List returns recent transactions.
func (s *Service) List(ctx context.Context, sess tenant.Session, limit, offset int) ([]entity.PosTransaction, int, error) {
	if err := sess.Validate(); err != nil {
		return nil, 0, err
	}
	out, total, err := s.transactions.List(ctx, sess, limit, offset)
	if err != nil {
		return nil, 0, errorbank.Internal("failed to list transactions", errorbank.WithCause(err))
	}
	return out, total, nil
}

func (s *Service) emit(ctx context.Context, c realtime.Change) {
	if s.emitter != nil {
		s.emitter.Emit(ctx, c)
	}
}

func (s *Service) count(ctx context.Context, path, outcome string) {
	if s.checkouts == nil {
		return
	}
	s.checkouts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("path", path),
		attribute.String("outcome", outcome),
	))
}

func (s *Service) transactionNumber() string {
	return fmt.Sprintf("POS-%s-%s", s.now().Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}
