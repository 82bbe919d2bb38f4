package customer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/realtime"
	repo "github.com/Additional-Code/cannadmin/internal/repository/customer"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

// Repository is the customer persistence the service depends on.
type Repository interface {
	Create(ctx context.Context, s tenant.Session, c *entity.Customer) error
	GetByID(ctx context.Context, s tenant.Session, id uuid.UUID) (*entity.Customer, error)
	List(ctx context.Context, s tenant.Session, customerType entity.CustomerType, limit, offset int) ([]entity.Customer, int, error)
	UpdateType(ctx context.Context, s tenant.Session, id uuid.UUID, customerType entity.CustomerType) error
}

// Input carries the fields accepted on create.
type Input struct {
	Name  string              `json:"name"`
	Email string              `json:"email"`
	Phone string              `json:"phone"`
	Type  entity.CustomerType `json:"customer_type"`
}

// Service manages the customer directory.
type Service struct {
	repo    Repository
	emitter realtime.Emitter
	logger  *zap.Logger
}

// NewService wires a new Service instance.
func NewService(r *repo.Repository, emitter realtime.Emitter, logger *zap.Logger) *Service {
	return New(r, emitter, logger)
}

// New builds a Service.
func New(r Repository, emitter realtime.Emitter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: r, emitter: emitter, logger: logger}
}

// ParseType normalises a customer type; empty means recreational.
func ParseType(raw string) (entity.CustomerType, error) {
	t := entity.CustomerType(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case "":
		return entity.CustomerTypeRecreational, nil
	case entity.CustomerTypeRecreational, entity.CustomerTypeMedical, entity.CustomerTypeWholesale:
		return t, nil
	}
	return "", errorbank.BadRequest("unknown customer type", errorbank.WithDetail("customer_type", raw))
}

// Create adds a customer.
func (s *Service) Create(ctx context.Context, sess tenant.Session, in Input) (*entity.Customer, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, errorbank.BadRequest("name is required")
	}
	t, err := ParseType(string(in.Type))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	c := &entity.Customer{
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Type:      t,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, sess, c); err != nil {
		return nil, errorbank.Internal("failed to create customer", errorbank.WithCause(err))
	}
	s.emit(ctx, sess, realtime.EventInsert, c.ID)
	return c, nil
}

// Get returns a customer, including the loyalty balance.
func (s *Service) Get(ctx context.Context, sess tenant.Session, id uuid.UUID) (*entity.Customer, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	c, err := s.repo.GetByID(ctx, sess, id)
	if err != nil {
		return nil, mapError(err)
	}
	return c, nil
}

// List returns a page of customers.
func (s *Service) List(ctx context.Context, sess tenant.Session, customerType entity.CustomerType, limit, offset int) ([]entity.Customer, int, error) {
	if err := sess.Validate(); err != nil {
		return nil, 0, err
	}
	out, total, err := s.repo.List(ctx, sess, customerType, limit, offset)
	if err != nil {
		return nil, 0, errorbank.Internal("failed to list customers", errorbank.WithCause(err))
	}
	return out, total, nil
}

// UpdateType changes the pricing class of a customer.
func (s *Service) UpdateType(ctx context.Context, sess tenant.Session, id uuid.UUID, raw string) (*entity.Customer, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	t, err := ParseType(raw)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateType(ctx, sess, id, t); err != nil {
		return nil, mapError(err)
	}
	s.emit(ctx, sess, realtime.EventUpdate, id)
	return s.Get(ctx, sess, id)
}

func (s *Service) emit(ctx context.Context, sess tenant.Session, typ realtime.EventType, id uuid.UUID) {
	if s.emitter != nil {
		s.emitter.Emit(ctx, realtime.NewChange(realtime.TableCustomers, typ, sess.TenantID, id))
	}
}

func mapError(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return errorbank.NotFound("customer not found")
	}
	return errorbank.Internal("customer lookup failed", errorbank.WithCause(err))
}
