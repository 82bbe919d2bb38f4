package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/realtime"
	repo "github.com/Additional-Code/cannadmin/internal/repository/store"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

var (
	slugPattern  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}){1,2}$`)
)

// Repository is the storefront persistence the service depends on.
type Repository interface {
	Create(ctx context.Context, s tenant.Session, st *entity.Store) error
	GetByID(ctx context.Context, s tenant.Session, id uuid.UUID) (*entity.Store, error)
	List(ctx context.Context, s tenant.Session) ([]entity.Store, error)
	Update(ctx context.Context, s tenant.Session, st *entity.Store) error
	Stats(ctx context.Context, s tenant.Session, storeID uuid.UUID) (entity.StoreStats, error)
}

// Input carries the editable storefront fields.
type Input struct {
	Slug           string `json:"slug"`
	Name           string `json:"name"`
	LogoURL        string `json:"logo_url"`
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color"`
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errorbank.BadRequest("name is required")
	}
	if !slugPattern.MatchString(in.Slug) {
		return errorbank.BadRequest("slug must be lowercase letters, digits and dashes")
	}
	for _, c := range []string{in.PrimaryColor, in.SecondaryColor} {
		if c != "" && !colorPattern.MatchString(c) {
			return errorbank.BadRequest("colors must be hex values", errorbank.WithDetail("color", c))
		}
	}
	return nil
}

func (in Input) apply(st *entity.Store) {
	st.Slug = in.Slug
	st.Name = strings.TrimSpace(in.Name)
	st.LogoURL = in.LogoURL
	st.PrimaryColor = in.PrimaryColor
	st.SecondaryColor = in.SecondaryColor
}

// Flags toggles storefront visibility. Nil leaves a flag unchanged.
type Flags struct {
	IsActive *bool `json:"is_active"`
	IsPublic *bool `json:"is_public"`
}

// View is a store with its derived counters.
type View struct {
	entity.Store
	Stats entity.StoreStats `json:"stats"`
}

// Service manages white-label storefront configuration.
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

// Create registers a new, inactive storefront.
func (s *Service) Create(ctx context.Context, sess tenant.Session, in Input) (*entity.Store, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	st := &entity.Store{CreatedAt: now, UpdatedAt: now}
	in.apply(st)
	if err := s.repo.Create(ctx, sess, st); err != nil {
		return nil, mapError(err)
	}
	s.emit(ctx, sess, realtime.EventInsert, st.ID)
	return st, nil
}

// Get returns a store with its counters computed from orders.
func (s *Service) Get(ctx context.Context, sess tenant.Session, id uuid.UUID) (*View, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	st, err := s.repo.GetByID(ctx, sess, id)
	if err != nil {
		return nil, mapError(err)
	}
	stats, err := s.repo.Stats(ctx, sess, id)
	if err != nil {
		return nil, errorbank.Internal("failed to compute store stats", errorbank.WithCause(err))
	}
	return &View{Store: *st, Stats: stats}, nil
}

// List returns every store of the tenant.
func (s *Service) List(ctx context.Context, sess tenant.Session) ([]entity.Store, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	out, err := s.repo.List(ctx, sess)
	if err != nil {
		return nil, errorbank.Internal("failed to list stores", errorbank.WithCause(err))
	}
	return out, nil
}

// Update rewrites branding fields.
func (s *Service) Update(ctx context.Context, sess tenant.Session, id uuid.UUID, in Input) (*entity.Store, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	return s.modify(ctx, sess, id, func(st *entity.Store) { in.apply(st) })
}

// SetFlags toggles the active and public flags.
func (s *Service) SetFlags(ctx context.Context, sess tenant.Session, id uuid.UUID, f Flags) (*entity.Store, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	return s.modify(ctx, sess, id, func(st *entity.Store) {
		if f.IsActive != nil {
			st.IsActive = *f.IsActive
		}
		if f.IsPublic != nil {
			st.IsPublic = *f.IsPublic
		}
	})
}

func (s *Service) modify(ctx context.Context, sess tenant.Session, id uuid.UUID, fn func(*entity.Store)) (*entity.Store, error) {
	st, err := s.repo.GetByID(ctx, sess, id)
	if err != nil {
		return nil, mapError(err)
	}
	fn(st)
	if err := s.repo.Update(ctx, sess, st); err != nil {
		return nil, mapError(err)
	}
	s.emit(ctx, sess, realtime.EventUpdate, id)
	return st, nil
}

func (s *Service) emit(ctx context.Context, sess tenant.Session, typ realtime.EventType, id uuid.UUID) {
	if s.emitter != nil {
		s.emitter.Emit(ctx, realtime.NewChange(realtime.TableStores, typ, sess.TenantID, id))
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return errorbank.NotFound("store not found")
	case errors.Is(err, repo.ErrDuplicateSlug):
		return errorbank.Conflict("slug is already taken")
	}
	return errorbank.Internal("store operation failed", errorbank.WithCause(err))
}
