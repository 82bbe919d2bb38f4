package search

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Additional-Code/cannadmin/internal/config"
	"github.com/Additional-Code/cannadmin/internal/entity"
	searchrepo "github.com/Additional-Code/cannadmin/internal/repository/search"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/cannadmin/service/search")

// ErrTermTooShort is returned for terms below the minimum length. No lookup is made.
var ErrTermTooShort = errorbank.BadRequest("search term is too short")

// Repository runs the per-entity lookups.
type Repository interface {
	Users(ctx context.Context, s tenant.Session, term string, limit int) ([]entity.AdminUser, error)
	Orders(ctx context.Context, s tenant.Session, term string, limit int) ([]entity.Order, error)
	Products(ctx context.Context, s tenant.Session, term string, limit int) ([]entity.Product, error)
	Addresses(ctx context.Context, s tenant.Session, term string, limit int) ([]entity.Address, error)
}

// Results groups matches by entity.
type Results struct {
	Term      string             `json:"term"`
	Users     []entity.AdminUser `json:"users"`
	Orders    []entity.Order     `json:"orders"`
	Products  []entity.Product   `json:"products"`
	Addresses []entity.Address   `json:"addresses"`
	Counts    map[string]int     `json:"counts"`
}

// Total is the number of matches across all entities.
func (r Results) Total() int {
	return len(r.Users) + len(r.Orders) + len(r.Products) + len(r.Addresses)
}

// Service fans a term out to every searchable entity.
type Service struct {
	repo    Repository
	minLen  int
	limit   int
	timeout time.Duration
	logger  *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *searchrepo.Repository
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(p.Repository, p.Config.Search, p.Logger)
}

// New builds a Service.
func New(r Repository, cfg config.Search, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinTermLength <= 0 {
		cfg.MinTermLength = 2
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	return &Service{repo: r, minLen: cfg.MinTermLength, limit: cfg.Limit, timeout: cfg.Timeout, logger: logger}
}

// MinTermLength is the shortest accepted term, in characters.
func (s *Service) MinTermLength() int {
	return s.minLen
}

// Search runs the four lookups concurrently. Any failing lookup fails the search.
func (s *Service) Search(ctx context.Context, sess tenant.Session, term string) (*Results, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < s.minLen {
		return nil, ErrTermTooShort
	}
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	ctx, span := serviceTracer.Start(ctx, "SearchService.Search")
	span.SetAttributes(attribute.Int("search.term_length", len(term)))
	defer span.End()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res := &Results{Term: term}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		res.Users, err = s.repo.Users(gctx, sess, term, s.limit)
		return err
	})
	g.Go(func() (err error) {
		res.Orders, err = s.repo.Orders(gctx, sess, term, s.limit)
		return err
	})
	g.Go(func() (err error) {
		res.Products, err = s.repo.Products(gctx, sess, term, s.limit)
		return err
	})
	g.Go(func() (err error) {
		res.Addresses, err = s.repo.Addresses(gctx, sess, term, s.limit)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		s.logger.Warn("search failed", zap.Error(err))
		return nil, errorbank.Internal("search failed", errorbank.WithCause(err))
	}

	res.Counts = map[string]int{
		"users":     len(res.Users),
		"orders":    len(res.Orders),
		"products":  len(res.Products),
		"addresses": len(res.Addresses),
	}
	return res, nil
}
