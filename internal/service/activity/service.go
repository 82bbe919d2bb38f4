package activity

import (
	"context"

	"github.com/Additional-Code/cannadmin/internal/entity"
	repo "github.com/Additional-Code/cannadmin/internal/repository/activity"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

// Service exposes the audit trail. Entries are written by the services that act.
type Service struct {
	repo *repo.Repository
}

// NewService wires a new Service instance.
func NewService(r *repo.Repository) *Service {
	return &Service{repo: r}
}

// List returns the newest audit entries of the tenant.
func (s *Service) List(ctx context.Context, sess tenant.Session, activityType string, limit, offset int) ([]entity.ActivityLog, int, error) {
	if err := sess.Validate(); err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out, total, err := s.repo.List(ctx, sess, activityType, limit, offset)
	if err != nil {
		return nil, 0, errorbank.Internal("failed to list activity", errorbank.WithCause(err))
	}
	return out, total, nil
}
