package activity

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Additional-Code/cannadmin/internal/database"
	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/tenant"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/cannadmin/repository/activity")

// Repository appends and lists audit entries. Entries are never updated.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Append inserts entries for the session tenant in one statement.
func (r *Repository) Append(ctx context.Context, s tenant.Session, entries ...entity.ActivityLog) error {
	if len(entries) == 0 {
		return nil
	}
	ctx, span := repoTracer.Start(ctx, "ActivityRepository.Append")
	span.SetAttributes(attribute.Int("activity.count", len(entries)))
	defer span.End()

	for i := range entries {
		entries[i].TenantID = s.TenantID
		if entries[i].ID == uuid.Nil {
			entries[i].ID = uuid.New()
		}
		if entries[i].ActorID == nil {
			entries[i].ActorID = s.Actor()
		}
	}
	if _, err := r.writer.NewInsert().Model(&entries).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// List returns the newest entries first, optionally narrowed to one activity type.
func (r *Repository) List(ctx context.Context, s tenant.Session, activityType string, limit, offset int) ([]entity.ActivityLog, int, error) {
	ctx, span := repoTracer.Start(ctx, "ActivityRepository.List")
	defer span.End()

	var out []entity.ActivityLog
	count, err := r.listQuery(s, activityType, limit, offset, &out).ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	return out, count, nil
}

func (r *Repository) listQuery(s tenant.Session, activityType string, limit, offset int, dest *[]entity.ActivityLog) *bun.SelectQuery {
	q := tenant.Scope(r.reader.NewSelect().Model(dest), s)
	if activityType != "" {
		q = q.Where("?TableAlias.? = ?", bun.Ident("activity_type"), activityType)
	}
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	return q.Order("created_at DESC")
}
