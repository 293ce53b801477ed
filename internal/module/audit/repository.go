package audit

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/pkg"
)

// Allowed fields for sorting and filtering in List queries.
var (
	allowedSortFields   = []string{"id", "created_at"}
	allowedFilterFields = map[string]pkg.FieldKind{
		"resource": pkg.FieldText,
		"action":   pkg.FieldText,
		"actor":    pkg.FieldText,
		"success":  pkg.FieldBool,
	}
)

// repository implements domain.AuditRepository using GORM.
type repository struct {
	db *gorm.DB
}

// NewRepository creates an AuditRepository backed by db.
func NewRepository(db *gorm.DB) domain.AuditRepository {
	return &repository{db: db}
}

func (r *repository) Append(ctx context.Context, e *domain.AuditEntry, purgeBefore time.Time) (int64, error) {
	var purged int64
	err := pkg.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Create(e).Error; err != nil {
			return err
		}
		if purgeBefore.IsZero() {
			return nil
		}
		res := tx.Where("created_at < ?", purgeBefore).Delete(&domain.AuditEntry{})
		if res.Error != nil {
			return res.Error
		}
		purged = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, mapError(err)
	}
	return purged, nil
}

// List returns a paginated, sorted, and filtered list of entries.
func (r *repository) List(ctx context.Context, req domain.PageRequest) (*domain.PageResult[domain.AuditEntry], error) {
	var total int64
	base := r.db.WithContext(ctx).Model(&domain.AuditEntry{}).
		Scopes(pkg.Filter(req, allowedFilterFields))

	if err := base.Count(&total).Error; err != nil {
		return nil, mapError(err)
	}

	var entries []domain.AuditEntry
	if err := base.Scopes(
		pkg.Paginate(req),
		pkg.Sort(req, allowedSortFields),
	).Find(&entries).Error; err != nil {
		return nil, mapError(err)
	}

	return pkg.NewPageResult(entries, total, req), nil
}

// mapError converts GORM errors to domain errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewAppError(domain.CodeInternal, "audit query canceled", err)
	}
	return domain.NewAppError(domain.CodeInternal, "database error", err)
}
