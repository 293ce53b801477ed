package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/luofanlf/hdbPilot-admin/internal/backend"
	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/listing"
	"github.com/luofanlf/hdbPilot-admin/internal/session"
)

const (
	maxTargetLen  = 1000
	maxMessageLen = 500
	anonymous     = "anonymous"
)

// Recorder stores listing mutation outcomes.
type Recorder struct {
	repo      domain.AuditRepository
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewRecorder creates a Recorder. Entries older than retention are purged
// whenever a new one is stored; a non-positive retention keeps everything.
func NewRecorder(repo domain.AuditRepository, retention time.Duration, logger *slog.Logger) *Recorder {
	if repo == nil {
		panic("audit.NewRecorder: repository must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{repo: repo, retention: retention, now: time.Now, logger: logger}
}

// Hook returns the listing.MutationHook that feeds this recorder.
func (r *Recorder) Hook() listing.MutationHook {
	return r.Record
}

// Record stores o. Storage failures are logged; they never fail the
// mutation that produced o.
func (r *Recorder) Record(ctx context.Context, o listing.Outcome) {
	actor := anonymous
	if u, ok := session.UserFrom(ctx); ok {
		actor = u.Username
	}

	now := r.now()
	entry := &domain.AuditEntry{
		Actor:     actor,
		Resource:  o.Resource,
		Action:    o.Action,
		TargetIDs: truncate(strings.Join(o.IDs, ","), maxTargetLen),
		Success:   o.Success,
		Message:   truncate(o.Message, maxMessageLen),
		RequestID: backend.RequestIDFrom(ctx),
		CreatedAt: now,
	}

	var cutoff time.Time
	if r.retention > 0 {
		cutoff = now.Add(-r.retention)
	}

	// The request may already be finishing; the entry should still land.
	purged, err := r.repo.Append(context.WithoutCancel(ctx), entry, cutoff)
	if err != nil {
		r.logger.ErrorContext(ctx, "audit entry not stored",
			slog.String("resource", o.Resource),
			slog.String("action", o.Action),
			slog.Any("error", err),
		)
		return
	}
	if purged > 0 {
		r.logger.DebugContext(ctx, "audit entries purged", slog.Int64("count", purged))
	}
}

// List returns a page of entries.
func (r *Recorder) List(ctx context.Context, req domain.PageRequest) (*domain.PageResult[domain.AuditEntry], error) {
	return r.repo.List(ctx, req)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
