// Package dashboard serves the statistics overview.
package dashboard

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
)

// Backend is the dashboard API the module needs.
type Backend interface {
	Stats(ctx context.Context) (domain.Stats, error)
	Charts(ctx context.Context, year int) (*domain.ChartData, error)
}

// Overview is everything the dashboard shows for one year. Each part
// carries its own error so one failed call does not hide the other.
type Overview struct {
	Year      int
	Stats     domain.Stats
	StatsErr  error
	Charts    *domain.ChartData
	ChartsErr error
}

// StatsError returns the message for a failed stats call, or "".
func (o Overview) StatsError() string {
	if o.StatsErr == nil {
		return ""
	}
	return domain.UserMessage(o.StatsErr, "Failed to load statistics.")
}

// ChartsError returns the message for a failed charts call, or "".
func (o Overview) ChartsError() string {
	if o.ChartsErr == nil {
		return ""
	}
	return domain.UserMessage(o.ChartsErr, "Failed to load charts.")
}

// Service loads dashboard overviews.
type Service struct {
	backend Backend
	now     func() time.Time
	logger  *slog.Logger
}

// NewService creates a Service over b.
func NewService(b Backend) *Service {
	return &Service{backend: b, now: time.Now, logger: slog.Default()}
}

// ParseYear parses the year query parameter. Empty means the current year.
func (s *Service) ParseYear(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return s.now().Year(), nil
	}
	year, err := strconv.Atoi(v)
	if err != nil {
		return 0, domain.NewValidationError("year must be a number")
	}
	return year, nil
}

// Load fetches stats and charts concurrently. A failed call does not cancel
// the other; its error is kept on the Overview.
func (s *Service) Load(ctx context.Context, year int) Overview {
	o := Overview{Year: year}

	var g errgroup.Group
	g.Go(func() error {
		o.Stats, o.StatsErr = s.backend.Stats(ctx)
		return o.StatsErr
	})
	g.Go(func() error {
		o.Charts, o.ChartsErr = s.backend.Charts(ctx, year)
		return o.ChartsErr
	})
	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "dashboard partially loaded",
			slog.Int("year", year),
			slog.Any("stats_error", o.StatsErr),
			slog.Any("charts_error", o.ChartsErr),
		)
	}
	return o
}
