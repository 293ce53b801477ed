package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
)

// Stats fetches the dashboard counters.
func (c *Client) Stats(ctx context.Context) (domain.Stats, error) {
	resp, err := c.send(ctx, request{
		op:     "dashboard.stats",
		method: http.MethodGet,
		path:   "/api/admin/dashboard/stats",
	})
	if err != nil {
		return nil, err
	}
	data, err := unwrapData(resp.body)
	if err != nil {
		return nil, err
	}
	stats := domain.Stats{}
	if isNull(data) {
		return stats, nil
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, domain.NewResponseFormatError(err)
	}
	return stats, nil
}

// Charts fetches the monthly and per-status listing counts for year.
func (c *Client) Charts(ctx context.Context, year int) (*domain.ChartData, error) {
	resp, err := c.send(ctx, request{
		op:     "dashboard.charts",
		method: http.MethodGet,
		path:   "/api/admin/dashboard/charts",
		query:  url.Values{"year": {strconv.Itoa(year)}},
	})
	if err != nil {
		return nil, err
	}
	data, err := unwrapData(resp.body)
	if err != nil {
		return nil, err
	}
	var charts domain.ChartData
	if isNull(data) {
		return &charts, nil
	}
	if err := json.Unmarshal(data, &charts); err != nil {
		return nil, domain.NewResponseFormatError(err)
	}
	return &charts, nil
}
