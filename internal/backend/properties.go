package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/listing"
)

// Properties serves the listing table.
type Properties struct {
	c *Client
}

// Properties returns the property resource.
func (c *Client) Properties() *Properties { return &Properties{c: c} }

func (p *Properties) Search(ctx context.Context, q listing.Query) (*listing.Page[domain.Property], error) {
	params := url.Values{}
	params.Set("pageNum", strconv.Itoa(q.Page))
	params.Set("pageSize", strconv.Itoa(q.PageSize))
	params.Set("listingTitle", q.Criteria.Get("listingTitle"))
	if town := q.Criteria.Get("town"); town != "" {
		params.Set("town", town)
	}

	resp, err := p.c.send(ctx, request{
		op:     "properties.search",
		method: http.MethodGet,
		path:   "/api/property/search",
		query:  params,
	})
	if err != nil {
		return nil, err
	}
	return DecodePage[domain.Property](resp.body, q)
}

// Update saves the full listing. The backend answers with the saved record
// or true.
func (p *Properties) Update(ctx context.Context, prop domain.Property) error {
	return p.c.acknowledge(ctx, request{
		op:     "properties.update",
		method: http.MethodPut,
		path:   "/api/property/" + strconv.FormatInt(prop.ID, 10),
		body:   prop,
	})
}

func (p *Properties) Delete(ctx context.Context, id int64) error {
	return p.c.confirm(ctx, request{
		op:     "properties.delete",
		method: http.MethodDelete,
		path:   "/api/property/" + strconv.FormatInt(id, 10),
	})
}

func (p *Properties) DeleteMany(ctx context.Context, ids []int64) error {
	return p.c.confirm(ctx, request{
		op:     "properties.delete_many",
		method: http.MethodPost,
		path:   "/api/property/delete-multiple",
		body:   ids,
	})
}
