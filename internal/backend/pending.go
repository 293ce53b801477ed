package backend

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/listing"
)

// Pending serves listings awaiting review. It is read-only as a listing
// source; reviews go through Review.
type Pending struct {
	c *Client
}

// Pending returns the pending-review resource.
func (c *Client) Pending() *Pending { return &Pending{c: c} }

type pendingListRequest struct {
	PageNum        int    `json:"pageNum"`
	PageSize       int    `json:"pageSize"`
	SellerID       string `json:"sellerId"`
	Address        string `json:"address"`
	Town           string `json:"town"`
	BedroomNumber  *int   `json:"bedroomNumber"`
	BathroomNumber *int   `json:"bathroomNumber"`
}

func (p *Pending) Search(ctx context.Context, q listing.Query) (*listing.Page[domain.Property], error) {
	bedrooms, err := optionalInt(q.Criteria, "bedroomNumber")
	if err != nil {
		return nil, err
	}
	bathrooms, err := optionalInt(q.Criteria, "bathroomNumber")
	if err != nil {
		return nil, err
	}

	resp, err := p.c.send(ctx, request{
		op:     "pending.search",
		method: http.MethodPost,
		path:   "/api/admin/property/list_pending",
		body: pendingListRequest{
			PageNum:        q.Page,
			PageSize:       q.PageSize,
			SellerID:       q.Criteria.Get("sellerId"),
			Address:        q.Criteria.Get("address"),
			Town:           q.Criteria.Get("town"),
			BedroomNumber:  bedrooms,
			BathroomNumber: bathrooms,
		},
	})
	if err != nil {
		return nil, err
	}

	// A successful envelope with no data means nothing is pending.
	if env, err := DecodeEnvelope(resp.body); err == nil && env.OK() && isNull(env.Data) {
		return buildPage[domain.Property](nil, 0, true, 0, 0, 0, q), nil
	}
	return DecodePage[domain.Property](resp.body, q)
}

type reviewRequest struct {
	ID       int64 `json:"id"`
	Approved bool  `json:"approved"`
}

// Review approves or rejects one listing. Any 2xx answer counts as success.
func (p *Pending) Review(ctx context.Context, id int64, approved bool) error {
	return p.c.accept(ctx, request{
		op:     "pending.review",
		method: http.MethodPost,
		path:   "/api/admin/property/review",
		body:   reviewRequest{ID: id, Approved: approved},
	})
}

func optionalInt(c listing.Criteria, key string) (*int, error) {
	v := c.Get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("%s must be a number", key))
	}
	return &n, nil
}
