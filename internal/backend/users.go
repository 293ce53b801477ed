package backend

import (
	"context"
	"net/http"
	"strconv"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/listing"
)

// Users serves the user list. It implements listing.Source and
// listing.Mutator.
type Users struct {
	c *Client
}

// Users returns the user resource.
func (c *Client) Users() *Users { return &Users{c: c} }

type userListRequest struct {
	PageNum  int    `json:"pageNum"`
	PageSize int    `json:"pageSize"`
	Keyword  string `json:"keyword"`
}

func (u *Users) Search(ctx context.Context, q listing.Query) (*listing.Page[domain.User], error) {
	resp, err := u.c.send(ctx, request{
		op:     "users.search",
		method: http.MethodPost,
		path:   "/api/admin/user/list",
		body:   userListRequest{PageNum: q.Page, PageSize: q.PageSize, Keyword: q.Criteria.Get("keyword")},
	})
	if err != nil {
		return nil, err
	}
	return DecodePage[domain.User](resp.body, q)
}

func (u *Users) Update(ctx context.Context, user domain.User) error {
	return u.c.confirm(ctx, request{
		op:     "users.update",
		method: http.MethodPost,
		path:   "/api/admin/user/update",
		body:   user,
	})
}

func (u *Users) Delete(ctx context.Context, id int64) error {
	return u.c.confirm(ctx, request{
		op:     "users.delete",
		method: http.MethodDelete,
		path:   "/api/admin/user/" + strconv.FormatInt(id, 10),
	})
}

func (u *Users) DeleteMany(ctx context.Context, ids []int64) error {
	return u.c.confirm(ctx, request{
		op:     "users.delete_many",
		method: http.MethodPost,
		path:   "/api/admin/user/delete-multiple",
		body:   ids,
	})
}
