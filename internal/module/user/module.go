package user

import (
	"github.com/gin-gonic/gin"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/listing"
	"github.com/luofanlf/hdbPilot-admin/internal/module/listpage"
)

// Resource names the users view in workspaces and the audit log.
const Resource = "users"

var messages = listing.Messages{
	UpdateOK:       "User updated successfully.",
	UpdateFail:     "Failed to update user.",
	DeleteOK:       "User deleted successfully.",
	DeleteFail:     "Failed to delete user.",
	DeleteManyOK:   "Users deleted successfully.",
	DeleteManyFail: "Failed to delete users.",
}

// Backend is the user API the module needs.
type Backend interface {
	listing.Source[domain.User]
	listing.Mutator[domain.User, int64]
}

// UserModule implements the app.Module interface for backend users.
type UserModule struct {
	list        *listpage.Handler[domain.User, int64]
	pageHandler *UserPageHandler
}

// NewModule creates the users module over b.
// Panics if b is nil.
func NewModule(b Backend, opts listpage.Options) *UserModule {
	if b == nil {
		panic("user.NewModule: backend must not be nil")
	}
	list := listpage.New(listpage.Config[domain.User, int64]{
		Resource: Resource,
		Page:     "user/list.html",
		Base:     "/users",
		Criteria: []string{"keyword"},
		ParseID:  listpage.ParseInt64ID,
		NewView: func() *listing.View[domain.User, int64] {
			return listing.NewView[domain.User, int64](b, b, opts.ViewConfig(Resource, messages))
		},
		Workspace: opts.Workspace,
	})
	return &UserModule{list: list, pageHandler: NewUserPageHandler(list)}
}

// RegisterRoutes registers user API and page routes.
func (m *UserModule) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) {
	g := m.list.Register(api, pages)
	g.GET("/:id/edit", m.pageHandler.EditPage)
	g.PUT("/:id", m.pageHandler.UpdateHTMX)
}
