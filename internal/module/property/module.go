package property

import (
	"github.com/gin-gonic/gin"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/listing"
	"github.com/luofanlf/hdbPilot-admin/internal/module/listpage"
)

// Resource names the listings view in workspaces and the audit log.
const Resource = "properties"

var messages = listing.Messages{
	UpdateOK:       "Listing updated successfully",
	UpdateFail:     "Failed to update listing",
	DeleteOK:       "Delete successful",
	DeleteFail:     "Delete failed",
	DeleteManyOK:   "Batch delete successful",
	DeleteManyFail: "Batch delete failed",
}

// Backend is the property API the module needs.
type Backend interface {
	listing.Source[domain.Property]
	listing.Mutator[domain.Property, int64]
}

// PropertyModule implements the app.Module interface for resale listings.
type PropertyModule struct {
	list        *listpage.Handler[domain.Property, int64]
	pageHandler *PropertyPageHandler
}

// NewModule creates the listings module over b.
// Panics if b is nil.
func NewModule(b Backend, opts listpage.Options) *PropertyModule {
	if b == nil {
		panic("property.NewModule: backend must not be nil")
	}
	list := listpage.New(listpage.Config[domain.Property, int64]{
		Resource: Resource,
		Page:     "property/list.html",
		Base:     "/properties",
		Criteria: []string{"listingTitle", "town"},
		ParseID:  listpage.ParseInt64ID,
		NewView: func() *listing.View[domain.Property, int64] {
			return listing.NewView[domain.Property, int64](b, b, opts.ViewConfig(Resource, messages))
		},
		Extra: gin.H{
			"Towns":    domain.HDBTowns,
			"Statuses": domain.PropertyStatuses,
		},
		Workspace: opts.Workspace,
	})
	return &PropertyModule{list: list, pageHandler: NewPropertyPageHandler(list)}
}

// RegisterRoutes registers listing API and page routes.
func (m *PropertyModule) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) {
	g := m.list.Register(api, pages)
	g.GET("/:id/edit", m.pageHandler.EditPage)
	g.PUT("/:id", m.pageHandler.UpdateHTMX)
}
