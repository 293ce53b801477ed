package dashboard

import (
	"github.com/gin-gonic/gin"

	"github.com/luofanlf/hdbPilot-admin/internal/session"
)

// DashboardModule implements the app.Module interface for the overview.
type DashboardModule struct {
	handler *DashboardHandler
}

// NewModule creates the dashboard module over b.
// Panics if b is nil.
func NewModule(b Backend) *DashboardModule {
	if b == nil {
		panic("dashboard.NewModule: backend must not be nil")
	}
	return &DashboardModule{handler: NewHandler(NewService(b))}
}

// RegisterRoutes registers dashboard API and page routes.
func (m *DashboardModule) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) {
	api.GET("/dashboard", session.RequireSignedIn(), m.handler.API)
	pages.GET("/dashboard", session.RequireSignedIn(), m.handler.Page)
}
