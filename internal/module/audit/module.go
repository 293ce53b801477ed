package audit

import (
	"github.com/gin-gonic/gin"

	"github.com/luofanlf/hdbPilot-admin/internal/session"
)

// AuditModule implements the app.Module interface for the mutation log.
type AuditModule struct {
	handler *AuditHandler
}

// NewModule creates the audit module over rec.
// Panics if rec is nil.
func NewModule(rec *Recorder) *AuditModule {
	if rec == nil {
		panic("audit.NewModule: recorder must not be nil")
	}
	return &AuditModule{handler: NewHandler(rec)}
}

// RegisterRoutes registers audit API and page routes.
func (m *AuditModule) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) {
	api.GET("/audit", session.RequireSignedIn(), m.handler.List)
	pages.GET("/audit", session.RequireSignedIn(), m.handler.Page)
}
