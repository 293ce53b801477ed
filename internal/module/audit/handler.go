package audit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/module/listpage"
	"github.com/luofanlf/hdbPilot-admin/internal/pkg"
)

const pageTemplate = "audit/list.html"

var pageDefaults = pkg.PageDefaults{PageSize: 20, MaxPageSize: 100, Sort: "created_at:desc"}

// AuditHandler serves the mutation log.
type AuditHandler struct {
	rec *Recorder
}

// NewHandler creates an AuditHandler.
func NewHandler(rec *Recorder) *AuditHandler {
	return &AuditHandler{rec: rec}
}

// Page renders the log. htmx requests targeting the table get only it.
// GET /audit
func (h *AuditHandler) Page(c *gin.Context) {
	req := pkg.ParsePageRequest(c, pageDefaults)
	data := gin.H{
		"Request": req,
		"Target":  listpage.TableTarget,
	}

	result, err := h.rec.List(c.Request.Context(), req)
	if err != nil {
		data["Error"] = domain.UserMessage(err, "Failed to load the audit log.")
		result = pkg.NewPageResult[domain.AuditEntry](nil, 0, req)
	}
	data["Result"] = result

	listpage.Render(c, http.StatusOK, pageTemplate, data)
}

// List handles GET /api/v1/audit.
func (h *AuditHandler) List(c *gin.Context) {
	result, err := h.rec.List(c.Request.Context(), pkg.ParsePageRequest(c, pageDefaults))
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.List(c, result)
}
