// Package listpage serves the pages and htmx fragments shared by every
// list view of the console.
package listpage

import (
	"log/slog"
	"maps"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/luofanlf/hdbPilot-admin/internal/listing"
	"github.com/luofanlf/hdbPilot-admin/internal/middleware"
	"github.com/luofanlf/hdbPilot-admin/internal/pkg"
	"github.com/luofanlf/hdbPilot-admin/internal/session"
	"github.com/luofanlf/hdbPilot-admin/internal/workspace"
)

// TableTarget is the element id htmx swaps when only the table changes.
const TableTarget = "list-table"

// TableBlock is the template block rendered for TableTarget swaps.
const TableBlock = "table"

// AuditEnabledKey is the context key telling templates whether to link the
// audit log.
const AuditEnabledKey = "audit_enabled"

// Data returns the values every page template expects, merged with extra.
func Data(c *gin.Context, extra gin.H) gin.H {
	data := gin.H{
		"CSRFToken": middleware.GetCSRFToken(c),
		"Path":      c.Request.URL.Path,
		"Audit":     c.GetBool(AuditEnabledKey),
	}
	if u, ok := session.CurrentUser(c); ok {
		data["User"] = u
	}
	maps.Copy(data, extra)
	return data
}

// Render writes page, or only its table block when htmx targets the table.
func Render(c *gin.Context, status int, page string, extra gin.H) {
	name := page
	if WantsTable(c) {
		name = Fragment(page, TableBlock)
	}
	c.HTML(status, name, Data(c, extra))
}

// Fragment names block inside page for the renderer.
func Fragment(page, block string) string {
	return page + "#" + block
}

// WantsTable reports whether an htmx request targets the list table.
func WantsTable(c *gin.Context) bool {
	return pkg.IsHTMX(c) && c.GetHeader("HX-Target") == TableTarget
}

// Options are the settings every list view of the console shares.
type Options struct {
	PageSize int
	Timeout  time.Duration
	// OnMutation receives every mutation outcome, e.g. the audit recorder.
	OnMutation listing.MutationHook
	Logger     *slog.Logger
	// Workspace overrides session.Workspace, e.g. in tests.
	Workspace func(c *gin.Context) *workspace.Workspace
}

// ViewConfig builds the listing config for the view named name.
func (o Options) ViewConfig(name string, msgs listing.Messages) listing.ViewConfig {
	return listing.ViewConfig{
		Options: listing.Options{
			Name:     name,
			PageSize: o.PageSize,
			Timeout:  o.Timeout,
			Logger:   o.Logger,
		},
		Messages:   msgs,
		OnMutation: o.OnMutation,
	}
}
