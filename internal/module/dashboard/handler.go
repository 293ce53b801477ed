package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/module/listpage"
	"github.com/luofanlf/hdbPilot-admin/internal/pkg"
)

const pageTemplate = "dashboard/index.html"

// DashboardHandler serves the dashboard page and its JSON form.
type DashboardHandler struct {
	svc *Service
}

// NewHandler creates a DashboardHandler.
func NewHandler(svc *Service) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// Page renders the dashboard. htmx year changes get only the charts block.
// GET /dashboard?year=
func (h *DashboardHandler) Page(c *gin.Context) {
	name := pageTemplate
	if pkg.IsHTMX(c) && c.GetHeader("HX-Target") == "charts" {
		name = listpage.Fragment(pageTemplate, "charts")
	}

	year, err := h.svc.ParseYear(c.Query("year"))
	if err != nil {
		c.HTML(http.StatusOK, name, listpage.Data(c, gin.H{
			"Error": domain.UserMessage(err, "Invalid year."),
		}))
		return
	}

	o := h.svc.Load(c.Request.Context(), year)
	c.HTML(http.StatusOK, name, listpage.Data(c, gin.H{
		"Overview": o,
		"Years":    yearChoices(h.svc.now().Year()),
	}))
}

// OverviewResponse is the JSON form of an Overview.
type OverviewResponse struct {
	Year        int               `json:"year"`
	Stats       domain.Stats      `json:"stats,omitempty"`
	StatsError  string            `json:"statsError,omitempty"`
	Charts      *domain.ChartData `json:"charts,omitempty"`
	ChartsError string            `json:"chartsError,omitempty"`
}

// API returns the dashboard as JSON.
// GET /api/v1/dashboard?year=
func (h *DashboardHandler) API(c *gin.Context) {
	year, err := h.svc.ParseYear(c.Query("year"))
	if err != nil {
		pkg.Error(c, err)
		return
	}
	o := h.svc.Load(c.Request.Context(), year)
	pkg.Success(c, OverviewResponse{
		Year:        o.Year,
		Stats:       o.Stats,
		StatsError:  o.StatsError(),
		Charts:      o.Charts,
		ChartsError: o.ChartsError(),
	})
}

// yearChoices lists the current year and the four before it.
func yearChoices(current int) []int {
	out := make([]int, 0, 5)
	for y := current; y > current-5; y-- {
		out = append(out, y)
	}
	return out
}
