package property

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/module/listpage"
	"github.com/luofanlf/hdbPilot-admin/internal/pkg"
)

const formTemplate = "property/form.html"

// PropertyPageHandler handles the edit form of the listings view.
type PropertyPageHandler struct {
	list *listpage.Handler[domain.Property, int64]
}

// NewPropertyPageHandler creates a PropertyPageHandler over list.
func NewPropertyPageHandler(list *listpage.Handler[domain.Property, int64]) *PropertyPageHandler {
	return &PropertyPageHandler{list: list}
}

// EditPage renders the edit form for a listing on the current page.
// GET /properties/:id/edit
func (h *PropertyPageHandler) EditPage(c *gin.Context) {
	prop, ok := h.find(c)
	if !ok {
		return
	}
	h.renderForm(c, prop, formOf(prop), nil)
}

// UpdateHTMX saves the edit form.
// PUT /properties/:id
func (h *PropertyPageHandler) UpdateHTMX(c *gin.Context) {
	prop, ok := h.find(c)
	if !ok {
		return
	}

	var req UpdatePropertyRequest
	err := c.ShouldBind(&req)
	errs := pkg.FieldErrors(err, &req)
	if err != nil && errs == nil {
		errs = map[string]string{}
	}
	if req.Town != "" && !slices.Contains(domain.HDBTowns, req.Town) {
		if errs == nil {
			errs = map[string]string{}
		}
		errs["town"] = "Must be one of the listed towns"
	}
	if errs != nil {
		slog.DebugContext(c.Request.Context(), "update property: invalid form", "error", err, "id", prop.ID)
		h.renderForm(c, prop, req, errs)
		return
	}

	prop.ListingTitle = strings.TrimSpace(req.ListingTitle)
	prop.Town = req.Town
	prop.Block = strings.TrimSpace(req.Block)
	prop.StreetName = strings.TrimSpace(req.StreetName)
	prop.PostalCode = req.PostalCode
	prop.BedroomNumber = req.BedroomNumber
	prop.BathroomNumber = req.BathroomNumber
	prop.ResalePrice = req.ResalePrice
	prop.Status = req.Status

	v := h.list.View(c)
	n, _ := v.Mutations.Update(c.Request.Context(), prop)
	h.list.Respond(c, v, n)
}

func (h *PropertyPageHandler) renderForm(c *gin.Context, prop domain.Property, form UpdatePropertyRequest, errs map[string]string) {
	data := gin.H{
		"Item":     prop,
		"Form":     form,
		"Towns":    domain.HDBTowns,
		"Statuses": domain.PropertyStatuses,
	}
	if errs != nil {
		data["Error"] = "Please check the highlighted fields."
		data["Errors"] = errs
	}
	c.HTML(http.StatusOK, formTemplate, listpage.Data(c, data))
}

// find resolves the :id parameter to a listing on the current page.
func (h *PropertyPageHandler) find(c *gin.Context) (domain.Property, bool) {
	id, err := listpage.ParseInt64ID(c.Param("id"))
	if err != nil {
		pkg.ToastOnly(c, http.StatusOK, "Invalid listing id.", pkg.ToastError)
		return domain.Property{}, false
	}
	prop, ok := h.list.View(c).Find(id)
	if !ok {
		pkg.ToastOnly(c, http.StatusOK, "Listing not found on this page. Please reload.", pkg.ToastError)
		return domain.Property{}, false
	}
	return prop, true
}

func formOf(p domain.Property) UpdatePropertyRequest {
	return UpdatePropertyRequest{
		ListingTitle:   p.ListingTitle,
		Town:           p.Town,
		Block:          p.Block,
		StreetName:     p.StreetName,
		PostalCode:     p.PostalCode,
		BedroomNumber:  p.BedroomNumber,
		BathroomNumber: p.BathroomNumber,
		ResalePrice:    p.ResalePrice,
		Status:         p.Status,
	}
}
