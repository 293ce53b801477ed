package pending

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/module/listpage"
	"github.com/luofanlf/hdbPilot-admin/internal/pkg"
)

// Review actions recorded in the audit log.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

const (
	approvedMsg   = "Listing approved"
	rejectedMsg   = "Listing rejected"
	reviewFailMsg = "Failed to review. Please try again."
)

// ReviewHandler approves and rejects pending listings.
type ReviewHandler struct {
	list    *listpage.Handler[domain.Property, int64]
	backend Backend
}

// NewReviewHandler creates a ReviewHandler.
func NewReviewHandler(list *listpage.Handler[domain.Property, int64], b Backend) *ReviewHandler {
	return &ReviewHandler{list: list, backend: b}
}

// Approve handles POST /pending/:id/approve.
func (h *ReviewHandler) Approve(c *gin.Context) { h.reviewOne(c, true) }

// Reject handles POST /pending/:id/reject.
func (h *ReviewHandler) Reject(c *gin.Context) { h.reviewOne(c, false) }

// ApproveSelected handles POST /pending/approve-selected.
func (h *ReviewHandler) ApproveSelected(c *gin.Context) { h.reviewSelected(c, true) }

// RejectSelected handles POST /pending/reject-selected.
func (h *ReviewHandler) RejectSelected(c *gin.Context) { h.reviewSelected(c, false) }

func (h *ReviewHandler) reviewOne(c *gin.Context, approved bool) {
	id, err := listpage.ParseInt64ID(c.Param("id"))
	if err != nil {
		pkg.ToastOnly(c, http.StatusOK, "Invalid listing id.", pkg.ToastError)
		return
	}
	action, okMsg := outcome(approved)

	v := h.list.View(c)
	n, _ := v.Mutations.Do(c.Request.Context(), action, []int64{id}, func(ctx context.Context) error {
		return h.backend.Review(ctx, id, approved)
	}, okMsg, reviewFailMsg)
	h.list.Respond(c, v, n)
}

// reviewSelected sends one review per selected listing; the backend has
// no bulk endpoint.
func (h *ReviewHandler) reviewSelected(c *gin.Context, approved bool) {
	action, okMsg := outcome(approved)

	v := h.list.View(c)
	n, _ := v.Mutations.DoEach(c.Request.Context(), action, v.SelectedIDs(), func(ctx context.Context, id int64) error {
		return h.backend.Review(ctx, id, approved)
	}, okMsg, reviewFailMsg)
	h.list.Respond(c, v, n)
}

func outcome(approved bool) (action, msg string) {
	if approved {
		return ActionApprove, approvedMsg
	}
	return ActionReject, rejectedMsg
}
