package user

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/module/listpage"
	"github.com/luofanlf/hdbPilot-admin/internal/pkg"
)

const formTemplate = "user/form.html"

// UserPageHandler handles the edit form of the users view.
type UserPageHandler struct {
	list *listpage.Handler[domain.User, int64]
}

// NewUserPageHandler creates a UserPageHandler over list.
func NewUserPageHandler(list *listpage.Handler[domain.User, int64]) *UserPageHandler {
	return &UserPageHandler{list: list}
}

// EditPage renders the edit form for a user on the current page.
// GET /users/:id/edit
func (h *UserPageHandler) EditPage(c *gin.Context) {
	user, ok := h.find(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, formTemplate, listpage.Data(c, gin.H{
		"Item": user,
		"Form": UpdateUserRequest{Nickname: user.Nickname, Email: user.Email},
	}))
}

// UpdateHTMX saves the edit form.
// PUT /users/:id
func (h *UserPageHandler) UpdateHTMX(c *gin.Context) {
	user, ok := h.find(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBind(&req); err != nil {
		slog.DebugContext(c.Request.Context(), "update user: bind error", "error", err, "id", user.ID)
		c.HTML(http.StatusOK, formTemplate, listpage.Data(c, gin.H{
			"Item":   user,
			"Form":   req,
			"Error":  "Please check the highlighted fields.",
			"Errors": pkg.FieldErrors(err, &req),
		}))
		return
	}

	user.Nickname = req.Nickname
	user.Email = req.Email

	v := h.list.View(c)
	n, _ := v.Mutations.Update(c.Request.Context(), user)
	h.list.Respond(c, v, n)
}

// find resolves the :id parameter to a user on the current page.
func (h *UserPageHandler) find(c *gin.Context) (domain.User, bool) {
	id, err := listpage.ParseInt64ID(c.Param("id"))
	if err != nil {
		pkg.ToastOnly(c, http.StatusOK, "Invalid user id.", pkg.ToastError)
		return domain.User{}, false
	}
	user, ok := h.list.View(c).Find(id)
	if !ok {
		pkg.ToastOnly(c, http.StatusOK, "User not found on this page. Please reload.", pkg.ToastError)
		return domain.User{}, false
	}
	return user, true
}
