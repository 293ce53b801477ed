package auth

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/module/listpage"
	"github.com/luofanlf/hdbPilot-admin/internal/pkg"
	"github.com/luofanlf/hdbPilot-admin/internal/session"
)

const (
	loginTemplate  = "auth/login.html"
	signupTemplate = "auth/signup.html"
	formBlock      = "form"

	// HomePath is where a successful sign-in lands without a return path.
	HomePath = "/dashboard"

	registeredFlash = "Registration successful. Please sign in."
)

// Sessions binds backend sessions to the browser.
type Sessions interface {
	Refresh(c *gin.Context, cookies []*http.Cookie) (*domain.SessionUser, error)
	Teardown(c *gin.Context) error
}

// AuthHandler serves the sign-in, sign-up and sign-out pages.
type AuthHandler struct {
	svc      Service
	sessions Sessions
}

// NewHandler creates a new AuthHandler.
func NewHandler(svc Service, sessions Sessions) *AuthHandler {
	return &AuthHandler{svc: svc, sessions: sessions}
}

// LoginPage renders the sign-in form. Signed-in users go straight on.
// GET /login
func (h *AuthHandler) LoginPage(c *gin.Context) {
	ret := session.SafeReturn(c.Query("return"), HomePath)
	if _, ok := session.CurrentUser(c); ok {
		c.Redirect(http.StatusSeeOther, ret)
		return
	}
	data := gin.H{"Form": LoginRequest{Return: c.Query("return")}}
	if c.Query("registered") != "" {
		data["Flash"] = registeredFlash
	}
	c.HTML(http.StatusOK, loginTemplate, listpage.Data(c, data))
}

// Login signs in and replaces the browser session.
// POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.renderForm(c, loginTemplate, gin.H{
			"Form":   req,
			"Error":  "Please enter your username and password.",
			"Errors": pkg.FieldErrors(err, &req),
		})
		return
	}

	cookies, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err == nil {
		_, err = h.sessions.Refresh(c, cookies)
	}
	if err != nil {
		req.Password = ""
		h.renderForm(c, loginTemplate, gin.H{
			"Form":  req,
			"Error": domain.UserMessage(err, "Login failed. Please try again."),
		})
		return
	}

	redirect(c, session.SafeReturn(req.Return, HomePath))
}

// SignupPage renders the sign-up form.
// GET /signup
func (h *AuthHandler) SignupPage(c *gin.Context) {
	c.HTML(http.StatusOK, signupTemplate, listpage.Data(c, gin.H{"Form": RegisterRequest{}}))
}

// Signup registers an account and sends the user to sign in.
// POST /signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		h.renderForm(c, signupTemplate, gin.H{
			"Form":   RegisterRequest{Username: req.Username},
			"Error":  "Please check the highlighted fields.",
			"Errors": pkg.FieldErrors(err, &req),
		})
		return
	}

	if err := h.svc.Register(c.Request.Context(), req.Username, req.Password, req.ConfirmPassword); err != nil {
		h.renderForm(c, signupTemplate, gin.H{
			"Form":  RegisterRequest{Username: req.Username},
			"Error": domain.UserMessage(err, "Registration failed. Please try again."),
		})
		return
	}

	redirect(c, session.LoginPath+"?"+url.Values{"registered": {"1"}}.Encode())
}

// Logout ends the backend session. A refused logout keeps the user signed
// in and says so.
// POST /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.Teardown(c); err != nil {
		pkg.ToastOnly(c, http.StatusOK, domain.UserMessage(err, "Logout failed"), pkg.ToastError)
		return
	}
	redirect(c, session.LoginPath)
}

// Me returns the signed-in user.
// GET /api/v1/me
func (h *AuthHandler) Me(c *gin.Context) {
	u, ok := session.CurrentUser(c)
	if !ok {
		pkg.Error(c, domain.ErrUnauthorized)
		return
	}
	pkg.Success(c, u)
}

// renderForm re-renders a form. htmx requests get only the form block.
func (h *AuthHandler) renderForm(c *gin.Context, page string, data gin.H) {
	if pkg.IsHTMX(c) {
		c.HTML(http.StatusOK, listpage.Fragment(page, formBlock), listpage.Data(c, data))
		return
	}
	c.HTML(http.StatusOK, page, listpage.Data(c, data))
}

func redirect(c *gin.Context, target string) {
	if pkg.IsHTMX(c) {
		pkg.HXRedirect(c, target)
		c.Status(http.StatusOK)
		return
	}
	c.Redirect(http.StatusSeeOther, target)
}
