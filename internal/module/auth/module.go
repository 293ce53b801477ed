package auth

import "github.com/gin-gonic/gin"

// AuthModule implements the app.Module interface for signing in and out.
type AuthModule struct {
	handler *AuthHandler
	limit   gin.HandlerFunc
}

// NewModule creates a new AuthModule with the given handler. limit guards
// the credential posts; nil disables it.
// Panics if h is nil.
func NewModule(h *AuthHandler, limit gin.HandlerFunc) *AuthModule {
	if h == nil {
		panic("auth.NewModule: handler must not be nil")
	}
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}
	return &AuthModule{handler: h, limit: limit}
}

// RegisterRoutes registers the sign-in pages and the current-user API.
func (m *AuthModule) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) {
	api.GET("/me", m.handler.Me)

	pages.GET("/login", m.handler.LoginPage)
	pages.POST("/login", m.limit, m.handler.Login)
	pages.GET("/signup", m.handler.SignupPage)
	pages.POST("/signup", m.limit, m.handler.Signup)
	pages.POST("/logout", m.handler.Logout)
}
