package session

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/pkg"
)

// LoginPath is where unauthenticated browsers are sent.
const LoginPath = "/login"

// RequireSignedIn stops requests without a signed-in user.
//   - htmx: HX-Redirect to /login?return=...
//   - HTML: 303 redirect to /login?return=...
//   - API: 401 JSON envelope
func RequireSignedIn() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); ok {
			c.Next()
			return
		}

		target := LoginPath + "?return=" + url.QueryEscape(c.Request.URL.RequestURI())
		switch {
		case c.GetHeader("HX-Request") == "true":
			c.Header("HX-Redirect", target)
			c.AbortWithStatus(http.StatusUnauthorized)
		case wantsHTML(c.Request):
			c.Redirect(http.StatusSeeOther, target)
			c.Abort()
		default:
			pkg.Error(c, domain.ErrUnauthorized)
			c.Abort()
		}
	}
}

// SafeReturn returns ret when it is a same-origin absolute path and
// fallback otherwise.
func SafeReturn(ret, fallback string) string {
	if ret == "" || !strings.HasPrefix(ret, "/") || strings.HasPrefix(ret, "//") || strings.HasPrefix(ret, "/\\") {
		return fallback
	}
	u, err := url.Parse(ret)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	if u.Path == LoginPath {
		return fallback
	}
	return ret
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
