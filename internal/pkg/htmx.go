package pkg

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
)

// Toast types understood by the page script.
const (
	ToastSuccess = "success"
	ToastError   = "error"
)

// IsHTMX reports whether the request was issued by htmx.
func IsHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

// AcceptsHTML reports whether the client asked for an HTML response.
func AcceptsHTML(c *gin.Context) bool {
	return strings.Contains(strings.ToLower(c.GetHeader("Accept")), "text/html")
}

// Toast sets the HX-Trigger header to raise a showToast event.
func Toast(c *gin.Context, message, toastType string) {
	trigger, _ := json.Marshal(map[string]any{
		"showToast": map[string]string{
			"message": message,
			"type":    toastType,
		},
	})
	c.Header("HX-Trigger", string(trigger))
}

// ToastOnly raises a toast and tells htmx to leave the page as it is. It
// writes the response header, so nothing may be written after it.
func ToastOnly(c *gin.Context, status int, message, toastType string) {
	Toast(c, message, toastType)
	c.Header("HX-Reswap", "none")
	c.Status(status)
	c.Writer.WriteHeaderNow()
}

// HXRedirect makes htmx navigate the whole page to url.
func HXRedirect(c *gin.Context, url string) {
	c.Header("HX-Redirect", url)
}
