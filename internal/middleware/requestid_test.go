package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/simp-lee/logger"

	"github.com/luofanlf/hdbPilot-admin/internal/backend"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRequestIDRouter(cfg RequestIDConfig) *gin.Engine {
	r := gin.New()
	r.Use(RequestIDWithConfig(cfg))
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})
	r.GET("/ctx", func(c *gin.Context) {
		ctx := c.Request.Context()
		c.String(http.StatusOK, findAttrValue(logger.FromContext(ctx), "request_id")+"|"+backend.RequestIDFrom(ctx))
	})
	return r
}

func findAttrValue(attrs []slog.Attr, key string) string {
	for _, a := range attrs {
		if a.Key == key {
			return a.Value.String()
		}
	}
	return ""
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID_GeneratesID(t *testing.T) {
	w := serve(setupRequestIDRouter(RequestIDConfig{}), httptest.NewRequest(http.MethodGet, "/test", nil))

	id := w.Body.String()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("request ID %q is not a UUID: %v", id, err)
	}
	if got := w.Header().Get(requestIDHeader); got != id {
		t.Errorf("response header = %q; want %q", got, id)
	}
}

func TestRequestID_UpstreamHeader(t *testing.T) {
	tests := []struct {
		name     string
		trust    bool
		upstream string
		reused   bool
	}{
		{"trusted valid", true, "upstream-id-123", true},
		{"trusted boundary 64", true, strings.Repeat("a", 64), true},
		{"trusted too long", true, strings.Repeat("a", 65), false},
		{"trusted bad charset", true, "bad_id", false},
		{"untrusted", false, "upstream-id-123", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set(requestIDHeader, tt.upstream)
			w := serve(setupRequestIDRouter(RequestIDConfig{TrustUpstream: tt.trust}), req)

			got := w.Body.String()
			if tt.reused && got != tt.upstream {
				t.Errorf("request ID = %q; want upstream %q", got, tt.upstream)
			}
			if _, err := uuid.Parse(got); !tt.reused && (got == tt.upstream || err != nil) {
				t.Errorf("request ID = %q; want a freshly generated id", got)
			}
		})
	}
}

func TestRequestID_PropagatesToLoggerAndBackend(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ctx", nil)
	req.Header.Set(requestIDHeader, "ctx-test-456")

	w := serve(setupRequestIDRouter(RequestIDConfig{TrustUpstream: true}), req)

	if got := w.Body.String(); got != "ctx-test-456|ctx-test-456" {
		t.Errorf("context ids = %q; want both set to ctx-test-456", got)
	}
}

func TestRequestID_UniquePerRequest(t *testing.T) {
	r := setupRequestIDRouter(RequestIDConfig{})
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := serve(r, httptest.NewRequest(http.MethodGet, "/test", nil)).Body.String()
		if ids[id] {
			t.Fatalf("duplicate request ID generated: %q", id)
		}
		ids[id] = true
	}
}

func TestGetRequestID_Empty(t *testing.T) {
	r := gin.New()
	r.GET("/no-id", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	if got := serve(r, httptest.NewRequest(http.MethodGet, "/no-id", nil)).Body.String(); got != "" {
		t.Errorf("expected empty request ID, got %q", got)
	}
}
