package session

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/luofanlf/hdbPilot-admin/internal/backend"
)

// rotatingWriter persists backend cookie rotations into the session just
// before the response header goes out.
type rotatingWriter struct {
	gin.ResponseWriter
	flush func()
}

func (w *rotatingWriter) WriteHeaderNow() {
	w.flush()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *rotatingWriter) Write(b []byte) (int, error) {
	w.flush()
	return w.ResponseWriter.Write(b)
}

func (w *rotatingWriter) WriteString(s string) (int, error) {
	w.flush()
	return w.ResponseWriter.WriteString(s)
}

func (w *rotatingWriter) Flush() {
	w.flush()
	w.ResponseWriter.Flush()
}

// trackRotation records backend Set-Cookie headers for the request and
// saves them into a signed-in session before the response is written. The
// returned flush covers responses that never wrote through c.Writer.
func (s *Store) trackRotation(c *gin.Context, st *state) (flush func()) {
	jar := &backend.CookieJar{}
	c.Request = c.Request.WithContext(backend.WithCookieJar(c.Request.Context(), jar))

	inner := c.Writer
	flush = func() {
		if !inner.Written() {
			s.persistRotation(c, st, jar)
		}
	}
	c.Writer = &rotatingWriter{ResponseWriter: inner, flush: flush}
	return flush
}

func (s *Store) persistRotation(c *gin.Context, st *state, jar *backend.CookieJar) {
	set := jar.Take()
	if len(set) == 0 || st.user == nil {
		return
	}
	current := loadCookies(st.sess)
	merged := backend.MergeCookies(current, set)
	if slices.EqualFunc(current, merged, func(a, b *http.Cookie) bool {
		return a.Name == b.Name && a.Value == b.Value
	}) {
		return
	}
	storeCookies(st.sess, merged)
	dropSetCookie(c.Writer.Header(), CookieName)
	s.save(c, st.sess)
}

// dropSetCookie removes Set-Cookie headers for name so that a session saved
// twice in one request is sent once.
func dropSetCookie(h http.Header, name string) {
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, name+"=") {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
}
