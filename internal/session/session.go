// Package session binds a browser session to a backend session. The
// browser holds one signed cookie carrying the backend cookies, the cached
// current user and the workspace id; view state stays on the server.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"github.com/luofanlf/hdbPilot-admin/internal/backend"
	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/workspace"
)

// CookieName is the browser cookie holding the session.
const CookieName = "hdbpilot_admin"

const (
	backendCookiesKey = "backend_cookies"
	userKey           = "user"
	workspaceKey      = "workspace"

	stateContextKey = "session.state"
)

// Backend is the part of the backend API the session needs.
type Backend interface {
	Current(ctx context.Context) (*domain.SessionUser, error)
	Logout(ctx context.Context) error
}

// Config configures a Store.
type Config struct {
	Secret string
	// MaxAge is the cookie lifetime in seconds. Zero makes it a browser
	// session cookie.
	MaxAge int
	Secure bool
}

// Store loads and saves sessions.
type Store struct {
	cookies    *sessions.CookieStore
	backend    Backend
	workspaces *workspace.Store
	logger     *slog.Logger
}

// NewStore creates a Store. The secret must be at least 32 bytes.
func NewStore(cfg Config, b Backend, ws *workspace.Store, logger *slog.Logger) (*Store, error) {
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("session: secret must be at least 32 bytes, got %d", len(cfg.Secret))
	}
	if b == nil {
		return nil, errors.New("session: backend is required")
	}
	if ws == nil {
		return nil, errors.New("session: workspace store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cs := sessions.NewCookieStore([]byte(cfg.Secret))
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if cfg.Secure {
		cs.Options.SameSite = http.SameSiteStrictMode
	}
	cs.MaxAge(cfg.MaxAge)

	return &Store{cookies: cs, backend: b, workspaces: ws, logger: logger}, nil
}

// state is the per-request view of the session.
type state struct {
	sess      *sessions.Session
	user      *domain.SessionUser
	workspace *workspace.Workspace
}

// Init loads the session and attaches the backend cookies to the request
// context. When a backend session exists but no user is cached, the
// current user is fetched once and cached. Cookies the backend rotates
// during the request are saved into the session.
func (s *Store) Init() gin.HandlerFunc {
	return func(c *gin.Context) {
		st := &state{}
		flush := s.trackRotation(c, st)

		sess, err := s.cookies.Get(c.Request, CookieName)
		ctx := c.Request.Context()
		if err != nil {
			var scErr securecookie.Error
			if errors.As(err, &scErr) && scErr.IsDecode() {
				s.logger.WarnContext(ctx, "discarding unreadable session cookie", slog.Any("error", err))
			} else {
				s.logger.WarnContext(ctx, "session load failed", slog.Any("error", err))
			}
			sess = sessions.NewSession(s.cookies, CookieName)
			opts := *s.cookies.Options
			sess.Options = &opts
			sess.IsNew = true
		}

		st.sess = sess
		cookies := loadCookies(sess)
		if len(cookies) > 0 {
			ctx = backend.WithCookies(ctx, cookies)
			c.Request = c.Request.WithContext(ctx)

			dirty := false
			st.user = loadUser(sess)
			if st.user == nil {
				dirty = s.fetchUser(ctx, st)
			}
			if st.user != nil && s.attachWorkspace(st) {
				dirty = true
			}
			if dirty {
				s.save(c, sess)
			}
		}

		if st.user != nil {
			c.Request = c.Request.WithContext(WithUser(c.Request.Context(), st.user))
		}
		c.Set(stateContextKey, st)
		c.Next()
		flush()
	}
}

// fetchUser caches the current user and reports whether the session changed.
func (s *Store) fetchUser(ctx context.Context, st *state) bool {
	user, err := s.backend.Current(ctx)
	switch {
	case err == nil:
		st.user = user
		storeUser(st.sess, user)
		return true
	case domain.IsUnauthorized(err):
		// The backend session ended; forget it.
		s.logger.InfoContext(ctx, "backend session expired")
		clearValues(st.sess)
		return true
	default:
		s.logger.WarnContext(ctx, "current user lookup failed", slog.Any("error", err))
		return false
	}
}

// attachWorkspace binds the session's workspace and reports whether a new
// id had to be stored.
func (s *Store) attachWorkspace(st *state) bool {
	id, _ := st.sess.Values[workspaceKey].(string)
	ws := s.workspaces.Get(id)
	st.workspace = ws
	if ws.ID() == id {
		return false
	}
	st.sess.Values[workspaceKey] = ws.ID()
	return true
}

// Refresh replaces the backend session after an explicit login: it stores
// cookies, fetches and caches the current user and starts a new workspace.
func (s *Store) Refresh(c *gin.Context, cookies []*http.Cookie) (*domain.SessionUser, error) {
	st := s.state(c)

	ctx := backend.WithCookies(c.Request.Context(), cookies)
	user, err := s.backend.Current(ctx)
	if err != nil {
		return nil, err
	}

	if old, ok := st.sess.Values[workspaceKey].(string); ok {
		s.workspaces.Drop(old)
	}
	clearValues(st.sess)
	storeCookies(st.sess, cookies)
	storeUser(st.sess, user)
	ws := s.workspaces.Get(workspace.NewID())
	st.sess.Values[workspaceKey] = ws.ID()

	if err := st.sess.Save(c.Request, c.Writer); err != nil {
		return nil, domain.NewAppError(domain.CodeInternal, "save session", err)
	}

	st.user = user
	st.workspace = ws
	c.Request = c.Request.WithContext(WithUser(ctx, user))
	return user, nil
}

// Teardown logs out of the backend and, once the backend confirms, clears
// the session and drops its workspace. A refused logout leaves the session
// untouched.
func (s *Store) Teardown(c *gin.Context) error {
	st := s.state(c)
	if err := s.backend.Logout(c.Request.Context()); err != nil {
		return err
	}

	if id, ok := st.sess.Values[workspaceKey].(string); ok {
		s.workspaces.Drop(id)
	}
	clearValues(st.sess)
	st.sess.Options.MaxAge = -1
	if err := st.sess.Save(c.Request, c.Writer); err != nil {
		return domain.NewAppError(domain.CodeInternal, "save session", err)
	}

	st.user = nil
	st.workspace = nil
	c.Request = c.Request.WithContext(backend.WithCookies(c.Request.Context(), nil))
	return nil
}

// CurrentUser returns the signed-in user loaded by Init.
func CurrentUser(c *gin.Context) (*domain.SessionUser, bool) {
	st, ok := stateFrom(c)
	if !ok || st.user == nil {
		return nil, false
	}
	return st.user, true
}

// Workspace returns the signed-in session's workspace, or nil.
func Workspace(c *gin.Context) *workspace.Workspace {
	st, ok := stateFrom(c)
	if !ok {
		return nil
	}
	return st.workspace
}

type userContextKey struct{}

// WithUser returns ctx carrying the signed-in user u.
func WithUser(ctx context.Context, u *domain.SessionUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// UserFrom returns the signed-in user carried by a request context.
func UserFrom(ctx context.Context) (*domain.SessionUser, bool) {
	u, ok := ctx.Value(userContextKey{}).(*domain.SessionUser)
	return u, ok && u != nil
}

func (s *Store) state(c *gin.Context) *state {
	if st, ok := stateFrom(c); ok {
		return st
	}
	sess, err := s.cookies.Get(c.Request, CookieName)
	if err != nil {
		sess = sessions.NewSession(s.cookies, CookieName)
		opts := *s.cookies.Options
		sess.Options = &opts
	}
	st := &state{sess: sess}
	c.Set(stateContextKey, st)
	return st
}

func stateFrom(c *gin.Context) (*state, bool) {
	v, ok := c.Get(stateContextKey)
	if !ok {
		return nil, false
	}
	st, ok := v.(*state)
	return st, ok
}

func (s *Store) save(c *gin.Context, sess *sessions.Session) {
	if err := sess.Save(c.Request, c.Writer); err != nil {
		s.logger.ErrorContext(c.Request.Context(), "session save failed", slog.Any("error", err))
	}
}

// storedCookie is the persisted form of a backend cookie.
type storedCookie struct {
	Name  string `json:"n"`
	Value string `json:"v"`
}

func loadCookies(sess *sessions.Session) []*http.Cookie {
	raw, ok := sess.Values[backendCookiesKey].(string)
	if !ok || raw == "" {
		return nil
	}
	var stored []storedCookie
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil
	}
	out := make([]*http.Cookie, 0, len(stored))
	for _, sc := range stored {
		out = append(out, &http.Cookie{Name: sc.Name, Value: sc.Value})
	}
	return out
}

func storeCookies(sess *sessions.Session, cookies []*http.Cookie) {
	stored := make([]storedCookie, 0, len(cookies))
	for _, ck := range cookies {
		if ck == nil || ck.Name == "" || ck.MaxAge < 0 {
			continue
		}
		stored = append(stored, storedCookie{Name: ck.Name, Value: ck.Value})
	}
	b, _ := json.Marshal(stored)
	sess.Values[backendCookiesKey] = string(b)
}

func loadUser(sess *sessions.Session) *domain.SessionUser {
	raw, ok := sess.Values[userKey].(string)
	if !ok || raw == "" {
		return nil
	}
	var u domain.SessionUser
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil
	}
	return &u
}

func storeUser(sess *sessions.Session, u *domain.SessionUser) {
	b, _ := json.Marshal(u)
	sess.Values[userKey] = string(b)
}

func clearValues(sess *sessions.Session) {
	for k := range sess.Values {
		delete(sess.Values, k)
	}
}
