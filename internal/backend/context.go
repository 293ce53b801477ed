package backend

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"
)

type ctxKey int

const (
	cookiesKey ctxKey = iota
	requestIDKey
	jarKey
)

// WithCookies returns a context whose backend calls carry cookies.
func WithCookies(ctx context.Context, cookies []*http.Cookie) context.Context {
	return context.WithValue(ctx, cookiesKey, cookies)
}

// CookiesFrom returns the cookies attached by WithCookies.
func CookiesFrom(ctx context.Context) []*http.Cookie {
	cookies, _ := ctx.Value(cookiesKey).([]*http.Cookie)
	return cookies
}

// WithRequestID returns a context whose backend calls forward id as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFrom returns the id attached by WithRequestID.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// CookieJar collects the cookies backend responses set during one request,
// so that a rotated backend session can be persisted.
type CookieJar struct {
	mu  sync.Mutex
	set []*http.Cookie
}

// WithCookieJar returns a context whose backend calls record Set-Cookie
// headers into jar. Later calls on the same context send the updated
// cookies.
func WithCookieJar(ctx context.Context, jar *CookieJar) context.Context {
	return context.WithValue(ctx, jarKey, jar)
}

func jarFrom(ctx context.Context) *CookieJar {
	jar, _ := ctx.Value(jarKey).(*CookieJar)
	return jar
}

func (j *CookieJar) add(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.set = append(j.set, cookies...)
}

func (j *CookieJar) pending() []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.set)
}

// Take returns the collected cookies and empties the jar.
func (j *CookieJar) Take() []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	set := j.set
	j.set = nil
	return set
}

// MergeCookies applies set to base by name: expired cookies are removed,
// others replace or join the base ones. base is not modified.
func MergeCookies(base, set []*http.Cookie) []*http.Cookie {
	out := slices.Clone(base)
	now := time.Now()
	for _, ck := range set {
		if ck == nil || ck.Name == "" {
			continue
		}
		i := slices.IndexFunc(out, func(o *http.Cookie) bool { return o.Name == ck.Name })
		expired := ck.MaxAge < 0 || (!ck.Expires.IsZero() && ck.Expires.Before(now))
		switch {
		case expired && i >= 0:
			out = slices.Delete(out, i, i+1)
		case expired:
		case i >= 0:
			out[i] = &http.Cookie{Name: ck.Name, Value: ck.Value}
		default:
			out = append(out, &http.Cookie{Name: ck.Name, Value: ck.Value})
		}
	}
	return out
}
