package middleware

import (
	"net/http"
	"time"
)

// SessionCookie describes the cookie that carries the session token
type SessionCookie struct {
	Name     string
	Domain   string
	Path     string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// DefaultSessionCookie returns the default "sessionid" cookie settings
func DefaultSessionCookie() SessionCookie {
	return SessionCookie{
		Name:     "sessionid",
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   14 * 24 * time.Hour,
	}
}

// Read returns the token carried by the request cookie, or ""
func (c SessionCookie) Read(r *http.Request) string {
	cookie, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Set issues the cookie for token
func (c SessionCookie) Set(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Domain:   c.Domain,
		Path:     c.path(),
		Expires:  expires.UTC(),
		MaxAge:   int(c.MaxAge.Seconds()),
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: c.SameSite,
	})
}

// Clear tells the client to drop the cookie: empty value, Max-Age=0
func (c SessionCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Domain:   c.Domain,
		Path:     c.path(),
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: c.SameSite,
	})
}

func (c SessionCookie) path() string {
	if c.Path == "" {
		return "/"
	}
	return c.Path
}
