package credential

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultCookieName = "admin_session"

// Carrier owns the session cookie. Handlers and the session gate go
// through it for every read, issue, and clear, so cookie policy lives in
// exactly one place.
type Carrier struct {
	name    string
	domain  string
	secure  bool
	idleTTL time.Duration
}

// New constructs a Carrier. idleTTL aligns the cookie's Max-Age with the
// session's sliding expiry.
func New(name, domain string, secure bool, idleTTL time.Duration) *Carrier {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultCookieName
	}
	return &Carrier{
		name:    name,
		domain:  domain,
		secure:  secure,
		idleTTL: idleTTL,
	}
}

// Name returns the cookie name.
func (c *Carrier) Name() string {
	return c.name
}

// Read extracts the session token from the request, if present.
func (c *Carrier) Read(ctx *gin.Context) (string, bool) {
	value, err := ctx.Cookie(c.name)
	if err != nil || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

// Issue sets the credential cookie. HTTP-only and SameSite=Strict always;
// Secure follows deployment config so local development stays usable.
func (c *Carrier) Issue(ctx *gin.Context, token string) {
	http.SetCookie(ctx.Writer, &http.Cookie{
		Name:     c.name,
		Value:    token,
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   int(c.idleTTL / time.Second),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Clear empties the credential cookie so a dead token is not retried.
func (c *Carrier) Clear(ctx *gin.Context) {
	http.SetCookie(ctx.Writer, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}
