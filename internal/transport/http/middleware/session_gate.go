package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/odysseycup/admin-gate/internal/core/domain"
	"github.com/odysseycup/admin-gate/internal/transport/http/credential"
	"github.com/odysseycup/admin-gate/internal/usecase"
)

const (
	// IdentityKey is the context key for the authenticated identity.
	IdentityKey = "identity"
	// SessionIDKey is the context key for the current session token.
	SessionIDKey = "session_id"

	loginPath = "/login"
	adminPath = "/admin"
)

// SessionGate is the single enforcement point for the protected area. Every
// request is classified per call: no token, invalid token, authenticated
// but unauthorized, or allowed. The gate holds no state of its own; the
// verdict comes entirely from the session store and the allow-list.
type SessionGate struct {
	sessions   *usecase.SessionService
	authorized domain.AllowList
	carrier    *credential.Carrier
	logger     *zap.Logger
}

// NewSessionGate constructs the gate. An empty authorized list admits
// every authenticated identity.
func NewSessionGate(sessions *usecase.SessionService, authorized domain.AllowList, carrier *credential.Carrier, log *zap.Logger) *SessionGate {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionGate{
		sessions:   sessions,
		authorized: authorized,
		carrier:    carrier,
		logger:     log,
	}
}

// Require denies any request without a usable, authorized session.
// Store failures deny too: the gate fails closed.
func (g *SessionGate) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := g.carrier.Read(c)
		if !ok {
			g.deny(c, false)
			return
		}

		session, err := g.sessions.Validate(c.Request.Context(), token, sessionMeta(c))
		if err != nil {
			// A dead token is cleared so the client stops replaying it. A
			// store outage denies too, but the credential may still be good.
			g.deny(c, errors.Is(err, usecase.ErrSessionInvalid))
			return
		}

		if !g.authorized.Empty() && !g.authorized.Contains(session.Identity) {
			// Authenticated but not authorized. The session itself is
			// still valid, so the credential stays.
			g.deny(c, false)
			return
		}

		c.Set(IdentityKey, session.Identity)
		c.Set(SessionIDKey, session.ID)

		c.Next()
	}
}

// RedirectAuthenticated sends an already-authenticated, authorized caller
// away from the login page instead of showing the form again.
func (g *SessionGate) RedirectAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := g.carrier.Read(c)
		if !ok {
			c.Next()
			return
		}

		session, err := g.sessions.Validate(c.Request.Context(), token, sessionMeta(c))
		if err != nil {
			c.Next()
			return
		}

		if !g.authorized.Empty() && !g.authorized.Contains(session.Identity) {
			c.Next()
			return
		}

		c.Redirect(http.StatusSeeOther, adminPath)
		c.Abort()
	}
}

func (g *SessionGate) deny(c *gin.Context, clearCredential bool) {
	if clearCredential {
		g.carrier.Clear(c)
	}

	c.Header("Cache-Control", "no-store")

	if wantsHTML(c) {
		c.Redirect(http.StatusSeeOther, loginPath)
		c.Abort()
		return
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"ok":    false,
		"error": "unauthenticated",
	})
}

// GetIdentity retrieves the authenticated identity from context.
func GetIdentity(c *gin.Context) (string, bool) {
	value, exists := c.Get(IdentityKey)
	if !exists {
		return "", false
	}
	identity, ok := value.(string)
	return identity, ok
}

func sessionMeta(c *gin.Context) usecase.SessionMeta {
	return usecase.SessionMeta{
		UserAgent: c.Request.UserAgent(),
		ClientIP:  c.ClientIP(),
	}
}

func wantsHTML(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "text/html")
}
