package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/odysseycup/admin-gate/internal/transport/http/credential"
	"github.com/odysseycup/admin-gate/internal/usecase"
)

const (
	genericIssueMessage  = "If the address is recognized, a code has been sent."
	genericVerifyMessage = "invalid or expired code"
)

// AuthHandler exposes the passwordless login flow and the activity beacon
// endpoints. Every failure mode collapses to one of two generic shapes so
// responses never reveal whether an identity is recognized.
type AuthHandler struct {
	auth     *usecase.AuthService
	sessions *usecase.SessionService
	carrier  *credential.Carrier
	logger   *zap.Logger
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, sessions *usecase.SessionService, carrier *credential.Carrier, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
		carrier:  carrier,
		logger:   log,
	}
}

// RegisterRoutes binds the auth endpoints. Rate limits apply to code
// issuance and verification only; the beacon endpoints stay cheap.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, issueLimits, verifyLimits []gin.HandlerFunc) {
	codeChain := append(append([]gin.HandlerFunc{}, issueLimits...), h.requestCode)
	verifyChain := append(append([]gin.HandlerFunc{}, verifyLimits...), h.verifyCode)

	r.POST("/code", codeChain...)
	r.POST("/verify", verifyChain...)
	r.POST("/extend", h.extend)
	r.GET("/status", h.status)
	r.POST("/logout", h.logout)
}

func (h *AuthHandler) requestCode(c *gin.Context) {
	var req RequestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	retryAfter, err := h.auth.RequestCode(c.Request.Context(), req.Identity)
	switch {
	case errors.Is(err, usecase.ErrInvalidIdentity):
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	case errors.Is(err, usecase.ErrCodeCooldown):
		seconds := int(math.Ceil(retryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.JSON(http.StatusTooManyRequests, CooldownResponse{
			Error:             "too many requests",
			RetryAfterSeconds: seconds,
		})
		return
	case err != nil:
		// Infra failures are logged with detail; the response stays
		// byte-identical to a successful issuance so an outage cannot be
		// used to probe the allow-list.
		h.logger.Error("code issuance failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, RequestCodeResponse{
		OK:      true,
		Message: genericIssueMessage,
	})
}

func (h *AuthHandler) verifyCode(c *gin.Context) {
	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	session, err := h.auth.VerifyCode(c.Request.Context(), req.Identity, req.Code, sessionMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidIdentity),
			errors.Is(err, usecase.ErrInvalidCode),
			errors.Is(err, usecase.ErrCodeMissing),
			errors.Is(err, usecase.ErrCodeExpired),
			errors.Is(err, usecase.ErrCodeLocked):
			// One generic shape for every miss: wrong digits, unknown
			// identity, expired, locked, and absent all look alike.
		default:
			h.logger.Error("code verification failed", zap.Error(err))
		}
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, genericVerifyMessage))
		return
	}

	h.carrier.Issue(c, session.ID)
	c.JSON(http.StatusOK, SessionStatusResponse{
		OK:        true,
		ExpiresAt: &session.ExpiresAt,
	})
}

// extend slides the session's idle expiry. The activity beacon calls this
// only while the user is observably active; the server touches
// unconditionally on receipt.
func (h *AuthHandler) extend(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	token, ok := h.carrier.Read(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, SessionStatusResponse{OK: false})
		return
	}

	session, err := h.sessions.Extend(c.Request.Context(), token, sessionMeta(c))
	if err != nil {
		h.denyBeacon(c, err)
		return
	}

	// Keep the cookie lifetime aligned with the refreshed expiry.
	h.carrier.Issue(c, session.ID)
	c.JSON(http.StatusOK, SessionStatusResponse{
		OK:        true,
		ExpiresAt: &session.ExpiresAt,
	})
}

// status reports validity without extending it, so an idle tab can detect
// a server-side revocation without defeating the idle timeout.
func (h *AuthHandler) status(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	token, ok := h.carrier.Read(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, SessionStatusResponse{OK: false})
		return
	}

	session, err := h.sessions.Validate(c.Request.Context(), token, sessionMeta(c))
	if err != nil {
		h.denyBeacon(c, err)
		return
	}

	c.JSON(http.StatusOK, SessionStatusResponse{
		OK:        true,
		ExpiresAt: &session.ExpiresAt,
	})
}

// logout revokes server-side first so replayed responses fail, then clears
// the cookie. Always 200: logging out twice is not an error.
func (h *AuthHandler) logout(c *gin.Context) {
	if token, ok := h.carrier.Read(c); ok {
		if err := h.sessions.Revoke(c.Request.Context(), token); err != nil {
			h.logger.Error("logout revocation failed", zap.Error(err))
		}
	}

	h.carrier.Clear(c)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// denyBeacon answers an unauthenticated beacon call. The cookie is dropped
// only for a genuinely dead session; a store outage denies the request but
// leaves the credential in place so the beacon's next retry can succeed.
func (h *AuthHandler) denyBeacon(c *gin.Context, err error) {
	if errors.Is(err, usecase.ErrSessionInvalid) {
		h.carrier.Clear(c)
	} else {
		h.logger.Error("beacon check failed", zap.Error(err))
	}
	c.JSON(http.StatusUnauthorized, SessionStatusResponse{OK: false})
}

func sessionMeta(c *gin.Context) usecase.SessionMeta {
	return usecase.SessionMeta{
		UserAgent: c.Request.UserAgent(),
		ClientIP:  c.ClientIP(),
	}
}
