package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/odysseycup/admin-gate/internal/transport/http/middleware"
)

// WhoAmIHandler answers the panel's "who is logged in" probe.
type WhoAmIHandler struct{}

// NewWhoAmIHandler constructs WhoAmIHandler.
func NewWhoAmIHandler() *WhoAmIHandler {
	return &WhoAmIHandler{}
}

// RegisterRoutes binds the endpoint onto an authenticated group.
func (h *WhoAmIHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/whoami", h.whoami)
}

func (h *WhoAmIHandler) whoami(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "unauthenticated"))
		return
	}

	c.JSON(http.StatusOK, WhoAmIResponse{OK: true, Who: identity})
}
