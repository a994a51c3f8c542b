package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/odysseycup/admin-gate/internal/transport/http/middleware"
)

// ErrorResponse is the generic error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response carrying the request trace ID.
func NewErrorResponse(c *gin.Context, message string) ErrorResponse {
	return ErrorResponse{
		Error:   message,
		TraceID: middleware.GetTraceID(c),
	}
}

// RequestCodeRequest asks for a one-time login code.
type RequestCodeRequest struct {
	Identity string `json:"identity"`
}

// RequestCodeResponse is deliberately identical for recognized and
// unrecognized identities.
type RequestCodeResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// CooldownResponse reports an active issuance throttle.
type CooldownResponse struct {
	OK                bool   `json:"ok"`
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

// VerifyCodeRequest submits a one-time code.
type VerifyCodeRequest struct {
	Identity string `json:"identity"`
	Code     string `json:"code"`
}

// SessionStatusResponse reports session validity to the activity beacon.
type SessionStatusResponse struct {
	OK        bool       `json:"ok"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// WhoAmIResponse identifies the authenticated caller.
type WhoAmIResponse struct {
	OK  bool   `json:"ok"`
	Who string `json:"who"`
}

// NewsRequest carries article fields for create and update.
type NewsRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	ImageURL string `json:"image_url"`
}

// NewsResponse is the wire form of an article.
type NewsResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	ImageURL  *string   `json:"image_url,omitempty"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}
