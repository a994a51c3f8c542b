package port

import (
	"context"
	"time"
)

// OTPMail carries everything the outbound mailer needs to deliver a login
// code. It crosses the queue boundary, so it stays flat and serializable.
type OTPMail struct {
	Identity  string    `json:"identity"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MailDispatcher hands an OTP mail to the outbound delivery pipeline.
// Dispatch is fire-and-forget from the caller's point of view: enqueue
// failures are logged downstream and must never surface to the login flow.
type MailDispatcher interface {
	DispatchOTP(ctx context.Context, mail OTPMail)
}

// MailSender performs the actual delivery attempt for a dequeued message.
// The queue consumer owns retries and failure logging.
type MailSender interface {
	SendOTP(ctx context.Context, mail OTPMail) error
}
