package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/odysseycup/admin-gate/internal/core/port"
	"github.com/odysseycup/admin-gate/internal/infra/logger"
)

// LoggingSender implements port.MailSender by logging the delivery instead
// of talking to a provider. It is the default sender until an SMTP or API
// integration is wired in; the code itself is never logged in full.
type LoggingSender struct {
	logger *zap.Logger
}

// NewLoggingSender constructs a logging-backed sender.
func NewLoggingSender(log *zap.Logger) *LoggingSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingSender{logger: log}
}

// SendOTP records the delivery attempt.
func (s *LoggingSender) SendOTP(_ context.Context, m port.OTPMail) error {
	s.logger.Info("otp mail delivered (log sender)",
		zap.String("identity", logger.MaskEmail(m.Identity)),
		zap.String("code", logger.MaskToken(m.Code)),
		zap.Time("expires_at", m.ExpiresAt),
	)
	return nil
}

var _ port.MailSender = (*LoggingSender)(nil)
