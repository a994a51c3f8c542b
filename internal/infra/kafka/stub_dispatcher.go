package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/odysseycup/admin-gate/internal/core/port"
	"github.com/odysseycup/admin-gate/internal/infra/logger"
)

// StubDispatcher is used when no brokers are configured. It records the
// dispatch for observability without delivering anything, which keeps
// development logins working offline.
type StubDispatcher struct {
	logger *zap.Logger
}

// NewStubDispatcher constructs a logging-only mail dispatcher.
func NewStubDispatcher(log *zap.Logger) *StubDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubDispatcher{logger: log}
}

// DispatchOTP logs the mail instead of queueing it.
func (d *StubDispatcher) DispatchOTP(_ context.Context, mail port.OTPMail) {
	d.logger.Info("otp mail dispatch (stub)",
		zap.String("identity", logger.MaskEmail(mail.Identity)),
		zap.Time("expires_at", mail.ExpiresAt),
	)
}

var _ port.MailDispatcher = (*StubDispatcher)(nil)
