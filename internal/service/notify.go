package service

import (
	"context"

	"github.com/vilonda/portal/internal/mail"
	"github.com/vilonda/portal/internal/metrics"
	"go.uber.org/zap"
)

// Notifier sends best-effort emails. Delivery failures are logged and counted but
// never undo the write that triggered them.
type Notifier struct {
	mailer  mail.Mailer
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewNotifier(mailer mail.Mailer, m *metrics.Metrics, logger *zap.Logger) Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mailer == nil {
		mailer = mail.LogMailer{Logger: logger}
	}
	return Notifier{mailer: mailer, metrics: m, logger: logger}
}

func (n Notifier) send(ctx context.Context, msg mail.Message) bool {
	if n.mailer == nil || n.logger == nil {
		n = NewNotifier(n.mailer, n.metrics, n.logger)
	}
	err := n.mailer.Send(ctx, msg)
	n.metrics.ObserveEmail(msg.Template, err == nil)
	if err != nil {
		n.logger.Warn("Failed to send email",
			zap.String("template", msg.Template),
			zap.String("to", msg.To.Email),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (n Notifier) warn(msg string, fields ...zap.Field) {
	if n.logger == nil {
		return
	}
	n.logger.Warn(msg, fields...)
}
