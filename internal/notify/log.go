package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogDispatcher only logs. Used when no broker is configured.
type LogDispatcher struct {
	log *zap.Logger
}

func NewLogDispatcher(log *zap.Logger) *LogDispatcher {
	return &LogDispatcher{log: log.With(zap.String("dispatcher", "log"))}
}

func (d *LogDispatcher) Notify(_ context.Context, n Notification) {
	d.log.Info("Notification",
		zap.String("user_id", n.UserID.String()),
		zap.String("type", string(n.Type)),
		zap.String("title", n.Title),
		zap.String("body", n.Body),
	)
}

func (d *LogDispatcher) SendEmail(_ context.Context, e Email) {
	d.log.Info("Email",
		zap.String("recipient", e.Recipient),
		zap.String("template", e.Template),
		zap.String("locale", e.Locale),
	)
}
