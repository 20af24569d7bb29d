package notifier

import (
	"context"

	"go.uber.org/zap"
)

// LogDispatcher writes notifications to the log. Plaintext secrets are only
// logged when IncludeSecrets is set, which is meant for local development.
type LogDispatcher struct {
	Logger         *zap.Logger
	IncludeSecrets bool
}

var _ Dispatcher = (*LogDispatcher)(nil)

func (l *LogDispatcher) Dispatch(_ context.Context, n Notification) error {
	fields := []zap.Field{
		zap.String("kind", string(n.Kind)),
		zap.String("account_id", n.AccountID),
		zap.String("email", n.Email),
	}
	if l.IncludeSecrets {
		if n.Code != "" {
			fields = append(fields, zap.String("code", n.Code))
		}
		if n.Token != "" {
			fields = append(fields, zap.String("token", n.Token))
		}
	}
	if n.Reason != "" {
		fields = append(fields, zap.String("reason", n.Reason))
	}
	l.Logger.Info("notification", fields...)
	return nil
}
