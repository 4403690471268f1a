package notifications

import (
	"context"

	"github.com/angelmondragon/homecafe-backend/pkg/config"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
)

// LogTransport writes messages to the structured log; used in development.
type LogTransport struct {
	logg *logger.Logger
}

func NewLogTransport(logg *logger.Logger) *LogTransport {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogTransport{logg: logg}
}

func (t *LogTransport) Name() string { return config.NotificationTransportLog }

func (t *LogTransport) Deliver(ctx context.Context, msg Message) error {
	t.logg.Info(t.logg.WithFields(ctx, map[string]any{
		"to":       msg.To,
		"subject":  msg.Subject,
		"template": msg.Template.String(),
	}), "notification")
	return nil
}
