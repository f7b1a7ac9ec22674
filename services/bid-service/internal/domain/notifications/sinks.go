package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// MultiSink fans a notification out to every sink and joins their errors
type MultiSink []DeliverySink

// Send calls every sink even if an earlier one failed
func (m MultiSink) Send(ctx context.Context, n *Notification) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", sink, err))
		}
	}
	return errors.Join(errs...)
}

// LogSink writes notifications to the structured log
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that only logs
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(ctx context.Context, n *Notification) error {
	s.logger.InfoContext(ctx, "Notification delivered",
		"notification_id", n.ID,
		"user_id", n.UserID,
		"type", n.Type,
		"listing_id", n.ListingID,
	)
	return nil
}
