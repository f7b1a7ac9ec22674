package delivery

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/floroz/gembid/services/bid-service/internal/domain/notifications"
)

// NATSPublisher is the slice of *nats.Conn the sink needs
type NATSPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSSink publishes notifications on "<prefix>.<user id>" for real-time fan-out
type NATSSink struct {
	conn   NATSPublisher
	prefix string
}

func NewNATSSink(conn NATSPublisher, prefix string) *NATSSink {
	if prefix == "" {
		prefix = "notifications"
	}
	return &NATSSink{conn: conn, prefix: prefix}
}

// Subject returns the subject a user's notifications are published on
func (s *NATSSink) Subject(userID string) string {
	return fmt.Sprintf("%s.%s", s.prefix, userID)
}

func (s *NATSSink) Send(ctx context.Context, n *notifications.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := marshal(n)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(s.Subject(n.UserID))
	msg.Data = body
	msg.Header.Set(nats.MsgIdHdr, n.ID.String())
	if err := s.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish to nats: %w", err)
	}
	return nil
}
