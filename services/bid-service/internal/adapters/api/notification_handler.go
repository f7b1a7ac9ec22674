package api

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/floroz/gembid/pkg/auth"
	"github.com/floroz/gembid/services/bid-service/internal/domain/notifications"
)

// NotificationService is the read-state side of the dispatcher
type NotificationService interface {
	ListNotifications(ctx context.Context, q notifications.ListNotificationsQuery) (*notifications.NotificationPage, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID string, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	DeleteNotification(ctx context.Context, userID string, notificationID uuid.UUID) error
}

// NotificationHandler only ever touches the caller's own notifications
type NotificationHandler struct {
	notifications NotificationService
	logger        *slog.Logger
}

func NewNotificationHandler(svc NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: svc, logger: logger}
}

func (h *NotificationHandler) ListNotifications(
	ctx context.Context,
	req *connect.Request[ListNotificationsRequest],
) (*connect.Response[ListNotificationsResponse], error) {
	identity := auth.MustGetIdentity(ctx)

	page, err := h.notifications.ListNotifications(ctx, notifications.ListNotificationsQuery{
		UserID:     identity.UserID,
		Page:       req.Msg.Page,
		PageSize:   req.Msg.PageSize,
		UnreadOnly: req.Msg.UnreadOnly,
	})
	if err != nil {
		return nil, toConnectError(ctx, h.logger, err)
	}

	res := &ListNotificationsResponse{
		Notifications: make([]*Notification, 0, len(page.Notifications)),
		Total:         page.Total,
		Page:          page.Page,
		PageSize:      page.PageSize,
	}
	for _, n := range page.Notifications {
		res.Notifications = append(res.Notifications, mapNotification(n))
	}
	return connect.NewResponse(res), nil
}

func (h *NotificationHandler) UnreadCount(
	ctx context.Context,
	req *connect.Request[UnreadCountRequest],
) (*connect.Response[UnreadCountResponse], error) {
	identity := auth.MustGetIdentity(ctx)

	count, err := h.notifications.UnreadCount(ctx, identity.UserID)
	if err != nil {
		return nil, toConnectError(ctx, h.logger, err)
	}
	return connect.NewResponse(&UnreadCountResponse{Count: count}), nil
}

func (h *NotificationHandler) MarkRead(
	ctx context.Context,
	req *connect.Request[NotificationRequest],
) (*connect.Response[NotificationResponse], error) {
	return h.act(ctx, req.Msg.NotificationID, h.notifications.MarkRead)
}

func (h *NotificationHandler) DeleteNotification(
	ctx context.Context,
	req *connect.Request[NotificationRequest],
) (*connect.Response[NotificationResponse], error) {
	return h.act(ctx, req.Msg.NotificationID, h.notifications.DeleteNotification)
}

func (h *NotificationHandler) act(
	ctx context.Context,
	rawID string,
	op func(context.Context, string, uuid.UUID) error,
) (*connect.Response[NotificationResponse], error) {
	identity := auth.MustGetIdentity(ctx)

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, invalidArgument("invalid notification_id")
	}
	if err := op(ctx, identity.UserID, id); err != nil {
		return nil, toConnectError(ctx, h.logger, err)
	}
	return connect.NewResponse(&NotificationResponse{}), nil
}

func (h *NotificationHandler) MarkAllRead(
	ctx context.Context,
	req *connect.Request[MarkAllReadRequest],
) (*connect.Response[MarkAllReadResponse], error) {
	identity := auth.MustGetIdentity(ctx)

	updated, err := h.notifications.MarkAllRead(ctx, identity.UserID)
	if err != nil {
		return nil, toConnectError(ctx, h.logger, err)
	}
	return connect.NewResponse(&MarkAllReadResponse{Updated: updated}), nil
}
