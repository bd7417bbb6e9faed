package service

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/gatherly/internal/notify"
	"github.com/mmynk/gatherly/internal/storage"
)

const NotificationServiceName = "NotificationService"

// NotificationService implements the Connect NotificationService.
type NotificationService struct {
	manager *notify.Manager
	store   storage.NotificationStore
}

func NewNotificationService(manager *notify.Manager, store storage.NotificationStore) *NotificationService {
	return &NotificationService{manager: manager, store: store}
}

// Handler returns the path prefix and handler serving every NotificationService method.
func (s *NotificationService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	r := newRoutes(NotificationServiceName, opts)
	serverStream(r, "Subscribe", s.Subscribe)
	unary(r, "ListNotifications", s.ListNotifications)
	unary(r, "MarkAsRead", s.MarkAsRead)
	unary(r, "MarkAllAsRead", s.MarkAllAsRead)
	return r.handler()
}

type MarkAsReadRequest struct {
	NotificationID string `json:"notificationId"`
}

// Subscribe streams the caller's notification state: the current state
// first, then a new state after every change. The stream owns one session
// and releases it when the stream ends.
func (s *NotificationService) Subscribe(ctx context.Context, req *connect.Request[Empty], stream *connect.ServerStream[notify.State]) error {
	userID, err := callerID(ctx)
	if err != nil {
		return err
	}
	slog.Info("Subscribe request received")

	session := s.manager.Open(userID)
	defer session.Close()
	// Cancelled before Close runs, so a blocked observer lets go.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan notify.State, 16)
	session.Observe(func(st notify.State) {
		select {
		case updates <- st:
		case <-ctx.Done():
		}
	})
	if err := session.Subscribe(ctx); err != nil {
		return fail("Subscribe", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case st := <-updates:
			if err := stream.Send(&st); err != nil {
				slog.Debug("Subscribe stream closed", "error", err)
				return nil
			}
		}
	}
}

// ListNotifications returns the caller's notifications, newest first, with
// the unread count.
func (s *NotificationService) ListNotifications(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[notify.State], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListNotifications request received")

	list, err := s.store.ListNotifications(ctx, userID)
	if err != nil {
		return nil, fail("ListNotifications", err)
	}
	st := notify.NewState(list)
	slog.Info("ListNotifications successful", "count", len(st.Notifications), "unread", st.Unread)
	return connect.NewResponse(&st), nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, req *connect.Request[MarkAsReadRequest]) (*connect.Response[Empty], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("MarkAsRead request received", "notification_id", req.Msg.NotificationID)

	session := s.manager.Open(userID)
	defer session.Close()
	if err := session.MarkAsRead(ctx, req.Msg.NotificationID); err != nil {
		return nil, fail("MarkAsRead", err, "notification_id", req.Msg.NotificationID)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[Empty], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("MarkAllAsRead request received")

	session := s.manager.Open(userID)
	defer session.Close()
	if err := session.MarkAllAsRead(ctx); err != nil {
		return nil, fail("MarkAllAsRead", err)
	}
	return connect.NewResponse(&Empty{}), nil
}
