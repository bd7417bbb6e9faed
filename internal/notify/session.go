package notify

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/metrics"
	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/storage"
)

// State is what a session observer sees.
type State struct {
	Notifications []*models.Notification `json:"notifications"`
	Unread        int                    `json:"unread"`
}

// NewState wraps list and counts its unread entries.
func NewState(list []*models.Notification) State {
	unread := 0
	for _, n := range list {
		if !n.Read {
			unread++
		}
	}
	return State{Notifications: list, Unread: unread}
}

// Manager opens notification sessions.
type Manager struct {
	store   storage.NotificationStore
	bus     Bus
	hub     *Hub
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewManager creates a Manager. m and logger may be nil.
func NewManager(store storage.NotificationStore, bus Bus, m *metrics.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:   store,
		bus:     bus,
		hub:     NewHub(store, bus, logger),
		metrics: m,
		logger:  logger,
	}
}

// Open returns a new, unsubscribed session for userID.
func (m *Manager) Open(userID string) *Session {
	return &Session{userID: userID, mgr: m}
}

type observer struct {
	id int
	fn func(State)
}

// Session holds at most one live subscription for one user and fans its
// states out to observers. Observers run on the subscription goroutine and
// must not call Subscribe, Unsubscribe or Close.
type Session struct {
	userID string
	mgr    *Manager

	// subMu serializes Subscribe, Unsubscribe and Close.
	subMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool

	mu        sync.Mutex
	state     State
	observers []observer
	nextID    int
}

// UserID returns the session's user.
func (s *Session) UserID() string { return s.userID }

// Subscribe releases any live subscription and starts a new one bound to ctx.
// If the new subscription cannot be established the session stays
// unsubscribed and the error is returned.
func (s *Session) Subscribe(ctx context.Context) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.closed {
		return errdef.NewValidation("session for %s is closed", s.userID)
	}
	s.release()

	mgr := s.mgr
	subCtx, cancel := context.WithCancel(ctx)
	snapshots, err := mgr.hub.Watch(subCtx, s.userID)
	if err != nil {
		cancel()
		return err
	}

	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	mgr.metrics.SubscriptionOpened()
	mgr.logger.Debug("Notification subscription started", "user_id", s.userID)

	go func() {
		defer close(done)
		defer mgr.metrics.SubscriptionClosed()
		for list := range snapshots {
			s.publish(NewState(list))
		}
	}()
	return nil
}

func (s *Session) publish(st State) {
	s.mu.Lock()
	s.state = st
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	for _, o := range observers {
		o.fn(st)
	}
}

// Subscribed reports whether a subscription is live.
func (s *Session) Subscribed() bool {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Unsubscribe releases the live subscription, if any, and returns once its
// goroutine has stopped.
func (s *Session) Unsubscribe() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.release()
}

func (s *Session) release() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel, s.done = nil, nil
	s.mgr.logger.Debug("Notification subscription released", "user_id", s.userID)
}

// Close releases the subscription and drops all observers. A closed session
// cannot subscribe again.
func (s *Session) Close() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.release()
	s.closed = true

	s.mu.Lock()
	s.observers = nil
	s.mu.Unlock()
}

// Observe registers fn to receive every new state and returns a function that
// removes it.
func (s *Session) Observe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.observers = append(s.observers, observer{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.observers = slices.DeleteFunc(s.observers, func(o observer) bool { return o.id == id })
		})
	}
}

// State returns the last state delivered by the subscription.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MarkAsRead marks one of the session user's notifications as read. The new
// state arrives through the subscription; nothing is updated locally.
func (s *Session) MarkAsRead(ctx context.Context, notificationID string) error {
	list, err := s.mgr.store.ListNotifications(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if !slices.ContainsFunc(list, func(n *models.Notification) bool { return n.ID == notificationID }) {
		return errdef.NewNotFound("notification %s not found", notificationID)
	}
	if err := s.mgr.store.MarkNotificationRead(ctx, notificationID); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	s.mgr.publish(ctx, s.userID)
	return nil
}

// MarkAllAsRead marks every unread notification of the session user as read.
func (s *Session) MarkAllAsRead(ctx context.Context) error {
	if err := s.mgr.store.MarkAllNotificationsRead(ctx, s.userID); err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	s.mgr.publish(ctx, s.userID)
	return nil
}

// publish signals a change. The store write already happened, so a bus
// failure is only logged.
func (m *Manager) publish(ctx context.Context, userID string) {
	if err := m.bus.Publish(ctx, userID); err != nil {
		m.logger.Warn("Failed to publish notification change", "user_id", userID, "error", err)
	}
}
