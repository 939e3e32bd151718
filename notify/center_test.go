package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clinicsync/models"
	"clinicsync/poll"
)

type fakeGateway struct {
	mu            sync.Mutex
	notifications []models.Notification
	unreadCount   int
	fetchErr      error
	actionErr     error

	markedRead []int64
	markedAll  int
	deleted    []int64
	deletedAll int
}

func (g *fakeGateway) FetchNotifications(ctx context.Context) ([]models.Notification, int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, 0, g.fetchErr
	}
	return append([]models.Notification(nil), g.notifications...), g.unreadCount, nil
}

func (g *fakeGateway) MarkNotificationRead(ctx context.Context, notificationID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.actionErr != nil {
		return g.actionErr
	}
	g.markedRead = append(g.markedRead, notificationID)
	return nil
}

func (g *fakeGateway) MarkAllNotificationsRead(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.actionErr != nil {
		return g.actionErr
	}
	g.markedAll++
	return nil
}

func (g *fakeGateway) DeleteNotification(ctx context.Context, notificationID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.actionErr != nil {
		return g.actionErr
	}
	g.deleted = append(g.deleted, notificationID)
	return nil
}

func (g *fakeGateway) DeleteAllNotifications(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.actionErr != nil {
		return g.actionErr
	}
	g.deletedAll++
	return nil
}

// memAlertStore is an in-memory AlertStore for tests.
type memAlertStore struct {
	mu      sync.Mutex
	id      int64
	readErr error
}

func (s *memAlertStore) LastAlertedID() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return 0, s.readErr
	}
	return s.id, nil
}

func (s *memAlertStore) SetLastAlertedID(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id > s.id {
		s.id = id
	}
	return nil
}

func newTestCenter(t *testing.T, gateway *fakeGateway, store AlertStore, onAlert AlertFunc) *Center {
	t.Helper()

	poller := poll.NewPoller()
	t.Cleanup(poller.StopAll)

	center, err := NewCenter(gateway, poller, store, Options{
		PollInterval: time.Hour,
		OnAlert:      onAlert,
	})
	if err != nil {
		t.Fatalf("build test center: %v", err)
	}
	return center
}

func TestRefreshReplacesListAndCounter(t *testing.T) {
	gateway := &fakeGateway{
		notifications: []models.Notification{
			{NotificationID: 5, Message: "newest", IsRead: 1},
			{NotificationID: 4, Message: "older"},
		},
		unreadCount: 1,
	}
	center := newTestCenter(t, gateway, nil, nil)

	if err := center.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if got := center.Notifications(); len(got) != 2 || got[0].NotificationID != 5 {
		t.Fatalf("unexpected list: %+v", got)
	}
	if center.UnreadCount() != 1 {
		t.Fatalf("expected unread count 1, got %d", center.UnreadCount())
	}

	// A later, shorter fetch replaces everything rather than merging.
	gateway.mu.Lock()
	gateway.notifications = []models.Notification{{NotificationID: 6, Message: "only one"}}
	gateway.unreadCount = 1
	gateway.mu.Unlock()

	if err := center.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}
	if got := center.Notifications(); len(got) != 1 || got[0].NotificationID != 6 {
		t.Fatalf("expected the fetched list to fully replace the cache, got %+v", got)
	}
}

func TestRefreshKeepsLastViewOnFailure(t *testing.T) {
	gateway := &fakeGateway{
		notifications: []models.Notification{{NotificationID: 5, Message: "kept"}},
		unreadCount:   1,
	}
	center := newTestCenter(t, gateway, nil, nil)
	if err := center.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	gateway.mu.Lock()
	gateway.fetchErr = errors.New("network down")
	gateway.mu.Unlock()

	if err := center.Refresh(context.Background()); err == nil {
		t.Fatalf("expected refresh to report the fetch error")
	}
	if got := center.Notifications(); len(got) != 1 || got[0].Message != "kept" {
		t.Fatalf("expected the last fetched view to survive, got %+v", got)
	}
	if center.UnreadCount() != 1 {
		t.Fatalf("expected counter unchanged, got %d", center.UnreadCount())
	}
}

func TestAlertFiresOncePerArrival(t *testing.T) {
	gateway := &fakeGateway{
		notifications: []models.Notification{
			{NotificationID: 7, Message: "new arrival"},
			{NotificationID: 6, Message: "older unread"},
		},
		unreadCount: 2,
	}
	store := &memAlertStore{}
	var alerts []int64
	center := newTestCenter(t, gateway, store, func(n models.Notification) {
		alerts = append(alerts, n.NotificationID)
	})

	if err := center.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	// Repeated polls with the same newest id stay silent.
	if err := center.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}
	if len(alerts) != 1 || alerts[0] != 7 {
		t.Fatalf("expected one alert for id 7, got %v", alerts)
	}
	if store.id != 7 {
		t.Fatalf("expected watermark 7, got %d", store.id)
	}

	// A newer arrival alerts again.
	gateway.mu.Lock()
	gateway.notifications = append([]models.Notification{{NotificationID: 8, Message: "another"}}, gateway.notifications...)
	gateway.unreadCount = 3
	gateway.mu.Unlock()

	if err := center.Refresh(context.Background()); err != nil {
		t.Fatalf("third Refresh failed: %v", err)
	}
	if len(alerts) != 2 || alerts[1] != 8 {
		t.Fatalf("expected a second alert for id 8, got %v", alerts)
	}
}

func TestAlertSurvivesRestart(t *testing.T) {
	gateway := &fakeGateway{
		notifications: []models.Notification{{NotificationID: 7, Message: "arrival"}},
		unreadCount:   1,
	}
	store := &memAlertStore{}
	var alerts int
	first := newTestCenter(t, gateway, store, func(models.Notification) { alerts++ })
	if err := first.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	// A fresh center sharing the same store represents a restarted client.
	second := newTestCenter(t, gateway, store, func(models.Notification) { alerts++ })
	if err := second.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh after restart failed: %v", err)
	}
	if alerts != 1 {
		t.Fatalf("expected no re-alert after restart, got %d alerts", alerts)
	}
}

func TestAlertSkipsCycleWhenWatermarkUnreadable(t *testing.T) {
	gateway := &fakeGateway{
		notifications: []models.Notification{{NotificationID: 7, Message: "arrival"}},
		unreadCount:   1,
	}
	store := &memAlertStore{readErr: errors.New("database locked")}
	var alerts int
	center := newTestCenter(t, gateway, store, func(models.Notification) { alerts++ })

	if err := center.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if alerts != 0 {
		t.Fatalf("expected no alert when the watermark cannot be read, got %d", alerts)
	}

	store.mu.Lock()
	store.readErr = nil
	store.mu.Unlock()

	if err := center.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}
	if alerts != 1 {
		t.Fatalf("expected the alert once the watermark is readable, got %d", alerts)
	}
}

func TestMarkReadIsOptimisticAndIdempotent(t *testing.T) {
	gateway := &fakeGateway{
		notifications: []models.Notification{
			{NotificationID: 5, Message: "a"},
			{NotificationID: 4, Message: "b"},
		},
		unreadCount: 2,
	}
	center := newTestCenter(t, gateway, nil, nil)
	if err := center.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	center.MarkRead(context.Background(), 5)
	if center.UnreadCount() != 1 {
		t.Fatalf("expected counter to drop to 1, got %d", center.UnreadCount())
	}
	if got := center.Notifications(); got[0].IsRead != 1 {
		t.Fatalf("expected notification 5 marked read locally, got %+v", got[0])
	}

	// Marking an already-read notification changes nothing.
	center.MarkRead(context.Background(), 5)
	if center.UnreadCount() != 1 {
		t.Fatalf("expected counter unchanged on repeat, got %d", center.UnreadCount())
	}
	if len(gateway.markedRead) != 2 {
		t.Fatalf("expected both writes issued to the server, got %v", gateway.markedRead)
	}
}

func TestMarkReadFailureIsSilent(t *testing.T) {
	gateway := &fakeGateway{
		notifications: []models.Notification{{NotificationID: 5, Message: "a"}},
		unreadCount:   1,
		actionErr:     errors.New("server down"),
	}
	center := newTestCenter(t, gateway, nil, nil)
	if err := center.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	// The local transform sticks even when the write fails; the next poll
	// reconciles.
	center.MarkRead(context.Background(), 5)
	if center.UnreadCount() != 0 {
		t.Fatalf("expected optimistic counter drop, got %d", center.UnreadCount())
	}
	if got := center.Notifications(); got[0].IsRead != 1 {
		t.Fatalf("expected optimistic read flag, got %+v", got[0])
	}
}

func TestMarkAllReadZeroesCounter(t *testing.T) {
	gateway := &fakeGateway{
		notifications: []models.Notification{
			{NotificationID: 5, Message: "a"},
			{NotificationID: 4, Message: "b", IsRead: 1},
			{NotificationID: 3, Message: "c"},
		},
		unreadCount: 2,
	}
	center := newTestCenter(t, gateway, nil, nil)
	if err := center.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	center.MarkAllRead(context.Background())
	if center.UnreadCount() != 0 {
		t.Fatalf("expected zero unread, got %d", center.UnreadCount())
	}
	for _, n := range center.Notifications() {
		if n.IsRead != 1 {
			t.Fatalf("expected every notification read, got %+v", n)
		}
	}
	if gateway.markedAll != 1 {
		t.Fatalf("expected one mark-all write, got %d", gateway.markedAll)
	}
}

func TestDeleteRemovesLocally(t *testing.T) {
	gateway := &fakeGateway{
		notifications: []models.Notification{
			{NotificationID: 5, Message: "a"},
			{NotificationID: 4, Message: "b", IsRead: 1},
		},
		unreadCount: 1,
	}
	center := newTestCenter(t, gateway, nil, nil)
	if err := center.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	center.Delete(context.Background(), 5)
	if got := center.Notifications(); len(got) != 1 || got[0].NotificationID != 4 {
		t.Fatalf("expected notification 5 removed, got %+v", got)
	}
	if center.UnreadCount() != 0 {
		t.Fatalf("expected unread counter to drop with the deleted unread item, got %d", center.UnreadCount())
	}

	center.DeleteAll(context.Background())
	if len(center.Notifications()) != 0 || center.UnreadCount() != 0 {
		t.Fatalf("expected an empty list after DeleteAll")
	}
	if gateway.deletedAll != 1 {
		t.Fatalf("expected one delete-all write, got %d", gateway.deletedAll)
	}
}
