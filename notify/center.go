// Package notify holds the client-side notification state: the list cache,
// the unread counter, optimistic read/delete mutations, and the new-arrival
// alerter backed by a persisted last-alerted id.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"clinicsync/models"
	"clinicsync/poll"
)

const (
	notificationPollKey = "notifications"

	// DefaultPollInterval is the background notification cadence.
	DefaultPollInterval = 30 * time.Second
)

// Gateway is the slice of the remote API the center depends on.
type Gateway interface {
	FetchNotifications(ctx context.Context) ([]models.Notification, int, error)
	MarkNotificationRead(ctx context.Context, notificationID int64) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, notificationID int64) error
	DeleteAllNotifications(ctx context.Context) error
}

// AlertStore persists the newest notification id that has already been
// alerted, so reloads and restarts never re-alert for the same arrival.
type AlertStore interface {
	LastAlertedID() (int64, error)
	SetLastAlertedID(id int64) error
}

// AlertFunc receives each newly arrived unread notification exactly once.
type AlertFunc func(models.Notification)

// Options tunes a Center.
type Options struct {
	PollInterval time.Duration
	OnAlert      AlertFunc
}

// Center is the mutable state behind the notification screens and badges.
type Center struct {
	gateway Gateway
	poller  *poll.Poller
	store   AlertStore
	opts    Options

	mu            sync.Mutex
	notifications []models.Notification
	unreadCount   int
}

// NewCenter returns a notification center. store may be nil, in which case
// arrival alerting is disabled.
func NewCenter(gateway Gateway, poller *poll.Poller, store AlertStore, opts Options) (*Center, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if poller == nil {
		return nil, errors.New("poller is required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	return &Center{
		gateway: gateway,
		poller:  poller,
		store:   store,
		opts:    opts,
	}, nil
}

// Refresh fetches the notification list, replaces the local copy, and fires
// the alert callback for the newest unread arrival not yet alerted.
func (c *Center) Refresh(ctx context.Context) error {
	notifications, unreadCount, err := c.gateway.FetchNotifications(ctx)
	if err != nil {
		return fmt.Errorf("refresh notifications: %w", err)
	}

	c.mu.Lock()
	c.notifications = notifications
	c.unreadCount = unreadCount
	c.mu.Unlock()

	c.alertNewest(notifications)
	return nil
}

// StartPolling begins the background notification poll. It runs for the
// lifetime of the authenticated session; fetch failures are logged and the
// next tick is the retry.
func (c *Center) StartPolling(ctx context.Context) error {
	return c.poller.Start(ctx, notificationPollKey, c.opts.PollInterval, func(ctx context.Context) {
		if err := c.Refresh(ctx); err != nil {
			log.Printf("notification poll: %v", err)
		}
	})
}

// StopPolling stops the background poll.
func (c *Center) StopPolling() {
	c.poller.Stop(notificationPollKey)
}

// alertNewest fires the callback for the newest unread notification whose id
// exceeds the persisted watermark. The list arrives newest-first.
func (c *Center) alertNewest(notifications []models.Notification) {
	if c.store == nil || c.opts.OnAlert == nil {
		return
	}

	var newest *models.Notification
	for i := range notifications {
		if notifications[i].IsRead == 0 {
			newest = &notifications[i]
			break
		}
	}
	if newest == nil {
		return
	}

	lastAlerted, err := c.store.LastAlertedID()
	if err != nil {
		// Without the watermark an alert could repeat on every poll, so
		// skip this cycle instead.
		log.Printf("read alert watermark: %v", err)
		return
	}
	if newest.NotificationID <= lastAlerted {
		return
	}

	c.opts.OnAlert(*newest)
	if err := c.store.SetLastAlertedID(newest.NotificationID); err != nil {
		log.Printf("persist alert watermark: %v", err)
	}
}

// MarkRead marks one notification read locally and issues the write without
// waiting for confirmation. A failed write is logged, not rolled back; the
// server operation is idempotent and the next poll reconciles. Marking an
// already-read notification changes nothing.
func (c *Center) MarkRead(ctx context.Context, notificationID int64) {
	c.mu.Lock()
	for i := range c.notifications {
		if c.notifications[i].NotificationID == notificationID {
			if c.notifications[i].IsRead == 0 {
				c.notifications[i].IsRead = 1
				if c.unreadCount > 0 {
					c.unreadCount--
				}
			}
			break
		}
	}
	c.mu.Unlock()

	if err := c.gateway.MarkNotificationRead(ctx, notificationID); err != nil {
		log.Printf("mark notification %d read: %v", notificationID, err)
	}
}

// MarkAllRead marks every notification read locally and issues the write
// without waiting for confirmation.
func (c *Center) MarkAllRead(ctx context.Context) {
	c.mu.Lock()
	for i := range c.notifications {
		c.notifications[i].IsRead = 1
	}
	c.unreadCount = 0
	c.mu.Unlock()

	if err := c.gateway.MarkAllNotificationsRead(ctx); err != nil {
		log.Printf("mark all notifications read: %v", err)
	}
}

// Delete removes one notification locally and issues the write without
// waiting for confirmation.
func (c *Center) Delete(ctx context.Context, notificationID int64) {
	c.mu.Lock()
	kept := c.notifications[:0]
	for _, n := range c.notifications {
		if n.NotificationID == notificationID {
			if n.IsRead == 0 && c.unreadCount > 0 {
				c.unreadCount--
			}
			continue
		}
		kept = append(kept, n)
	}
	c.notifications = kept
	c.mu.Unlock()

	if err := c.gateway.DeleteNotification(ctx, notificationID); err != nil {
		log.Printf("delete notification %d: %v", notificationID, err)
	}
}

// DeleteAll clears the list locally and issues the write without waiting for
// confirmation.
func (c *Center) DeleteAll(ctx context.Context) {
	c.mu.Lock()
	c.notifications = nil
	c.unreadCount = 0
	c.mu.Unlock()

	if err := c.gateway.DeleteAllNotifications(ctx); err != nil {
		log.Printf("delete all notifications: %v", err)
	}
}

// Notifications returns a copy of the notification list.
func (c *Center) Notifications() []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Notification(nil), c.notifications...)
}

// UnreadCount returns the current unread counter.
func (c *Center) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unreadCount
}
