package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"solar-field-backend/internal/model"
	"solar-field-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Notice is a message for every browser a technician subscribed.
type Notice struct {
	UserID     string `json:"-"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	ScheduleID string `json:"scheduleId,omitempty"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Notice
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	logger  *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, logger *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Notice, size*16),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		logger:  logger,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Debug("notification worker started", zap.Int("worker", id))
	for {
		select {
		case n := <-wp.jobs:
			wp.sendNotificationsForUser(ctx, n)
		case <-ctx.Done():
			wp.logger.Debug("notification worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues a notice, blocking while the queue is full.
func (wp *WorkerPool) Dispatch(n Notice) {
	wp.jobs <- n
}

// TryDispatch queues a notice unless the queue is full.
func (wp *WorkerPool) TryDispatch(n Notice) bool {
	select {
	case wp.jobs <- n:
		return true
	default:
		wp.logger.Warn("notification queue full; dropping notice", zap.String("user_id", n.UserID))
		return false
	}
}

// Listener turns store events into notices for the assigned technician.
// It never blocks the writer.
func (wp *WorkerPool) Listener() func(store.Event) {
	return func(ev store.Event) {
		if n, ok := NoticeFor(ev); ok {
			wp.TryDispatch(n)
		}
	}
}

// NoticeFor builds the notice for a new or cancelled visit with an assignee.
func NoticeFor(ev store.Event) (Notice, bool) {
	s := ev.Schedule
	if s == nil || s.AssignedUserID == "" {
		return Notice{}, false
	}
	var title string
	switch ev.Kind {
	case store.EventCreated:
		title = "New visit scheduled"
	case store.EventArchived:
		title = "Visit cancelled"
	default:
		return Notice{}, false
	}
	return Notice{
		UserID:     s.AssignedUserID,
		Title:      title,
		Body:       fmt.Sprintf("%s - %s at %s", s.Title, s.Date, s.Time),
		ScheduleID: s.ID,
	}, true
}

func (wp *WorkerPool) sendNotificationsForUser(ctx context.Context, n Notice) {
	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).Where("user_id = ?", n.UserID).Find(&subscriptions).Error; err != nil {
		wp.logger.Error("failed to load push subscriptions", zap.String("user_id", n.UserID), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(n)
	if err != nil {
		wp.logger.Error("failed to encode notice", zap.Error(err))
		return
	}
	wp.logger.Info("Sending notifications",
		zap.String("user_id", n.UserID),
		zap.Int("subscriptions", len(subscriptions)),
	)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Warn("push delivery failed", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.logger.Info("Deleting expired push subscription", zap.String("endpoint", sub.Endpoint))
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.logger.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
