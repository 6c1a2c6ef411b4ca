package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"solar-field-backend/internal/apperr"
	"solar-field-backend/internal/model"
	"solar-field-backend/internal/query"
)

// Store is the single source of truth for visits and their audit trail.
type Store interface {
	CreateSchedule(ctx context.Context, in ScheduleInput) (*model.Schedule, error)
	UpdateSchedule(ctx context.Context, id string, patch SchedulePatch) (*model.Schedule, error)
	ArchiveSchedule(ctx context.Context, id string) (*model.Schedule, error)
	HardDeleteSchedule(ctx context.Context, id string) error
	CheckIn(ctx context.Context, id, activityID string) (*model.Schedule, error)
	CheckOut(ctx context.Context, id string) (*model.Schedule, error)
	MarkScheduleSynced(ctx context.Context, id string) error
	SeedSchedules(ctx context.Context, list []model.Schedule) error

	GetSchedule(ctx context.Context, id string) (*model.Schedule, error)
	ListSchedules(ctx context.Context, f query.Filter) ([]model.Schedule, error)
	Subscribe(ctx context.Context, f query.Filter, fn func([]model.Schedule)) (func(), error)

	AppendActivity(ctx context.Context, in ActivityInput) (*model.Activity, error)
	ListActivities(ctx context.Context, limit int) ([]model.Activity, error)
	MarkActivitySynced(ctx context.Context, id string) error

	UnsyncedCount(ctx context.Context) (int64, error)
	PendingChanges(ctx context.Context) (model.ChangeSet, error)
	MarkChangesSynced(ctx context.Context, cs model.ChangeSet) (int, error)

	OnMutation(fn func(Event))
	DB() *gorm.DB
}

// Option configures a gormStore.
type Option func(*gormStore)

// WithClock replaces time.Now as the source of record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *gormStore) { s.clock = now }
}

// WithSites enables site validation and activity decoration.
func WithSites(r SiteResolver) Option {
	return func(s *gormStore) { s.sites = r }
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *gormStore) { s.logger = l }
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db     *gorm.DB
	hub    *query.Hub
	sites  SiteResolver
	logger *zap.Logger
	clock  func() time.Time

	// writeMu makes the store the single writer: every mutation, and the
	// snapshot delivery it triggers, runs under it in issue order.
	writeMu sync.Mutex

	stampMu   sync.Mutex
	lastStamp time.Time

	listenersMu sync.RWMutex
	listeners   []func(Event)
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, opts ...Option) Store {
	s := &gormStore{
		db:     db,
		logger: zap.NewNop(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = query.NewHub(s, s.logger)
	return s
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// OnMutation registers fn to run after every committed write.
func (s *gormStore) OnMutation(fn func(Event)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// mutate runs fn as the single writer, pushes fresh snapshots to live
// queries, then notifies mutation listeners outside the writer lock.
func (s *gormStore) mutate(ctx context.Context, fn func() (Event, error)) (Event, error) {
	s.writeMu.Lock()
	ev, err := fn()
	if err == nil {
		s.hub.Publish(context.WithoutCancel(ctx))
	}
	s.writeMu.Unlock()
	if err != nil {
		return Event{}, err
	}

	s.listenersMu.RLock()
	listeners := append([]func(Event){}, s.listeners...)
	s.listenersMu.RUnlock()
	for _, l := range listeners {
		l(ev)
	}
	return ev, nil
}

// stamp returns a UTC timestamp strictly after every previous one.
func (s *gormStore) stamp() time.Time {
	s.stampMu.Lock()
	defer s.stampMu.Unlock()
	now := s.clock().UTC().Truncate(time.Microsecond)
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = now
	return now
}

func (s *gormStore) GetSchedule(ctx context.Context, id string) (*model.Schedule, error) {
	var sched model.Schedule
	err := s.db.WithContext(ctx).First(&sched, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule %s: %w", id, err)
	}
	return &sched, nil
}

// ListSchedules returns the filtered visits in canonical order.
func (s *gormStore) ListSchedules(ctx context.Context, f query.Filter) ([]model.Schedule, error) {
	q := s.db.WithContext(ctx).Model(&model.Schedule{}).Where("archived = ?", f.ArchivedValue())
	if f.Completed != nil {
		if *f.Completed {
			q = q.Where("status = ?", model.StatusCompleted)
		} else {
			q = q.Where("status <> ?", model.StatusCompleted)
		}
	}
	if f.UserID != "" {
		q = q.Where("assigned_user_id = ?", f.UserID)
	}
	if f.Date != "" {
		q = q.Where("date = ?", f.Date)
	}

	var list []model.Schedule
	// Creation order is the arrival order the stable sort preserves for ties.
	if err := q.Order("created_at").Order("id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	query.Sort(list)
	return list, nil
}

// Subscribe registers a live query. See query.Hub.
func (s *gormStore) Subscribe(ctx context.Context, f query.Filter, fn func([]model.Schedule)) (func(), error) {
	return s.hub.Subscribe(ctx, f, fn)
}
