// Package syncer reconciles unsynced local changes with the remote. Passes
// run silently after connectivity settles, on mutations, on a periodic tick,
// or on demand; at most one pass is in flight at any time.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"solar-field-backend/internal/apperr"
	"solar-field-backend/internal/connectivity"
	"solar-field-backend/internal/remote"
	"solar-field-backend/internal/store"
	"solar-field-backend/internal/timer"
)

const (
	DefaultSettleDelay = 2 * time.Second
	DefaultInterval    = 10 * time.Minute
)

// State is the externally observable orchestrator state.
type State string

const (
	StateOffline      State = "offline"
	StateIdleUnsynced State = "idle-unsynced"
	StateSyncing      State = "syncing"
	StateSynced       State = "synced"
)

// Status is what UI collaborators render as the sync chip.
type Status struct {
	State         State      `json:"state"`
	IsOnline      bool       `json:"isOnline"`
	IsSyncing     bool       `json:"isSyncing"`
	LastSyncTime  *time.Time `json:"lastSyncTime,omitempty"`
	UnsyncedCount int64      `json:"unsyncedCount"`
	Error         string     `json:"error,omitempty"`
}

// Result is returned to callers of a manual sync.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	// Synced is the number of records the pass sent.
	Synced int `json:"synced"`
}

const (
	msgOffline  = "No internet connection. Your changes are saved and will sync when you're back online."
	msgUpToDate = "Everything is already up to date."
	msgFailed   = "Sync failed. Your changes are saved locally and will be retried automatically."
)

// Options tunes an Orchestrator. Zero values select the defaults.
type Options struct {
	SettleDelay time.Duration
	Interval    time.Duration
	// ManualOnly disables every silent pass: reconnects and mutations only
	// refresh the status, and sync happens through SyncNow alone.
	ManualOnly bool
	Logger     *zap.Logger
	Clock      func() time.Time
}

// pass is one in-flight reconciliation that later manual requests can join.
type pass struct {
	done   chan struct{}
	result Result
	err    error
}

// Orchestrator owns the sync state machine.
type Orchestrator struct {
	store      store.Store
	remote     remote.Reconciler
	observer   connectivity.Observer
	settle     *timer.Debouncer
	interval   time.Duration
	manualOnly bool
	logger     *zap.Logger
	clock      func() time.Time

	unsubscribe func()

	// mu guards the fields below. It is never held across store, remote or
	// listener calls.
	mu        sync.Mutex
	baseCtx   context.Context
	online    bool
	inflight  *pass
	count     int64
	lastSync  *time.Time
	lastErr   string
	nextID    int
	listeners map[int]func(Status)
}

// New wires an orchestrator to the store's mutation events and the
// observer's connectivity changes.
func New(st store.Store, rec remote.Reconciler, obs connectivity.Observer, opts Options) *Orchestrator {
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	o := &Orchestrator{
		store:      st,
		remote:     rec,
		observer:   obs,
		settle:     timer.NewDebouncer(opts.SettleDelay),
		interval:   opts.Interval,
		manualOnly: opts.ManualOnly,
		logger:     opts.Logger,
		clock:      opts.Clock,
		baseCtx:    context.Background(),
		listeners:  make(map[int]func(Status)),
	}
	o.online = obs.Current(context.Background()).Online()
	o.unsubscribe = obs.Subscribe(o.onConnectivity)
	st.OnMutation(o.onMutation)
	return o
}

// Close stops reacting to connectivity and drops any pending settle timer.
func (o *Orchestrator) Close() {
	o.unsubscribe()
	o.settle.Cancel()
}

// Run drives the periodic silent sync until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) {
	o.mu.Lock()
	o.baseCtx = ctx
	o.mu.Unlock()

	o.logger.Info("Starting sync orchestrator",
		zap.Duration("settle_delay", o.settle.Delay()),
		zap.Duration("interval", o.interval),
		zap.Bool("manual_only", o.manualOnly),
	)

	// Work left over from a previous run is picked up after the settle delay.
	if o.isOnline() && o.Refresh(ctx).UnsyncedCount > 0 {
		o.scheduleSilent()
	}

	ticker := time.NewTimer(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.settle.Cancel()
			o.logger.Info("Sync orchestrator shutting down")
			return
		case <-ticker.C:
			o.tick(ctx)
			ticker.Reset(o.interval)
		}
	}
}

// SyncNow runs a manual pass, bypassing the settle delay. If a pass is
// already in flight, SyncNow waits for it and returns its outcome.
func (o *Orchestrator) SyncNow(ctx context.Context) (Result, error) {
	o.settle.Cancel()
	res, _, err := o.run(ctx, true)
	return res, err
}

// Status returns the last known status without touching the store.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statusLocked()
}

// Refresh recounts unsynced records and publishes the resulting status.
func (o *Orchestrator) Refresh(ctx context.Context) Status {
	count, err := o.store.UnsyncedCount(ctx)
	o.mu.Lock()
	if err != nil {
		o.logger.Error("failed to count unsynced records", zap.Error(err))
	} else {
		o.count = count
	}
	st := o.statusLocked()
	fns := o.listenersLocked()
	o.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
	return st
}

// OnStatus registers fn for status changes and returns a function that
// removes it.
func (o *Orchestrator) OnStatus(fn func(Status)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = fn
	return func() {
		o.mu.Lock()
		delete(o.listeners, id)
		o.mu.Unlock()
	}
}

func (o *Orchestrator) statusLocked() Status {
	st := Status{
		IsOnline:      o.online,
		IsSyncing:     o.inflight != nil,
		UnsyncedCount: o.count,
		Error:         o.lastErr,
	}
	if o.lastSync != nil {
		t := *o.lastSync
		st.LastSyncTime = &t
	}
	switch {
	case !o.online:
		st.State = StateOffline
	case o.inflight != nil:
		st.State = StateSyncing
	case o.count > 0:
		st.State = StateIdleUnsynced
	default:
		st.State = StateSynced
	}
	return st
}

func (o *Orchestrator) listenersLocked() []func(Status) {
	fns := make([]func(Status), 0, len(o.listeners))
	for _, fn := range o.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func (o *Orchestrator) isOnline() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.online
}

func (o *Orchestrator) baseContext() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.baseCtx
}

func (o *Orchestrator) onConnectivity(s connectivity.State) {
	online := s.Online()
	o.mu.Lock()
	wasOnline := o.online
	o.online = online
	o.mu.Unlock()

	ctx := o.baseContext()
	if !online {
		if o.settle.Cancel() {
			o.logger.Debug("settle timer cancelled: connection lost")
		}
		o.Refresh(ctx)
		return
	}
	st := o.Refresh(ctx)
	if !wasOnline && st.UnsyncedCount > 0 {
		o.logger.Info("Connection restored; sync scheduled", zap.Int64("unsynced", st.UnsyncedCount))
		o.scheduleSilent()
	}
}

func (o *Orchestrator) onMutation(ev store.Event) {
	st := o.Refresh(o.baseContext())
	if ev.Dirty() && st.IsOnline {
		o.scheduleSilent()
	}
}

// scheduleSilent starts or resets the settle timer unless silent passes are
// disabled.
func (o *Orchestrator) scheduleSilent() {
	if o.manualOnly {
		return
	}
	o.settle.Trigger(o.settled)
}

// settled runs when the settle timer fires.
func (o *Orchestrator) settled() {
	ctx := o.baseContext()
	if ctx.Err() != nil {
		return
	}
	o.silent(ctx)
}

func (o *Orchestrator) tick(ctx context.Context) {
	st := o.Refresh(ctx)
	if o.manualOnly {
		return
	}
	if !st.IsOnline || st.IsSyncing || st.UnsyncedCount == 0 {
		return
	}
	o.silent(ctx)
}

func (o *Orchestrator) silent(ctx context.Context) {
	res, ran, err := o.run(ctx, false)
	if !ran {
		return
	}
	if err != nil {
		o.logger.Warn("Silent sync failed", zap.Error(err))
		return
	}
	o.logger.Info("Silent sync finished", zap.Int("synced", res.Synced))
}

// run executes a pass or, for manual requests, joins the one in flight.
// ran is false when a silent request found nothing to do.
func (o *Orchestrator) run(ctx context.Context, manual bool) (Result, bool, error) {
	online := o.observer.Current(ctx).Online()

	o.mu.Lock()
	if p := o.inflight; p != nil {
		o.mu.Unlock()
		if !manual {
			return Result{}, false, nil
		}
		select {
		case <-p.done:
			return p.result, true, p.err
		case <-ctx.Done():
			return Result{Success: false, Message: msgFailed}, true, ctx.Err()
		}
	}
	if !online {
		o.mu.Unlock()
		if !manual {
			o.logger.Debug("Silent sync skipped: offline; will retry on reconnect or next tick")
			return Result{}, false, nil
		}
		return Result{Success: false, Message: msgOffline}, true, apperr.Offline()
	}
	p := &pass{done: make(chan struct{})}
	o.inflight = p
	st := o.statusLocked()
	fns := o.listenersLocked()
	o.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}

	// The pass is shared with joiners, so it outlives a cancelled caller.
	p.result, p.err = o.execute(context.WithoutCancel(ctx))

	o.mu.Lock()
	o.inflight = nil
	if p.err != nil {
		o.lastErr = p.err.Error()
	} else {
		now := o.clock()
		o.lastSync = &now
		o.lastErr = ""
	}
	o.mu.Unlock()
	close(p.done)

	after := o.Refresh(ctx)
	// Changes made while the pass was running get their own pass.
	if p.err == nil && after.IsOnline && after.UnsyncedCount > 0 {
		o.scheduleSilent()
	}
	return p.result, true, p.err
}

// execute sends every pending change and flips the synced flags only after
// the remote accepted the whole batch.
func (o *Orchestrator) execute(ctx context.Context) (Result, error) {
	cs, err := o.store.PendingChanges(ctx)
	if err != nil {
		return Result{Success: false, Message: msgFailed}, apperr.SyncFailure(err)
	}
	if cs.Empty() {
		return Result{Success: true, Message: msgUpToDate}, nil
	}

	if err := o.remote.Reconcile(ctx, cs); err != nil {
		return Result{Success: false, Message: msgFailed}, apperr.SyncFailure(err)
	}

	marked, err := o.store.MarkChangesSynced(ctx, cs)
	if err != nil {
		return Result{Success: false, Message: msgFailed}, apperr.SyncFailure(err)
	}
	o.logger.Debug("changes marked synced",
		zap.Int("schedules", marked),
		zap.Int("activities", len(cs.Activities)),
	)
	return Result{
		Success: true,
		Message: fmt.Sprintf("Synced %d change(s).", cs.Len()),
		Synced:  cs.Len(),
	}, nil
}
