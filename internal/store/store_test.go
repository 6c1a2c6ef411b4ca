package store

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"solar-field-backend/internal/apperr"
	"solar-field-backend/internal/model"
	"solar-field-backend/internal/query"
	"solar-field-backend/internal/sites"
)

// A helper function to create a mock database connection.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store Store
	db    *gorm.DB
	clock *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, testDB.AutoMigrate(&model.Site{}, &model.Schedule{}, &model.Activity{}))

	dir := sites.NewDirectory(testDB, time.Minute)
	require.NoError(t, dir.Seed(context.Background(), []model.Site{
		{ID: "site-1", Name: "North Array"},
		{ID: "site-2", Name: "South Array"},
	}))

	clock := &testClock{now: time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC)}
	return &fixture{
		store: NewGormStore(testDB, WithSites(dir), WithClock(clock.Now)),
		db:    testDB,
		clock: clock,
	}
}

func strPtr(s string) *string { return &s }

func validInput() ScheduleInput {
	return ScheduleInput{
		SiteID:         strPtr("site-1"),
		Date:           "2026-10-20",
		Time:           "9:05 am",
		Title:          "Inverter inspection",
		AssignedUserID: "tech-1",
	}
}

func TestCreateSchedule_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(in *ScheduleInput)
	}{
		{name: "missing title", mutate: func(in *ScheduleInput) { in.Title = "   " }},
		{name: "bad date", mutate: func(in *ScheduleInput) { in.Date = "20/10/2026" }},
		{name: "impossible date", mutate: func(in *ScheduleInput) { in.Date = "2026-02-30" }},
		{name: "bad time", mutate: func(in *ScheduleInput) { in.Time = "25:00" }},
		{name: "unknown status", mutate: func(in *ScheduleInput) { in.Status = "paused" }},
		{name: "starts completed", mutate: func(in *ScheduleInput) { in.Status = model.StatusCompleted }},
		{name: "starts in progress", mutate: func(in *ScheduleInput) { in.Status = model.StatusInProgress }},
		{name: "site-bound without site", mutate: func(in *ScheduleInput) { in.SiteID = nil }},
		{name: "unknown site", mutate: func(in *ScheduleInput) { in.SiteID = strPtr("site-404") }},
		{name: "unlinked without reason", mutate: func(in *ScheduleInput) {
			in.IsUnlinked = true
			in.UnlinkedReason = "  "
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			in := validInput()
			tc.mutate(&in)

			_, err := f.store.CreateSchedule(context.Background(), in)
			require.Error(t, err)
			assert.True(t, apperr.IsValidation(err), "got %v", err)

			count, err := f.store.UnsyncedCount(context.Background())
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestCreateSchedule_NormalizesAndRecordsActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sched, err := f.store.CreateSchedule(ctx, validInput())
	require.NoError(t, err)

	assert.Regexp(t, `^visit-`, sched.ID)
	assert.Equal(t, "09:05 AM", sched.Time)
	assert.Equal(t, model.StatusScheduled, sched.Status)
	assert.Equal(t, model.OriginUser, sched.Origin)
	assert.False(t, sched.Synced)
	assert.Equal(t, int64(1), sched.Version)

	acts, err := f.store.ListActivities(ctx, 0)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, model.ActivitySchedule, acts[0].Type)
	assert.Equal(t, "Visit scheduled", acts[0].Title)
	assert.Equal(t, "Inverter inspection - 2026-10-20 at 09:05 AM", acts[0].Description)
	assert.Equal(t, "North Array", acts[0].SiteName)
	assert.Equal(t, sched.ID, acts[0].ScheduleID)
	assert.Equal(t, "calendar", acts[0].Icon)
	assert.True(t, acts[0].Timestamp.Equal(sched.UpdatedAt))

	count, err := f.store.UnsyncedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "the visit and its activity")
}

func TestCreateSchedule_UnlinkedDropsSite(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.IsUnlinked = true
	in.UnlinkedReason = " Emergency call-out "
	in.LinkedSiteID = strPtr("site-2")

	sched, err := f.store.CreateSchedule(context.Background(), in)
	require.NoError(t, err)

	assert.Nil(t, sched.SiteID)
	assert.Equal(t, "Emergency call-out", sched.UnlinkedReason)
	require.NotNil(t, sched.LinkedSiteID)
	assert.Equal(t, "site-2", *sched.LinkedSiteID)

	stored, err := f.store.GetSchedule(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.SiteID)
}

func TestUpdateSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sched, err := f.store.CreateSchedule(ctx, validInput())
	require.NoError(t, err)
	require.NoError(t, f.store.MarkScheduleSynced(ctx, sched.ID))

	_, err = f.store.UpdateSchedule(ctx, sched.ID, SchedulePatch{})
	assert.True(t, apperr.IsValidation(err))

	updated, err := f.store.UpdateSchedule(ctx, sched.ID, SchedulePatch{Title: strPtr("Panel cleaning"), Time: strPtr("14:30")})
	require.NoError(t, err)
	assert.Equal(t, "Panel cleaning", updated.Title)
	assert.Equal(t, "02:30 PM", updated.Time)
	assert.False(t, updated.Synced, "an edit must clear the synced flag")
	assert.Equal(t, int64(2), updated.Version)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	acts, err := f.store.ListActivities(ctx, 0)
	require.NoError(t, err)
	require.Len(t, acts, 2)
	assert.Equal(t, model.ActivityScheduleEdit, acts[0].Type)

	cancelled := model.StatusCancelled
	_, err = f.store.UpdateSchedule(ctx, sched.ID, SchedulePatch{Status: &cancelled})
	require.NoError(t, err)
	acts, err = f.store.ListActivities(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ActivityCancel, acts[0].Type)

	_, err = f.store.UpdateSchedule(ctx, "visit-missing", SchedulePatch{Title: strPtr("x")})
	assert.True(t, apperr.IsNotFound(err))

	// Turning a visit unlinked without a reason is rejected and leaves the row intact.
	_, err = f.store.UpdateSchedule(ctx, sched.ID, SchedulePatch{IsUnlinked: boolPtr(true)})
	assert.True(t, apperr.IsValidation(err))
	stored, err := f.store.GetSchedule(ctx, sched.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.SiteID)
}

func boolPtr(b bool) *bool { return &b }

func statusPtr(s model.ScheduleStatus) *model.ScheduleStatus { return &s }

func TestUpdateSchedule_StatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fresh, err := f.store.CreateSchedule(ctx, validInput())
	require.NoError(t, err)

	for _, status := range []model.ScheduleStatus{model.StatusInProgress, model.StatusCompleted} {
		_, err = f.store.UpdateSchedule(ctx, fresh.ID, SchedulePatch{Status: statusPtr(status)})
		assert.True(t, apperr.IsInvalidState(err), "%s must go through check-in/out, got %v", status, err)
	}
	stored, err := f.store.GetSchedule(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, stored.Status)
	assert.Equal(t, fresh.Version, stored.Version, "a rejected patch writes nothing")

	// Cancel and reinstate stay available through update.
	_, err = f.store.UpdateSchedule(ctx, fresh.ID, SchedulePatch{Status: statusPtr(model.StatusCancelled)})
	require.NoError(t, err)
	reinstated, err := f.store.UpdateSchedule(ctx, fresh.ID, SchedulePatch{Status: statusPtr(model.StatusScheduled)})
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, reinstated.Status)

	in, err := f.store.CheckIn(ctx, fresh.ID, "")
	require.NoError(t, err)
	for _, status := range []model.ScheduleStatus{model.StatusScheduled, model.StatusCancelled, model.StatusCompleted} {
		_, err = f.store.UpdateSchedule(ctx, fresh.ID, SchedulePatch{Status: statusPtr(status)})
		assert.True(t, apperr.IsInvalidState(err), "checked-in visit patched to %s, got %v", status, err)
	}

	// Non-status edits and a same-status patch still pass on a checked-in visit.
	edited, err := f.store.UpdateSchedule(ctx, fresh.ID, SchedulePatch{
		Status: statusPtr(model.StatusInProgress), Description: strPtr("Bring the thermal camera"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, edited.Status)
	assert.True(t, in.CheckedInAt.Equal(*edited.CheckedInAt))

	out, err := f.store.CheckOut(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, out.Status)
	require.NotNil(t, out.ActualDurationMinutes)
}

func TestArchiveAndHardDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sched, err := f.store.CreateSchedule(ctx, validInput())
	require.NoError(t, err)

	archived, err := f.store.ArchiveSchedule(ctx, sched.ID)
	require.NoError(t, err)
	assert.True(t, archived.Archived)
	assert.Equal(t, model.StatusCancelled, archived.Status)

	live, err := f.store.ListSchedules(ctx, query.Filter{})
	require.NoError(t, err)
	assert.Empty(t, live)

	gone, err := f.store.ListSchedules(ctx, query.Filter{Archived: query.Bool(true)})
	require.NoError(t, err)
	require.Len(t, gone, 1)

	_, err = f.store.UpdateSchedule(ctx, sched.ID, SchedulePatch{Title: strPtr("again")})
	assert.True(t, apperr.IsNotFound(err))
	_, err = f.store.ArchiveSchedule(ctx, sched.ID)
	assert.True(t, apperr.IsNotFound(err))

	count, err := f.store.UnsyncedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "only the two activities; archived visits are not counted")

	pending, err := f.store.PendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, pending.Schedules, 1, "the cancellation still has to reach the remote")

	require.NoError(t, f.store.HardDeleteSchedule(ctx, sched.ID))
	_, err = f.store.GetSchedule(ctx, sched.ID)
	assert.True(t, apperr.IsNotFound(err))
	assert.True(t, apperr.IsNotFound(f.store.HardDeleteSchedule(ctx, sched.ID)))

	acts, err := f.store.ListActivities(ctx, 0)
	require.NoError(t, err)
	require.Len(t, acts, 2)
	assert.Equal(t, model.ActivityCancel, acts[0].Type)
}

func TestCheckInCheckOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sched, err := f.store.CreateSchedule(ctx, validInput())
	require.NoError(t, err)

	_, err = f.store.CheckOut(ctx, sched.ID)
	assert.True(t, apperr.IsInvalidState(err), "check-out before check-in")

	in, err := f.store.CheckIn(ctx, sched.ID, "act-42")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, in.Status)
	require.NotNil(t, in.CheckedInAt)
	require.NotNil(t, in.ActivityID)
	assert.Equal(t, "act-42", *in.ActivityID)

	_, err = f.store.CheckIn(ctx, sched.ID, "")
	assert.True(t, apperr.IsInvalidState(err), "double check-in")

	f.clock.Advance(47*time.Minute + 30*time.Second)
	out, err := f.store.CheckOut(ctx, sched.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, out.Status)
	require.NotNil(t, out.ActualDurationMinutes)
	assert.Equal(t, 47, *out.ActualDurationMinutes)
	assert.False(t, out.CheckedOutAt.Before(*out.CheckedInAt))

	_, err = f.store.CheckOut(ctx, sched.ID)
	assert.True(t, apperr.IsInvalidState(err), "double check-out")

	acts, err := f.store.ListActivities(ctx, 0)
	require.NoError(t, err)
	require.Len(t, acts, 3)
	assert.Equal(t, model.ActivityCheckOut, acts[0].Type)
	assert.Equal(t, "Inverter inspection - 2026-10-20 at 09:05 AM (47 min)", acts[0].Description)
	assert.Equal(t, model.ActivityCheckIn, acts[1].Type)
	assert.Equal(t, "act-42", acts[1].ID)
}

func TestCheckIn_RejectsCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := validInput()
	in.Status = model.StatusCancelled
	sched, err := f.store.CreateSchedule(ctx, in)
	require.NoError(t, err)

	_, err = f.store.CheckIn(ctx, sched.ID, "")
	assert.True(t, apperr.IsInvalidState(err))
}

func TestSeededRecordsAreReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fixtures := []model.Schedule{{
		ID: "seed-1", SiteID: strPtr("site-1"), Date: "2026-10-21", Time: "10:00",
		Title: "Quarterly audit", AssignedUserID: "tech-1",
	}}
	require.NoError(t, f.store.SeedSchedules(ctx, fixtures))
	require.NoError(t, f.store.SeedSchedules(ctx, fixtures))

	list, err := f.store.ListSchedules(ctx, query.Filter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.OriginSeeded, list[0].Origin)
	assert.True(t, list[0].Synced)
	assert.Equal(t, "10:00 AM", list[0].Time)

	_, err = f.store.UpdateSchedule(ctx, "seed-1", SchedulePatch{Title: strPtr("x")})
	assert.True(t, apperr.IsInvalidState(err))
	_, err = f.store.ArchiveSchedule(ctx, "seed-1")
	assert.True(t, apperr.IsInvalidState(err))
	_, err = f.store.CheckIn(ctx, "seed-1", "")
	assert.True(t, apperr.IsInvalidState(err))
	assert.True(t, apperr.IsInvalidState(f.store.HardDeleteSchedule(ctx, "seed-1")))

	count, err := f.store.UnsyncedCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMarkChangesSynced_KeepsConcurrentEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.store.CreateSchedule(ctx, validInput())
	require.NoError(t, err)
	second, err := f.store.CreateSchedule(ctx, validInput())
	require.NoError(t, err)

	cs, err := f.store.PendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, cs.Schedules, 2)
	require.Len(t, cs.Activities, 2)

	// An edit lands while the pass is talking to the remote.
	_, err = f.store.UpdateSchedule(ctx, second.ID, SchedulePatch{Title: strPtr("Edited mid-sync")})
	require.NoError(t, err)

	marked, err := f.store.MarkChangesSynced(ctx, cs)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	got, err := f.store.GetSchedule(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.Synced)
	got, err = f.store.GetSchedule(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, got.Synced)

	rest, err := f.store.PendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, rest.Schedules, 1)
	require.Len(t, rest.Activities, 1)
	assert.Equal(t, model.ActivityScheduleEdit, rest.Activities[0].Type)
}

func TestAppendActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.AppendActivity(ctx, ActivityInput{Type: model.ActivityInspection})
	assert.True(t, apperr.IsValidation(err))

	act, err := f.store.AppendActivity(ctx, ActivityInput{
		Type: model.ActivityInspection, Title: "Inspection submitted", SiteID: "site-2", UserID: "tech-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "South Array", act.SiteName)
	assert.Equal(t, "clipboard", act.Icon)

	require.NoError(t, f.store.MarkActivitySynced(ctx, act.ID))
	assert.True(t, apperr.IsNotFound(f.store.MarkActivitySynced(ctx, "missing")))
}

func TestSubscribeAndOnMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var kinds []EventKind
	f.store.OnMutation(func(ev Event) { kinds = append(kinds, ev.Kind) })

	var snapshots [][]model.Schedule
	cancel, err := f.store.Subscribe(ctx, query.Filter{UserID: "tech-1"}, func(list []model.Schedule) {
		snapshots = append(snapshots, list)
	})
	require.NoError(t, err)
	defer cancel()
	require.Len(t, snapshots, 1)
	assert.Empty(t, snapshots[0])

	sched, err := f.store.CreateSchedule(ctx, validInput())
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	require.Len(t, snapshots[1], 1)

	other := validInput()
	other.AssignedUserID = "tech-2"
	_, err = f.store.CreateSchedule(ctx, other)
	require.NoError(t, err)
	assert.Len(t, snapshots, 2, "writes outside the filter do not re-deliver")

	require.NoError(t, f.store.MarkScheduleSynced(ctx, sched.ID))
	require.Len(t, snapshots, 3)
	assert.True(t, snapshots[2][0].Synced)

	assert.Equal(t, []EventKind{EventCreated, EventCreated, EventSynced}, kinds)
}

func TestGormStore_MarkScheduleSynced(t *testing.T) {
	testCases := []struct {
		name             string
		mockExpectations func(mock sqlmock.Sqlmock)
		expectNotFound   bool
	}{
		{
			name: "Row updated",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "schedules" SET "synced"=$1 WHERE id = $2`)).
					WithArgs(true, "visit-1").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "Unknown id",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "schedules" SET "synced"=$1 WHERE id = $2`)).
					WithArgs(true, "visit-1").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
			expectNotFound: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newMockDB(t)
			store := NewGormStore(gormDB)

			tc.mockExpectations(mock)

			err := store.MarkScheduleSynced(context.Background(), "visit-1")
			if tc.expectNotFound {
				assert.True(t, apperr.IsNotFound(err))
			} else {
				assert.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
