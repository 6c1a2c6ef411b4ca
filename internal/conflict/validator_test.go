package conflict

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"solar-field-backend/internal/apperr"
	"solar-field-backend/internal/model"
	"solar-field-backend/internal/parse"
	"solar-field-backend/internal/query"
	"solar-field-backend/internal/store"
)

type memLister struct {
	list []model.Schedule
	err  error
}

func (m *memLister) ListSchedules(_ context.Context, f query.Filter) ([]model.Schedule, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []model.Schedule
	for _, s := range m.list {
		if f.Matches(&s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func visit(id, user, date, clock string) model.Schedule {
	return model.Schedule{ID: id, AssignedUserID: user, Date: date, Time: clock, Title: "Visit " + id, Status: model.StatusScheduled}
}

func TestValidator_Check(t *testing.T) {
	cancelled := visit("c", "u1", "2025-06-01", "10:00 AM")
	cancelled.Status = model.StatusCancelled
	archived := visit("a", "u1", "2025-06-01", "11:00 AM")
	archived.Archived = true

	lister := &memLister{list: []model.Schedule{
		visit("v1", "u1", "2025-06-01", "09:00 AM"),
		visit("v2", "u2", "2025-06-01", "02:00 PM"),
		cancelled,
		archived,
	}}
	v := NewValidator(lister)

	testCases := []struct {
		name      string
		user      string
		date      string
		clock     string
		excludeID string
		want      bool
	}{
		{name: "exact same time", user: "u1", date: "2025-06-01", clock: "09:00 AM", want: true},
		{name: "five minutes after", user: "u1", date: "2025-06-01", clock: "09:05 AM", want: true},
		{name: "five minutes before", user: "u1", date: "2025-06-01", clock: "08:55 AM", want: true},
		{name: "six minutes after", user: "u1", date: "2025-06-01", clock: "09:06 AM", want: false},
		{name: "24h notation", user: "u1", date: "2025-06-01", clock: "9:02", want: true},
		{name: "other day", user: "u1", date: "2025-06-02", clock: "09:00 AM", want: false},
		{name: "other user", user: "u3", date: "2025-06-01", clock: "09:00 AM", want: false},
		{name: "empty user", user: "", date: "2025-06-01", clock: "09:00 AM", want: false},
		{name: "cancelled ignored", user: "u1", date: "2025-06-01", clock: "10:00 AM", want: false},
		{name: "archived ignored", user: "u1", date: "2025-06-01", clock: "11:00 AM", want: false},
		{name: "edited visit excluded", user: "u1", date: "2025-06-01", clock: "09:01 AM", excludeID: "v1", want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := v.Check(context.Background(), tc.user, tc.date, tc.clock, tc.excludeID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.HasConflict)
			if tc.want {
				assert.Equal(t, "v1", res.ConflictingID)
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}

func TestValidator_CheckErrors(t *testing.T) {
	v := NewValidator(&memLister{})
	_, err := v.Check(context.Background(), "u1", "06/01/2025", "09:00 AM", "")
	assert.True(t, apperr.IsValidation(err))
	_, err = v.Check(context.Background(), "u1", "2025-06-01", "noon", "")
	assert.True(t, apperr.IsValidation(err))

	v = NewValidator(&memLister{err: errors.New("db down")})
	_, err = v.Check(context.Background(), "u1", "2025-06-01", "09:00 AM", "")
	assert.ErrorContains(t, err, "db down")
}

func TestValidator_Symmetric(t *testing.T) {
	ctx := context.Background()
	for t1 := 8 * 60; t1 < 8*60+20; t1++ {
		for t2 := 8 * 60; t2 < 8*60+20; t2++ {
			a, b := parse.FormatClock(t1), parse.FormatClock(t2)

			forward, err := NewValidator(&memLister{list: []model.Schedule{visit("x", "u1", "2025-06-01", b)}}).
				Check(ctx, "u1", "2025-06-01", a, "")
			require.NoError(t, err)
			backward, err := NewValidator(&memLister{list: []model.Schedule{visit("x", "u1", "2025-06-01", a)}}).
				Check(ctx, "u1", "2025-06-01", b, "")
			require.NoError(t, err)

			assert.Equal(t, forward.HasConflict, backward.HasConflict, "%s vs %s", a, b)
			assert.Equal(t, abs(t1-t2) <= BufferMinutes, forward.HasConflict, "%s vs %s", a, b)
		}
	}
}

func TestValidator_UnlinkedThenSiteVisitScenario(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()
	require.NoError(t, testDB.AutoMigrate(&model.Schedule{}, &model.Activity{}))

	ctx := context.Background()
	st := store.NewGormStore(testDB, store.WithClock(func() time.Time { return time.Date(2025, 5, 30, 12, 0, 0, 0, time.UTC) }))
	v := NewValidator(st)

	_, err = st.CreateSchedule(ctx, store.ScheduleInput{
		IsUnlinked: true, UnlinkedReason: "Emergency repair",
		Date: "2025-06-01", Time: "09:00 AM", Title: "Emergency repair", AssignedUserID: "u1",
	})
	require.NoError(t, err)

	res, err := v.Check(ctx, "u1", "2025-06-01", "09:03 AM", "")
	require.NoError(t, err)
	assert.True(t, res.HasConflict)

	site := "site-9"
	_, err = st.CreateSchedule(ctx, store.ScheduleInput{
		SiteID: &site, Date: "2025-06-01", Time: "09:03 AM", Title: "Inverter swap", AssignedUserID: "u1",
	})
	require.NoError(t, err)

	list, err := st.ListSchedules(ctx, query.Filter{Date: "2025-06-01"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].IsUnlinked)
	assert.Equal(t, "Inverter swap", list[1].Title)
}
