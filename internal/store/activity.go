package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"solar-field-backend/internal/apperr"
	"solar-field-backend/internal/model"
)

// DefaultActivityLimit bounds ListActivities when the caller passes no limit.
const DefaultActivityLimit = 50

func newScheduleActivity(id string, typ model.ActivityType, title string, sched *model.Schedule, site *model.Site, at time.Time) model.Activity {
	if id == "" {
		id = uuid.NewString()
	}
	desc := fmt.Sprintf("%s - %s at %s", sched.Title, sched.Date, sched.Time)
	if typ == model.ActivityCheckOut && sched.ActualDurationMinutes != nil {
		desc = fmt.Sprintf("%s (%d min)", desc, *sched.ActualDurationMinutes)
	}
	act := model.Activity{
		ID:          id,
		Type:        typ,
		Title:       title,
		Description: desc,
		SiteID:      sched.SiteRef(),
		ScheduleID:  sched.ID,
		UserID:      sched.AssignedUserID,
		Timestamp:   at,
		Icon:        typ.Icon(),
	}
	if site != nil {
		act.SiteName = site.Name
	}
	return act
}

func appendActivity(tx *gorm.DB, act *model.Activity) error {
	if err := tx.Create(act).Error; err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// AppendActivity records an audit entry produced outside the schedule
// lifecycle.
func (s *gormStore) AppendActivity(ctx context.Context, in ActivityInput) (*model.Activity, error) {
	if strings.TrimSpace(string(in.Type)) == "" {
		return nil, apperr.Validation("activity type is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.Validation("activity title is required")
	}
	ev, err := s.mutate(ctx, func() (Event, error) {
		act := model.Activity{
			ID:          uuid.NewString(),
			Type:        in.Type,
			Title:       strings.TrimSpace(in.Title),
			Description: in.Description,
			SiteID:      in.SiteID,
			ScheduleID:  in.ScheduleID,
			UserID:      in.UserID,
			Timestamp:   s.stamp(),
			Icon:        in.Type.Icon(),
		}
		if site := s.lookupSite(ctx, in.SiteID); site != nil {
			act.SiteName = site.Name
		}
		if err := appendActivity(s.db.WithContext(ctx), &act); err != nil {
			return Event{}, err
		}
		return Event{Kind: EventActivity, Activity: &act}, nil
	})
	if err != nil {
		return nil, err
	}
	return ev.Activity, nil
}

// ListActivities returns the newest activities first.
func (s *gormStore) ListActivities(ctx context.Context, limit int) ([]model.Activity, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	var list []model.Activity
	err := s.db.WithContext(ctx).Order("timestamp DESC").Order("id").Limit(limit).Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return list, nil
}

func (s *gormStore) MarkActivitySynced(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, func() (Event, error) {
		res := s.db.WithContext(ctx).Model(&model.Activity{}).Where("id = ?", id).UpdateColumn("synced", true)
		if res.Error != nil {
			return Event{}, fmt.Errorf("failed to mark activity %s synced: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return Event{}, apperr.NotFound(id)
		}
		return Event{Kind: EventSynced}, nil
	})
	return err
}
