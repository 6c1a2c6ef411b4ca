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
	"solar-field-backend/internal/parse"
)

// ScheduleIDPrefix namespaces ids of visits created through the store.
const ScheduleIDPrefix = "visit-"

// CreateSchedule validates and persists a new visit together with its
// "schedule" activity.
func (s *gormStore) CreateSchedule(ctx context.Context, in ScheduleInput) (*model.Schedule, error) {
	ev, err := s.mutate(ctx, func() (Event, error) {
		status := in.Status
		if status == "" {
			status = model.StatusScheduled
		}
		if status == model.StatusInProgress || status == model.StatusCompleted {
			return Event{}, apperr.Validation("new visits start as %s or %s", model.StatusScheduled, model.StatusCancelled)
		}
		sched := model.Schedule{
			ID:             ScheduleIDPrefix + uuid.NewString(),
			Origin:         model.OriginUser,
			SiteID:         in.SiteID,
			Date:           strings.TrimSpace(in.Date),
			Time:           in.Time,
			Title:          strings.TrimSpace(in.Title),
			Description:    in.Description,
			AssignedUserID: in.AssignedUserID,
			Status:         status,
			IsUnlinked:     in.IsUnlinked,
			UnlinkedReason: in.UnlinkedReason,
			LinkedSiteID:   in.LinkedSiteID,
		}
		site, err := s.validate(ctx, &sched)
		if err != nil {
			return Event{}, err
		}

		now := s.stamp()
		sched.Version = 1
		sched.Synced = false
		sched.CreatedAt = now
		sched.UpdatedAt = now
		act := newScheduleActivity("", model.ActivitySchedule, "Visit scheduled", &sched, site, now)

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&sched).Error; err != nil {
				return fmt.Errorf("failed to create schedule: %w", err)
			}
			return appendActivity(tx, &act)
		})
		if err != nil {
			return Event{}, err
		}
		s.logger.Debug("schedule created")
		return Event{Kind: EventCreated, Schedule: &sched, Activity: &act}, nil
	})
	if err != nil {
		return nil, err
	}
	return ev.Schedule, nil
}

// UpdateSchedule applies the provided fields, re-validates the merged visit
// and records a "schedule-edit" activity, or "cancel" when the patch cancels it.
func (s *gormStore) UpdateSchedule(ctx context.Context, id string, patch SchedulePatch) (*model.Schedule, error) {
	if patch.Empty() {
		return nil, apperr.Validation("no fields to update")
	}
	ev, err := s.mutate(ctx, func() (Event, error) {
		existing, err := s.loadMutable(ctx, id)
		if err != nil {
			return Event{}, err
		}

		if err := checkStatusChange(existing, patch.Status); err != nil {
			return Event{}, err
		}
		merged := *existing
		applyPatch(&merged, patch)
		site, err := s.validate(ctx, &merged)
		if err != nil {
			return Event{}, err
		}

		actType, actTitle := model.ActivityScheduleEdit, "Visit updated"
		if merged.Status == model.StatusCancelled && existing.Status != model.StatusCancelled {
			actType, actTitle = model.ActivityCancel, "Visit cancelled"
		}
		return s.commitChange(ctx, EventUpdated, &merged, site, actType, actTitle, "")
	})
	if err != nil {
		return nil, err
	}
	return ev.Schedule, nil
}

// ArchiveSchedule cancels a visit and hides it from default listings. The row
// is kept.
func (s *gormStore) ArchiveSchedule(ctx context.Context, id string) (*model.Schedule, error) {
	ev, err := s.mutate(ctx, func() (Event, error) {
		sched, err := s.loadMutable(ctx, id)
		if err != nil {
			return Event{}, err
		}
		sched.Archived = true
		sched.Status = model.StatusCancelled
		site := s.lookupSite(ctx, sched.SiteRef())
		return s.commitChange(ctx, EventArchived, sched, site, model.ActivityCancel, "Visit cancelled", "")
	})
	if err != nil {
		return nil, err
	}
	return ev.Schedule, nil
}

// HardDeleteSchedule permanently removes a visit, archived or not. Callers
// must have confirmed that nothing external still refers to it.
func (s *gormStore) HardDeleteSchedule(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, func() (Event, error) {
		sched, err := s.GetSchedule(ctx, id)
		if err != nil {
			return Event{}, err
		}
		if sched.Origin == model.OriginSeeded {
			return Event{}, apperr.InvalidState(id, "seeded records cannot be deleted")
		}
		if err := s.db.WithContext(ctx).Delete(&model.Schedule{}, "id = ?", id).Error; err != nil {
			return Event{}, fmt.Errorf("failed to delete schedule %s: %w", id, err)
		}
		return Event{Kind: EventDeleted, Schedule: sched}, nil
	})
	return err
}

// CheckIn starts the on-site phase of a visit. activityID, when given, is
// used as the id of the check-in activity.
func (s *gormStore) CheckIn(ctx context.Context, id, activityID string) (*model.Schedule, error) {
	ev, err := s.mutate(ctx, func() (Event, error) {
		sched, err := s.loadMutable(ctx, id)
		if err != nil {
			return Event{}, err
		}
		switch {
		case sched.CheckedInAt != nil:
			return Event{}, apperr.InvalidState(id, "visit is already checked in")
		case sched.Status == model.StatusCancelled || sched.Status == model.StatusCompleted:
			return Event{}, apperr.InvalidState(id, "cannot check in to a %s visit", sched.Status)
		}
		if activityID == "" {
			activityID = uuid.NewString()
		}

		now := s.stamp()
		sched.CheckedInAt = &now
		sched.Status = model.StatusInProgress
		sched.ActivityID = &activityID
		site := s.lookupSite(ctx, sched.SiteRef())
		return s.commitAt(ctx, now, EventCheckedIn, sched, site, model.ActivityCheckIn, "Checked in", activityID)
	})
	if err != nil {
		return nil, err
	}
	return ev.Schedule, nil
}

// CheckOut completes a checked-in visit and records its duration in whole minutes.
func (s *gormStore) CheckOut(ctx context.Context, id string) (*model.Schedule, error) {
	ev, err := s.mutate(ctx, func() (Event, error) {
		sched, err := s.loadMutable(ctx, id)
		if err != nil {
			return Event{}, err
		}
		if sched.CheckedInAt == nil {
			return Event{}, apperr.InvalidState(id, "cannot check out before checking in")
		}
		if sched.CheckedOutAt != nil {
			return Event{}, apperr.InvalidState(id, "visit is already checked out")
		}

		now := s.stamp()
		out := now
		if out.Before(*sched.CheckedInAt) {
			out = *sched.CheckedInAt
		}
		minutes := int(out.Sub(*sched.CheckedInAt) / time.Minute)
		sched.CheckedOutAt = &out
		sched.ActualDurationMinutes = &minutes
		sched.Status = model.StatusCompleted
		site := s.lookupSite(ctx, sched.SiteRef())
		return s.commitAt(ctx, now, EventCheckedOut, sched, site, model.ActivityCheckOut, "Checked out", "")
	})
	if err != nil {
		return nil, err
	}
	return ev.Schedule, nil
}

// SeedSchedules loads read-only fixture visits. Existing ids are left alone.
func (s *gormStore) SeedSchedules(ctx context.Context, list []model.Schedule) error {
	if len(list) == 0 {
		return nil
	}
	_, err := s.mutate(ctx, func() (Event, error) {
		return Event{Kind: EventSeeded}, s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for i := range list {
				sched := list[i]
				sched.Origin = model.OriginSeeded
				sched.Synced = true
				if sched.Status == "" {
					sched.Status = model.StatusScheduled
				}
				if minutes, err := parse.ParseClock(sched.Time); err == nil {
					sched.Time = parse.FormatClock(minutes)
				}
				if sched.CreatedAt.IsZero() {
					now := s.stamp()
					sched.CreatedAt, sched.UpdatedAt = now, now
				}

				var count int64
				if err := tx.Model(&model.Schedule{}).Where("id = ?", sched.ID).Count(&count).Error; err != nil {
					return fmt.Errorf("failed to check fixture %s: %w", sched.ID, err)
				}
				if count > 0 {
					continue
				}
				if err := tx.Create(&sched).Error; err != nil {
					return fmt.Errorf("failed to seed fixture %s: %w", sched.ID, err)
				}
			}
			return nil
		})
	})
	return err
}

// commitChange stamps sched as a new local revision and writes it together
// with its activity.
func (s *gormStore) commitChange(ctx context.Context, kind EventKind, sched *model.Schedule, site *model.Site, actType model.ActivityType, actTitle, actID string) (Event, error) {
	return s.commitAt(ctx, s.stamp(), kind, sched, site, actType, actTitle, actID)
}

func (s *gormStore) commitAt(ctx context.Context, now time.Time, kind EventKind, sched *model.Schedule, site *model.Site, actType model.ActivityType, actTitle, actID string) (Event, error) {
	sched.Synced = false
	sched.Version++
	sched.UpdatedAt = now
	act := newScheduleActivity(actID, actType, actTitle, sched, site, now)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(sched).Error; err != nil {
			return fmt.Errorf("failed to save schedule %s: %w", sched.ID, err)
		}
		return appendActivity(tx, &act)
	})
	if err != nil {
		return Event{}, err
	}
	return Event{Kind: kind, Schedule: sched, Activity: &act}, nil
}

// checkStatusChange keeps the on-site lifecycle on CheckIn and CheckOut:
// an update may only move a visit that was never checked in between
// scheduled and cancelled.
func checkStatusChange(existing *model.Schedule, next *model.ScheduleStatus) error {
	if next == nil || *next == existing.Status {
		return nil
	}
	if existing.CheckedInAt != nil {
		return apperr.InvalidState(existing.ID, "status of a checked-in visit changes only through check-out")
	}
	if *next == model.StatusInProgress || *next == model.StatusCompleted {
		return apperr.InvalidState(existing.ID, "use check-in and check-out to move a visit to %s", *next)
	}
	return nil
}

// loadMutable loads a live, user-created visit.
func (s *gormStore) loadMutable(ctx context.Context, id string) (*model.Schedule, error) {
	sched, err := s.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if sched.Archived {
		return nil, apperr.NotFound(id)
	}
	if sched.Origin == model.OriginSeeded {
		return nil, apperr.InvalidState(id, "seeded records are read-only")
	}
	return sched, nil
}

// validate enforces the entity invariants, normalizes the visit in place and
// returns the site it refers to, if known.
func (s *gormStore) validate(ctx context.Context, sched *model.Schedule) (*model.Site, error) {
	sched.Title = strings.TrimSpace(sched.Title)
	if sched.Title == "" {
		return nil, apperr.Validation("title is required")
	}
	if _, err := parse.ParseDate(sched.Date); err != nil {
		return nil, apperr.Validation("%v", err)
	}
	minutes, err := parse.ParseClock(sched.Time)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	sched.Time = parse.FormatClock(minutes)
	if !sched.Status.Valid() {
		return nil, apperr.Validation("unknown status %q", sched.Status)
	}

	if sched.IsUnlinked {
		sched.UnlinkedReason = strings.TrimSpace(sched.UnlinkedReason)
		if sched.UnlinkedReason == "" {
			return nil, apperr.Validation("unlinked visits require a reason")
		}
		sched.SiteID = nil
		if sched.LinkedSiteID != nil && *sched.LinkedSiteID == "" {
			sched.LinkedSiteID = nil
		}
		return s.lookupSite(ctx, sched.SiteRef()), nil
	}

	sched.UnlinkedReason = ""
	sched.LinkedSiteID = nil
	if sched.SiteID == nil || strings.TrimSpace(*sched.SiteID) == "" {
		return nil, apperr.Validation("site-bound visits require a site")
	}
	if s.sites == nil {
		return nil, nil
	}
	site, ok, err := s.sites.Lookup(ctx, *sched.SiteID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Validation("unknown site %q", *sched.SiteID)
	}
	return site, nil
}

// lookupSite resolves a site for display only; failures are ignored.
func (s *gormStore) lookupSite(ctx context.Context, id string) *model.Site {
	if id == "" || s.sites == nil {
		return nil
	}
	site, ok, err := s.sites.Lookup(ctx, id)
	if err != nil || !ok {
		return nil
	}
	return site
}

func applyPatch(sched *model.Schedule, p SchedulePatch) {
	if p.SiteID != nil {
		sched.SiteID = p.SiteID
	}
	if p.Date != nil {
		sched.Date = strings.TrimSpace(*p.Date)
	}
	if p.Time != nil {
		sched.Time = *p.Time
	}
	if p.Title != nil {
		sched.Title = *p.Title
	}
	if p.Description != nil {
		sched.Description = *p.Description
	}
	if p.AssignedUserID != nil {
		sched.AssignedUserID = *p.AssignedUserID
	}
	if p.Status != nil {
		sched.Status = *p.Status
	}
	if p.IsUnlinked != nil {
		sched.IsUnlinked = *p.IsUnlinked
	}
	if p.UnlinkedReason != nil {
		sched.UnlinkedReason = *p.UnlinkedReason
	}
	if p.LinkedSiteID != nil {
		sched.LinkedSiteID = p.LinkedSiteID
	}
}
