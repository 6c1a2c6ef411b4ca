package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"solar-field-backend/internal/apperr"
	"solar-field-backend/internal/model"
)

// UnsyncedCount counts local changes the remote has not seen: live visits
// plus activities.
func (s *gormStore) UnsyncedCount(ctx context.Context) (int64, error) {
	var schedules, activities int64
	err := s.db.WithContext(ctx).Model(&model.Schedule{}).
		Where("synced = ? AND archived = ?", false, false).
		Count(&schedules).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unsynced schedules: %w", err)
	}
	err = s.db.WithContext(ctx).Model(&model.Activity{}).
		Where("synced = ?", false).
		Count(&activities).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unsynced activities: %w", err)
	}
	return schedules + activities, nil
}

// PendingChanges collects every unsynced visit, archived ones included, and
// every unsynced activity.
func (s *gormStore) PendingChanges(ctx context.Context) (model.ChangeSet, error) {
	var cs model.ChangeSet
	if err := s.db.WithContext(ctx).Where("synced = ?", false).Order("updated_at").Find(&cs.Schedules).Error; err != nil {
		return model.ChangeSet{}, fmt.Errorf("failed to load pending schedules: %w", err)
	}
	if err := s.db.WithContext(ctx).Where("synced = ?", false).Order("timestamp").Find(&cs.Activities).Error; err != nil {
		return model.ChangeSet{}, fmt.Errorf("failed to load pending activities: %w", err)
	}
	return cs, nil
}

// MarkChangesSynced flags the rows of cs as synced. A visit edited after cs
// was collected has a newer version and stays unsynced. It returns the
// number of visits marked.
func (s *gormStore) MarkChangesSynced(ctx context.Context, cs model.ChangeSet) (int, error) {
	if cs.Empty() {
		return 0, nil
	}
	var marked int
	_, err := s.mutate(ctx, func() (Event, error) {
		return Event{Kind: EventSynced}, s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, sched := range cs.Schedules {
				res := tx.Model(&model.Schedule{}).
					Where("id = ? AND version = ?", sched.ID, sched.Version).
					UpdateColumn("synced", true)
				if res.Error != nil {
					return fmt.Errorf("failed to mark schedule %s synced: %w", sched.ID, res.Error)
				}
				marked += int(res.RowsAffected)
			}
			if len(cs.Activities) == 0 {
				return nil
			}
			ids := make([]string, 0, len(cs.Activities))
			for _, act := range cs.Activities {
				ids = append(ids, act.ID)
			}
			if err := tx.Model(&model.Activity{}).Where("id IN ?", ids).UpdateColumn("synced", true).Error; err != nil {
				return fmt.Errorf("failed to mark activities synced: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

// MarkScheduleSynced flags one visit as accepted by the remote. Marking an
// already synced visit is a no-op.
func (s *gormStore) MarkScheduleSynced(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, func() (Event, error) {
		res := s.db.WithContext(ctx).Model(&model.Schedule{}).Where("id = ?", id).UpdateColumn("synced", true)
		if res.Error != nil {
			return Event{}, fmt.Errorf("failed to mark schedule %s synced: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return Event{}, apperr.NotFound(id)
		}
		return Event{Kind: EventSynced}, nil
	})
	return err
}
