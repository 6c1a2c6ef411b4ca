package sites

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"solar-field-backend/internal/model"
)

// Directory resolves site ids to site records with a read-through cache.
type Directory struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewDirectory creates a directory whose entries expire after ttl.
func NewDirectory(db *gorm.DB, ttl time.Duration) *Directory {
	return &Directory{
		db:    db,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Lookup returns the site with the given id; ok is false when it does not exist.
func (d *Directory) Lookup(ctx context.Context, id string) (*model.Site, bool, error) {
	if cached, found := d.cache.Get(id); found {
		site := cached.(model.Site)
		return &site, true, nil
	}

	var site model.Site
	err := d.db.WithContext(ctx).First(&site, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up site %s: %w", id, err)
	}

	d.cache.SetDefault(id, site)
	return &site, true, nil
}

// List returns every site ordered by name.
func (d *Directory) List(ctx context.Context) ([]model.Site, error) {
	var list []model.Site
	if err := d.db.WithContext(ctx).Order("name").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	return list, nil
}

// Seed upserts the given sites and drops cached entries.
func (d *Directory) Seed(ctx context.Context, list []model.Site) error {
	if len(list) == 0 {
		return nil
	}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "capacity", "location", "updated_at"}),
	}).Create(&list).Error
	if err != nil {
		return fmt.Errorf("batch upsert sites failed: %w", err)
	}
	d.cache.Flush()
	return nil
}
