package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"solar-field-backend/config"
	"solar-field-backend/internal/db"
	"solar-field-backend/internal/logger"
	"solar-field-backend/internal/model"
	"solar-field-backend/internal/sites"
	"solar-field-backend/internal/store"
)

// app is the state every subcommand starts from.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	sites  *sites.Directory
	store  store.Store
}

func bootstrap(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "fieldsyncd")
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	log.Info("configuration loaded", zap.String("path", configPath))

	gormDB, err := db.Init(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	dir := sites.NewDirectory(gormDB, time.Duration(cfg.Server.CacheTTLSeconds)*time.Second)
	if err := dir.Seed(ctx, siteSeeds(cfg.Sites)); err != nil {
		return nil, err
	}

	st := store.NewGormStore(gormDB, store.WithSites(dir), store.WithLogger(log))
	if err := st.SeedSchedules(ctx, fixtureSeeds(cfg.Fixtures)); err != nil {
		return nil, err
	}
	log.Info("data store initialized", zap.Int("sites", len(cfg.Sites)), zap.Int("fixtures", len(cfg.Fixtures)))

	return &app{cfg: cfg, logger: log, db: gormDB, sites: dir, store: st}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func siteSeeds(in []config.SiteSeed) []model.Site {
	out := make([]model.Site, 0, len(in))
	for _, s := range in {
		out = append(out, model.Site{ID: s.ID, Name: s.Name, Capacity: s.Capacity, Location: s.Location})
	}
	return out
}

func fixtureSeeds(in []config.FixtureSeed) []model.Schedule {
	out := make([]model.Schedule, 0, len(in))
	for _, f := range in {
		sched := model.Schedule{
			ID:             f.ID,
			Date:           f.Date,
			Time:           f.Time,
			Title:          f.Title,
			Description:    f.Description,
			AssignedUserID: f.AssignedUserID,
			Status:         model.ScheduleStatus(f.Status),
		}
		if f.SiteID != "" {
			siteID := f.SiteID
			sched.SiteID = &siteID
		}
		out = append(out, sched)
	}
	return out
}
