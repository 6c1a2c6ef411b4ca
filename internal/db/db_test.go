package db

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"

	"solar-field-backend/config"
	"solar-field-backend/internal/model"
)

func TestInit_EmbeddedMigrates(t *testing.T) {
	cfg := &config.DatabaseConfig{
		DSN:      fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		LogLevel: "silent",
	}
	gormDB, err := Init(cfg, zap.NewNop())
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	for _, table := range []any{&model.Site{}, &model.Schedule{}, &model.Activity{}, &model.PushSubscription{}} {
		assert.True(t, gormDB.Migrator().HasTable(table))
	}
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestIsPostgres(t *testing.T) {
	assert.True(t, isPostgres("postgres://u:p@host/db"))
	assert.True(t, isPostgres("postgresql://u:p@host/db"))
	assert.False(t, isPostgres("fieldsync.db"))
	assert.False(t, isPostgres("file::memory:?cache=shared"))
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, gormLogLevel("silent"))
	assert.Equal(t, logger.Info, gormLogLevel("info"))
	assert.Equal(t, logger.Warn, gormLogLevel(""))
}
