package app

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/riskhub-protocol/riskhub/migrations"
	"github.com/riskhub-protocol/riskhub/pkg/logger"
	"github.com/riskhub-protocol/riskhub/pkg/migrate"
)

// AutoMigrate 自动执行数据库迁移
func AutoMigrate(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	migrator := migrate.NewMigrator(sqlDB, logger.L())
	if err := migrator.Up(migrations.FS, "."); err != nil {
		logger.Error("auto migration failed", zap.Error(err))
		return err
	}

	return nil
}
