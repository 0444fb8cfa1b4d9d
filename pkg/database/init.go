package database

import (
	"fmt"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/pkg/logger"
)

// AutoMigrateAll 检查并自动迁移全部表
func AutoMigrateAll() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	models := []interface{}{
		&model.User{},
		&model.Group{},
		&model.GroupMember{},
		&model.Cluster{},
		&model.ClusterAccess{},
		&model.ClusterAppGrant{},
		&model.ApplicationInstance{},
		&model.Secret{},
	}

	for _, m := range models {
		if err := DB.AutoMigrate(m); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", m, err)
		}
	}

	logger.Infof("Database migration complete (%d tables)", len(models))
	return nil
}
