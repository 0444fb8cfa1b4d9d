package app

import (
	"log"
	"os"

	"github.com/LincolnBryant/slate-client-server/pkg/cache"
	"github.com/LincolnBryant/slate-client-server/pkg/config"
	"github.com/LincolnBryant/slate-client-server/pkg/database"
	"github.com/LincolnBryant/slate-client-server/pkg/logger"
)

// Bootstrap 初始化基础设施（logger, database, cache）
func Bootstrap(cfgPath string) (*config.Config, cache.Cache, error) {
	// 支持通过环境变量指定配置文件路径
	if cfgPath == "" {
		cfgPath = os.Getenv("SLATE_CONFIG")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}

	if err := logger.Init(&cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if err := database.Init(&cfg.Database); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateAll(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	logger.Infof("Database initialized successfully")

	// 缓存：启用Redis时多实例共享，否则进程内
	var entityCache cache.Cache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(&cfg.Redis, "slate:")
		if err != nil {
			logger.Warnf("Redis initialization failed: %v", err)
			logger.Infof("   Falling back to in-process cache (single-server deployment)")
			entityCache = cache.NewMemoryCache()
		} else {
			logger.Infof("Redis cache initialized")
			entityCache = redisCache
		}
	} else {
		entityCache = cache.NewMemoryCache()
	}

	return cfg, entityCache, nil
}
