package app

import (
	"time"

	"github.com/LincolnBryant/slate-client-server/internal/repository"
	"github.com/LincolnBryant/slate-client-server/pkg/cache"
	"github.com/LincolnBryant/slate-client-server/pkg/config"
	"github.com/LincolnBryant/slate-client-server/pkg/database"
)

// Repositories 全部仓库实例
type Repositories struct {
	User        *repository.UserRepository
	Group       *repository.GroupRepository
	Cluster     *repository.ClusterRepository
	Instance    *repository.InstanceRepository
	Secret      *repository.SecretRepository
	Access      *repository.AccessRepository
	ConfigFiles *repository.ConfigFileManager
}

// InitializeRepositories 初始化仓库
func InitializeRepositories(cfg *config.Config, entityCache cache.Cache) (*Repositories, error) {
	ttls := repository.CacheTTLs{
		Entity:       time.Duration(cfg.Cache.EntityTTL) * time.Second,
		Record:       time.Duration(cfg.Cache.RecordTTL) * time.Second,
		Reachability: time.Duration(cfg.Cache.ReachabilityTTL) * time.Second,
	}

	db := database.DB
	clusterRepo := repository.NewClusterRepository(db, entityCache, ttls)
	configFiles, err := repository.NewConfigFileManager(clusterRepo, "")
	if err != nil {
		return nil, err
	}

	return &Repositories{
		User:        repository.NewUserRepository(db, entityCache, ttls),
		Group:       repository.NewGroupRepository(db, entityCache, ttls),
		Cluster:     clusterRepo,
		Instance:    repository.NewInstanceRepository(db, entityCache, ttls),
		Secret:      repository.NewSecretRepository(db, entityCache, ttls),
		Access:      repository.NewAccessRepository(db),
		ConfigFiles: configFiles,
	}, nil
}
