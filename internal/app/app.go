package app

import (
	"context"

	"github.com/LincolnBryant/slate-client-server/pkg/cache"
	"github.com/LincolnBryant/slate-client-server/pkg/config"
	"github.com/LincolnBryant/slate-client-server/pkg/database"
	"github.com/LincolnBryant/slate-client-server/pkg/kube"
	"github.com/LincolnBryant/slate-client-server/pkg/logger"
)

// App 应用程序上下文
type App struct {
	Config   *config.Config
	Cache    cache.Cache
	Repos    *Repositories
	Services *Services
	Handlers *Handlers
}

// Initialize 初始化应用程序
func Initialize(cfgPath string) (*App, error) {
	// 1. Bootstrap (logger, database, cache)
	cfg, entityCache, err := Bootstrap(cfgPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			database.Close()
		}
	}()

	// 2. Initialize repositories
	repos, err := InitializeRepositories(cfg, entityCache)
	if err != nil {
		return nil, err
	}
	logger.Infof("Repositories initialized")

	// 3. Initialize services
	driver := kube.NewExecDriver()
	services := InitializeServices(repos, cfg, driver)
	logger.Infof("Services initialized")

	// 4. Ensure helm and the application catalog repositories are usable
	if !cfg.Helm.SkipRepoInit {
		if err := kube.CheckAvailable("kubectl"); err != nil {
			logger.Fatalf("%v", err)
		}
		if err := services.Application.EnsureRepos(context.Background()); err != nil {
			logger.Fatalf("Helm initialization failed: %v", err)
		}
		logger.Infof("Helm repositories ready")
	}

	// 5. Initialize handlers
	handlers := InitializeHandlers(repos, services)
	logger.Infof("Handlers initialized")

	return &App{
		Config:   cfg,
		Cache:    entityCache,
		Repos:    repos,
		Services: services,
		Handlers: handlers,
	}, nil
}
