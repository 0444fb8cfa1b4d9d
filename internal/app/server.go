package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LincolnBryant/slate-client-server/internal/api/router"
	"github.com/LincolnBryant/slate-client-server/pkg/database"
	"github.com/LincolnBryant/slate-client-server/pkg/logger"
)

// StartServer 启动 HTTP 服务器并阻塞至收到退出信号
func StartServer(application *App) {
	cfg := application.Config

	r := router.Setup(
		application.Handlers.User,
		application.Handlers.Group,
		application.Handlers.Cluster,
		application.Handlers.App,
		application.Handlers.Instance,
		application.Handlers.Secret,
		application.Handlers.Misc,
		application.Services.Auth,
		"",
	)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		var err error
		if cfg.Server.SSLCertificate != "" {
			logger.Infof("Serving HTTPS on %s", addr)
			err = httpServer.ListenAndServeTLS(cfg.Server.SSLCertificate, cfg.Server.SSLKey)
		} else {
			logger.Infof("Serving HTTP on %s", addr)
			err = httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Infof("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("HTTP server shutdown error: %v", err)
	}

	if err := application.Cache.Close(); err != nil {
		logger.Warnf("Cache shutdown error: %v", err)
	}

	if err := database.Close(); err != nil {
		logger.Warnf("Database shutdown error: %v", err)
	}

	logger.Infof("Shutdown complete")
	logger.Sync()
}
