package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"time"

	"kaienv/internal/api/routes"
	"kaienv/internal/config"
	"kaienv/internal/credstore"
	"kaienv/internal/gateway"
	"kaienv/internal/models"
	"kaienv/internal/services"
	"kaienv/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load(*configPath, log)
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	db, err := models.InitDB(cfg)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}

	if err := models.SeedServiceTypes(db); err != nil {
		log.Fatal("failed to seed service types", zap.Error(err))
	}

	gw := gateway.NewGormGateway(db, cfg, log)
	if err := gw.CreateDefaultAdmin(); err != nil {
		log.Fatal("failed to create default admin", zap.Error(err))
	}

	store := credstore.NewFileStore(cfg.Session.CacheDir, cfg.Gateway.URL, log)
	resolver := session.NewResolver(gw, store, cfg, log)
	sess := session.NewContext(resolver, gw, store, cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go resolver.Run(ctx)

	// Expired sessions and stale snapshots are swept hourly.
	dataDir := "data"
	if cfg.Database.Type == "sqlite" {
		dataDir = filepath.Dir(cfg.Database.SQLite.Path)
	}
	backups := services.NewBackupService(dataDir, cfg.Backup.Dir)
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := gw.PurgeExpiredSessions(); err != nil {
					log.Warn("session sweep failed", zap.Error(err))
				}
				if err := backups.CleanOldSnapshots(cfg.Backup.RetentionDays); err != nil {
					log.Warn("snapshot sweep failed", zap.Error(err))
				}
			}
		}
	}()

	gin.SetMode(ginMode(cfg.Server.Mode))
	r := gin.New()
	r.Use(gin.Recovery())

	routes.SetupRoutes(r, cfg, gw, sess, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("starting server",
		zap.String("addr", addr),
		zap.String("gateway", cfg.Gateway.URL),
		zap.String("database", cfg.Database.Type))

	if err := r.Run(addr); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func ginMode(mode string) string {
	switch mode {
	case "debug":
		return gin.DebugMode
	case "test":
		return gin.TestMode
	default:
		return gin.ReleaseMode
	}
}
