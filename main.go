package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"triplink_chat/internal/api"
	"triplink_chat/internal/broadcast"
	"triplink_chat/internal/middleware"
	"triplink_chat/internal/repository"
	"triplink_chat/internal/service"
	"triplink_chat/internal/storage"
	"triplink_chat/internal/utils"
	"triplink_chat/pkg/config"
	"triplink_chat/pkg/logger"
)

func main() {
	// 載入應用程式配置
	cfg, err := config.Load()
	if err != nil {
		log := logger.New("info", false)
		log.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	ctx := context.Background()

	// 初始化資料庫連接
	db, err := openDatabase(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("failed to initialize database")
	}
	// 確保在程序結束時關閉數據庫連接
	defer db.Close()

	if err := migrateDatabase(db, cfg.DB); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	log.Info().Str("driver", cfg.DB.Driver).Msg("database ready")

	broadcaster, err := broadcast.New(ctx, cfg.Chat, log)
	if err != nil {
		log.Fatal().Err(err).Str("broker", cfg.Chat.Broker).Msg("failed to initialize broadcaster")
	}
	log.Info().Str("broker", cfg.Chat.Broker).Msg("broadcaster ready")

	// 初始化 repositories 與 services
	repos := repository.NewRepositories(db, repository.PageLimits{Default: cfg.Chat.PageSize, Max: cfg.Chat.MaxPageSize})
	tokens := utils.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Expiry())
	services := service.NewServices(repos, broadcaster, tokens, cfg, log)

	// 設置 Gin 路由
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(log), middleware.Metrics())
	api.SetupRoutes(r, services, cfg, log)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("starting chat server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// 等待中斷訊號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	// 已升級的 WebSocket 連線不受 Shutdown 管理，關閉 broadcaster 時一併關閉
	if err := broadcaster.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close broadcaster")
	}

	log.Info().Msg("server stopped")
}

func openDatabase(cfg config.DBConfig) (*storage.Database, error) {
	switch cfg.Driver {
	case "sqlite":
		return storage.Open(cfg.Driver, cfg.Path)
	default:
		return storage.Open(cfg.Driver, storage.PostgresDSN(cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port))
	}
}

// migrateDatabase postgres 使用 SQL 遷移檔；sqlite 或沒有遷移檔時使用 AutoMigrate
func migrateDatabase(db *storage.Database, cfg config.DBConfig) error {
	if cfg.Driver == "postgres" && cfg.MigrationsDir != "" {
		err := db.RunMigrations(cfg.MigrationsDir)
		if !errors.Is(err, storage.ErrNoMigrations) {
			return err
		}
	}
	return db.AutoMigrate()
}
