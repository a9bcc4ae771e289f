package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/meterbook/internal/api/handlers"
	"github.com/langchou/meterbook/internal/auth"
	"github.com/langchou/meterbook/internal/config"
	"github.com/langchou/meterbook/internal/repository"
	"github.com/langchou/meterbook/internal/service"
	"github.com/langchou/meterbook/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting Meterbook", zap.String("port", cfg.ServerPort))

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接数据库
	db, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close()

	// 执行数据库迁移
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migrated successfully")

	// 创建 Repository
	userRepo := repository.NewUserRepository(db)
	tariffRepo := repository.NewTariffRepository(db)
	readingRepo := repository.NewReadingRepository(db)
	budgetRepo := repository.NewBudgetRepository(db)
	reportRepo := repository.NewReportRepository(db)

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run(ctx)

	// 登录尝试记录
	attempts, closeAttempts := newAttemptStore(ctx, cfg, logger)
	defer closeAttempts()

	// 创建服务
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.SessionTTL)
	authService := service.NewAuthService(logger, userRepo, tokens, attempts)
	tariffService := service.NewTariffService(logger, tariffRepo, wsHub, cfg.TariffStrict)
	budgetService := service.NewBudgetService(logger, budgetRepo, readingRepo, wsHub)
	readingService := service.NewReadingService(logger, readingRepo, tariffService, budgetService, wsHub)
	reportService := service.NewReportService(logger, reportRepo, readingRepo)

	// 新连接推送该用户的预算状态
	wsHub.SetInitDataProvider(func(userID int64) interface{} {
		return budgetService.Snapshots(userID)
	})

	// 首次启动写入默认电价方案
	if err := tariffService.SeedDefault(ctx); err != nil {
		logger.Error("Failed to seed default tariff", zap.Error(err))
	}

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(
		logger,
		authService,
		readingService,
		tariffService,
		budgetService,
		reportService,
		wsHub,
		handlers.Options{
			CookieSecure: cfg.CookieSecure,
			RateLimitRPS: cfg.RateLimitRPS,
		},
	)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handlers.CORS(cfg.CORSOrigins))

	// 注册路由
	handler.RegisterRoutes(router)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// newAttemptStore 配置了 Redis 时使用 Redis，否则退回内存实现
func newAttemptStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (auth.AttemptStore, func()) {
	if cfg.RedisAddr == "" {
		logger.Info("Redis not configured, login attempts kept in memory")
		return auth.NewMemoryAttemptStore(cfg.LoginMaxAttempts, cfg.LoginLockout), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unavailable, login attempts kept in memory", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = client.Close()
		return auth.NewMemoryAttemptStore(cfg.LoginMaxAttempts, cfg.LoginLockout), func() {}
	}

	logger.Info("Login attempts stored in Redis", zap.String("addr", cfg.RedisAddr))
	return auth.NewRedisAttemptStore(client, cfg.LoginMaxAttempts, cfg.LoginLockout), func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}
