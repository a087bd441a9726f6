package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"payguard/backend/config"
	"payguard/backend/internal/api/handler"
	"payguard/backend/internal/api/router"
	"payguard/backend/internal/repository"
	"payguard/backend/internal/service"
	"payguard/backend/pkg/database"
	"payguard/backend/pkg/jwt"
	"payguard/backend/pkg/kafka"
	applogger "payguard/backend/pkg/logger"
	"payguard/backend/pkg/metrics"
	"payguard/backend/pkg/redis"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.Int("num_trees", cfg.Detector.NumTrees),
		zap.Float64("threshold", cfg.Detector.Threshold),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级为进程内扫描锁、不限流）
	var rdb *redis.Client
	var locker service.ScanLocker
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，扫描锁退化为进程内锁", zap.Error(err))
			rdb = nil
		} else {
			locker = rdb
		}
	}

	// 5. Kafka 事件发布（未配置 brokers 时为空实现）
	publisher, err := kafka.NewPublisher(&cfg.Kafka, logger)
	if err != nil {
		logger.Fatal("初始化 Kafka 发布器失败", zap.Error(err))
	}

	// 6. 指标 + JWT
	m := metrics.New()
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 7. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, publisher, locker, m, logger)
	h := handler.NewHandler(svc)

	// 8. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, m, logger)

	// 9. 启动 HTTP 服务器（优雅关闭）
	// 扫描与导出可能较慢，写超时比普通接口放宽
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	if err := publisher.Close(); err != nil {
		logger.Error("关闭 Kafka 发布器失败", zap.Error(err))
	}

	// 关闭数据库连接
	sqlDB.Close()

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
