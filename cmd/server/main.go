package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/price-updater/internal/api/handlers"
	"github.com/langchou/price-updater/internal/api/pricing"
	"github.com/langchou/price-updater/internal/config"
	"github.com/langchou/price-updater/internal/metrics"
	"github.com/langchou/price-updater/internal/repository"
	"github.com/langchou/price-updater/internal/service"
	"github.com/langchou/price-updater/internal/session"
	"github.com/langchou/price-updater/internal/steering"
	"github.com/langchou/price-updater/internal/tokenstore"
	"github.com/langchou/price-updater/pkg/ws"
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

	logger.Info("Starting price-updater", zap.String("port", cfg.ServerPort))

	metrics.MustRegister()

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 本地价格记录（可选）
	var prices handlers.PriceStore
	if cfg.PriceDataEnabled {
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

		prices = service.NewPriceStore(repository.NewPriceRepository(db), logger)
	} else {
		logger.Info("Local price data storage disabled")
	}

	// 令牌缓存
	store, closeStore := newTokenStore(ctx, cfg, logger)
	defer closeStore()

	// 创建价格 API 客户端
	httpClient := pricing.NewHTTPClient(cfg.PricingTimeout)
	tokens := pricing.NewTokenProvider(
		httpClient,
		store,
		pricing.Credentials{
			TokenURL:     cfg.PricingTokenURL,
			ClientID:     cfg.PricingClientID,
			ClientSecret: cfg.PricingClientSecret,
		},
		cfg.PricingCacheTTL,
		logger,
	)
	pricingClient := pricing.NewClient(httpClient, tokens, pricing.Options{
		BaseURL:   cfg.PricingBaseURL,
		RateLimit: cfg.PricingRateLimit,
	}, logger)

	mapper := steering.NewMapper(steering.Defaults{
		LocationLevel: cfg.LocationLevel,
		Identity:      cfg.SteeringIdentity,
		Channel:       cfg.SteeringChannel,
	})
	sessions := session.NewStore(cfg.SessionTTL, logger)

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	wsHub.SetInitDataProvider(func() any {
		return map[string]any{
			"price_data_enabled": prices != nil,
			"location_level":     mapper.Defaults().LocationLevel,
		}
	})
	go wsHub.Run(ctx)

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(
		logger,
		pricingClient,
		prices,
		mapper,
		sessions,
		wsHub,
	)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handlers.RequestLogger(logger))
	router.Use(cors.New(corsConfig(cfg.CORSAllowOrigins)))

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

	// 关闭 WebSocket 连接
	cancel()

	logger.Info("Server exited")
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

// newTokenStore 按配置创建令牌缓存，Redis 不可用时退回进程内缓存
func newTokenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (tokenstore.Store, func()) {
	if cfg.TokenStore == config.TokenStoreRedis {
		rs := tokenstore.NewRedisStore(tokenstore.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		err := rs.Ping(pingCtx)
		if err == nil {
			logger.Info("Using redis token store", zap.String("addr", cfg.RedisAddr))
			return rs, func() { rs.Close() }
		}
		logger.Warn("Redis unavailable, falling back to memory token store", zap.Error(err))
		rs.Close()
	}

	return tokenstore.NewMemoryStore(time.Minute), func() {}
}

// corsConfig 未配置来源时允许所有来源（不带凭证）
func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization", handlers.RequestIDHeader)
	c.ExposeHeaders = []string{handlers.RequestIDHeader}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
