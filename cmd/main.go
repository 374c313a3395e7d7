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
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"retail_recrawl_v1/internal/controller"
	"retail_recrawl_v1/internal/middleware"
	"retail_recrawl_v1/internal/model"
	"retail_recrawl_v1/internal/repository"
	"retail_recrawl_v1/internal/router"
	"retail_recrawl_v1/internal/service"
	"retail_recrawl_v1/internal/supplier"
	"retail_recrawl_v1/internal/task"
	"retail_recrawl_v1/pkg/config"
	"retail_recrawl_v1/pkg/database"
	"retail_recrawl_v1/pkg/logger"
	"retail_recrawl_v1/pkg/metrics"
)

const serviceName = "retail-recrawl"

func main() {
	// 1. 配置与日志
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(err)
	}
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.LogLevel,
		Environment: cfg.Server.Env,
		ServiceName: serviceName,
	}); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.GetLogger()
	log.Info("配置加载完成", cfg.LogFields()...)

	// 2. 初始化数据库
	db, err := initDatabase(cfg, log)
	if err != nil {
		log.Fatal("数据库初始化失败", zap.Error(err))
	}

	// 3. 初始化依赖
	deps := initDependencies(cfg, db, log)

	// 4. 启动定时任务
	if err := deps.Tasks.Start(); err != nil {
		log.Fatal("定时任务启动失败", zap.Error(err))
	}

	// 5. 初始化路由
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := router.SetupRouter(deps.Controllers, router.Options{
		Limiter:         deps.Limiter,
		RecrawlCooldown: cfg.Recrawl.ManualCooldown,
		HTTPMetrics:     deps.HTTPMetrics,
		Gatherer:        deps.Registry,
	})

	// 6. 启动服务
	startServer(cfg.Server.Port, r, deps, log)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Repos       *Repositories
	Services    *Services
	Suppliers   *supplier.Registry
	Tasks       *task.TaskManager
	Controllers *router.Controllers
	Limiter     *middleware.SyncRateLimiter
	Registry    *prometheus.Registry
	HTTPMetrics *metrics.HTTPMetrics
}

// Repositories 仓库集合
type Repositories struct {
	Catalog  repository.CatalogRepository
	CrawlRun repository.CrawlRunRepository
}

// Services 服务集合
type Services struct {
	Recrawl *service.RecrawlService
	Export  *service.ExportService
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库
func initDatabase(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	return database.InitDB(database.Options{
		Driver:          cfg.DB.Driver,
		DSN:             cfg.DB.DSN,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		LogLevel:        cfg.DB.LogLevel,
	}, log,
		// Catalog
		&model.CatalogProduct{}, &model.CatalogVariant{},
		// Run
		&model.CrawlRun{},
	)
}

// initDependencies 初始化所有依赖
func initDependencies(cfg *config.Config, db *gorm.DB, log *zap.Logger) *Dependencies {
	// -------- 指标 --------
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	recrawlMetrics := metrics.NewRecrawlMetrics(reg)
	httpMetrics := metrics.NewHTTPMetrics(reg)

	// -------- Repo 层 --------
	repos := &Repositories{
		Catalog:  repository.NewCatalogRepository(db),
		CrawlRun: repository.NewCrawlRunRepository(db),
	}

	// -------- 商品源 --------
	suppliers := supplier.NewFeedRegistry(cfg.Feed.Stores, supplier.FeedOptions{
		UserAgent: cfg.Feed.UserAgent,
		PageSize:  cfg.Feed.PageSize,
		Timeout:   cfg.Feed.Timeout,
		RPS:       cfg.Feed.RPS,
		Retries:   cfg.Feed.Retries,
	})

	// -------- 业务服务 --------
	services := &Services{
		Recrawl: service.NewRecrawlService(repos.Catalog, repos.CrawlRun, recrawlMetrics, log, service.RecrawlConfig{
			BatchSize:  cfg.Recrawl.BatchSize,
			BatchPause: cfg.Recrawl.BatchPause,
		}),
		Export: service.NewExportService(repos.Catalog, repos.CrawlRun, log),
	}

	// -------- 定时任务 --------
	// 定时重抓与手动触发共用同一个冷却限流器
	limiter := middleware.NewSyncRateLimiter()
	tasks := task.NewTaskManager(&task.TaskManagerDeps{
		Registry: suppliers,
		Runner:   services.Recrawl,
		Cooldown: limiter,
		Logger:   log,
	}, &task.TaskManagerConfig{
		RecrawlEnabled:      cfg.Recrawl.Enabled,
		RecrawlSchedule:     cfg.Recrawl.Cron,
		RecrawlConcurrency:  cfg.Recrawl.Concurrency,
		RecrawlInitialDelay: cfg.Recrawl.InitialDelay,
	})

	// -------- Controller 层 --------
	controllers := &router.Controllers{
		Recrawl: controller.NewRecrawlController(tasks, services.Recrawl, services.Export),
		Export:  controller.NewExportController(services.Export),
	}

	return &Dependencies{
		DB:          db,
		Repos:       repos,
		Services:    services,
		Suppliers:   suppliers,
		Tasks:       tasks,
		Controllers: controllers,
		Limiter:     limiter,
		Registry:    reg,
		HTTPMetrics: httpMetrics,
	}
}

// ==================== 服务启动 ====================

// startServer 启动服务，收到退出信号后先停 HTTP 再停定时任务
func startServer(port string, r *gin.Engine, deps *Dependencies, log *zap.Logger) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		log.Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("服务启动失败", zap.Error(err))
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("服务强制关闭", zap.Error(err))
	}
	deps.Tasks.Stop()

	if sqlDB, err := deps.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("服务已退出")
}
