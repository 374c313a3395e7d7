package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"retail_recrawl_v1/internal/controller"
	"retail_recrawl_v1/internal/middleware"
	"retail_recrawl_v1/pkg/logger"
	"retail_recrawl_v1/pkg/metrics"
)

// Controllers 控制器集合
type Controllers struct {
	Recrawl *controller.RecrawlController
	Export  *controller.ExportController
}

// Options 路由依赖
type Options struct {
	Limiter         *middleware.SyncRateLimiter
	RecrawlCooldown time.Duration
	HTTPMetrics     *metrics.HTTPMetrics
	Gatherer        prometheus.Gatherer
}

// SetupRouter 创建引擎并注册所有路由
func SetupRouter(ctrls *Controllers, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware())
	if opts.HTTPMetrics != nil {
		r.Use(opts.HTTPMetrics.Middleware())
	}
	if opts.Limiter == nil {
		opts.Limiter = middleware.NewSyncRateLimiter()
	}

	InitRoutes(r, ctrls, opts)
	return r
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, ctrls *Controllers, opts Options) {
	// 1. 探活与指标
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": 0, "message": "ok"})
	})
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(opts.Gatherer)))
	}

	// 2. API 路由组
	api := r.Group("/api")
	{
		// stores 按店铺的重抓与查询
		stores := api.Group("/stores")
		{
			// POST /api/stores/recrawl 全部店铺，全局冷却
			stores.POST("/recrawl",
				middleware.SyncRateLimit(opts.Limiter, middleware.SyncTypeRecrawl, opts.RecrawlCooldown),
				ctrls.Recrawl.TriggerAllRecrawl,
			)
			// POST /api/stores/:store/recrawl
			stores.POST("/:store/recrawl",
				middleware.SyncRateLimit(opts.Limiter, middleware.SyncTypeRecrawl, opts.RecrawlCooldown),
				ctrls.Recrawl.TriggerRecrawl,
			)
			stores.GET("/:store/runs", ctrls.Recrawl.GetRuns)
			stores.GET("/:store/products", ctrls.Recrawl.GetProducts)
			stores.GET("/:store/stats", ctrls.Recrawl.GetStats)
			// GET /api/stores/:store/export
			stores.GET("/:store/export", ctrls.Export.GetExport)
		}

		// runs 运行记录
		runs := api.Group("/runs")
		{
			runs.GET("/:id", ctrls.Recrawl.GetRun)
		}
	}
}
