package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"catalog_crawler_v1/internal/controller"
	"catalog_crawler_v1/internal/metrics"
	"catalog_crawler_v1/internal/middleware"
)

// Controllers 控制器集合
type Controllers struct {
	Crawl   *controller.CrawlController
	Catalog *controller.CatalogController
	Proxy   *controller.ProxyController
}

// Options 路由参数
type Options struct {
	TriggerCooldown time.Duration // 手动触发抓取的冷却间隔
}

// SetupRouter 创建 gin 引擎并注册所有路由
func SetupRouter(ctls *Controllers, log *zap.Logger, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))

	limiter := middleware.NewSyncRateLimiter()
	InitRoutes(r, ctls, limiter, opts)
	return r
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, ctls *Controllers, limiter *middleware.SyncRateLimiter, opts Options) {
	// 1. 运维
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// 2. API 路由组
	api := r.Group("/api")
	{
		// GET /api/health
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"code": 0, "message": "ok"})
		})

		// crawl 抓取触发
		crawl := api.Group("/crawl")
		{
			// POST /api/crawl 全部任务
			crawl.POST("", middleware.CrawlRateLimit(limiter, opts.TriggerCooldown), ctls.Crawl.RunAll)
			// GET /api/crawl/runs
			crawl.GET("/runs", ctls.Crawl.ListRuns)
			// POST /api/crawl/:job 单个任务
			crawl.POST("/:job", middleware.CrawlRateLimit(limiter, opts.TriggerCooldown), ctls.Crawl.RunOne)
		}

		// 目录查询
		products := api.Group("/products")
		{
			products.GET("", ctls.Catalog.GetProducts)
			products.GET("/:id/offers", ctls.Catalog.GetProductOffers)
		}
		api.GET("/sellers", ctls.Catalog.GetSellers)
		api.GET("/structured-products", ctls.Catalog.GetStructuredProducts)

		// proxy 代理池维护
		proxy := api.Group("/proxies")
		{
			proxy.GET("", ctls.Proxy.GetList)
			proxy.POST("", ctls.Proxy.Create)
		}
	}
}
