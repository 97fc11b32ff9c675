package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"catalog_crawler_v1/internal/config"
	"catalog_crawler_v1/internal/controller"
	"catalog_crawler_v1/internal/crawler"
	"catalog_crawler_v1/internal/model"
	"catalog_crawler_v1/internal/repository"
	"catalog_crawler_v1/internal/router"
	"catalog_crawler_v1/internal/service"
	"catalog_crawler_v1/internal/task"
	"catalog_crawler_v1/pkg/database"
	"catalog_crawler_v1/pkg/logger"
	"catalog_crawler_v1/pkg/net"
)

func main() {
	app := &cli.App{
		Name:  "catalog-crawler",
		Usage: "商品目录抓取服务",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "configs/crawler.yaml",
				Usage:   "配置文件路径，为空时只读环境变量",
				EnvVars: []string{"CRAWLER_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: ".env 文件路径，不存在时忽略",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "启动 HTTP 服务和定时任务",
				Action: serveAction,
			},
			{
				Name:  "crawl",
				Usage: "执行一次抓取后退出",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "job",
						Usage: "只运行指定任务，默认运行全部",
					},
				},
				Action: crawlAction,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	Config      *config.Config
	Log         *zap.Logger
	DB          *gorm.DB
	Repos       *Repositories
	Fetcher     *net.Client
	Services    *Services
	Tasks       *task.TaskManager
	Controllers *router.Controllers
}

// Repositories 仓库集合
type Repositories struct {
	Brand    repository.BrandRepository
	Category repository.CategoryRepository
	Product  repository.ProductRepository
	Seller   repository.SellerRepository
	CrawlRun repository.CrawlRunRepository
	Proxy    repository.ProxyRepository
}

// Services 服务集合
type Services struct {
	Proxy    *service.ProxyService
	Provider *service.NetworkProvider
	Pipeline *service.UpsertPipeline
	Catalog  *service.CatalogService
}

// ==================== 初始化函数 ====================

// bootstrap 读取配置并组装全部依赖
func bootstrap(c *cli.Context) (*Dependencies, error) {
	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return nil, err
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := database.InitDB(database.Config{
		DSN:             cfg.Database.DSN,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	}, log, model.AllModels()...)
	if err != nil {
		return nil, err
	}

	return initDependencies(c.Context, cfg, log, db), nil
}

// initDependencies 初始化所有依赖
func initDependencies(ctx context.Context, cfg *config.Config, log *zap.Logger, db *gorm.DB) *Dependencies {
	// -------- Repo 层 --------
	repos := initRepositories(db)

	// -------- 网络层 --------
	proxyService := service.NewProxyService(repos.Proxy, service.ProxyServiceConfig{
		ProbeURL:     cfg.Proxy.ProbeURL,
		ProbeTimeout: cfg.Proxy.ProbeTimeout,
		MaxFailCount: cfg.Proxy.MaxFailCount,
	}, log)
	if len(cfg.Proxy.Seeds) > 0 {
		if n, err := proxyService.ImportProxies(ctx, cfg.Proxy.Seeds); err != nil {
			log.Warn("导入种子代理失败", zap.Error(err))
		} else if n > 0 {
			log.Info("导入种子代理", zap.Int("count", n))
		}
	}
	provider := service.NewNetworkProvider(proxyService, log)

	fetcher := net.NewClient(net.ClientConfig{
		Timeout:       cfg.Fetch.Timeout,
		RetryCount:    cfg.Fetch.RetryCount,
		RetryWait:     cfg.Fetch.RetryWait,
		UserAgent:     cfg.Fetch.UserAgent,
		RPS:           cfg.Fetch.RPS,
		Burst:         cfg.Fetch.Burst,
		ProxyEndpoint: cfg.Fetch.ProxyEndpoint,
		ProxyAPIKey:   cfg.Fetch.ProxyAPIKey,
	}, provider, log)

	// -------- 业务服务 --------
	services := &Services{
		Proxy:    proxyService,
		Provider: provider,
		Pipeline: service.NewUpsertPipeline(repos.Brand, repos.Category, repos.Product, repos.Seller, log),
		Catalog:  service.NewCatalogService(repos.Product, repos.Seller, repos.CrawlRun),
	}

	// -------- 抓取 & 定时任务 --------
	tasks := initTasks(cfg, log, repos, services, fetcher)

	// -------- Controller 层 --------
	controllers := &router.Controllers{
		Crawl:   controller.NewCrawlController(tasks, services.Catalog),
		Catalog: controller.NewCatalogController(services.Catalog),
		Proxy:   controller.NewProxyController(services.Proxy),
	}

	return &Dependencies{
		Config:      cfg,
		Log:         log,
		DB:          db,
		Repos:       repos,
		Fetcher:     fetcher,
		Services:    services,
		Tasks:       tasks,
		Controllers: controllers,
	}
}

// initRepositories 初始化所有仓库
func initRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Brand:    repository.NewBrandRepository(db),
		Category: repository.NewCategoryRepository(db),
		Product:  repository.NewProductRepository(db),
		Seller:   repository.NewSellerRepository(db),
		CrawlRun: repository.NewCrawlRunRepository(db),
		Proxy:    repository.NewProxyRepository(db),
	}
}

// initTasks 组装抓取链路和代理巡检
func initTasks(cfg *config.Config, log *zap.Logger, repos *Repositories, svc *Services, fetcher *net.Client) *task.TaskManager {
	runner := crawler.NewJobRunner(fetcher, svc.Pipeline, crawler.RunnerConfig{
		DetailConcurrency: cfg.Crawl.DetailConcurrency,
		MaxPages:          cfg.Crawl.MaxPages,
	}, log)
	orchestrator := task.NewOrchestrator(runner, cfg.Crawl.ProgressInterval, log)

	crawlTask := task.NewCrawlTask(orchestrator, repos.CrawlRun, cfg.Specs(), task.CrawlTaskConfig{
		Schedule:   cfg.Crawl.Schedule,
		RunTimeout: cfg.Crawl.RunTimeout,
		MinItems:   cfg.Crawl.MinItems,
	}, log)

	var proxyMonitor *task.ProxyMonitor
	if cfg.Proxy.MonitorEnabled {
		proxyMonitor = task.NewProxyMonitor(repos.Proxy, svc.Proxy, cfg.Proxy.MonitorSchedule, log)
	}

	return task.NewTaskManager(crawlTask, proxyMonitor, log)
}

// ==================== 命令 ====================

// serveAction 启动 HTTP 服务 + 定时任务
func serveAction(c *cli.Context) error {
	deps, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer deps.Log.Sync()

	if err := deps.Tasks.Start(); err != nil {
		return fmt.Errorf("start tasks: %w", err)
	}
	defer deps.Tasks.Stop()

	gin.SetMode(deps.Config.Server.Mode)
	r := router.SetupRouter(deps.Controllers, deps.Log, router.Options{
		TriggerCooldown: deps.Config.Crawl.TriggerCooldown,
	})

	return startServer(r, deps.Config.Server, deps.Log)
}

// crawlAction 前台执行一次抓取，有任务失败时以非零状态退出
func crawlAction(c *cli.Context) error {
	deps, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer deps.Log.Sync()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var out *task.RunOutcome
	if job := c.String("job"); job != "" {
		out, err = deps.Tasks.RunOne(ctx, job, model.TriggerCLI)
	} else {
		out, err = deps.Tasks.RunAll(ctx, model.TriggerCLI)
	}
	if err != nil {
		return err
	}

	for _, j := range out.Report.Sorted() {
		line := fmt.Sprintf("%-24s %-10s items=%-6d skipped=%-6d pages=%-4d %s",
			j.Name, j.Status, j.Items, j.Skipped, j.Pages, j.Duration.Round(time.Millisecond))
		if j.Error != "" {
			line += "  error: " + j.Error
		}
		fmt.Fprintln(c.App.Writer, line)
	}
	fmt.Fprintf(c.App.Writer, "run %s: %d items\n", out.RunID, out.Report.TotalItems())

	if failed := out.Report.Failed(); len(failed) > 0 {
		return cli.Exit(fmt.Sprintf("%d job(s) failed: %v", len(failed), failed), 2)
	}
	return nil
}

// ==================== 服务启动 ====================

// startServer 启动服务，收到退出信号后优雅关闭
func startServer(r *gin.Engine, cfg config.ServerConfig, log *zap.Logger) error {
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("服务启动失败: %w", err)
	case <-quit:
	}

	log.Info("正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("服务强制关闭: %w", err)
	}

	log.Info("服务已退出")
	return nil
}
