package task

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"catalog_crawler_v1/internal/model"
	"catalog_crawler_v1/internal/repository"
	"catalog_crawler_v1/internal/service"
)

// ProxyMonitor 代理巡检任务
type ProxyMonitor struct {
	proxyRepo    repository.ProxyRepository
	proxyService *service.ProxyService
	cron         *cron.Cron
	schedule     string
	log          *zap.Logger

	// 控制并发探测的数量，防止把本地带宽打满
	concurrencyLimit int
	sleepTime        time.Duration
}

func NewProxyMonitor(proxyRepo repository.ProxyRepository, proxyService *service.ProxyService, schedule string, log *zap.Logger) *ProxyMonitor {
	if schedule == "" {
		schedule = "0 0/15 * * * *" // 每 15 分钟
	}
	return &ProxyMonitor{
		proxyRepo:        proxyRepo,
		proxyService:     proxyService,
		cron:             cron.New(cron.WithSeconds()), // 支持秒级控制
		schedule:         schedule,
		log:              log.Named("proxy_monitor"),
		concurrencyLimit: 20,
		sleepTime:        50 * time.Millisecond, // 每个协程启动间隔，平滑波峰
	}
}

// SetConcurrency 设置并发参数
func (m *ProxyMonitor) SetConcurrency(limit int, sleep time.Duration) {
	if limit > 0 {
		m.concurrencyLimit = limit
	}
	m.sleepTime = sleep
}

// Start 启动代理巡检任务
func (m *ProxyMonitor) Start() error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		m.log.Info("服务启动，正在执行首次巡检...")
		m.Execute(ctx)
	}()

	_, err := m.cron.AddFunc(m.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		m.Execute(ctx)
	})
	if err != nil {
		return err
	}

	m.cron.Start()
	m.log.Info("ProxyMonitor 巡检任务已启动", zap.String("schedule", m.schedule))
	return nil
}

// Stop 停止任务
func (m *ProxyMonitor) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.log.Info("ProxyMonitor 已停止")
}

// Execute 执行一次完整的巡检，返回探测的代理数
func (m *ProxyMonitor) Execute(ctx context.Context) int {
	// 1. 查正常和暂时异常的代理，只有 status = 3 的才被抛弃
	proxies, err := m.proxyRepo.FindCheckList(ctx)
	if err != nil {
		m.log.Error("fetch proxy list failed", zap.Error(err))
		return 0
	}
	if len(proxies) == 0 {
		m.log.Debug("no proxies to check")
		return 0
	}

	m.log.Info("start checking proxies", zap.Int("count", len(proxies)))

	// 2. 并发探测 (使用信号量控制并发)
	var wg sync.WaitGroup
	sem := make(chan struct{}, m.concurrencyLimit)
	checked := 0

	for _, p := range proxies {
		select {
		case <-ctx.Done():
			m.log.Warn("task context done, stopping", zap.Error(ctx.Err()))
			wg.Wait()
			return checked
		default:
		}

		wg.Add(1)
		sem <- struct{}{} // 获取令牌
		checked++

		if m.sleepTime > 0 {
			time.Sleep(m.sleepTime)
		}

		go func(proxy model.Proxy) {
			defer wg.Done()
			defer func() { <-sem }() // 释放令牌

			if err := m.proxyService.VerifyAndHeal(ctx, &proxy); err != nil {
				// 这里的 err 通常是数据库层面的错误
				m.log.Error("verify proxy failed", zap.String("ip", proxy.IP), zap.Error(err))
			}
		}(p)
	}

	wg.Wait()
	m.log.Info("proxy check finished", zap.Int("checked", checked))
	return checked
}
