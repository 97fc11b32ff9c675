package task

import (
	"context"

	"go.uber.org/zap"
)

// ==================== TaskManager 后台任务管理器 ====================

// TaskManager 统一管理后台任务
// 管理范围：目录抓取 (定时 + 手动)、代理巡检
type TaskManager struct {
	crawlTask    *CrawlTask
	proxyMonitor *ProxyMonitor
	log          *zap.Logger
}

// NewTaskManager 创建任务管理器，传 nil 表示禁用对应任务
func NewTaskManager(crawlTask *CrawlTask, proxyMonitor *ProxyMonitor, log *zap.Logger) *TaskManager {
	return &TaskManager{
		crawlTask:    crawlTask,
		proxyMonitor: proxyMonitor,
		log:          log.Named("task_manager"),
	}
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务
func (tm *TaskManager) Start() error {
	tm.log.Info("正在启动后台任务...")

	if tm.proxyMonitor != nil {
		if err := tm.proxyMonitor.Start(); err != nil {
			return err
		}
	}
	if tm.crawlTask != nil {
		if err := tm.crawlTask.Start(); err != nil {
			return err
		}
	}

	tm.log.Info("后台任务已全部启动")
	return nil
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	tm.log.Info("正在停止后台任务...")

	if tm.crawlTask != nil {
		tm.crawlTask.Stop()
	}
	if tm.proxyMonitor != nil {
		tm.proxyMonitor.Stop()
	}

	tm.log.Info("后台任务已全部停止")
}

// ==================== 手动触发接口 ====================

// RunAll 触发全部抓取任务
func (tm *TaskManager) RunAll(ctx context.Context, trigger string) (*RunOutcome, error) {
	if tm.crawlTask == nil {
		return nil, ErrTaskDisabled
	}
	return tm.crawlTask.RunAll(ctx, trigger)
}

// RunOne 触发单个抓取任务
func (tm *TaskManager) RunOne(ctx context.Context, name, trigger string) (*RunOutcome, error) {
	if tm.crawlTask == nil {
		return nil, ErrTaskDisabled
	}
	return tm.crawlTask.RunOne(ctx, name, trigger)
}

// CheckProxies 立即巡检一次代理池
func (tm *TaskManager) CheckProxies(ctx context.Context) (int, error) {
	if tm.proxyMonitor == nil {
		return 0, ErrTaskDisabled
	}
	return tm.proxyMonitor.Execute(ctx), nil
}

// ==================== 状态查询 ====================

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"crawl":         tm.crawlTask != nil,
		"crawl_running": tm.crawlTask != nil && tm.crawlTask.Running(),
		"proxy_monitor": tm.proxyMonitor != nil,
	}
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
	ErrCrawlRunning TaskError = "a crawl run is already in progress"
	ErrUnknownJob   TaskError = "unknown crawl job"
)
