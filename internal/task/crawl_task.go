package task

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"catalog_crawler_v1/internal/crawler"
	"catalog_crawler_v1/internal/model"
	"catalog_crawler_v1/internal/repository"
)

// ==================== CrawlTask 目录抓取任务 ====================

// CrawlTaskConfig 抓取任务配置
type CrawlTaskConfig struct {
	Schedule   string        // cron 表达式 (带秒)，为空则不定时
	RunTimeout time.Duration // 单次运行上限，0 表示不限
	MinItems   int64         // 单任务条目数低于该值时告警，0 关闭
}

// RunOutcome 一次运行的结果
type RunOutcome struct {
	RunID  string
	Report *Report
}

// CrawlTask 运行全部或单个任务，记录 CrawlRun，并负责定时触发
// 同一时刻只允许一次运行
type CrawlTask struct {
	orchestrator *Orchestrator
	runRepo      repository.CrawlRunRepository
	specs        []crawler.JobSpec
	cfg          CrawlTaskConfig
	cron         *cron.Cron
	log          *zap.Logger

	running atomic.Bool
}

func NewCrawlTask(
	orchestrator *Orchestrator,
	runRepo repository.CrawlRunRepository,
	specs []crawler.JobSpec,
	cfg CrawlTaskConfig,
	log *zap.Logger,
) *CrawlTask {
	return &CrawlTask{
		orchestrator: orchestrator,
		runRepo:      runRepo,
		specs:        specs,
		cfg:          cfg,
		cron:         cron.New(cron.WithSeconds()),
		log:          log.Named("crawl_task"),
	}
}

// Start 注册定时抓取
func (t *CrawlTask) Start() error {
	if t.cfg.Schedule == "" {
		t.log.Info("crawl schedule disabled")
		return nil
	}

	_, err := t.cron.AddFunc(t.cfg.Schedule, func() {
		if _, err := t.RunAll(context.Background(), model.TriggerSchedule); err != nil {
			t.log.Warn("scheduled crawl skipped", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid crawl schedule %q: %w", t.cfg.Schedule, err)
	}

	t.cron.Start()
	t.log.Info("crawl task started", zap.String("schedule", t.cfg.Schedule))
	return nil
}

// Stop 停止定时器，等待正在执行的定时运行结束
func (t *CrawlTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	t.log.Info("crawl task stopped")
}

// Jobs 已配置的任务名
func (t *CrawlTask) Jobs() []string {
	names := make([]string, 0, len(t.specs))
	for _, s := range t.specs {
		names = append(names, s.Name)
	}
	return names
}

// Running 是否有运行中的抓取
func (t *CrawlTask) Running() bool {
	return t.running.Load()
}

// RunAll 运行全部任务，阻塞直到全部结束
func (t *CrawlTask) RunAll(ctx context.Context, trigger string) (*RunOutcome, error) {
	return t.run(ctx, trigger, "all", t.specs)
}

// RunOne 按名称运行单个任务
func (t *CrawlTask) RunOne(ctx context.Context, name, trigger string) (*RunOutcome, error) {
	for _, s := range t.specs {
		if s.Name == name {
			return t.run(ctx, trigger, name, []crawler.JobSpec{s})
		}
	}
	return nil, ErrUnknownJob
}

func (t *CrawlTask) run(ctx context.Context, trigger, scope string, specs []crawler.JobSpec) (*RunOutcome, error) {
	if !t.running.CompareAndSwap(false, true) {
		return nil, ErrCrawlRunning
	}
	defer t.running.Store(false)

	if t.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.RunTimeout)
		defer cancel()
	}

	run := &model.CrawlRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		Scope:     scope,
		Status:    model.CrawlRunRunning,
		JobCount:  len(specs),
		StartedAt: time.Now(),
	}
	// 运行记录写失败不影响抓取本身
	if err := t.runRepo.Create(context.WithoutCancel(ctx), run); err != nil {
		t.log.Error("create crawl run failed", zap.Error(err))
	}

	log := t.log.With(zap.String("run", run.ID), zap.String("scope", scope), zap.String("trigger", trigger))
	log.Info("crawl run started", zap.Int("jobs", len(specs)))

	report := t.orchestrator.Run(ctx, specs)

	t.checkMinItems(report, log)
	t.finishRun(ctx, run, report, log)

	return &RunOutcome{RunID: run.ID, Report: report}, nil
}

func (t *CrawlTask) finishRun(ctx context.Context, run *model.CrawlRun, report *Report, log *zap.Logger) {
	failed := len(report.Failed())
	finished := time.Now()

	run.FailedJobs = failed
	run.TotalItems = report.TotalItems()
	run.FinishedAt = &finished
	switch {
	case failed == 0:
		run.Status = model.CrawlRunSucceeded
	case failed == len(report.Jobs):
		run.Status = model.CrawlRunFailed
	default:
		run.Status = model.CrawlRunPartial
	}

	if raw, err := json.Marshal(report.Sorted()); err == nil {
		run.Report = datatypes.JSON(raw)
	}

	if err := t.runRepo.Save(context.WithoutCancel(ctx), run); err != nil {
		log.Error("save crawl run failed", zap.Error(err))
	}

	log.Info("crawl run finished",
		zap.String("status", string(run.Status)),
		zap.Int64("items", run.TotalItems),
		zap.Int("failed_jobs", failed),
		zap.Duration("elapsed", finished.Sub(run.StartedAt)),
	)
}

// checkMinItems 成功但条目过少的任务多半是上游接口变了
func (t *CrawlTask) checkMinItems(report *Report, log *zap.Logger) {
	if t.cfg.MinItems <= 0 {
		return
	}
	for _, j := range report.Jobs {
		if j.Status == JobSucceeded && j.Items < t.cfg.MinItems {
			log.Warn("job produced fewer items than expected",
				zap.String("job", j.Name),
				zap.Int64("items", j.Items),
				zap.Int64("min", t.cfg.MinItems),
			)
		}
	}
}
