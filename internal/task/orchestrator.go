package task

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"catalog_crawler_v1/internal/crawler"
	"catalog_crawler_v1/internal/metrics"
)

// ==================== Orchestrator 任务编排 ====================

// JobRunner 执行单个任务 (crawler.JobRunner 实现)
type JobRunner interface {
	Run(ctx context.Context, spec crawler.JobSpec, progress crawler.Progress) error
}

// 任务状态
const (
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// JobHandle 已提交任务的句柄
// 计数器由任务自身的 goroutine 写，编排器轮询读
type JobHandle struct {
	Name string

	items   atomic.Int64
	skipped atomic.Int64
	pages   atomic.Int64

	done     chan struct{}
	doneOnce sync.Once

	mu         sync.Mutex
	err        error
	startedAt  time.Time
	finishedAt time.Time
}

var _ crawler.Progress = (*JobHandle)(nil)

func newJobHandle(name string) *JobHandle {
	return &JobHandle{
		Name:      name,
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
}

func (h *JobHandle) AddItem()       { h.items.Add(1) }
func (h *JobHandle) AddSkipped()    { h.skipped.Add(1) }
func (h *JobHandle) SetPages(n int) { h.pages.Store(int64(n)) }

// Items 已落库条目数
func (h *JobHandle) Items() int64 { return h.items.Load() }

// Done 任务结束 (分页到达 DONE 且在途条目全部处理完) 时关闭
func (h *JobHandle) Done() <-chan struct{} { return h.done }

// Err 任务结束后的错误，运行中为 nil
func (h *JobHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// finish 只生效一次
func (h *JobHandle) finish(err error) {
	h.doneOnce.Do(func() {
		h.mu.Lock()
		h.err = err
		h.finishedAt = time.Now()
		h.mu.Unlock()
		close(h.done)
	})
}

// Result 当前快照
func (h *JobHandle) Result() JobResult {
	res := JobResult{
		Name:    h.Name,
		Items:   h.items.Load(),
		Skipped: h.skipped.Load(),
		Pages:   h.pages.Load(),
	}

	select {
	case <-h.done:
	default:
		res.Status = JobRunning
		res.Duration = time.Since(h.startedAt)
		return res
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	res.Duration = h.finishedAt.Sub(h.startedAt)
	if h.err != nil {
		res.Status = JobFailed
		res.Error = h.err.Error()
	} else {
		res.Status = JobSucceeded
	}
	return res
}

// JobResult 单个任务的最终结果
type JobResult struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Items    int64         `json:"items"`
	Skipped  int64         `json:"skipped"`
	Pages    int64         `json:"pages"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report AwaitAll 的汇总，任务失败不会变成 error，由调用方判断
type Report struct {
	Jobs map[string]JobResult `json:"jobs"`
}

// Counts 任务名 → 条目数
func (r *Report) Counts() map[string]int64 {
	counts := make(map[string]int64, len(r.Jobs))
	for name, j := range r.Jobs {
		counts[name] = j.Items
	}
	return counts
}

// Failed 失败或未完成的任务名 (已排序)
func (r *Report) Failed() []string {
	var names []string
	for name, j := range r.Jobs {
		if j.Status != JobSucceeded {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// OK 全部成功
func (r *Report) OK() bool { return len(r.Failed()) == 0 }

// TotalItems 条目总数
func (r *Report) TotalItems() int64 {
	var total int64
	for _, j := range r.Jobs {
		total += j.Items
	}
	return total
}

// Sorted 按任务名排序的结果列表
func (r *Report) Sorted() []JobResult {
	list := make([]JobResult, 0, len(r.Jobs))
	for _, j := range r.Jobs {
		list = append(list, j)
	}
	sort.Slice(list, func(i, k int) bool { return list[i].Name < list[k].Name })
	return list
}

// Orchestrator 并发运行多个相互独立的任务
type Orchestrator struct {
	runner           JobRunner
	progressInterval time.Duration
	log              *zap.Logger
}

func NewOrchestrator(runner JobRunner, progressInterval time.Duration, log *zap.Logger) *Orchestrator {
	if progressInterval <= 0 {
		progressInterval = 30 * time.Second
	}
	return &Orchestrator{
		runner:           runner,
		progressInterval: progressInterval,
		log:              log.Named("orchestrator"),
	}
}

// Submit 启动一个任务，立即返回
// 任务 panic 会被转换为失败结果，不影响其他任务
func (o *Orchestrator) Submit(ctx context.Context, spec crawler.JobSpec) *JobHandle {
	h := newJobHandle(spec.Name)

	go func() {
		var err error
		recovered := panics.Try(func() {
			err = o.runner.Run(ctx, spec, h)
		})
		if recovered != nil {
			err = fmt.Errorf("job %s panicked: %w", spec.Name, recovered.AsError())
			o.log.Error("job panicked", zap.String("job", spec.Name), zap.String("stack", string(recovered.Stack)))
		}

		h.finish(err)

		status := JobSucceeded
		if err != nil {
			status = JobFailed
		}
		metrics.RecordJob(status)
	}()

	return h
}

// AwaitAll 阻塞直到所有任务结束
// ctx 提前结束时返回当前快照，未完成的任务状态为 running
func (o *Orchestrator) AwaitAll(ctx context.Context, handles ...*JobHandle) *Report {
	ticker := time.NewTicker(o.progressInterval)
	defer ticker.Stop()

	for _, h := range handles {
	wait:
		for {
			select {
			case <-h.Done():
				break wait
			case <-ctx.Done():
				o.log.Warn("await interrupted", zap.Error(ctx.Err()))
				return o.snapshot(handles)
			case <-ticker.C:
				o.logProgress(handles)
			}
		}
	}

	report := o.snapshot(handles)
	o.log.Info("all jobs finished",
		zap.Int("jobs", len(handles)),
		zap.Int64("items", report.TotalItems()),
		zap.Strings("failed", report.Failed()),
	)
	return report
}

// Run Submit + AwaitAll
func (o *Orchestrator) Run(ctx context.Context, specs []crawler.JobSpec) *Report {
	handles := make([]*JobHandle, 0, len(specs))
	for _, spec := range specs {
		handles = append(handles, o.Submit(ctx, spec))
	}
	return o.AwaitAll(ctx, handles...)
}

func (o *Orchestrator) snapshot(handles []*JobHandle) *Report {
	report := &Report{Jobs: make(map[string]JobResult, len(handles))}
	for _, h := range handles {
		report.Jobs[h.Name] = h.Result()
	}
	return report
}

func (o *Orchestrator) logProgress(handles []*JobHandle) {
	running := 0
	var items int64
	for _, h := range handles {
		select {
		case <-h.Done():
		default:
			running++
		}
		items += h.Items()
	}
	o.log.Info("crawl progress", zap.Int("running", running), zap.Int64("items", items))
}
