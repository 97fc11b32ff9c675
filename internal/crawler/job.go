package crawler

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"catalog_crawler_v1/internal/api/dto"
	"catalog_crawler_v1/internal/metrics"
	"catalog_crawler_v1/internal/model"
	"catalog_crawler_v1/pkg/net"
)

// JobSpec 一个分类抓取任务的参数化定义
type JobSpec struct {
	Name     string
	SeedURL  string
	UseProxy bool
}

// BundleSink 归一化结果的落库入口 (UpsertPipeline)
type BundleSink interface {
	Process(ctx context.Context, bundle *model.Bundle) error
}

// Progress 任务进度回调，由编排器的 JobHandle 实现
// 同一任务内会被多个 goroutine 并发调用
type Progress interface {
	AddItem()
	AddSkipped()
	SetPages(n int)
}

// RunnerConfig 任务执行参数
type RunnerConfig struct {
	DetailConcurrency int // 单任务内详情抓取并发数
	MaxPages          int // 0 表示不限
}

// JobRunner 执行一个任务：分页 → 详情 → 归一化 → 落库
type JobRunner struct {
	fetcher    net.Fetcher
	sink       BundleSink
	normalizer *Normalizer
	cfg        RunnerConfig
	log        *zap.Logger
}

func NewJobRunner(fetcher net.Fetcher, sink BundleSink, cfg RunnerConfig, log *zap.Logger) *JobRunner {
	if cfg.DetailConcurrency <= 0 {
		cfg.DetailConcurrency = 8
	}
	return &JobRunner{
		fetcher:    fetcher,
		sink:       sink,
		normalizer: NewNormalizer(),
		cfg:        cfg,
		log:        log.Named("job"),
	}
}

// Run 阻塞直到分页结束且所有在途详情处理完毕
// 错误策略：
//   - 详情抓取失败 / 归一化失败：跳过该条目，不影响任务
//   - 落库失败：取消任务内其余工作，任务失败
//   - 列表页抓取失败 / 协议错误：停止分页，已派发的条目照常处理完，任务失败
func (r *JobRunner) Run(ctx context.Context, spec JobSpec, progress Progress) error {
	log := r.log.With(zap.String("job", spec.Name))
	log.Info("job started", zap.String("seed", spec.SeedURL))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.DetailConcurrency)

	walker := NewWalker(r.fetcher, spec.UseProxy, r.cfg.MaxPages, log)
	walker.OnPage = progress.SetPages

	pages, walkErr := walker.Walk(gctx, spec.SeedURL, func(ref ItemRef) error {
		// 达到并发上限时阻塞，下一页要等本页引用全部派发后才会请求
		g.Go(func() error {
			return r.safeHandle(gctx, spec, ref, progress, log)
		})
		return nil
	})
	if walkErr != nil {
		metrics.RecordFetch("page", walkErr)
	}

	waitErr := g.Wait()

	switch {
	case waitErr != nil:
		log.Error("job aborted by item failure", zap.Int("pages", pages), zap.Error(waitErr))
		return waitErr
	case walkErr != nil:
		log.Error("job walker failed", zap.Int("pages", pages), zap.Error(walkErr))
		return fmt.Errorf("walk %s: %w", spec.Name, walkErr)
	}

	log.Info("job finished", zap.Int("pages", pages))
	return nil
}

// safeHandle errgroup 的 goroutine 不带 recover，这里把 panic 转成错误
func (r *JobRunner) safeHandle(ctx context.Context, spec JobSpec, ref ItemRef, progress Progress, log *zap.Logger) error {
	var err error
	if recovered := panics.Try(func() {
		err = r.handleItem(ctx, spec, ref, progress, log)
	}); recovered != nil {
		return fmt.Errorf("item %s: %w", ref.ID, recovered.AsError())
	}
	return err
}

func (r *JobRunner) handleItem(ctx context.Context, spec JobSpec, ref ItemRef, progress Progress, log *zap.Logger) error {
	var doc dto.ProductDetail
	err := r.fetcher.FetchJSON(ctx, ref.DetailURL, spec.UseProxy, &doc)
	metrics.RecordFetch("detail", err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.Warn("detail fetch failed, item skipped", zap.String("item", ref.ID), zap.Error(err))
		progress.AddSkipped()
		metrics.RecordItem(spec.Name, metrics.OutcomeSkippedFetch)
		return nil
	}

	bundle, err := r.normalizer.Normalize(ref, &doc)
	if err != nil {
		var normErr *NormalizationError
		if !errors.As(err, &normErr) {
			return err
		}
		log.Warn("item normalization failed, item skipped", zap.String("item", ref.ID), zap.Error(err))
		progress.AddSkipped()
		metrics.RecordItem(spec.Name, metrics.OutcomeSkippedNormalize)
		return nil
	}

	if err := r.sink.Process(ctx, bundle); err != nil {
		return fmt.Errorf("item %s: %w", ref.ID, err)
	}

	// 落库成功后才计数
	progress.AddItem()
	metrics.RecordItem(spec.Name, metrics.OutcomeStored)
	return nil
}
