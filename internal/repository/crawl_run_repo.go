package repository

import (
	"context"

	"gorm.io/gorm"

	"catalog_crawler_v1/internal/model"
)

// CrawlRunRepository 抓取历史仓储接口
type CrawlRunRepository interface {
	Create(ctx context.Context, run *model.CrawlRun) error
	Save(ctx context.Context, run *model.CrawlRun) error
	GetByID(ctx context.Context, id string) (*model.CrawlRun, error)
	ListRecent(ctx context.Context, limit int) ([]model.CrawlRun, error)
}

type crawlRunRepo struct {
	db *gorm.DB
}

// NewCrawlRunRepository 创建抓取历史仓储
func NewCrawlRunRepository(db *gorm.DB) CrawlRunRepository {
	return &crawlRunRepo{db: db}
}

func (r *crawlRunRepo) Create(ctx context.Context, run *model.CrawlRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *crawlRunRepo) Save(ctx context.Context, run *model.CrawlRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *crawlRunRepo) GetByID(ctx context.Context, id string) (*model.CrawlRun, error) {
	var run model.CrawlRun
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRecent 最近的运行记录，最新在前
func (r *crawlRunRepo) ListRecent(ctx context.Context, limit int) ([]model.CrawlRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var list []model.CrawlRun
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
