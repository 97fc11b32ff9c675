package repository

import (
	"context"
	"strconv"

	"gorm.io/gorm"

	"catalog_crawler_v1/internal/model"
)

// ==================== 接口定义 ====================

// BrandRepository 品牌仓储接口
type BrandRepository interface {
	ExistsByID(ctx context.Context, id int64) (bool, error)
	InsertIfAbsent(ctx context.Context, brand *model.Brand) (bool, error)
}

// CategoryRepository 分类仓储接口
type CategoryRepository interface {
	ExistsByID(ctx context.Context, id int64) (bool, error)
	InsertIfAbsent(ctx context.Context, category *model.Category) (bool, error)
	GetByID(ctx context.Context, id int64) (*model.Category, error)
}

// ==================== 仓储实现 ====================

type brandRepo struct {
	db *gorm.DB
}

// NewBrandRepository 创建品牌仓储
func NewBrandRepository(db *gorm.DB) BrandRepository {
	return &brandRepo{db: db}
}

func (r *brandRepo) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return existsByID(ctx, r.db, "brands", &model.Brand{}, id)
}

func (r *brandRepo) InsertIfAbsent(ctx context.Context, brand *model.Brand) (bool, error) {
	return insertIfAbsent(ctx, r.db, "brands", strconv.FormatInt(brand.ID, 10), brand)
}

type categoryRepo struct {
	db *gorm.DB
}

// NewCategoryRepository 创建分类仓储
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepo{db: db}
}

func (r *categoryRepo) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return existsByID(ctx, r.db, "categories", &model.Category{}, id)
}

func (r *categoryRepo) InsertIfAbsent(ctx context.Context, category *model.Category) (bool, error) {
	return insertIfAbsent(ctx, r.db, "categories", strconv.FormatInt(category.ID, 10), category)
}

func (r *categoryRepo) GetByID(ctx context.Context, id int64) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}
