package repository

import (
	"context"
	"strconv"

	"gorm.io/gorm"

	"catalog_crawler_v1/internal/model"
)

// SellerRepository 卖家仓储接口
type SellerRepository interface {
	ExistsByID(ctx context.Context, id int64) (bool, error)
	InsertIfAbsent(ctx context.Context, seller *model.Seller) (bool, error)
	List(ctx context.Context, filter SellerFilter) ([]model.Seller, int64, error)
}

// SellerFilter 卖家列表过滤条件
type SellerFilter struct {
	Pagination
	SearchName string // 名称模糊匹配
}

type sellerRepo struct {
	db *gorm.DB
}

// NewSellerRepository 创建卖家仓储
func NewSellerRepository(db *gorm.DB) SellerRepository {
	return &sellerRepo{db: db}
}

func (r *sellerRepo) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return existsByID(ctx, r.db, "sellers", &model.Seller{}, id)
}

func (r *sellerRepo) InsertIfAbsent(ctx context.Context, seller *model.Seller) (bool, error) {
	return insertIfAbsent(ctx, r.db, "sellers", strconv.FormatInt(seller.ID, 10), seller)
}

// List 卖家分页列表
func (r *sellerRepo) List(ctx context.Context, filter SellerFilter) ([]model.Seller, int64, error) {
	var list []model.Seller
	var total int64

	page := filter.Pagination.Normalize()
	db := r.db.WithContext(ctx).Model(&model.Seller{})

	if filter.SearchName != "" {
		db = db.Where("name LIKE ?", "%"+filter.SearchName+"%")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("id ASC").
		Limit(page.PageSize).
		Offset(page.Offset()).
		Find(&list).Error

	return list, total, err
}
