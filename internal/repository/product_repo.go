package repository

import (
	"context"

	"gorm.io/gorm"

	"catalog_crawler_v1/internal/api/dto"
	"catalog_crawler_v1/internal/model"
)

// ==================== 接口定义 ====================

// ProductRepository 商品与报价仓储接口
type ProductRepository interface {
	// 写入 (仅 UpsertPipeline 调用)
	ExistsByID(ctx context.Context, id string) (bool, error)
	InsertIfAbsent(ctx context.Context, product *model.Product) (bool, error)
	AppendOffer(ctx context.Context, offer *model.ProductSellerOffer) error

	// 查询
	GetByID(ctx context.Context, id string) (*model.Product, error)
	List(ctx context.Context, page Pagination) ([]model.Product, int64, error)
	ListOffers(ctx context.Context, productID string, page Pagination) ([]model.ProductSellerOffer, int64, error)
	ListStructured(ctx context.Context, filter StructuredFilter) ([]dto.StructuredProduct, int64, error)
}

// StructuredFilter 联合视图过滤条件
type StructuredFilter struct {
	Pagination
	SearchName string // 匹配商品名、卖家名、卖家城市
}

// ==================== 仓储实现 ====================

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	return existsByID(ctx, r.db, "products", &model.Product{}, id)
}

func (r *productRepo) InsertIfAbsent(ctx context.Context, product *model.Product) (bool, error) {
	return insertIfAbsent(ctx, r.db, "products", product.ID, product)
}

// AppendOffer 报价只追加，不做去重
func (r *productRepo) AppendOffer(ctx context.Context, offer *model.ProductSellerOffer) error {
	if err := r.db.WithContext(ctx).Omit("Seller", "Product").Create(offer).Error; err != nil {
		return &StorageFatalError{Table: "product_seller_offers", Op: "insert", Err: err}
	}
	return nil
}

func (r *productRepo) GetByID(ctx context.Context, id string) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// List 商品分页，按首次入库时间倒序
func (r *productRepo) List(ctx context.Context, page Pagination) ([]model.Product, int64, error) {
	var list []model.Product
	var total int64

	page = page.Normalize()
	db := r.db.WithContext(ctx).Model(&model.Product{})

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("created_at DESC").Order("id ASC").
		Limit(page.PageSize).
		Offset(page.Offset()).
		Find(&list).Error

	return list, total, err
}

// ListOffers 某商品的报价历史，最新在前
func (r *productRepo) ListOffers(ctx context.Context, productID string, page Pagination) ([]model.ProductSellerOffer, int64, error) {
	var list []model.ProductSellerOffer
	var total int64

	page = page.Normalize()
	db := r.db.WithContext(ctx).Model(&model.ProductSellerOffer{}).Where("product_id = ?", productID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("id DESC").
		Limit(page.PageSize).
		Offset(page.Offset()).
		Find(&list).Error

	return list, total, err
}

// ListStructured 报价 ⨝ 商品 ⨝ 卖家
func (r *productRepo) ListStructured(ctx context.Context, filter StructuredFilter) ([]dto.StructuredProduct, int64, error) {
	var list []dto.StructuredProduct
	var total int64

	page := filter.Pagination.Normalize()
	db := r.db.WithContext(ctx).
		Table("product_seller_offers AS o").
		Joins("JOIN products AS p ON p.id = o.product_id").
		Joins("LEFT JOIN sellers AS s ON s.id = o.seller_id")

	if filter.SearchName != "" {
		like := "%" + filter.SearchName + "%"
		db = db.Where("p.name_primary LIKE ? OR s.name LIKE ? OR s.city LIKE ?", like, like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Select(
		"o.id AS offer_id, o.product_id, p.name_primary, p.name_secondary AS name_second, p.image_url, " +
			"p.category_name, p.brand_name, o.price, o.price_text, o.in_stock, " +
			"o.seller_id, COALESCE(s.name, '') AS seller_name, COALESCE(s.city, '') AS seller_city, o.page_url").
		Order("o.id DESC").
		Limit(page.PageSize).
		Offset(page.Offset()).
		Scan(&list).Error

	return list, total, err
}
