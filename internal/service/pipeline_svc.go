package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"catalog_crawler_v1/internal/crawler"
	"catalog_crawler_v1/internal/metrics"
	"catalog_crawler_v1/internal/model"
	"catalog_crawler_v1/internal/repository"
)

// categorySeparator 普通分类标题之后追加的分隔符
const categorySeparator = " - "

// UpsertResult 单个 Bundle 的写入统计
type UpsertResult struct {
	BrandsInserted     int
	CategoriesInserted int
	SellersInserted    int
	ProductInserted    bool
	OffersAppended     int
	CategoryName       string
	BrandName          string
}

// UpsertPipeline 五张目录表的唯一写入方
// 每次“查询 + 插入”各自独立，不包在一个事务里；
// 并发下的重复主键由 InsertIfAbsent 的冲突容忍保证
type UpsertPipeline struct {
	brands     repository.BrandRepository
	categories repository.CategoryRepository
	products   repository.ProductRepository
	sellers    repository.SellerRepository
	log        *zap.Logger
}

var _ crawler.BundleSink = (*UpsertPipeline)(nil)

func NewUpsertPipeline(
	brands repository.BrandRepository,
	categories repository.CategoryRepository,
	products repository.ProductRepository,
	sellers repository.SellerRepository,
	log *zap.Logger,
) *UpsertPipeline {
	return &UpsertPipeline{
		brands:     brands,
		categories: categories,
		products:   products,
		sellers:    sellers,
		log:        log.Named("pipeline"),
	}
}

// Process 实现 crawler.BundleSink
func (p *UpsertPipeline) Process(ctx context.Context, b *model.Bundle) error {
	_, err := p.Upsert(ctx, b)
	return err
}

// Upsert 按顺序写入：面包屑 → 商品 → 卖家与报价
// 返回的 error 只会是 StorageFatalError (或 ctx 错误)，冲突已在内部吞掉
func (p *UpsertPipeline) Upsert(ctx context.Context, b *model.Bundle) (*UpsertResult, error) {
	res := &UpsertResult{}

	// 1. 面包屑：品牌节点 / 普通分类节点
	var (
		categoryName strings.Builder
		brandName    string
		lastBrandID  *int64
	)
	for _, crumb := range b.Breadcrumbs {
		if crumb.IsBrand() {
			inserted, err := p.ensureBrand(ctx, &model.Brand{ID: crumb.ID, Title: crumb.Title})
			if err != nil {
				return res, err
			}
			if inserted {
				res.BrandsInserted++
			}
			brandName = crumb.Title
			categoryName.WriteString(crumb.Title)
			id := crumb.ID
			lastBrandID = &id
			continue
		}

		category := &model.Category{ID: crumb.ID, Title: crumb.Title, URL: crumb.URL}
		if lastBrandID != nil {
			brandID := *lastBrandID
			category.BrandID = &brandID
		}
		inserted, err := p.ensureCategory(ctx, category)
		if err != nil {
			return res, err
		}
		if inserted {
			res.CategoriesInserted++
		}
		categoryName.WriteString(crumb.Title)
		categoryName.WriteString(categorySeparator)
	}
	res.CategoryName = categoryName.String()
	res.BrandName = brandName

	// 2. 商品：已存在则跳过，不视为错误
	inserted, err := p.ensureProduct(ctx, b.Product.ToProduct(res.CategoryName, res.BrandName))
	if err != nil {
		return res, err
	}
	res.ProductInserted = inserted
	if !inserted {
		p.log.Debug("product already exists, skip", zap.String("product", b.Product.ID))
	}

	// 3. 卖家 + 报价：报价只追加，即使商品已存在也照常写
	for _, offer := range b.Offers {
		if offer.Seller != nil {
			inserted, err := p.ensureSeller(ctx, offer.Seller.ToSeller())
			if err != nil {
				return res, err
			}
			if inserted {
				res.SellersInserted++
			}
		}

		if err := p.products.AppendOffer(ctx, offer.ToOffer(b.Product.ID)); err != nil {
			metrics.RecordUpsert("offer", "error")
			return res, err
		}
		metrics.RecordUpsert("offer", "appended")
		res.OffersAppended++
	}

	return res, nil
}

// ==================== 查询 + 冲突容忍插入 ====================

func (p *UpsertPipeline) ensureBrand(ctx context.Context, brand *model.Brand) (bool, error) {
	return p.ensure(ctx, "brand", fmt.Sprint(brand.ID),
		func() (bool, error) { return p.brands.ExistsByID(ctx, brand.ID) },
		func() (bool, error) { return p.brands.InsertIfAbsent(ctx, brand) },
	)
}

func (p *UpsertPipeline) ensureCategory(ctx context.Context, category *model.Category) (bool, error) {
	return p.ensure(ctx, "category", fmt.Sprint(category.ID),
		func() (bool, error) { return p.categories.ExistsByID(ctx, category.ID) },
		func() (bool, error) { return p.categories.InsertIfAbsent(ctx, category) },
	)
}

func (p *UpsertPipeline) ensureProduct(ctx context.Context, product *model.Product) (bool, error) {
	return p.ensure(ctx, "product", product.ID,
		func() (bool, error) { return p.products.ExistsByID(ctx, product.ID) },
		func() (bool, error) { return p.products.InsertIfAbsent(ctx, product) },
	)
}

func (p *UpsertPipeline) ensureSeller(ctx context.Context, seller *model.Seller) (bool, error) {
	return p.ensure(ctx, "seller", fmt.Sprint(seller.ID),
		func() (bool, error) { return p.sellers.ExistsByID(ctx, seller.ID) },
		func() (bool, error) { return p.sellers.InsertIfAbsent(ctx, seller) },
	)
}

// ensure 先查后插；预检查只是省一次写，插入本身冲突容忍
// 返回 true 表示本次插入了新行
func (p *UpsertPipeline) ensure(ctx context.Context, entity, key string, exists, insert func() (bool, error)) (bool, error) {
	found, err := exists()
	if err != nil {
		metrics.RecordUpsert(entity, "error")
		return false, err
	}
	if found {
		metrics.RecordUpsert(entity, "existing")
		return false, nil
	}

	inserted, err := insert()
	if err != nil {
		if repository.IsConflict(err) {
			p.log.Debug("concurrent insert lost, treated as existing",
				zap.String("entity", entity),
				zap.String("key", key),
			)
			metrics.RecordUpsert(entity, "existing")
			return false, nil
		}
		metrics.RecordUpsert(entity, "error")
		return false, err
	}
	if !inserted {
		metrics.RecordUpsert(entity, "existing")
		return false, nil
	}
	metrics.RecordUpsert(entity, "inserted")
	return true, nil
}
