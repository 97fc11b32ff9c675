package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"catalog_crawler_v1/internal/model"
	"catalog_crawler_v1/internal/repository"
)

// ==================== 测试辅助 ====================

func setupServiceTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取底层连接失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

func newTestPipeline(db *gorm.DB) *UpsertPipeline {
	return NewUpsertPipeline(
		repository.NewBrandRepository(db),
		repository.NewCategoryRepository(db),
		repository.NewProductRepository(db),
		repository.NewSellerRepository(db),
		zap.NewNop(),
	)
}

func sampleBundle(productID string, sellerID int64) *model.Bundle {
	return &model.Bundle{
		Product: model.ProductDraft{
			ID:            productID,
			ImageURL:      "https://img/" + productID,
			NamePrimary:   "Phone " + productID,
			NameSecondary: "",
			DetailURL:     "https://api/" + productID,
			Price:         1000,
			PriceText:     model.EmptySentinel,
			ShopText:      "2 shops",
			InStock:       true,
		},
		Breadcrumbs: []model.BreadcrumbDraft{
			{ID: 1, Title: "Electronics", URL: "/c/1"},
			{ID: 2, Title: "Acme", URL: "/b/2", BrandID: "99"},
		},
		Offers: []model.OfferDraft{
			{NamePrimary: "Phone", ShopName: "Shop", ShopCity: "Tehran", Price: 990, InStock: true,
				Seller: &model.SellerDraft{ID: sellerID, Name: "Shop", City: "Tehran"}},
			{NamePrimary: "Phone", ShopName: "Anonymous", Price: 1010, InStock: true},
		},
	}
}

func countRows(t *testing.T, db *gorm.DB, m interface{}) int64 {
	var n int64
	require.NoError(t, db.Model(m).Count(&n).Error)
	return n
}

// ==================== 单元测试 ====================

func TestPipeline_BrandCategoryBranch(t *testing.T) {
	db := setupServiceTestDB(t)
	p := newTestPipeline(db)

	res, err := p.Upsert(context.Background(), sampleBundle("p1", 42))
	require.NoError(t, err)

	assert.Equal(t, 1, res.CategoriesInserted)
	assert.Equal(t, 1, res.BrandsInserted)
	assert.True(t, res.ProductInserted)
	assert.Equal(t, 2, res.OffersAppended)

	var category model.Category
	require.NoError(t, db.First(&category, 1).Error)
	assert.Equal(t, "Electronics", category.Title)
	assert.Nil(t, category.BrandID)

	var brand model.Brand
	require.NoError(t, db.First(&brand, 2).Error)
	assert.Equal(t, "Acme", brand.Title)

	// 品牌节点不会同时写进分类表
	assert.Equal(t, int64(1), countRows(t, db, &model.Category{}))

	var product model.Product
	require.NoError(t, db.First(&product, "id = ?", "p1").Error)
	assert.Contains(t, product.CategoryName, "Electronics - ")
	assert.Equal(t, "Acme", product.BrandName)
	assert.Equal(t, model.EmptySentinel, product.PriceText)
	assert.Equal(t, "", product.NameSecondary)
}

func TestPipeline_CategoryAfterBrandLinksParent(t *testing.T) {
	db := setupServiceTestDB(t)
	p := newTestPipeline(db)

	b := sampleBundle("p1", 42)
	b.Breadcrumbs = append(b.Breadcrumbs, model.BreadcrumbDraft{ID: 3, Title: "Smart", URL: "/c/3"})

	res, err := p.Upsert(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, "Electronics - AcmeSmart - ", res.CategoryName)

	var category model.Category
	require.NoError(t, db.First(&category, 3).Error)
	require.NotNil(t, category.BrandID)
	assert.Equal(t, int64(2), *category.BrandID)
}

func TestPipeline_IdempotentRerun(t *testing.T) {
	db := setupServiceTestDB(t)
	p := newTestPipeline(db)
	ctx := context.Background()

	bundles := []*model.Bundle{sampleBundle("p1", 42), sampleBundle("p2", 43)}
	for pass := 0; pass < 2; pass++ {
		for _, b := range bundles {
			require.NoError(t, p.Process(ctx, b))
		}
	}

	assert.Equal(t, int64(2), countRows(t, db, &model.Product{}))
	assert.Equal(t, int64(1), countRows(t, db, &model.Category{}))
	assert.Equal(t, int64(1), countRows(t, db, &model.Brand{}))
	assert.Equal(t, int64(2), countRows(t, db, &model.Seller{}))
	// 报价追加写：两轮翻倍
	assert.Equal(t, int64(8), countRows(t, db, &model.ProductSellerOffer{}))
}

func TestPipeline_ExistingProductStillAppendsOffers(t *testing.T) {
	db := setupServiceTestDB(t)
	p := newTestPipeline(db)
	ctx := context.Background()

	_, err := p.Upsert(ctx, sampleBundle("p1", 42))
	require.NoError(t, err)

	// 第二次价格变化：主表不更新
	again := sampleBundle("p1", 42)
	again.Product.Price = 5
	res, err := p.Upsert(ctx, again)
	require.NoError(t, err)
	assert.False(t, res.ProductInserted)
	assert.Equal(t, 2, res.OffersAppended)

	var product model.Product
	require.NoError(t, db.First(&product, "id = ?", "p1").Error)
	assert.Equal(t, int64(1000), product.Price)
	assert.Equal(t, int64(4), countRows(t, db, &model.ProductSellerOffer{}))
}

func TestPipeline_ConcurrentSameSeller(t *testing.T) {
	db := setupServiceTestDB(t)
	p := newTestPipeline(db)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"p1", "p2"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = p.Process(ctx, sampleBundle(id, 42))
		}(i, id)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	var sellers []model.Seller
	require.NoError(t, db.Where("id = ?", 42).Find(&sellers).Error)
	assert.Len(t, sellers, 1)
	assert.Equal(t, int64(4), countRows(t, db, &model.ProductSellerOffer{}))
}

// racySellerRepo 预检查永远返回“不存在”，模拟两个任务同时通过预检查
type racySellerRepo struct {
	repository.SellerRepository
}

func (racySellerRepo) ExistsByID(context.Context, int64) (bool, error) { return false, nil }

func TestPipeline_LostRaceIsNotAnError(t *testing.T) {
	db := setupServiceTestDB(t)
	p := NewUpsertPipeline(
		repository.NewBrandRepository(db),
		repository.NewCategoryRepository(db),
		repository.NewProductRepository(db),
		racySellerRepo{repository.NewSellerRepository(db)},
		zap.NewNop(),
	)
	ctx := context.Background()

	first, err := p.Upsert(ctx, sampleBundle("p1", 42))
	require.NoError(t, err)
	assert.Equal(t, 1, first.SellersInserted)

	second, err := p.Upsert(ctx, sampleBundle("p2", 42))
	require.NoError(t, err)
	assert.Equal(t, 0, second.SellersInserted)
	assert.Equal(t, 2, second.OffersAppended)
}

// conflictSellerRepo 插入时直接返回冲突错误 (如 Postgres 23505 未被 DO NOTHING 吸收)
type conflictSellerRepo struct {
	repository.SellerRepository
}

func (conflictSellerRepo) ExistsByID(context.Context, int64) (bool, error) { return false, nil }

func (conflictSellerRepo) InsertIfAbsent(_ context.Context, s *model.Seller) (bool, error) {
	return false, &repository.StorageConflictError{Table: "sellers", Key: "42", Err: gorm.ErrDuplicatedKey}
}

func TestPipeline_ConflictErrorSwallowed(t *testing.T) {
	db := setupServiceTestDB(t)
	// 先写入卖家，保证报价外键可用
	require.NoError(t, db.Create(&model.Seller{ID: 42, Name: "Shop"}).Error)

	p := NewUpsertPipeline(
		repository.NewBrandRepository(db),
		repository.NewCategoryRepository(db),
		repository.NewProductRepository(db),
		conflictSellerRepo{repository.NewSellerRepository(db)},
		zap.NewNop(),
	)

	res, err := p.Upsert(context.Background(), sampleBundle("p1", 42))
	require.NoError(t, err)
	assert.Equal(t, 0, res.SellersInserted)
	assert.Equal(t, 2, res.OffersAppended)
}

// brokenProductRepo 模拟连接断开
type brokenProductRepo struct {
	repository.ProductRepository
}

func (brokenProductRepo) ExistsByID(context.Context, string) (bool, error) {
	return false, &repository.StorageFatalError{Table: "products", Op: "exists", Err: errors.New("connection reset")}
}

func TestPipeline_FatalErrorPropagates(t *testing.T) {
	db := setupServiceTestDB(t)
	p := NewUpsertPipeline(
		repository.NewBrandRepository(db),
		repository.NewCategoryRepository(db),
		brokenProductRepo{repository.NewProductRepository(db)},
		repository.NewSellerRepository(db),
		zap.NewNop(),
	)

	err := p.Process(context.Background(), sampleBundle("p1", 42))
	require.Error(t, err)
	assert.True(t, repository.IsFatal(err))

	// 面包屑在商品之前已落库，不回滚
	assert.Equal(t, int64(1), countRows(t, db, &model.Category{}))
	assert.Equal(t, int64(0), countRows(t, db, &model.ProductSellerOffer{}))
}
