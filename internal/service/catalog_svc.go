package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"catalog_crawler_v1/internal/api/dto"
	"catalog_crawler_v1/internal/model"
	"catalog_crawler_v1/internal/repository"
)

// ErrProductNotFound 商品不存在
var ErrProductNotFound = errors.New("product not found")

// CatalogService 目录只读查询
type CatalogService struct {
	products repository.ProductRepository
	sellers  repository.SellerRepository
	runs     repository.CrawlRunRepository
}

func NewCatalogService(products repository.ProductRepository, sellers repository.SellerRepository, runs repository.CrawlRunRepository) *CatalogService {
	return &CatalogService{
		products: products,
		sellers:  sellers,
		runs:     runs,
	}
}

// ListProducts 按首次入库时间倒序
func (s *CatalogService) ListProducts(ctx context.Context, page repository.Pagination) (*dto.PageResp, error) {
	page = page.Normalize()
	list, total, err := s.products.List(ctx, page)
	if err != nil {
		return nil, err
	}
	return &dto.PageResp{List: list, Total: total, Page: page.Page, PageSize: page.PageSize}, nil
}

// ListSellers 卖家列表，支持名称模糊搜索
func (s *CatalogService) ListSellers(ctx context.Context, filter repository.SellerFilter) (*dto.PageResp, error) {
	filter.Pagination = filter.Pagination.Normalize()
	list, total, err := s.sellers.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &dto.PageResp{List: list, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

// ListProductOffers 某商品的报价观测记录
func (s *CatalogService) ListProductOffers(ctx context.Context, productID string, page repository.Pagination) (*dto.PageResp, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	page = page.Normalize()
	list, total, err := s.products.ListOffers(ctx, productID, page)
	if err != nil {
		return nil, err
	}
	return &dto.PageResp{List: list, Total: total, Page: page.Page, PageSize: page.PageSize}, nil
}

// ListStructuredProducts 报价 ⨝ 商品 ⨝ 卖家
func (s *CatalogService) ListStructuredProducts(ctx context.Context, filter repository.StructuredFilter) (*dto.PageResp, error) {
	filter.Pagination = filter.Pagination.Normalize()
	list, total, err := s.products.ListStructured(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &dto.PageResp{List: list, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

// ListCrawlRuns 最近的抓取运行记录
func (s *CatalogService) ListCrawlRuns(ctx context.Context, limit int) ([]dto.CrawlRunResp, error) {
	runs, err := s.runs.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.CrawlRunResp, 0, len(runs))
	for i := range runs {
		resp = append(resp, convertCrawlRunResp(&runs[i]))
	}
	return resp, nil
}

func convertCrawlRunResp(r *model.CrawlRun) dto.CrawlRunResp {
	return dto.CrawlRunResp{
		ID:         r.ID,
		Trigger:    r.Trigger,
		Scope:      r.Scope,
		Status:     string(r.Status),
		JobCount:   r.JobCount,
		FailedJobs: r.FailedJobs,
		TotalItems: r.TotalItems,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}
