package dto

import "time"

// ==================== 抓取触发 ====================

// JobResultResp 单个任务的结果
type JobResultResp struct {
	Name     string `json:"name"`
	Status   string `json:"status"` // succeeded | failed | running
	Items    int64  `json:"items"`
	Skipped  int64  `json:"skipped"`
	Pages    int64  `json:"pages"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

// CrawlReportResp 一次抓取运行的汇总
type CrawlReportResp struct {
	RunID      string           `json:"run_id"`
	OK         bool             `json:"ok"`
	TotalItems int64            `json:"total_items"`
	Counts     map[string]int64 `json:"counts"`
	Jobs       []JobResultResp  `json:"jobs"`
}

// CrawlRunResp 抓取历史
type CrawlRunResp struct {
	ID         string     `json:"id"`
	Trigger    string     `json:"trigger"`
	Scope      string     `json:"scope"`
	Status     string     `json:"status"`
	JobCount   int        `json:"job_count"`
	FailedJobs int        `json:"failed_jobs"`
	TotalItems int64      `json:"total_items"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ==================== 目录查询 ====================

// PageResp 分页返回
type PageResp struct {
	List     interface{} `json:"list"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// StructuredProduct 报价 + 商品 + 卖家的联合视图
type StructuredProduct struct {
	OfferID      int64  `json:"offer_id"`
	ProductID    string `json:"product_id"`
	NamePrimary  string `json:"name_primary"`
	NameSecond   string `json:"name_secondary"`
	ImageURL     string `json:"image_url"`
	CategoryName string `json:"category_name"`
	BrandName    string `json:"brand_name"`
	Price        int64  `json:"price"`
	PriceText    string `json:"price_text"`
	InStock      bool   `json:"in_stock"`
	SellerID     *int64 `json:"seller_id"`
	SellerName   string `json:"seller_name"`
	SellerCity   string `json:"seller_city"`
	PageURL      string `json:"page_url"`
}
