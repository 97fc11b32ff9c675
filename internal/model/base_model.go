package model

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel 自增主键的内部表使用 (proxies)
// 目录类实体的主键由上游 API 分配，不使用 BaseModel
type BaseModel struct {
	ID        int64          `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// CatalogModels 五张目录表，由 UpsertPipeline 独占写入
// 顺序即建表顺序：被引用的表在前
func CatalogModels() []interface{} {
	return []interface{}{
		&Brand{},
		&Category{},
		&Seller{},
		&Product{},
		&ProductSellerOffer{},
	}
}

// AllModels 目录表 + 运行支撑表
func AllModels() []interface{} {
	return append(CatalogModels(), &Proxy{}, &CrawlRun{})
}
