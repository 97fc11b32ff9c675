package model

import "time"

// Brand 品牌
// 由带 brand_id 的面包屑节点生成，主键取该节点自身的 id，而不是 brand_id
type Brand struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Title     string    `gorm:"size:255" json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

func (Brand) TableName() string {
	return "brands"
}

// Category 分类
// 层级被压平成一个可选的品牌父链接，不是完整的树
type Category struct {
	ID      int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Title   string `gorm:"size:255" json:"title"`
	URL     string `gorm:"size:1024" json:"url"`
	BrandID *int64 `gorm:"index" json:"brand_id"`

	Brand *Brand `gorm:"foreignKey:BrandID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

func (Category) TableName() string {
	return "categories"
}
