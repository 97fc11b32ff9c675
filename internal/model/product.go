package model

import "time"

// Product 商品主表
// 主键由上游分配 (random_key)，首次写入后不再更新：重复抓取只追加报价，不改价格/库存
type Product struct {
	ID            string `gorm:"primaryKey;size:64" json:"id"`
	ImageURL      string `gorm:"size:1024" json:"image_url"`
	NamePrimary   string `gorm:"size:512" json:"name_primary"`
	NameSecondary string `gorm:"size:512" json:"name_secondary"`
	DetailURL     string `gorm:"size:1024" json:"detail_url"`

	// --- 价格 ---
	Price     int64  `gorm:"default:0" json:"price"`
	PriceText string `gorm:"size:255" json:"price_text"` // 展示文本，可能带单位/折扣信息
	ShopText  string `gorm:"size:255" json:"shop_text"`

	InStock bool `gorm:"default:false" json:"in_stock"`

	// --- 反范式字段 (由面包屑拼接) ---
	CategoryName string `gorm:"size:1024" json:"category_name"`
	BrandName    string `gorm:"size:255" json:"brand_name"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Product) TableName() string {
	return "products"
}

// ProductSellerOffer 某卖家对某商品的一次报价观测
// 追加写：同一 (product_id, seller_id) 每轮抓取都会新增一行
type ProductSellerOffer struct {
	ID            int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	NamePrimary   string `gorm:"size:512" json:"name_primary"`
	NameSecondary string `gorm:"size:512" json:"name_secondary"`
	ShopName      string `gorm:"size:255" json:"shop_name"`
	ShopCity      string `gorm:"size:255" json:"shop_city"`

	Price               int64  `gorm:"default:0" json:"price"`
	PriceText           string `gorm:"size:255" json:"price_text"`
	LastPriceChangeDate string `gorm:"size:64" json:"last_price_change_date"` // 上游格式不规则，按原文存储
	PageURL             string `gorm:"size:1024" json:"page_url"`
	InStock             bool   `gorm:"default:false" json:"in_stock"`

	// 上游未给出 shop_id 时为空
	SellerID  *int64 `gorm:"index" json:"seller_id"`
	ProductID string `gorm:"size:64;index;not null" json:"product_id"`

	Seller  *Seller  `gorm:"foreignKey:SellerID" json:"-"`
	Product *Product `gorm:"foreignKey:ProductID" json:"-"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (ProductSellerOffer) TableName() string {
	return "product_seller_offers"
}
