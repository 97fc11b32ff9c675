package model

// EmptySentinel 缺失的可选字符串字段统一填这个值
// 与空字符串不同：""表示上游给了空串，"Empty" 表示上游没给
const EmptySentinel = "Empty"

// ==================== 归一化草稿 ====================

// Bundle 一个商品的归一化结果，作为整体交给 UpsertPipeline
type Bundle struct {
	Product     ProductDraft
	Breadcrumbs []BreadcrumbDraft // 从根到叶
	Offers      []OfferDraft
}

// ProductDraft 商品草稿
type ProductDraft struct {
	ID            string
	ImageURL      string
	NamePrimary   string
	NameSecondary string
	DetailURL     string
	Price         int64
	PriceText     string
	ShopText      string
	InStock       bool
}

// BreadcrumbDraft 面包屑节点
// BrandID 非空时该节点被视为品牌，否则是普通分类
type BreadcrumbDraft struct {
	ID      int64
	Title   string
	URL     string
	BrandID string
}

// IsBrand 是否品牌节点
func (b BreadcrumbDraft) IsBrand() bool {
	return b.BrandID != ""
}

// OfferDraft 卖家报价草稿
type OfferDraft struct {
	NamePrimary         string
	NameSecondary       string
	ShopName            string
	ShopCity            string
	Price               int64
	PriceText           string
	LastPriceChangeDate string
	PageURL             string
	InStock             bool
	Seller              *SellerDraft // shop_id 缺失时为 nil
}

// SellerDraft 卖家草稿
type SellerDraft struct {
	ID   int64
	Name string
	City string
}

// ToProduct 草稿转实体，category/brand 名称由流水线拼好后传入
func (d ProductDraft) ToProduct(categoryName, brandName string) *Product {
	return &Product{
		ID:            d.ID,
		ImageURL:      d.ImageURL,
		NamePrimary:   d.NamePrimary,
		NameSecondary: d.NameSecondary,
		DetailURL:     d.DetailURL,
		Price:         d.Price,
		PriceText:     d.PriceText,
		ShopText:      d.ShopText,
		InStock:       d.InStock,
		CategoryName:  categoryName,
		BrandName:     brandName,
	}
}

// ToOffer 报价草稿转实体
func (d OfferDraft) ToOffer(productID string) *ProductSellerOffer {
	offer := &ProductSellerOffer{
		NamePrimary:         d.NamePrimary,
		NameSecondary:       d.NameSecondary,
		ShopName:            d.ShopName,
		ShopCity:            d.ShopCity,
		Price:               d.Price,
		PriceText:           d.PriceText,
		LastPriceChangeDate: d.LastPriceChangeDate,
		PageURL:             d.PageURL,
		InStock:             d.InStock,
		ProductID:           productID,
	}
	if d.Seller != nil {
		id := d.Seller.ID
		offer.SellerID = &id
	}
	return offer
}

// ToSeller 卖家草稿转实体
func (d SellerDraft) ToSeller() *Seller {
	return &Seller{
		ID:   d.ID,
		Name: d.Name,
		City: d.City,
	}
}
