package crawler

import (
	"fmt"
	"math"
	"strings"

	"catalog_crawler_v1/internal/api/dto"
	"catalog_crawler_v1/internal/model"
)

// Normalizer 把详情文档映射为 Bundle
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize 规则：
//   - 缺失的可选字符串填 model.EmptySentinel，存在的空串保持 ""
//   - in_stock 由 stock_status 列表是否非空推导，报价沿用商品级库存
//   - name1 与面包屑 id 没有安全默认值，缺失时返回 NormalizationError
func (n *Normalizer) Normalize(ref ItemRef, doc *dto.ProductDetail) (*model.Bundle, error) {
	if doc.Name1 == nil || strings.TrimSpace(*doc.Name1) == "" {
		return nil, &NormalizationError{ItemID: ref.ID, Field: "name1"}
	}

	inStock := doc.StockStatus.Len() > 0

	bundle := &model.Bundle{
		Product: model.ProductDraft{
			ID:            ref.ID,
			ImageURL:      orEmpty(doc.ImageURL),
			NamePrimary:   *doc.Name1,
			NameSecondary: orEmpty(doc.Name2),
			DetailURL:     orEmpty(doc.MoreInfoURL),
			Price:         toPrice(doc.Price),
			PriceText:     orEmpty(doc.PriceText),
			ShopText:      orEmpty(doc.ShopText),
			InStock:       inStock,
		},
	}

	for i, crumb := range doc.Breadcrumbs {
		if crumb.ID == nil {
			return nil, &NormalizationError{ItemID: ref.ID, Field: fmt.Sprintf("breadcrumbs[%d].id", i)}
		}
		bundle.Breadcrumbs = append(bundle.Breadcrumbs, model.BreadcrumbDraft{
			ID:      *crumb.ID,
			Title:   orEmpty(crumb.Title),
			URL:     orEmpty(crumb.URL),
			BrandID: strings.TrimSpace(string(crumb.BrandID)),
		})
	}

	if doc.ProductsInfo != nil {
		for _, info := range doc.ProductsInfo.Result {
			offer := model.OfferDraft{
				NamePrimary:         orEmpty(info.Name1),
				NameSecondary:       orEmpty(info.Name2),
				ShopName:            orEmpty(info.ShopName),
				ShopCity:            orEmpty(info.ShopName2),
				Price:               toPrice(info.Price),
				PriceText:           orEmpty(info.PriceText),
				LastPriceChangeDate: orEmpty(info.LastPriceChangeDate),
				PageURL:             orEmpty(info.PageURL),
				InStock:             inStock,
			}
			if info.ShopID != nil && *info.ShopID != 0 {
				offer.Seller = &model.SellerDraft{
					ID:   *info.ShopID,
					Name: orEmpty(info.ShopName),
					City: orEmpty(info.ShopName2),
				}
			}
			bundle.Offers = append(bundle.Offers, offer)
		}
	}

	return bundle, nil
}

func orEmpty(s *string) string {
	if s == nil {
		return model.EmptySentinel
	}
	return *s
}

func toPrice(p *float64) int64 {
	if p == nil {
		return 0
	}
	return int64(math.Round(*p))
}
