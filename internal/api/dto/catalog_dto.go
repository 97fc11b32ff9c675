package dto

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// ==================== 上游目录 API 文档 ====================
// 指针字段用于区分“字段缺失/null”和“字段存在但为空”

// SearchPage 分页搜索接口的一页
type SearchPage struct {
	Results *[]SearchItem `json:"results"`
	Next    *string       `json:"next"`
}

// SearchItem 列表页中的商品引用
type SearchItem struct {
	RandomKey   string `json:"random_key"`
	MoreInfoURL string `json:"more_info_url"`
}

// ProductDetail 商品详情文档
type ProductDetail struct {
	ImageURL     *string       `json:"image_url"`
	Name1        *string       `json:"name1"`
	Name2        *string       `json:"name2"`
	MoreInfoURL  *string       `json:"more_info_url"`
	Price        *float64      `json:"price"`
	PriceText    *string       `json:"price_text"`
	ShopText     *string       `json:"shop_text"`
	StockStatus  StockList     `json:"stock_status"`
	Breadcrumbs  []Breadcrumb  `json:"breadcrumbs"`
	ProductsInfo *ProductsInfo `json:"products_info"`
}

// Breadcrumb 面包屑节点
type Breadcrumb struct {
	ID      *int64     `json:"id"`
	Title   *string    `json:"title"`
	URL     *string    `json:"url"`
	BrandID FlexString `json:"brand_id"`
}

// ProductsInfo 卖家报价列表
type ProductsInfo struct {
	Result []OfferInfo `json:"result"`
}

// OfferInfo 单个卖家的报价
type OfferInfo struct {
	Name1               *string  `json:"name1"`
	Name2               *string  `json:"name2"`
	ShopName            *string  `json:"shop_name"`
	ShopName2           *string  `json:"shop_name2"` // 城市
	Price               *float64 `json:"price"`
	PriceText           *string  `json:"price_text"`
	LastPriceChangeDate *string  `json:"last_price_change_date"`
	PageURL             *string  `json:"page_url"`
	ShopID              *int64   `json:"shop_id"`
}

// ==================== 宽松类型 ====================

// FlexString 兼容字符串 / 数字 / null 三种写法
// 数字 0 与 null 一样视为空
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("unsupported value %s: %w", string(b), err)
	}
	if n.String() == "0" {
		*f = ""
		return nil
	}
	*f = FlexString(n.String())
	return nil
}

// StockList 库存状态列表，只关心是否为空
// 兼容数组、单个字符串、null
type StockList struct {
	n int
}

func (s *StockList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		s.n = 0
	case b[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		s.n = len(items)
	case b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		if v != "" {
			s.n = 1
		}
	default:
		return fmt.Errorf("unsupported stock_status %s", string(b))
	}
	return nil
}

// Len 列表长度
func (s StockList) Len() int {
	return s.n
}
