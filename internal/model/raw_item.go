package model

import "github.com/shopspring/decimal"

// ==================== 抓取原始数据 ====================
// 各零售商适配器统一输出的结构，对账核心只认这一种形状

// RawProduct 一次抓取中观察到的商品
type RawProduct struct {
	ParentProductID string         `json:"parent_product_id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Category        string         `json:"category"`
	Brand           string         `json:"brand"`
	Gender          string         `json:"gender"`
	Materials       []string       `json:"materials"`
	Extra           map[string]any `json:"extra,omitempty"`
	Variants        []RawVariant   `json:"variants"`
}

// RawVariant 一个颜色下的价格与链接，按 Sizes 展开为多个变体
// 价格使用 decimal，"10" 与 10.0 解码后相等
type RawVariant struct {
	ColorCode     string          `json:"color_code"`
	ColorName     string          `json:"color_name"`
	Sizes         []RawSize       `json:"sizes"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	FinalPrice    decimal.Decimal `json:"final_price"`
	IsOnSale      *bool           `json:"is_on_sale,omitempty"`
	ImageURL      string          `json:"image_url"`
	LinkURL       string          `json:"link_url"`
	DeeplinkURL   string          `json:"deeplink_url"`
}

// RawSize 尺码及其库存
type RawSize struct {
	Label   string `json:"label"`
	InStock bool   `json:"in_stock"`
}
