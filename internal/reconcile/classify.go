package reconcile

import (
	"retail_recrawl_v1/internal/model"
)

// ==================== 变更分类 ====================
// 只比较一对记录，看不到“缺失”，因此永远不会返回 DELETE

type fieldCheck[T any] struct {
	name  string
	equal func(a, b *T) bool
}

// variantFields 变体比较字段，价格按数值比较
var variantFields = []fieldCheck[model.CatalogVariant]{
	{"original_price", func(a, b *model.CatalogVariant) bool { return a.OriginalPrice.Equal(b.OriginalPrice) }},
	{"selling_price", func(a, b *model.CatalogVariant) bool { return a.SellingPrice.Equal(b.SellingPrice) }},
	{"sale_price", func(a, b *model.CatalogVariant) bool { return a.SalePrice.Equal(b.SalePrice) }},
	{"final_price", func(a, b *model.CatalogVariant) bool { return a.FinalPrice.Equal(b.FinalPrice) }},
	{"is_on_sale", func(a, b *model.CatalogVariant) bool { return a.IsOnSale == b.IsOnSale }},
	{"is_in_stock", func(a, b *model.CatalogVariant) bool { return a.IsInStock == b.IsInStock }},
	{"image_url", func(a, b *model.CatalogVariant) bool { return a.ImageURL == b.ImageURL }},
	{"link_url", func(a, b *model.CatalogVariant) bool { return a.LinkURL == b.LinkURL }},
	{"deeplink_url", func(a, b *model.CatalogVariant) bool { return a.DeeplinkURL == b.DeeplinkURL }},
	{"status", func(a, b *model.CatalogVariant) bool { return a.Status == b.Status }},
}

// productFields 商品描述比较字段
var productFields = []fieldCheck[model.CatalogProduct]{
	{"name", func(a, b *model.CatalogProduct) bool { return a.Name == b.Name }},
	{"description", func(a, b *model.CatalogProduct) bool { return a.Description == b.Description }},
	{"brand", func(a, b *model.CatalogProduct) bool { return a.Brand == b.Brand }},
	{"category", func(a, b *model.CatalogProduct) bool { return a.Category == b.Category }},
	{"status", func(a, b *model.CatalogProduct) bool { return a.Status == b.Status }},
}

func changedFields[T any](checks []fieldCheck[T], stored, fresh *T) []string {
	var changed []string
	for _, c := range checks {
		if !c.equal(stored, fresh) {
			changed = append(changed, c.name)
		}
	}
	return changed
}

func classify[T any](checks []fieldCheck[T], stored, fresh *T) model.OperationType {
	if stored == nil {
		return model.OpInsert
	}
	for _, c := range checks {
		if !c.equal(stored, fresh) {
			return model.OpUpdate
		}
	}
	return model.OpNoChange
}

// ClassifyVariant stored 为 nil 时为 INSERT
func ClassifyVariant(stored, fresh *model.CatalogVariant) model.OperationType {
	return classify(variantFields, stored, fresh)
}

// ClassifyProduct 只比较商品自身的描述字段，变体由 ReconcileProduct 汇总
func ClassifyProduct(stored, fresh *model.CatalogProduct) model.OperationType {
	return classify(productFields, stored, fresh)
}

// VariantChanges 返回发生变化的字段名，用于日志
func VariantChanges(stored, fresh *model.CatalogVariant) []string {
	if stored == nil {
		return nil
	}
	return changedFields(variantFields, stored, fresh)
}

// ProductChanges 返回发生变化的商品字段名
func ProductChanges(stored, fresh *model.CatalogProduct) []string {
	if stored == nil {
		return nil
	}
	return changedFields(productFields, stored, fresh)
}
