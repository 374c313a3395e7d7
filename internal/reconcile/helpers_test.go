package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"

	"retail_recrawl_v1/internal/model"
)

// ==================== 测试辅助 ====================

const testStore = "aritzia"

func rawColor(color, price string, sizes ...string) model.RawVariant {
	rv := model.RawVariant{
		ColorCode:     color,
		ColorName:     color,
		OriginalPrice: decimal.RequireFromString(price),
		SellingPrice:  decimal.RequireFromString(price),
		ImageURL:      "https://img.example.com/" + color + ".jpg",
		LinkURL:       "https://shop.example.com/p?c=" + color,
	}
	for _, s := range sizes {
		rv.Sizes = append(rv.Sizes, model.RawSize{Label: s, InStock: true})
	}
	return rv
}

func rawProduct(pid string, colors ...model.RawVariant) model.RawProduct {
	return model.RawProduct{
		ParentProductID: pid,
		Name:            "Product " + pid,
		Brand:           "Babaton",
		Category:        "Dresses",
		Variants:        colors,
	}
}

func mustNormalize(t *testing.T, raw model.RawProduct) model.CatalogProduct {
	t.Helper()
	p, issues, err := NormalizeProduct(testStore, raw)
	if err != nil {
		t.Fatalf("NormalizeProduct() error = %v", err)
	}
	if len(issues) > 0 {
		t.Fatalf("NormalizeProduct() issues = %+v", issues)
	}
	return p
}

// persist 模拟持久化：为没有 ID 的记录分配 ID，DELETE 之外的变体保持 ACTIVE
func persist(p model.CatalogProduct, nextID *int64) model.CatalogProduct {
	if p.ID == 0 {
		*nextID++
		p.ID = *nextID
	}
	variants := make([]model.CatalogVariant, len(p.Variants))
	for i, v := range p.Variants {
		if v.ID == 0 {
			*nextID++
			v.ID = *nextID
		}
		v.ProductID = p.ID
		variants[i] = v
	}
	p.Variants = variants
	return p
}

func findVariant(t *testing.T, p model.CatalogProduct, color, size string) model.CatalogVariant {
	t.Helper()
	for _, v := range p.Variants {
		if v.ColorName == color && v.Size == size {
			return v
		}
	}
	t.Fatalf("variant %s/%s not found in %s", color, size, p.ParentProductID)
	return model.CatalogVariant{}
}
