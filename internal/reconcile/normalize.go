package reconcile

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"retail_recrawl_v1/internal/model"
)

// NormalizeProduct 把抓取的原始商品转换为待对账的商品
//   - parent_product_id 为空时整件商品无法识别，返回 KeyDerivationError
//   - 单个变体键派生失败只丢弃该变体，记录 Issue
//   - 尺码列表为空的颜色产生 0 个变体，而不是一个“默认”变体
func NormalizeProduct(storeID string, raw model.RawProduct) (model.CatalogProduct, []Issue, error) {
	pid := strings.TrimSpace(raw.ParentProductID)
	if pid == "" {
		return model.CatalogProduct{}, nil, &KeyDerivationError{Field: "parent_product_id"}
	}

	product := model.CatalogProduct{
		StoreID:         storeID,
		ParentProductID: pid,
		Name:            strings.TrimSpace(raw.Name),
		Description:     strings.TrimSpace(raw.Description),
		Category:        strings.TrimSpace(raw.Category),
		Brand:           strings.TrimSpace(raw.Brand),
		Gender:          strings.TrimSpace(raw.Gender),
		Materials:       cleanStrings(raw.Materials),
		Status:          model.StatusActive,
	}
	if len(raw.Extra) > 0 {
		if b, err := json.Marshal(raw.Extra); err == nil {
			product.Extra = datatypes.JSON(b)
		}
	}

	var issues []Issue
	for _, rv := range raw.Variants {
		rv = roundPrices(rv)
		colorKey := firstNonEmpty(rv.ColorCode, rv.ColorName)
		colorName := firstNonEmpty(rv.ColorName, rv.ColorCode)

		for _, size := range rv.Sizes {
			variantID, err := DeriveVariantKey(pid, colorKey, size.Label)
			if err != nil {
				issues = append(issues, keyIssue(pid, err))
				continue
			}
			mpn, err := DeriveMPN(pid, colorName)
			if err != nil {
				issues = append(issues, keyIssue(pid, err))
				continue
			}

			product.Variants = append(product.Variants, model.CatalogVariant{
				StoreID:         storeID,
				ParentProductID: pid,
				VariantID:       variantID,
				MPN:             mpn,
				ColorCode:       strings.TrimSpace(rv.ColorCode),
				ColorName:       strings.TrimSpace(colorName),
				Size:            strings.TrimSpace(size.Label),
				OriginalPrice:   rv.OriginalPrice,
				SellingPrice:    rv.SellingPrice,
				SalePrice:       rv.SalePrice,
				FinalPrice:      finalPrice(rv),
				IsOnSale:        onSale(rv),
				IsInStock:       size.InStock,
				ImageURL:        strings.TrimSpace(rv.ImageURL),
				LinkURL:         strings.TrimSpace(rv.LinkURL),
				DeeplinkURL:     strings.TrimSpace(rv.DeeplinkURL),
				Status:          model.StatusActive,
			})
		}
	}
	return product, issues, nil
}

func keyIssue(pid string, err error) Issue {
	issue := Issue{Kind: IssueKeyDerivation, ParentProductID: pid, Detail: err.Error()}
	var kerr *KeyDerivationError
	if errors.As(err, &kerr) {
		issue.Detail = "empty " + kerr.Field
	}
	return issue
}

// roundPrices 价格按存储精度取整，与数据库读回的值保持一致
func roundPrices(rv model.RawVariant) model.RawVariant {
	rv.OriginalPrice = rv.OriginalPrice.Round(model.PriceScale)
	rv.SellingPrice = rv.SellingPrice.Round(model.PriceScale)
	rv.SalePrice = rv.SalePrice.Round(model.PriceScale)
	rv.FinalPrice = rv.FinalPrice.Round(model.PriceScale)
	return rv
}

// finalPrice 未提供时按 促销价 > 售价 > 原价 取第一个正数
func finalPrice(rv model.RawVariant) decimal.Decimal {
	if rv.FinalPrice.IsPositive() {
		return rv.FinalPrice
	}
	for _, p := range []decimal.Decimal{rv.SalePrice, rv.SellingPrice, rv.OriginalPrice} {
		if p.IsPositive() {
			return p
		}
	}
	return decimal.Zero
}

func onSale(rv model.RawVariant) bool {
	if rv.IsOnSale != nil {
		return *rv.IsOnSale
	}
	return rv.SalePrice.IsPositive() && rv.OriginalPrice.IsPositive() && rv.SalePrice.LessThan(rv.OriginalPrice)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
