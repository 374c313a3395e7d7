package reconcile

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"retail_recrawl_v1/internal/model"
)

// ErrDuplicateVariantID 整个目录中 variant_id 必须唯一
var ErrDuplicateVariantID = errors.New("duplicate variant_id in catalog")

// ErrMPNInconsistency 所有 MPNInconsistencyError 均满足 errors.Is(err, ErrMPNInconsistency)
var ErrMPNInconsistency = errors.New("mpn inconsistency")

// MPNInconsistencyError 同一 (parent_product_id, 颜色) 下出现多个 MPN
type MPNInconsistencyError struct {
	ParentProductID string
	Color           string
	MPNs            []string
}

func (e *MPNInconsistencyError) Error() string {
	return fmt.Sprintf("mpn inconsistency: product %q color %q has %d mpns (%s)",
		e.ParentProductID, e.Color, len(e.MPNs), strings.Join(e.MPNs, ", "))
}

func (e *MPNInconsistencyError) Is(target error) bool {
	return target == ErrMPNInconsistency
}

// CheckProductMPN 检查单个商品的存活变体，同一颜色的 MPN 必须唯一
func CheckProductMPN(p *model.CatalogProduct) []*MPNInconsistencyError {
	byColor := make(map[string]map[string]struct{})
	var colors []string
	for i := range p.Variants {
		v := &p.Variants[i]
		if v.Status == model.StatusDeleted {
			continue
		}
		color := strings.TrimSpace(norm.NFC.String(v.ColorName))
		set, ok := byColor[color]
		if !ok {
			set = make(map[string]struct{})
			byColor[color] = set
			colors = append(colors, color)
		}
		set[v.MPN] = struct{}{}
	}

	var errs []*MPNInconsistencyError
	for _, color := range colors {
		set := byColor[color]
		if len(set) <= 1 {
			continue
		}
		mpns := make([]string, 0, len(set))
		for m := range set {
			mpns = append(mpns, m)
		}
		sort.Strings(mpns)
		errs = append(errs, &MPNInconsistencyError{
			ParentProductID: p.ParentProductID,
			Color:           color,
			MPNs:            mpns,
		})
	}
	return errs
}

// CheckMPN 常规对账中的检查，只产生告警
func CheckMPN(products []model.CatalogProduct) []Issue {
	var issues []Issue
	for i := range products {
		for _, e := range CheckProductMPN(&products[i]) {
			issues = append(issues, Issue{
				Kind:            IssueMPNInconsistency,
				ParentProductID: e.ParentProductID,
				Detail:          e.Error(),
			})
		}
	}
	return issues
}

// ValidateForExport 导出前的严格校验
// 返回可导出的商品（仅含存活变体），以及被排除商品的合并错误。
// 墓碑商品不导出，但不算错误。
func ValidateForExport(products []model.CatalogProduct) ([]model.CatalogProduct, error) {
	valid := make([]model.CatalogProduct, 0, len(products))
	var errs []error
	owner := make(map[string]string)

	for i := range products {
		p := products[i]
		if p.IsDeleted() {
			continue
		}
		if p.LiveVariants() == 0 {
			errs = append(errs, fmt.Errorf("product %q: %w", p.ParentProductID, ErrEmptyVariantSet))
			continue
		}
		if mpnErrs := CheckProductMPN(&p); len(mpnErrs) > 0 {
			for _, e := range mpnErrs {
				errs = append(errs, e)
			}
			continue
		}

		live := make([]model.CatalogVariant, 0, len(p.Variants))
		var dupErr error
		for _, v := range p.Variants {
			if v.Status == model.StatusDeleted {
				continue
			}
			if other, ok := owner[v.VariantID]; ok {
				dupErr = fmt.Errorf("product %q variant %s already owned by %q: %w",
					p.ParentProductID, v.VariantID, other, ErrDuplicateVariantID)
				break
			}
			live = append(live, v)
		}
		if dupErr != nil {
			errs = append(errs, dupErr)
			continue
		}
		for _, v := range live {
			owner[v.VariantID] = p.ParentProductID
		}
		p.Variants = live
		valid = append(valid, p)
	}
	return valid, errors.Join(errs...)
}
