package supplier

import (
	"context"
	"slices"

	"retail_recrawl_v1/internal/model"
)

// Supplier 新鲜商品来源
// 每个零售商适配器都把抓取结果转换为统一的 RawProduct 形状
type Supplier interface {
	Name() string
	Fetch(ctx context.Context) ([]model.RawProduct, error)
}

// ==================== StaticSupplier ====================

// StaticSupplier 固定商品列表，用于回放与测试
type StaticSupplier struct {
	name     string
	products []model.RawProduct
}

// NewStaticSupplier 创建固定来源
func NewStaticSupplier(name string, products []model.RawProduct) *StaticSupplier {
	return &StaticSupplier{name: name, products: products}
}

func (s *StaticSupplier) Name() string { return s.name }

// Fetch 返回副本，调用方修改不影响下一次回放
func (s *StaticSupplier) Fetch(ctx context.Context) ([]model.RawProduct, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(s.products), nil
}
