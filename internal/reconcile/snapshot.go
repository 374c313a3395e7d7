package reconcile

import (
	"sort"

	"retail_recrawl_v1/internal/model"
)

// Snapshot 一次运行开始时读取的已存储目录，构建后只读
type Snapshot struct {
	products []model.CatalogProduct
	byParent map[string]int
}

// NewSnapshot 按 parent_product_id 建立索引，重复时保留第一条
func NewSnapshot(products []model.CatalogProduct) *Snapshot {
	s := &Snapshot{
		products: products,
		byParent: make(map[string]int, len(products)),
	}
	for i := range products {
		if _, ok := s.byParent[products[i].ParentProductID]; !ok {
			s.byParent[products[i].ParentProductID] = i
		}
	}
	return s
}

// Len 已存储商品数
func (s *Snapshot) Len() int {
	return len(s.byParent)
}

// Lookup 返回只读指针，调用方不得修改
func (s *Snapshot) Lookup(parentProductID string) *model.CatalogProduct {
	i, ok := s.byParent[parentProductID]
	if !ok {
		return nil
	}
	return &s.products[i]
}

// ParentIDs 有序的 parent_product_id 列表
func (s *Snapshot) ParentIDs() []string {
	ids := make([]string, 0, len(s.byParent))
	for id := range s.byParent {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
