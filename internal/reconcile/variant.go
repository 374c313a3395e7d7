package reconcile

import (
	"retail_recrawl_v1/internal/model"
)

// VariantResult 单个商品的变体对账结果
type VariantResult struct {
	Variants   []model.CatalogVariant
	Ops        OpCounts
	Duplicates []string // 本次抓取中重复出现、被丢弃的 variant_id
}

// ReconcileVariants 对比一个商品的已存储变体与新抓取变体
//
// 两遍扫描：先处理全部新变体并标记 seen，再为未被 seen 的已存储变体合成 DELETE。
// 同一 variant_id 只保留抓取顺序中的第一条。
// 结果 == 已匹配的新变体 ∪ 合成的 DELETE，不会遗漏任何已存储变体。
func ReconcileVariants(stored, fresh []model.CatalogVariant) VariantResult {
	index := make(map[string]*model.CatalogVariant, len(stored))
	for i := range stored {
		if _, ok := index[stored[i].VariantID]; !ok {
			index[stored[i].VariantID] = &stored[i]
		}
	}

	res := VariantResult{
		Variants: make([]model.CatalogVariant, 0, len(fresh)+len(stored)),
	}
	seen := make(map[string]struct{}, len(fresh)+len(stored))

	for _, v := range fresh {
		if _, dup := seen[v.VariantID]; dup {
			res.Duplicates = append(res.Duplicates, v.VariantID)
			continue
		}
		seen[v.VariantID] = struct{}{}

		old := index[v.VariantID]
		op := ClassifyVariant(old, &v)
		if old != nil {
			v.ID = old.ID
			v.CreatedAt = old.CreatedAt
			v.UpdatedAt = old.UpdatedAt
			v.ProductID = old.ProductID
		}
		v.Status = model.StatusActive
		v.DeletedAt = nil
		v.OperationType = op
		res.Variants = append(res.Variants, v)
		res.Ops.Add(op)
	}

	for i := range stored {
		if _, ok := seen[stored[i].VariantID]; ok {
			continue
		}
		seen[stored[i].VariantID] = struct{}{}

		t := tombstone(stored[i])
		res.Variants = append(res.Variants, t)
		res.Ops.Add(t.OperationType)
	}
	return res
}

// tombstone 已是墓碑的记录保持 NO_CHANGE，重复运行保持幂等
func tombstone(v model.CatalogVariant) model.CatalogVariant {
	if v.Status == model.StatusDeleted {
		v.OperationType = model.OpNoChange
		return v
	}
	v.Status = model.StatusDeleted
	v.OperationType = model.OpDelete
	return v
}
