package reconcile

import (
	"errors"
	"fmt"

	"retail_recrawl_v1/internal/model"
)

// ErrEmptyVariantSet 商品对账后没有存活变体
var ErrEmptyVariantSet = errors.New("product has no surviving variants")

// ProductResult 单个商品的对账结果
type ProductResult struct {
	Product  model.CatalogProduct
	Variants OpCounts
	// Skipped 新商品没有任何变体，不入库
	Skipped bool
	// Escalated 已存储商品经变体对账后没有存活变体，整体转为 DELETE
	Escalated bool
	Issues    []Issue
}

// ReconcileProduct 变体级对账后汇总为商品级操作
//
// 汇总规则（顺序有效）：
//  1. stored 为 nil -> INSERT
//  2. 没有存活变体 -> DELETE（已是墓碑且无变化时为 NO_CHANGE）
//  3. 任一变体非 NO_CHANGE，或商品描述字段变化 -> UPDATE
//  4. 否则 NO_CHANGE
func ReconcileProduct(stored *model.CatalogProduct, fresh model.CatalogProduct) ProductResult {
	var storedVariants []model.CatalogVariant
	if stored != nil {
		storedVariants = stored.Variants
	}
	vr := ReconcileVariants(storedVariants, fresh.Variants)

	res := ProductResult{Variants: vr.Ops}
	for _, id := range vr.Duplicates {
		res.Issues = append(res.Issues, Issue{
			Kind:            IssueDuplicateVariant,
			ParentProductID: fresh.ParentProductID,
			VariantID:       id,
			Detail:          "duplicate variant in crawl, first occurrence kept",
		})
	}

	p := fresh
	p.Variants = vr.Variants
	p.Status = model.StatusActive
	p.DeletedAt = nil

	if stored == nil {
		if len(p.Variants) == 0 {
			res.Skipped = true
			res.Issues = append(res.Issues, Issue{
				Kind:            IssueEmptyVariantSet,
				ParentProductID: fresh.ParentProductID,
				Detail:          fmt.Sprintf("new product skipped: %v", ErrEmptyVariantSet),
			})
		}
		p.OperationType = model.OpInsert
		res.Product = p
		return res
	}

	p.ID = stored.ID
	p.CreatedAt = stored.CreatedAt
	p.UpdatedAt = stored.UpdatedAt
	p.LastSeenAt = stored.LastSeenAt

	if p.LiveVariants() == 0 {
		res.Escalated = true
		if stored.IsDeleted() && !vr.Ops.Changed() {
			// 仍是墓碑，保留原记录
			kept := *stored
			kept.Variants = p.Variants
			kept.OperationType = model.OpNoChange
			res.Product = kept
			return res
		}
		p.Status = model.StatusDeleted
		p.OperationType = model.OpDelete
		res.Product = p
		return res
	}

	if vr.Ops.Changed() || ClassifyProduct(stored, &p) == model.OpUpdate {
		p.OperationType = model.OpUpdate
	} else {
		p.OperationType = model.OpNoChange
	}
	res.Product = p
	return res
}

// ReconcileAbsent 已存储但本次抓取完全没有出现的商品整体 DELETE
// 不经过变体对账：没有新数据可以比较，所有变体强制 DELETE
func ReconcileAbsent(snap *Snapshot, freshIDs map[string]struct{}) []model.CatalogProduct {
	var out []model.CatalogProduct
	for _, id := range snap.ParentIDs() {
		if _, ok := freshIDs[id]; ok {
			continue
		}
		stored := snap.Lookup(id)

		p := *stored
		p.Variants = make([]model.CatalogVariant, 0, len(stored.Variants))
		changed := !stored.IsDeleted()
		for _, v := range stored.Variants {
			t := tombstone(v)
			if t.OperationType == model.OpDelete {
				changed = true
			}
			p.Variants = append(p.Variants, t)
		}

		if changed {
			p.Status = model.StatusDeleted
			p.OperationType = model.OpDelete
		} else {
			p.OperationType = model.OpNoChange
		}
		out = append(out, p)
	}
	return out
}
