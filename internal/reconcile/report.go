package reconcile

import (
	"retail_recrawl_v1/internal/model"
)

// ==================== 操作计数 ====================

// OpCounts 按操作类型计数
type OpCounts struct {
	Insert   int `json:"INSERT"`
	Update   int `json:"UPDATE"`
	Delete   int `json:"DELETE"`
	NoChange int `json:"NO_CHANGE"`
}

// Add 记录一次操作
func (c *OpCounts) Add(op model.OperationType) {
	switch op {
	case model.OpInsert:
		c.Insert++
	case model.OpUpdate:
		c.Update++
	case model.OpDelete:
		c.Delete++
	case model.OpNoChange:
		c.NoChange++
	}
}

// Merge 累加另一组计数
func (c *OpCounts) Merge(o OpCounts) {
	c.Insert += o.Insert
	c.Update += o.Update
	c.Delete += o.Delete
	c.NoChange += o.NoChange
}

// Get 读取某一操作的计数
func (c OpCounts) Get(op model.OperationType) int {
	switch op {
	case model.OpInsert:
		return c.Insert
	case model.OpUpdate:
		return c.Update
	case model.OpDelete:
		return c.Delete
	case model.OpNoChange:
		return c.NoChange
	}
	return 0
}

// Total 总数
func (c OpCounts) Total() int {
	return c.Insert + c.Update + c.Delete + c.NoChange
}

// Changed 是否存在 INSERT/UPDATE/DELETE
func (c OpCounts) Changed() bool {
	return c.Insert+c.Update+c.Delete > 0
}

// ==================== 问题记录 ====================

// IssueKind 问题分类
type IssueKind string

const (
	IssueKeyDerivation     IssueKind = "key_derivation"
	IssueMissingProductID  IssueKind = "missing_product_id"
	IssueDuplicateVariant  IssueKind = "duplicate_variant"
	IssueDuplicateProduct  IssueKind = "duplicate_product"
	IssueMPNInconsistency  IssueKind = "mpn_inconsistency"
	IssueEmptyVariantSet   IssueKind = "empty_variant_set"
	IssuePersistenceFailed IssueKind = "persistence_failed"
)

// Issue 对账过程中跳过或告警的条目
type Issue struct {
	Kind            IssueKind `json:"kind"`
	ParentProductID string    `json:"parent_product_id,omitempty"`
	VariantID       string    `json:"variant_id,omitempty"`
	Detail          string    `json:"detail"`
}

// IsError 持久化失败属于错误，其余均为告警
func (i Issue) IsError() bool {
	return i.Kind == IssuePersistenceFailed
}

// ==================== 运行汇总 ====================

// Summary 一次运行的汇总
type Summary struct {
	Products OpCounts `json:"products"`
	Variants OpCounts `json:"variants"`
	Batches  int      `json:"batches"`
	Skipped  int      `json:"skipped"`
	Warnings int      `json:"warnings"`
	Errors   int      `json:"errors"`
}

// Clean 无跳过、无告警、无错误
func (s Summary) Clean() bool {
	return s.Skipped == 0 && s.Warnings == 0 && s.Errors == 0
}

// AddProduct 计入一个已对账商品及其变体
func (s *Summary) AddProduct(p *model.CatalogProduct) {
	s.Products.Add(p.OperationType)
	for i := range p.Variants {
		s.Variants.Add(p.Variants[i].OperationType)
	}
}

// AddIssue 计入一个问题
func (s *Summary) AddIssue(issue Issue) {
	if issue.IsError() {
		s.Errors++
		return
	}
	s.Warnings++
	switch issue.Kind {
	case IssueKeyDerivation, IssueMissingProductID, IssueDuplicateVariant, IssueDuplicateProduct, IssueEmptyVariantSet:
		s.Skipped++
	}
}

// ==================== 差异报告 ====================

// Report 目录差异报告，交给持久化与导出协作方
type Report struct {
	StoreID  string                 `json:"store_id"`
	RunID    int64                  `json:"run_id,omitempty"`
	Products []model.CatalogProduct `json:"products"`
	Summary  Summary                `json:"summary"`
	Issues   []Issue                `json:"issues,omitempty"`
}

// NewReport 创建空报告
func NewReport(storeID string) *Report {
	return &Report{StoreID: storeID}
}

// AddProduct 追加一个已提交的商品
func (r *Report) AddProduct(p model.CatalogProduct) {
	r.Products = append(r.Products, p)
	r.Summary.AddProduct(&p)
}

// AddIssue 追加一个问题
func (r *Report) AddIssue(issue Issue) {
	r.Issues = append(r.Issues, issue)
	r.Summary.AddIssue(issue)
}

// Recount 按记录上的 operation_type 重新计数
func (r *Report) Recount() (products, variants OpCounts) {
	for i := range r.Products {
		products.Add(r.Products[i].OperationType)
		for j := range r.Products[i].Variants {
			variants.Add(r.Products[i].Variants[j].OperationType)
		}
	}
	return products, variants
}
