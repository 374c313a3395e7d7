package model

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ==================== 操作类型 ====================

// OperationType 本轮对账推导出的操作，每次运行重新计算
type OperationType string

const (
	OpInsert   OperationType = "INSERT"
	OpUpdate   OperationType = "UPDATE"
	OpDelete   OperationType = "DELETE"
	OpNoChange OperationType = "NO_CHANGE"
)

// AllOperations 固定顺序，用于统计输出
var AllOperations = []OperationType{OpInsert, OpUpdate, OpDelete, OpNoChange}

func (o OperationType) Valid() bool {
	switch o {
	case OpInsert, OpUpdate, OpDelete, OpNoChange:
		return true
	}
	return false
}

// RecordStatus 记录的持久状态
// ACTIVE -> DELETED 可在任意一轮发生；同一轮内不会从 DELETED 回到 ACTIVE
type RecordStatus string

const (
	StatusActive  RecordStatus = "ACTIVE"
	StatusDeleted RecordStatus = "DELETED"
)

// ==================== 商品 ====================

// CatalogProduct 零售商的一个商品（一个款式）
type CatalogProduct struct {
	BaseModel

	// --- 身份 ---
	StoreID         string `gorm:"size:64;not null;uniqueIndex:idx_store_parent" json:"store_id"`
	ParentProductID string `gorm:"size:128;not null;uniqueIndex:idx_store_parent" json:"parent_product_id"`

	// --- 描述字段（不参与身份识别）---
	Name        string         `gorm:"size:512" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Category    string         `gorm:"size:255;index" json:"category"`
	Brand       string         `gorm:"size:255" json:"brand"`
	Gender      string         `gorm:"size:32" json:"gender"`
	Materials   pq.StringArray `gorm:"type:text[]" json:"materials"`
	Extra       datatypes.JSON `gorm:"type:jsonb" json:"extra,omitempty"`

	// --- 对账状态 ---
	Status        RecordStatus  `gorm:"size:16;not null;default:'ACTIVE';index" json:"status"`
	OperationType OperationType `gorm:"size:16;index" json:"operation_type"`
	LastSeenAt    *time.Time    `json:"last_seen_at,omitempty"`
	DeletedAt     *time.Time    `json:"deleted_at,omitempty"`

	Variants []CatalogVariant `gorm:"foreignKey:ProductID" json:"variants"`
}

func (CatalogProduct) TableName() string {
	return "catalog_products"
}

// IsDeleted 是否已是墓碑记录
func (p *CatalogProduct) IsDeleted() bool {
	return p.Status == StatusDeleted
}

// LiveVariants 本轮结束后仍存活（非 DELETE 且非墓碑）的变体数量
func (p *CatalogProduct) LiveVariants() int {
	n := 0
	for i := range p.Variants {
		if p.Variants[i].Status != StatusDeleted {
			n++
		}
	}
	return n
}

// ==================== 变体 ====================

// PriceScale 价格列的小数位数，与 decimal(18,2) 一致
const PriceScale = 2

// CatalogVariant 可售单元：商品 × 颜色 × 尺码
type CatalogVariant struct {
	BaseModel

	// --- 关联 ---
	ProductID       int64  `gorm:"index;not null" json:"product_id"`
	StoreID         string `gorm:"size:64;not null;uniqueIndex:idx_store_variant" json:"store_id"`
	ParentProductID string `gorm:"size:128;not null;index" json:"parent_product_id"`

	// --- 身份 ---
	VariantID string `gorm:"size:64;not null;uniqueIndex:idx_store_variant" json:"variant_id"`
	MPN       string `gorm:"size:64;index" json:"mpn"`

	// --- 规格 ---
	ColorCode string `gorm:"size:128" json:"color_code"`
	ColorName string `gorm:"size:255" json:"color_name"`
	Size      string `gorm:"size:64" json:"size"`

	// --- 可变商业字段（变体比较字段）---
	// 价格列保留 PriceScale 位小数
	OriginalPrice decimal.Decimal `gorm:"type:decimal(18,2)" json:"original_price"`
	SellingPrice  decimal.Decimal `gorm:"type:decimal(18,2)" json:"selling_price"`
	SalePrice     decimal.Decimal `gorm:"type:decimal(18,2)" json:"sale_price"`
	FinalPrice    decimal.Decimal `gorm:"type:decimal(18,2)" json:"final_price"`
	IsOnSale      bool            `gorm:"default:false" json:"is_on_sale"`
	IsInStock     bool            `gorm:"default:false" json:"is_in_stock"`
	ImageURL      string          `gorm:"size:1024" json:"image_url"`
	LinkURL       string          `gorm:"size:1024" json:"link_url"`
	DeeplinkURL   string          `gorm:"size:1024" json:"deeplink_url"`

	// --- 对账状态 ---
	Status        RecordStatus  `gorm:"size:16;not null;default:'ACTIVE';index" json:"status"`
	OperationType OperationType `gorm:"size:16;index" json:"operation_type"`
	DeletedAt     *time.Time    `json:"deleted_at,omitempty"`
}

func (CatalogVariant) TableName() string {
	return "catalog_variants"
}
