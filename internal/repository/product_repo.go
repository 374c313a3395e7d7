package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"retail_recrawl_v1/internal/model"
)

// ==================== 接口定义 ====================

// CatalogRepository 目录仓储
// 对账核心只通过两个窄接口使用它：读取已存储目录、按操作类型写入
type CatalogRepository interface {
	// 已存储目录
	ListByStore(ctx context.Context, storeID string) ([]model.CatalogProduct, error)
	GetByParentID(ctx context.Context, storeID, parentProductID string) (*model.CatalogProduct, error)

	// 持久化出口
	Apply(ctx context.Context, product *model.CatalogProduct) (ApplyResult, error)

	// 查询
	ListByOperation(ctx context.Context, filter ProductFilter) ([]model.CatalogProduct, int64, error)
	CountByStatus(ctx context.Context, storeID string) (map[model.RecordStatus]int64, error)

	// 事务
	WithTx(tx *gorm.DB) CatalogRepository
	Transaction(ctx context.Context, fn func(txRepo CatalogRepository) error) error
}

// ApplyResult 写入结果：存储身份与实际执行的操作
type ApplyResult struct {
	ID        int64
	Operation model.OperationType
}

// ==================== 过滤条件 ====================

// ProductFilter 商品过滤条件
type ProductFilter struct {
	StoreID   string
	Operation model.OperationType
	Status    model.RecordStatus
	Page      int
	PageSize  int
}

// ==================== 仓储实现 ====================

type catalogRepo struct {
	db  *gorm.DB
	now func() time.Time
}

// NewCatalogRepository 创建目录仓储
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepo{db: db, now: time.Now}
}

func (r *catalogRepo) ListByStore(ctx context.Context, storeID string) ([]model.CatalogProduct, error) {
	var products []model.CatalogProduct
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("store_id = ?", storeID).
		Order("id ASC").
		Find(&products).Error
	return products, err
}

func (r *catalogRepo) GetByParentID(ctx context.Context, storeID, parentProductID string) (*model.CatalogProduct, error) {
	var product model.CatalogProduct
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("store_id = ? AND parent_product_id = ?", storeID, parentProductID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Apply 按 operation_type 写入
//   - INSERT: 创建商品与变体（按自然键 upsert，重试安全）
//   - UPDATE: 更新商品字段，变体按各自操作写入
//   - DELETE: 软删除商品及其全部存活变体
//   - NO_CHANGE: 只标记 operation_type 与 last_seen_at，不改内容和 updated_at
//
// 写入成功后回填 product 及其变体的存储 ID
func (r *catalogRepo) Apply(ctx context.Context, product *model.CatalogProduct) (ApplyResult, error) {
	now := r.now()
	db := r.db.WithContext(ctx)

	switch product.OperationType {
	case model.OpNoChange:
		if product.ID == 0 {
			return ApplyResult{}, fmt.Errorf("mark product %q: missing storage id", product.ParentProductID)
		}
		if err := r.markUnchanged(db, product, now); err != nil {
			return ApplyResult{}, err
		}
		return ApplyResult{ID: product.ID, Operation: model.OpNoChange}, nil
	case model.OpInsert:
		if err := r.upsertProduct(db, product, now); err != nil {
			return ApplyResult{}, err
		}
	case model.OpUpdate:
		if product.ID == 0 {
			return ApplyResult{}, fmt.Errorf("update product %q: missing storage id", product.ParentProductID)
		}
		if err := r.updateProduct(db, product, now); err != nil {
			return ApplyResult{}, err
		}
	case model.OpDelete:
		if product.ID == 0 {
			return ApplyResult{}, fmt.Errorf("delete product %q: missing storage id", product.ParentProductID)
		}
		if err := r.softDeleteProduct(db, product, now); err != nil {
			return ApplyResult{}, err
		}
		return ApplyResult{ID: product.ID, Operation: model.OpDelete}, nil
	default:
		return ApplyResult{}, fmt.Errorf("product %q: unknown operation %q", product.ParentProductID, product.OperationType)
	}

	if err := r.applyVariants(db, product, now); err != nil {
		return ApplyResult{}, err
	}
	return ApplyResult{ID: product.ID, Operation: product.OperationType}, nil
}

func (r *catalogRepo) upsertProduct(db *gorm.DB, product *model.CatalogProduct, now time.Time) error {
	row := *product
	row.Variants = nil
	row.Status = model.StatusActive
	row.LastSeenAt = &now
	row.DeletedAt = nil

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "store_id"}, {Name: "parent_product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "category", "brand", "gender",
			"materials", "extra", "status", "operation_type",
			"last_seen_at", "deleted_at", "updated_at",
		}),
	}).Omit(clause.Associations).Create(&row).Error
	if err != nil {
		return fmt.Errorf("insert product %q: %w", product.ParentProductID, err)
	}

	product.ID = row.ID
	product.CreatedAt = row.CreatedAt
	product.UpdatedAt = row.UpdatedAt
	product.LastSeenAt = row.LastSeenAt
	return nil
}

func (r *catalogRepo) updateProduct(db *gorm.DB, product *model.CatalogProduct, now time.Time) error {
	err := db.Model(&model.CatalogProduct{}).
		Where("id = ?", product.ID).
		Updates(map[string]interface{}{
			"name":           product.Name,
			"description":    product.Description,
			"category":       product.Category,
			"brand":          product.Brand,
			"gender":         product.Gender,
			"materials":      product.Materials,
			"extra":          product.Extra,
			"status":         model.StatusActive,
			"operation_type": model.OpUpdate,
			"last_seen_at":   now,
			"deleted_at":     nil,
		}).Error
	if err != nil {
		return fmt.Errorf("update product %q: %w", product.ParentProductID, err)
	}
	product.LastSeenAt = &now
	return nil
}

// markUnchanged 本次对账无变化：商品与其全部变体记为 NO_CHANGE
// 墓碑商品本次仍缺席，不更新 last_seen_at
func (r *catalogRepo) markUnchanged(db *gorm.DB, product *model.CatalogProduct, now time.Time) error {
	cols := map[string]interface{}{"operation_type": model.OpNoChange}
	if product.Status != model.StatusDeleted {
		cols["last_seen_at"] = now
	}
	err := db.Model(&model.CatalogProduct{}).
		Where("id = ?", product.ID).
		UpdateColumns(cols).Error
	if err != nil {
		return fmt.Errorf("mark product %q: %w", product.ParentProductID, err)
	}

	err = db.Model(&model.CatalogVariant{}).
		Where("product_id = ? AND operation_type <> ?", product.ID, model.OpNoChange).
		UpdateColumn("operation_type", model.OpNoChange).Error
	if err != nil {
		return fmt.Errorf("mark variants of %q: %w", product.ParentProductID, err)
	}

	if product.Status != model.StatusDeleted {
		product.LastSeenAt = &now
	}
	return nil
}

func (r *catalogRepo) softDeleteProduct(db *gorm.DB, product *model.CatalogProduct, now time.Time) error {
	err := db.Model(&model.CatalogProduct{}).
		Where("id = ?", product.ID).
		Updates(map[string]interface{}{
			"status":         model.StatusDeleted,
			"operation_type": model.OpDelete,
			"deleted_at":     now,
		}).Error
	if err != nil {
		return fmt.Errorf("delete product %q: %w", product.ParentProductID, err)
	}

	// 商品墓碑化时不允许留下存活变体
	err = db.Model(&model.CatalogVariant{}).
		Where("product_id = ? AND status = ?", product.ID, model.StatusActive).
		Updates(map[string]interface{}{
			"status":         model.StatusDeleted,
			"operation_type": model.OpDelete,
			"deleted_at":     now,
		}).Error
	if err != nil {
		return fmt.Errorf("delete variants of %q: %w", product.ParentProductID, err)
	}

	product.DeletedAt = &now
	for i := range product.Variants {
		if product.Variants[i].OperationType == model.OpDelete {
			product.Variants[i].DeletedAt = &now
		}
	}
	return nil
}

func (r *catalogRepo) applyVariants(db *gorm.DB, product *model.CatalogProduct, now time.Time) error {
	var unchanged []int64
	for i := range product.Variants {
		v := &product.Variants[i]
		v.ProductID = product.ID
		v.StoreID = product.StoreID
		v.ParentProductID = product.ParentProductID

		switch v.OperationType {
		case model.OpNoChange:
			if v.ID != 0 {
				unchanged = append(unchanged, v.ID)
			}
		case model.OpInsert:
			if err := r.upsertVariant(db, v); err != nil {
				return err
			}
		case model.OpUpdate:
			if err := r.updateVariant(db, v); err != nil {
				return err
			}
		case model.OpDelete:
			if err := r.softDeleteVariant(db, v, now); err != nil {
				return err
			}
		default:
			return fmt.Errorf("variant %s: unknown operation %q", v.VariantID, v.OperationType)
		}
	}

	if len(unchanged) == 0 {
		return nil
	}
	err := db.Model(&model.CatalogVariant{}).
		Where("id IN ?", unchanged).
		UpdateColumn("operation_type", model.OpNoChange).Error
	if err != nil {
		return fmt.Errorf("mark variants of %q: %w", product.ParentProductID, err)
	}
	return nil
}

func (r *catalogRepo) upsertVariant(db *gorm.DB, v *model.CatalogVariant) error {
	v.Status = model.StatusActive
	v.DeletedAt = nil
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "store_id"}, {Name: "variant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"product_id", "mpn", "color_code", "color_name", "size",
			"original_price", "selling_price", "sale_price", "final_price",
			"is_on_sale", "is_in_stock", "image_url", "link_url", "deeplink_url",
			"status", "operation_type", "deleted_at", "updated_at",
		}),
	}).Create(v).Error
	if err != nil {
		return fmt.Errorf("insert variant %s: %w", v.VariantID, err)
	}
	return nil
}

func (r *catalogRepo) updateVariant(db *gorm.DB, v *model.CatalogVariant) error {
	if v.ID == 0 {
		return fmt.Errorf("update variant %s: missing storage id", v.VariantID)
	}
	err := db.Model(&model.CatalogVariant{}).
		Where("id = ?", v.ID).
		Updates(map[string]interface{}{
			"mpn":            v.MPN,
			"color_code":     v.ColorCode,
			"color_name":     v.ColorName,
			"size":           v.Size,
			"original_price": v.OriginalPrice,
			"selling_price":  v.SellingPrice,
			"sale_price":     v.SalePrice,
			"final_price":    v.FinalPrice,
			"is_on_sale":     v.IsOnSale,
			"is_in_stock":    v.IsInStock,
			"image_url":      v.ImageURL,
			"link_url":       v.LinkURL,
			"deeplink_url":   v.DeeplinkURL,
			"status":         model.StatusActive,
			"operation_type": model.OpUpdate,
			"deleted_at":     nil,
		}).Error
	if err != nil {
		return fmt.Errorf("update variant %s: %w", v.VariantID, err)
	}
	return nil
}

func (r *catalogRepo) softDeleteVariant(db *gorm.DB, v *model.CatalogVariant, now time.Time) error {
	if v.ID == 0 {
		return fmt.Errorf("delete variant %s: missing storage id", v.VariantID)
	}
	err := db.Model(&model.CatalogVariant{}).
		Where("id = ?", v.ID).
		Updates(map[string]interface{}{
			"status":         model.StatusDeleted,
			"operation_type": model.OpDelete,
			"deleted_at":     now,
		}).Error
	if err != nil {
		return fmt.Errorf("delete variant %s: %w", v.VariantID, err)
	}
	v.DeletedAt = &now
	return nil
}

func (r *catalogRepo) ListByOperation(ctx context.Context, filter ProductFilter) ([]model.CatalogProduct, int64, error) {
	var products []model.CatalogProduct
	var total int64

	query := r.db.WithContext(ctx).Model(&model.CatalogProduct{})
	if filter.StoreID != "" {
		query = query.Where("store_id = ?", filter.StoreID)
	}
	if filter.Operation != "" {
		query = query.Where("operation_type = ?", filter.Operation)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	offset := (filter.Page - 1) * filter.PageSize
	err := query.
		Preload("Variants").
		Order("updated_at DESC").
		Limit(filter.PageSize).
		Offset(offset).
		Find(&products).Error

	return products, total, err
}

func (r *catalogRepo) CountByStatus(ctx context.Context, storeID string) (map[model.RecordStatus]int64, error) {
	type result struct {
		Status model.RecordStatus
		Count  int64
	}
	var results []result

	err := r.db.WithContext(ctx).
		Model(&model.CatalogProduct{}).
		Select("status, COUNT(*) as count").
		Where("store_id = ?", storeID).
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	stats := make(map[model.RecordStatus]int64)
	for _, r := range results {
		stats[r.Status] = r.Count
	}
	return stats, nil
}

func (r *catalogRepo) WithTx(tx *gorm.DB) CatalogRepository {
	return &catalogRepo{db: tx, now: r.now}
}

func (r *catalogRepo) Transaction(ctx context.Context, fn func(txRepo CatalogRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
