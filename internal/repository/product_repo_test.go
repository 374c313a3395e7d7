package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"retail_recrawl_v1/internal/model"
)

// ==================== 辅助函数 ====================

func setupCatalogTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	// :memory: 每个连接是独立的库
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&model.CatalogProduct{}, &model.CatalogVariant{}, &model.CrawlRun{})
	if err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

func newTestProduct(pid string, sizes ...string) *model.CatalogProduct {
	p := &model.CatalogProduct{
		StoreID:         "lululemon",
		ParentProductID: pid,
		Name:            "Align Pant",
		Brand:           "lululemon",
		Category:        "Leggings",
		Materials:       []string{"Nulu"},
		Status:          model.StatusActive,
		OperationType:   model.OpInsert,
	}
	for _, s := range sizes {
		p.Variants = append(p.Variants, model.CatalogVariant{
			StoreID:         "lululemon",
			ParentProductID: pid,
			VariantID:       pid + "-black-" + s,
			MPN:             pid + "-BLACK",
			ColorName:       "Black",
			Size:            s,
			OriginalPrice:   decimal.NewFromInt(98),
			SellingPrice:    decimal.NewFromInt(98),
			FinalPrice:      decimal.NewFromInt(98),
			IsInStock:       true,
			Status:          model.StatusActive,
			OperationType:   model.OpInsert,
		})
	}
	return p
}

// ==================== Apply 测试 ====================

func TestCatalogRepo_ApplyInsert(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	p := newTestProduct("LW5CT3S", "4", "6")
	res, err := repo.Apply(ctx, p)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.ID == 0 || res.Operation != model.OpInsert {
		t.Fatalf("Apply() = %+v, want new id and INSERT", res)
	}
	if p.Variants[0].ID == 0 || p.Variants[0].ProductID != res.ID {
		t.Errorf("variant identity not assigned: %+v", p.Variants[0])
	}

	stored, err := repo.ListByStore(ctx, "lululemon")
	if err != nil {
		t.Fatalf("ListByStore() error = %v", err)
	}
	if len(stored) != 1 || len(stored[0].Variants) != 2 {
		t.Fatalf("ListByStore() = %d products, want 1 with 2 variants", len(stored))
	}
	if !stored[0].Variants[0].OriginalPrice.Equal(decimal.NewFromInt(98)) {
		t.Errorf("OriginalPrice = %s, want 98", stored[0].Variants[0].OriginalPrice)
	}
	if len(stored[0].Materials) != 1 || stored[0].Materials[0] != "Nulu" {
		t.Errorf("Materials = %v", stored[0].Materials)
	}
}

func TestCatalogRepo_ApplyInsertIsRetrySafe(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	first, err := repo.Apply(ctx, newTestProduct("LW5CT3S", "4"))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	again, err := repo.Apply(ctx, newTestProduct("LW5CT3S", "4"))
	if err != nil {
		t.Fatalf("重复 Apply() error = %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("storage id changed on retry: %d -> %d", first.ID, again.ID)
	}

	var count int64
	db.Model(&model.CatalogVariant{}).Count(&count)
	if count != 1 {
		t.Errorf("variants = %d, want 1", count)
	}
}

func TestCatalogRepo_ApplyUpdateAndDelete(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	p := newTestProduct("LW5CT3S", "4", "6")
	if _, err := repo.Apply(ctx, p); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	// 尺码 4 降价，尺码 6 下架
	p.OperationType = model.OpUpdate
	p.Name = "Align High-Rise Pant"
	p.Variants[0].OperationType = model.OpUpdate
	p.Variants[0].SalePrice = decimal.NewFromInt(69)
	p.Variants[0].FinalPrice = decimal.NewFromInt(69)
	p.Variants[0].IsOnSale = true
	p.Variants[1].OperationType = model.OpDelete
	p.Variants[1].Status = model.StatusDeleted

	res, err := repo.Apply(ctx, p)
	if err != nil {
		t.Fatalf("Apply(UPDATE) error = %v", err)
	}
	if res.Operation != model.OpUpdate {
		t.Errorf("Operation = %s, want UPDATE", res.Operation)
	}

	stored, err := repo.GetByParentID(ctx, "lululemon", "LW5CT3S")
	if err != nil {
		t.Fatalf("GetByParentID() error = %v", err)
	}
	if stored.Name != "Align High-Rise Pant" {
		t.Errorf("Name = %q", stored.Name)
	}
	if !stored.Variants[0].FinalPrice.Equal(decimal.NewFromInt(69)) || !stored.Variants[0].IsOnSale {
		t.Errorf("variant 0 not updated: %+v", stored.Variants[0])
	}
	if stored.Variants[1].Status != model.StatusDeleted || stored.Variants[1].DeletedAt == nil {
		t.Errorf("variant 1 not tombstoned: %+v", stored.Variants[1])
	}

	// 整件商品删除
	p.OperationType = model.OpDelete
	if _, err := repo.Apply(ctx, p); err != nil {
		t.Fatalf("Apply(DELETE) error = %v", err)
	}
	stored, _ = repo.GetByParentID(ctx, "lululemon", "LW5CT3S")
	if stored.Status != model.StatusDeleted || stored.OperationType != model.OpDelete {
		t.Errorf("product not tombstoned: status=%s op=%s", stored.Status, stored.OperationType)
	}
	for _, v := range stored.Variants {
		if v.Status != model.StatusDeleted {
			t.Errorf("variant %s still active after product delete", v.VariantID)
		}
	}

	stats, err := repo.CountByStatus(ctx, "lululemon")
	if err != nil {
		t.Fatalf("CountByStatus() error = %v", err)
	}
	if stats[model.StatusDeleted] != 1 {
		t.Errorf("deleted count = %d, want 1", stats[model.StatusDeleted])
	}
}

func TestCatalogRepo_ApplyNoChangeOnlyMarks(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	p := newTestProduct("LW5CT3S", "4")
	if _, err := repo.Apply(ctx, p); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	before, _ := repo.GetByParentID(ctx, "lululemon", "LW5CT3S")

	p.OperationType = model.OpNoChange
	p.Variants[0].OperationType = model.OpNoChange
	p.Name = "should not be written"
	res, err := repo.Apply(ctx, p)
	if err != nil {
		t.Fatalf("Apply(NO_CHANGE) error = %v", err)
	}
	if res.ID != p.ID || res.Operation != model.OpNoChange {
		t.Errorf("Apply(NO_CHANGE) = %+v", res)
	}

	stored, _ := repo.GetByParentID(ctx, "lululemon", "LW5CT3S")
	if stored.Name != "Align Pant" {
		t.Errorf("NO_CHANGE wrote content: name=%q", stored.Name)
	}
	if stored.OperationType != model.OpNoChange || stored.Variants[0].OperationType != model.OpNoChange {
		t.Errorf("operation_type = %s/%s, want NO_CHANGE", stored.OperationType, stored.Variants[0].OperationType)
	}
	if !stored.UpdatedAt.Equal(before.UpdatedAt) {
		t.Errorf("updated_at moved on NO_CHANGE: %v -> %v", before.UpdatedAt, stored.UpdatedAt)
	}

	// 当前操作类型可查询
	list, total, err := repo.ListByOperation(ctx, ProductFilter{StoreID: "lululemon", Operation: model.OpNoChange})
	if err != nil {
		t.Fatalf("ListByOperation() error = %v", err)
	}
	if total != 1 || len(list) != 1 {
		t.Errorf("ListByOperation(NO_CHANGE) = %d, want 1", total)
	}
	_, total, _ = repo.ListByOperation(ctx, ProductFilter{StoreID: "lululemon", Operation: model.OpInsert})
	if total != 0 {
		t.Errorf("ListByOperation(INSERT) = %d, want 0", total)
	}
}

func TestCatalogRepo_ApplyUpdateMarksUnchangedVariants(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	p := newTestProduct("LW5CT3S", "4", "6")
	if _, err := repo.Apply(ctx, p); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	p.OperationType = model.OpUpdate
	p.Variants[0].OperationType = model.OpUpdate
	p.Variants[0].IsInStock = false
	p.Variants[1].OperationType = model.OpNoChange
	if _, err := repo.Apply(ctx, p); err != nil {
		t.Fatalf("Apply(UPDATE) error = %v", err)
	}

	stored, _ := repo.GetByParentID(ctx, "lululemon", "LW5CT3S")
	if stored.Variants[0].OperationType != model.OpUpdate {
		t.Errorf("variant 0 op = %s, want UPDATE", stored.Variants[0].OperationType)
	}
	if stored.Variants[1].OperationType != model.OpNoChange {
		t.Errorf("variant 1 op = %s, want NO_CHANGE", stored.Variants[1].OperationType)
	}
}

func TestCatalogRepo_ApplyNoChangeKeepsTombstoneLastSeen(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	p := newTestProduct("LW5CT3S", "4")
	if _, err := repo.Apply(ctx, p); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	p.OperationType = model.OpDelete
	if _, err := repo.Apply(ctx, p); err != nil {
		t.Fatalf("Apply(DELETE) error = %v", err)
	}
	tomb, _ := repo.GetByParentID(ctx, "lululemon", "LW5CT3S")

	tomb.OperationType = model.OpNoChange
	if _, err := repo.Apply(ctx, tomb); err != nil {
		t.Fatalf("Apply(NO_CHANGE) error = %v", err)
	}

	stored, _ := repo.GetByParentID(ctx, "lululemon", "LW5CT3S")
	if stored.Status != model.StatusDeleted || stored.OperationType != model.OpNoChange {
		t.Errorf("tombstone = status %s op %s", stored.Status, stored.OperationType)
	}
	if !stored.LastSeenAt.Equal(*tomb.LastSeenAt) {
		t.Errorf("last_seen_at moved for absent tombstone: %v -> %v", tomb.LastSeenAt, stored.LastSeenAt)
	}
}

func TestCatalogRepo_ApplyUpdateWithoutID(t *testing.T) {
	repo := NewCatalogRepository(setupCatalogTestDB(t))
	p := newTestProduct("LW5CT3S", "4")
	p.OperationType = model.OpUpdate

	if _, err := repo.Apply(context.Background(), p); err == nil {
		t.Error("Apply(UPDATE) without storage id should fail")
	}
}

func TestCatalogRepo_TransactionRollback(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.Transaction(ctx, func(txRepo CatalogRepository) error {
		if _, err := txRepo.Apply(ctx, newTestProduct("A", "4")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transaction() error = %v, want boom", err)
	}

	var count int64
	db.Model(&model.CatalogProduct{}).Count(&count)
	if count != 0 {
		t.Errorf("products = %d after rollback, want 0", count)
	}
}

func TestCatalogRepo_ListByOperation(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	for _, pid := range []string{"A", "B", "C"} {
		if _, err := repo.Apply(ctx, newTestProduct(pid, "4")); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
	}
	b, _ := repo.GetByParentID(ctx, "lululemon", "B")
	b.OperationType = model.OpDelete
	if _, err := repo.Apply(ctx, b); err != nil {
		t.Fatalf("Apply(DELETE) error = %v", err)
	}

	list, total, err := repo.ListByOperation(ctx, ProductFilter{StoreID: "lululemon", Operation: model.OpDelete})
	if err != nil {
		t.Fatalf("ListByOperation() error = %v", err)
	}
	if total != 1 || len(list) != 1 || list[0].ParentProductID != "B" {
		t.Errorf("ListByOperation() = %d/%d, want only B", len(list), total)
	}
}
