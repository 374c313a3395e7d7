package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"retail_recrawl_v1/internal/model"
	"retail_recrawl_v1/internal/reconcile"
	"retail_recrawl_v1/internal/repository"
)

// ExportCatalog 通过校验、可交给下游导出的目录
type ExportCatalog struct {
	StoreID      string                 `json:"store_id"`
	RunID        int64                  `json:"run_id,omitempty"`
	GeneratedAt  time.Time              `json:"generated_at"`
	ProductCount int                    `json:"product_count"`
	VariantCount int                    `json:"variant_count"`
	Products     []model.CatalogProduct `json:"products"`
	Rejected     []string               `json:"rejected,omitempty"`
}

// ExportService 导出前校验
// 任何 MPN 不一致、无存活变体或 variant_id 重复的商品都不会进入导出结果
type ExportService struct {
	catalogRepo repository.CatalogRepository
	runRepo     repository.CrawlRunRepository
	logger      *zap.Logger
}

// NewExportService 创建导出服务
func NewExportService(catalogRepo repository.CatalogRepository, runRepo repository.CrawlRunRepository, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{catalogRepo: catalogRepo, runRepo: runRepo, logger: logger.Named("export")}
}

// Prepare 校验一次运行的差异报告
// 校验失败时同时返回通过部分与合并后的错误
func (s *ExportService) Prepare(report *reconcile.Report) (*ExportCatalog, error) {
	return s.build(report.StoreID, report.RunID, report.Products)
}

// PrepareStore 校验店铺当前存储的整个目录
// RunID 取最近一次成功的运行，从未成功过时为 0
func (s *ExportService) PrepareStore(ctx context.Context, storeID string) (*ExportCatalog, error) {
	var runID int64
	if s.runRepo != nil {
		run, err := s.runRepo.LatestSuccess(ctx, storeID)
		switch {
		case err == nil:
			runID = run.ID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("load latest run: %w", err)
		}
	}

	products, err := s.catalogRepo.ListByStore(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return s.build(storeID, runID, products)
}

func (s *ExportService) build(storeID string, runID int64, products []model.CatalogProduct) (*ExportCatalog, error) {
	valid, err := reconcile.ValidateForExport(products)

	catalog := &ExportCatalog{
		StoreID:     storeID,
		RunID:       runID,
		GeneratedAt: time.Now(),
		Products:    valid,
	}
	for i := range valid {
		catalog.VariantCount += len(valid[i].Variants)
	}
	catalog.ProductCount = len(valid)

	if err != nil {
		catalog.Rejected = splitErrors(err)
		s.logger.Warn("导出校验未通过",
			zap.String("store", storeID),
			zap.Int("accepted", catalog.ProductCount),
			zap.Int("rejected", len(catalog.Rejected)),
		)
		return catalog, err
	}
	return catalog, nil
}

func splitErrors(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		msgs := make([]string, 0, len(joined.Unwrap()))
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}
