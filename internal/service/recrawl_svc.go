package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/datatypes"

	"retail_recrawl_v1/internal/model"
	"retail_recrawl_v1/internal/reconcile"
	"retail_recrawl_v1/internal/repository"
	"retail_recrawl_v1/internal/supplier"
	"retail_recrawl_v1/pkg/metrics"
)

// 运行记录里最多保存的问题条数
const maxStoredIssues = 200

// ==================== 错误定义 ====================

// PersistenceError 批次写入失败
// 该批次整体回滚，之前已提交的批次保留
type PersistenceError struct {
	StoreID         string
	Batch           int
	ParentProductID string
	Err             error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s batch %d: persist product %q: %v", e.StoreID, e.Batch, e.ParentProductID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type ServiceError string

func (e ServiceError) Error() string { return string(e) }

const (
	ErrRunInProgress ServiceError = "a recrawl for this store is already running"
)

// ==================== RecrawlService ====================

// RecrawlConfig 批处理参数
type RecrawlConfig struct {
	BatchSize  int
	BatchPause time.Duration
}

// RecrawlService 重抓对账批处理
// 同一店铺的运行互斥，不同店铺可以并行
type RecrawlService struct {
	catalogRepo repository.CatalogRepository
	runRepo     repository.CrawlRunRepository
	metrics     *metrics.RecrawlMetrics
	logger      *zap.Logger

	batchSize  int
	batchPause time.Duration

	storeLocks sync.Map // storeID -> *sync.Mutex
}

// NewRecrawlService 创建对账服务
func NewRecrawlService(
	catalogRepo repository.CatalogRepository,
	runRepo repository.CrawlRunRepository,
	m *metrics.RecrawlMetrics,
	logger *zap.Logger,
	cfg RecrawlConfig,
) *RecrawlService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecrawlService{
		catalogRepo: catalogRepo,
		runRepo:     runRepo,
		metrics:     m,
		logger:      logger.Named("recrawl"),
		batchSize:   cfg.BatchSize,
		batchPause:  cfg.BatchPause,
	}
}

// Run 对一个店铺执行一次完整的重抓对账
//  1. 拉取新鲜商品，读取已存储目录快照（整次运行只读一次）
//  2. 归一化并去重，无法识别的条目跳过并记录
//  3. 本次未出现的已存储商品走整体 DELETE
//  4. 分批对账写入，每批一个事务；任一批失败立即停止
//  5. MPN 一致性检查只告警
//
// 返回的报告只包含已提交批次的计数
func (s *RecrawlService) Run(ctx context.Context, storeID string, sup supplier.Supplier) (*reconcile.Report, error) {
	lock := s.storeLock(storeID)
	if !lock.TryLock() {
		return nil, ErrRunInProgress
	}
	defer lock.Unlock()

	started := time.Now()
	log := s.logger.With(zap.String("store", storeID), zap.String("supplier", sup.Name()))

	run := &model.CrawlRun{
		StoreID:   storeID,
		Supplier:  sup.Name(),
		Status:    model.CrawlRunRunning,
		StartedAt: started,
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create crawl run: %w", err)
	}
	log = log.With(zap.Int64("run_id", run.ID))
	log.Info("重抓对账开始")

	report := reconcile.NewReport(storeID)
	report.RunID = run.ID

	err := s.execute(ctx, storeID, sup, report, log)
	s.finishRun(ctx, run, report, err, started, log)
	if err != nil {
		return report, err
	}
	return report, nil
}

func (s *RecrawlService) execute(ctx context.Context, storeID string, sup supplier.Supplier, report *reconcile.Report, log *zap.Logger) error {
	raws, err := sup.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch fresh items: %w", err)
	}

	stored, err := s.catalogRepo.ListByStore(ctx, storeID)
	if err != nil {
		return fmt.Errorf("load stored catalog: %w", err)
	}
	snap := reconcile.NewSnapshot(stored)
	log.Info("数据准备完成", zap.Int("fresh", len(raws)), zap.Int("stored", snap.Len()))

	fresh, freshIDs := s.normalize(storeID, raws, report, log)

	// 缺席商品的整体 DELETE 放在最前，其余商品在各自批次内对账
	absent := reconcile.ReconcileAbsent(snap, freshIDs)
	units := make([]workUnit, 0, len(absent)+len(fresh))
	for _, p := range absent {
		units = append(units, workUnit{product: p, reconciled: true})
	}
	for _, p := range fresh {
		units = append(units, workUnit{product: p})
	}

	if err := s.persist(ctx, storeID, snap, units, report, log); err != nil {
		return err
	}

	for _, issue := range reconcile.CheckMPN(report.Products) {
		s.addIssue(report, issue, log)
	}
	return nil
}

// normalize 原始商品 -> 待对账商品，重复的 parent_product_id 保留第一条
func (s *RecrawlService) normalize(storeID string, raws []model.RawProduct, report *reconcile.Report, log *zap.Logger) ([]model.CatalogProduct, map[string]struct{}) {
	fresh := make([]model.CatalogProduct, 0, len(raws))
	ids := make(map[string]struct{}, len(raws))

	for i, raw := range raws {
		p, issues, err := reconcile.NormalizeProduct(storeID, raw)
		if err != nil {
			s.addIssue(report, reconcile.Issue{
				Kind:   reconcile.IssueMissingProductID,
				Detail: fmt.Sprintf("crawl item %d: %v", i, err),
			}, log)
			continue
		}
		for _, issue := range issues {
			s.addIssue(report, issue, log)
		}
		if _, dup := ids[p.ParentProductID]; dup {
			s.addIssue(report, reconcile.Issue{
				Kind:            reconcile.IssueDuplicateProduct,
				ParentProductID: p.ParentProductID,
				Detail:          "duplicate product in crawl, first occurrence kept",
			}, log)
			continue
		}
		ids[p.ParentProductID] = struct{}{}
		fresh = append(fresh, p)
	}
	return fresh, ids
}

// workUnit 待写入的商品；reconciled 为 false 时在所属批次内对账
type workUnit struct {
	product    model.CatalogProduct
	reconciled bool
}

// persist 分批对账并写入，批次之间按 batchPause 限速
func (s *RecrawlService) persist(ctx context.Context, storeID string, snap *reconcile.Snapshot, units []workUnit, report *reconcile.Report, log *zap.Logger) error {
	limit := rate.Inf
	if s.batchPause > 0 {
		limit = rate.Every(s.batchPause)
	}
	limiter := rate.NewLimiter(limit, 1)

	batchNo := 0
	for chunk := range slices.Chunk(units, s.batchSize) {
		batch := s.reconcileBatch(snap, chunk, report, log)
		if len(batch) == 0 {
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("batch %d: %w", batchNo, err)
		}

		err := s.catalogRepo.Transaction(ctx, func(txRepo repository.CatalogRepository) error {
			for i := range batch {
				if _, err := txRepo.Apply(ctx, &batch[i]); err != nil {
					return &PersistenceError{
						StoreID:         storeID,
						Batch:           batchNo,
						ParentProductID: batch[i].ParentProductID,
						Err:             err,
					}
				}
			}
			return nil
		})
		if err != nil {
			issue := reconcile.Issue{Kind: reconcile.IssuePersistenceFailed, Detail: err.Error()}
			var perr *PersistenceError
			if errors.As(err, &perr) {
				issue.ParentProductID = perr.ParentProductID
			}
			s.addIssue(report, issue, log)
			return err
		}

		var committed reconcile.Summary
		for i := range batch {
			report.AddProduct(batch[i])
			committed.AddProduct(&batch[i])
		}
		report.Summary.Batches++
		s.observeCounts(storeID, committed)
		s.metrics.ObserveBatch(storeID)

		log.Debug("批次已提交",
			zap.Int("batch", batchNo),
			zap.Int("products", len(batch)),
			zap.Int("changed", committed.Products.Total()-committed.Products.NoChange),
		)
		batchNo++
	}
	return nil
}

func (s *RecrawlService) reconcileBatch(snap *reconcile.Snapshot, chunk []workUnit, report *reconcile.Report, log *zap.Logger) []model.CatalogProduct {
	batch := make([]model.CatalogProduct, 0, len(chunk))
	for _, u := range chunk {
		if u.reconciled {
			batch = append(batch, u.product)
			continue
		}
		res := reconcile.ReconcileProduct(snap.Lookup(u.product.ParentProductID), u.product)
		for _, issue := range res.Issues {
			s.addIssue(report, issue, log)
		}
		if res.Skipped {
			continue
		}
		batch = append(batch, res.Product)
	}
	return batch
}

func (s *RecrawlService) observeCounts(storeID string, sum reconcile.Summary) {
	for _, op := range model.AllOperations {
		s.metrics.ObserveOperation(storeID, "product", string(op), sum.Products.Get(op))
		s.metrics.ObserveOperation(storeID, "variant", string(op), sum.Variants.Get(op))
	}
}

func (s *RecrawlService) addIssue(report *reconcile.Report, issue reconcile.Issue, log *zap.Logger) {
	report.AddIssue(issue)
	s.metrics.ObserveIssue(report.StoreID, string(issue.Kind))

	fields := []zap.Field{
		zap.String("kind", string(issue.Kind)),
		zap.String("parent_product_id", issue.ParentProductID),
		zap.String("variant_id", issue.VariantID),
		zap.String("detail", issue.Detail),
	}
	if issue.IsError() {
		log.Error("对账错误", fields...)
		return
	}
	log.Warn("对账告警", fields...)
}

// runRecord 运行记录中保存的汇总
type runRecord struct {
	Summary reconcile.Summary `json:"summary"`
	Issues  []reconcile.Issue `json:"issues,omitempty"`
}

func (s *RecrawlService) finishRun(ctx context.Context, run *model.CrawlRun, report *reconcile.Report, runErr error, started time.Time, log *zap.Logger) {
	now := time.Now()
	run.FinishedAt = &now
	run.Status = model.CrawlRunSuccess
	if runErr != nil {
		run.Status = model.CrawlRunFailed
		run.ErrorMsg = runErr.Error()
	}

	record := runRecord{Summary: report.Summary, Issues: report.Issues}
	if len(record.Issues) > maxStoredIssues {
		record.Issues = record.Issues[:maxStoredIssues]
	}
	if b, err := json.Marshal(record); err == nil {
		run.Summary = datatypes.JSON(b)
	}

	// 调用方取消后仍要记录运行结果
	if err := s.runRepo.Finish(context.WithoutCancel(ctx), run); err != nil {
		log.Error("保存运行记录失败", zap.Error(err))
	}
	s.metrics.ObserveRun(run.StoreID, run.Status, now.Sub(started))

	sum := report.Summary
	fields := []zap.Field{
		zap.Duration("elapsed", now.Sub(started)),
		zap.Int("batches", sum.Batches),
		zap.Int("insert", sum.Products.Insert),
		zap.Int("update", sum.Products.Update),
		zap.Int("delete", sum.Products.Delete),
		zap.Int("no_change", sum.Products.NoChange),
		zap.Int("skipped", sum.Skipped),
		zap.Int("warnings", sum.Warnings),
	}
	if runErr != nil {
		log.Error("重抓对账失败", append(fields, zap.Error(runErr))...)
		return
	}
	log.Info("重抓对账完成", fields...)
}

func (s *RecrawlService) storeLock(storeID string) *sync.Mutex {
	actual, _ := s.storeLocks.LoadOrStore(storeID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// ==================== 查询 ====================

// ListRuns 店铺最近的运行记录
func (s *RecrawlService) ListRuns(ctx context.Context, storeID string, limit int) ([]model.CrawlRun, error) {
	return s.runRepo.ListByStore(ctx, storeID, limit)
}

// GetRun 运行记录详情
func (s *RecrawlService) GetRun(ctx context.Context, id int64) (*model.CrawlRun, error) {
	return s.runRepo.GetByID(ctx, id)
}

// ListProducts 按最近一次操作类型查询商品
func (s *RecrawlService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]model.CatalogProduct, int64, error) {
	return s.catalogRepo.ListByOperation(ctx, filter)
}

// CatalogStats 店铺商品状态统计
func (s *RecrawlService) CatalogStats(ctx context.Context, storeID string) (map[model.RecordStatus]int64, error) {
	return s.catalogRepo.CountByStatus(ctx, storeID)
}
