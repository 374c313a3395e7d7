package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"retail_recrawl_v1/internal/model"
)

// CrawlRunRepository 运行记录仓储
type CrawlRunRepository interface {
	Create(ctx context.Context, run *model.CrawlRun) error
	Finish(ctx context.Context, run *model.CrawlRun) error
	GetByID(ctx context.Context, id int64) (*model.CrawlRun, error)
	ListByStore(ctx context.Context, storeID string, limit int) ([]model.CrawlRun, error)
	LatestSuccess(ctx context.Context, storeID string) (*model.CrawlRun, error)
}

type crawlRunRepo struct {
	db *gorm.DB
}

// NewCrawlRunRepository 创建运行记录仓储
func NewCrawlRunRepository(db *gorm.DB) CrawlRunRepository {
	return &crawlRunRepo{db: db}
}

func (r *crawlRunRepo) Create(ctx context.Context, run *model.CrawlRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Finish 写入运行结束状态，FinishedAt 为空时补当前时间
func (r *crawlRunRepo) Finish(ctx context.Context, run *model.CrawlRun) error {
	if run.FinishedAt == nil {
		now := time.Now()
		run.FinishedAt = &now
	}
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *crawlRunRepo) GetByID(ctx context.Context, id int64) (*model.CrawlRun, error) {
	var run model.CrawlRun
	if err := r.db.WithContext(ctx).First(&run, id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *crawlRunRepo) ListByStore(ctx context.Context, storeID string, limit int) ([]model.CrawlRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []model.CrawlRun
	err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

func (r *crawlRunRepo) LatestSuccess(ctx context.Context, storeID string) (*model.CrawlRun, error) {
	var run model.CrawlRun
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND status = ?", storeID, model.CrawlRunSuccess).
		Order("id DESC").
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}
