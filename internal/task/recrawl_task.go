package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"retail_recrawl_v1/internal/middleware"
	"retail_recrawl_v1/internal/reconcile"
	"retail_recrawl_v1/internal/service"
	"retail_recrawl_v1/internal/supplier"
)

// ==================== RecrawlTask 定时重抓任务 ====================

// Runner 执行单店铺重抓对账
type Runner interface {
	Run(ctx context.Context, storeID string, sup supplier.Supplier) (*reconcile.Report, error)
}

// Cooldown 定时重抓完成后同步手动触发的冷却时间
type Cooldown interface {
	MarkExecuted(key string)
}

// RoundResult 一轮全店铺重抓的结果
type RoundResult struct {
	Success int
	Failed  int
	Busy    int
	Changed int
}

// RecrawlTask 重抓对账定时任务
// 调度策略：
//   - 按 cron 表达式定期重抓所有已注册店铺
//   - 店铺之间并发，上限 concurrencyLimit；同一店铺的运行由 service 保证串行
type RecrawlTask struct {
	registry *supplier.Registry
	runner   Runner
	cooldown Cooldown
	cron     *cron.Cron
	logger   *zap.Logger

	schedule     string
	initialDelay time.Duration
	runTimeout   time.Duration

	// 并发控制
	concurrencyLimit int
	sleepTime        time.Duration
}

// NewRecrawlTask 创建重抓任务
func NewRecrawlTask(registry *supplier.Registry, runner Runner, logger *zap.Logger) *RecrawlTask {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecrawlTask{
		registry:         registry,
		runner:           runner,
		cron:             cron.New(cron.WithSeconds()),
		logger:           logger.Named("recrawl_task"),
		schedule:         "0 0 */6 * * *",
		runTimeout:       2 * time.Hour,
		concurrencyLimit: 2,
		sleepTime:        300 * time.Millisecond,
	}
}

// SetSchedule 设置 cron 表达式（带秒）
func (t *RecrawlTask) SetSchedule(spec string) {
	if spec != "" {
		t.schedule = spec
	}
}

// SetInitialDelay 启动后延迟执行一次，0 表示不执行
func (t *RecrawlTask) SetInitialDelay(d time.Duration) {
	t.initialDelay = d
}

// SetCooldown 设置冷却同步，nil 表示不同步
func (t *RecrawlTask) SetCooldown(c Cooldown) {
	t.cooldown = c
}

// SetConcurrency 设置并发参数
func (t *RecrawlTask) SetConcurrency(limit int, sleep time.Duration) {
	if limit > 0 {
		t.concurrencyLimit = limit
	}
	t.sleepTime = sleep
}

// Start 启动定时任务
func (t *RecrawlTask) Start() error {
	if _, err := t.cron.AddFunc(t.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.runTimeout)
		defer cancel()
		t.recrawlAllStores(ctx)
	}); err != nil {
		return err
	}

	if t.initialDelay > 0 {
		go func() {
			time.Sleep(t.initialDelay)
			ctx, cancel := context.WithTimeout(context.Background(), t.runTimeout)
			defer cancel()
			t.logger.Info("执行首次重抓")
			t.recrawlAllStores(ctx)
		}()
	}

	t.cron.Start()
	t.logger.Info("已启动", zap.String("schedule", t.schedule), zap.Int("stores", len(t.registry.Stores())))
	return nil
}

// Stop 停止任务，等待正在执行的一轮结束
func (t *RecrawlTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	t.logger.Info("已停止")
}

// recrawlAllStores 重抓所有已注册店铺
func (t *RecrawlTask) recrawlAllStores(ctx context.Context) RoundResult {
	stores := t.registry.Stores()
	if len(stores) == 0 {
		t.logger.Info("无已注册店铺需要重抓")
		return RoundResult{}
	}

	sem := make(chan struct{}, t.concurrencyLimit)
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result RoundResult
	)

	t.logger.Info("开始重抓", zap.Int("stores", len(stores)))

	for _, storeID := range stores {
		select {
		case <-ctx.Done():
			t.logger.Warn("任务超时停止")
			wg.Wait()
			return result
		default:
		}

		sem <- struct{}{}
		wg.Add(1)
		time.Sleep(t.sleepTime)

		go func(storeID string) {
			defer wg.Done()
			defer func() { <-sem }()

			report, err := t.RunStoreNow(ctx, storeID)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case errors.Is(err, service.ErrRunInProgress):
				result.Busy++
			case err != nil:
				t.logger.Error("店铺重抓失败", zap.String("store", storeID), zap.Error(err))
				result.Failed++
			default:
				result.Success++
				if report.Summary.Products.Changed() {
					result.Changed++
				}
				t.markExecuted(middleware.StoreSyncKey(storeID, middleware.SyncTypeRecrawl))
			}
		}(storeID)
	}

	wg.Wait()
	t.markExecuted(middleware.GlobalSyncKey(middleware.SyncTypeRecrawl))
	t.logger.Info("重抓完成",
		zap.Int("success", result.Success),
		zap.Int("failed", result.Failed),
		zap.Int("busy", result.Busy),
		zap.Int("changed", result.Changed),
	)
	return result
}

func (t *RecrawlTask) markExecuted(key string) {
	if t.cooldown != nil {
		t.cooldown.MarkExecuted(key)
	}
}

// ==================== 手动触发 ====================

// RunStoreNow 立即重抓单个店铺
func (t *RecrawlTask) RunStoreNow(ctx context.Context, storeID string) (*reconcile.Report, error) {
	sup, err := t.registry.Get(storeID)
	if err != nil {
		return nil, err
	}
	return t.runner.Run(ctx, storeID, sup)
}

// RunAllNow 立即重抓所有店铺（异步），返回的 channel 在本轮结束后收到结果
func (t *RecrawlTask) RunAllNow() <-chan RoundResult {
	done := make(chan RoundResult, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.runTimeout)
		defer cancel()
		done <- t.recrawlAllStores(ctx)
	}()
	return done
}
