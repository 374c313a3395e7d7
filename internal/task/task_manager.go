package task

import (
	"context"
	"time"

	"go.uber.org/zap"

	"retail_recrawl_v1/internal/reconcile"
	"retail_recrawl_v1/internal/supplier"
)

// ==================== TaskManager 业务任务管理器 ====================

// TaskManager 统一管理定时任务
type TaskManager struct {
	recrawlTask *RecrawlTask
	logger      *zap.Logger
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	Registry *supplier.Registry
	Runner   Runner
	Cooldown Cooldown
	Logger   *zap.Logger
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	RecrawlEnabled      bool
	RecrawlSchedule     string
	RecrawlConcurrency  int
	RecrawlInitialDelay time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		RecrawlEnabled:     true,
		RecrawlSchedule:    "0 0 */6 * * *",
		RecrawlConcurrency: 2,
	}
}

// NewTaskManager 创建任务管理器
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tm := &TaskManager{logger: logger.Named("task_manager")}

	if cfg.RecrawlEnabled && deps.Runner != nil && deps.Registry != nil {
		tm.recrawlTask = NewRecrawlTask(deps.Registry, deps.Runner, logger)
		tm.recrawlTask.SetSchedule(cfg.RecrawlSchedule)
		tm.recrawlTask.SetConcurrency(cfg.RecrawlConcurrency, 300*time.Millisecond)
		tm.recrawlTask.SetInitialDelay(cfg.RecrawlInitialDelay)
		tm.recrawlTask.SetCooldown(deps.Cooldown)
	}
	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务
func (tm *TaskManager) Start() error {
	tm.logger.Info("正在启动定时任务...")
	if tm.recrawlTask != nil {
		if err := tm.recrawlTask.Start(); err != nil {
			return err
		}
	}
	tm.logger.Info("定时任务已全部启动")
	return nil
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	tm.logger.Info("正在停止定时任务...")
	if tm.recrawlTask != nil {
		tm.recrawlTask.Stop()
	}
	tm.logger.Info("定时任务已全部停止")
}

// ==================== 手动触发接口 ====================

// TriggerRecrawl 立即重抓单个店铺（同步）
func (tm *TaskManager) TriggerRecrawl(ctx context.Context, storeID string) (*reconcile.Report, error) {
	if tm.recrawlTask == nil {
		return nil, ErrTaskDisabled
	}
	return tm.recrawlTask.RunStoreNow(ctx, storeID)
}

// TriggerAllRecrawl 触发所有店铺重抓（异步），返回本次涉及的店铺
func (tm *TaskManager) TriggerAllRecrawl() ([]string, error) {
	if tm.recrawlTask == nil {
		return nil, ErrTaskDisabled
	}
	tm.recrawlTask.RunAllNow()
	return tm.recrawlTask.registry.Stores(), nil
}

// ==================== 状态查询 ====================

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"recrawl": tm.recrawlTask != nil,
	}
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
)
