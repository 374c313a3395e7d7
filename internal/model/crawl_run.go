package model

import (
	"time"

	"gorm.io/datatypes"
)

// CrawlRun 状态常量
const (
	CrawlRunRunning = "running"
	CrawlRunSuccess = "success"
	CrawlRunFailed  = "failed"
)

// CrawlRun 一次重爬对账的运行记录
type CrawlRun struct {
	BaseModel
	StoreID    string         `gorm:"size:64;not null;index" json:"store_id"`
	Supplier   string         `gorm:"size:64" json:"supplier"`
	Status     string         `gorm:"size:16;not null;index" json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Summary    datatypes.JSON `gorm:"type:jsonb" json:"summary,omitempty"`
	ErrorMsg   string         `gorm:"size:2048" json:"error_msg,omitempty"`
}

func (CrawlRun) TableName() string {
	return "crawl_runs"
}
