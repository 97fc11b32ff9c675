package model

import (
	"time"

	"gorm.io/datatypes"
)

// CrawlRunStatus 一次抓取运行的最终状态
type CrawlRunStatus string

const (
	CrawlRunRunning   CrawlRunStatus = "running"
	CrawlRunSucceeded CrawlRunStatus = "succeeded"
	CrawlRunPartial   CrawlRunStatus = "partial" // 部分任务失败
	CrawlRunFailed    CrawlRunStatus = "failed"  // 全部任务失败
)

// 触发来源
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerCLI      = "cli"
)

// CrawlRun 抓取运行记录，每次 crawl all / crawl one 一行
type CrawlRun struct {
	ID         string         `gorm:"primaryKey;size:36" json:"id"` // uuid
	Trigger    string         `gorm:"size:32;index" json:"trigger"`
	Scope      string         `gorm:"size:128" json:"scope"` // "all" 或任务名
	Status     CrawlRunStatus `gorm:"size:20;index" json:"status"`
	JobCount   int            `json:"job_count"`
	FailedJobs int            `json:"failed_jobs"`
	TotalItems int64          `json:"total_items"`
	Report     datatypes.JSON `json:"report"` // 每个任务的 JobResult
	StartedAt  time.Time      `gorm:"index" json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at"`
}

func (CrawlRun) TableName() string {
	return "crawl_runs"
}
