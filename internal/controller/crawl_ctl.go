package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"catalog_crawler_v1/internal/api/dto"
	"catalog_crawler_v1/internal/model"
	"catalog_crawler_v1/internal/task"
)

// CrawlTrigger 抓取触发能力 (TaskManager 实现)
type CrawlTrigger interface {
	RunAll(ctx context.Context, trigger string) (*task.RunOutcome, error)
	RunOne(ctx context.Context, name, trigger string) (*task.RunOutcome, error)
}

// CrawlRunLister 抓取历史查询
type CrawlRunLister interface {
	ListCrawlRuns(ctx context.Context, limit int) ([]dto.CrawlRunResp, error)
}

// CrawlController 抓取触发控制器
type CrawlController struct {
	trigger CrawlTrigger
	runs    CrawlRunLister
}

// NewCrawlController 创建抓取控制器
func NewCrawlController(trigger CrawlTrigger, runs CrawlRunLister) *CrawlController {
	return &CrawlController{trigger: trigger, runs: runs}
}

// ==================== Handler 实现 ====================

// RunAll 抓取全部分类
// 阻塞直到所有任务结束后才返回
// @Summary 手动触发全量抓取
// @Tags Crawl
// @Success 200 {object} map[string]interface{} "全部成功"
// @Success 207 {object} map[string]interface{} "部分任务失败"
// @Failure 409 {object} map[string]interface{} "已有抓取在运行"
// @Failure 429 {object} map[string]interface{} "限流中"
// @Router /api/crawl [post]
func (c *CrawlController) RunAll(ctx *gin.Context) {
	// 客户端断开不应中断抓取，超时由 CrawlTask 控制
	runCtx := context.WithoutCancel(ctx.Request.Context())

	out, err := c.trigger.RunAll(runCtx, model.TriggerManual)
	c.respond(ctx, out, err)
}

// RunOne 抓取单个分类
// @Summary 手动触发单个任务
// @Tags Crawl
// @Param job path string true "任务名"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "任务不存在"
// @Failure 409 {object} map[string]interface{} "已有抓取在运行"
// @Router /api/crawl/{job} [post]
func (c *CrawlController) RunOne(ctx *gin.Context) {
	runCtx := context.WithoutCancel(ctx.Request.Context())

	out, err := c.trigger.RunOne(runCtx, ctx.Param("job"), model.TriggerManual)
	c.respond(ctx, out, err)
}

// ListRuns 最近的抓取记录
// @Summary 抓取历史
// @Tags Crawl
// @Param limit query int false "条数 (默认20，最多100)"
// @Router /api/crawl/runs [get]
func (c *CrawlController) ListRuns(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	list, err := c.runs.ListCrawlRuns(ctx.Request.Context(), limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": list})
}

func (c *CrawlController) respond(ctx *gin.Context, out *task.RunOutcome, err error) {
	switch {
	case errors.Is(err, task.ErrCrawlRunning):
		ctx.JSON(http.StatusConflict, gin.H{"code": 409, "message": err.Error()})
		return
	case errors.Is(err, task.ErrUnknownJob):
		ctx.JSON(http.StatusNotFound, gin.H{"code": 404, "message": err.Error()})
		return
	case errors.Is(err, task.ErrTaskDisabled):
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"code": 503, "message": err.Error()})
		return
	case err != nil:
		ctx.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": err.Error()})
		return
	}

	resp := toReportResp(out)
	if !resp.OK {
		ctx.JSON(http.StatusMultiStatus, gin.H{"code": 0, "message": "部分任务失败", "data": resp})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"code": 0, "message": "抓取完成", "data": resp})
}

func toReportResp(out *task.RunOutcome) dto.CrawlReportResp {
	report := out.Report
	resp := dto.CrawlReportResp{
		RunID:      out.RunID,
		OK:         report.OK(),
		TotalItems: report.TotalItems(),
		Counts:     report.Counts(),
	}
	for _, j := range report.Sorted() {
		resp.Jobs = append(resp.Jobs, dto.JobResultResp{
			Name:     j.Name,
			Status:   j.Status,
			Items:    j.Items,
			Skipped:  j.Skipped,
			Pages:    j.Pages,
			Error:    j.Error,
			Duration: j.Duration.String(),
		})
	}
	return resp
}
