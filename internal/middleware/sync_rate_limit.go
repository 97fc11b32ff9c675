package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== 抓取触发限流中间件 ====================

// CrawlRateLimit 抓取触发冷却中间件
// 路由带 :job 参数时按任务维度限流，否则按全量抓取限流
//
// 使用示例:
//
//	crawl.POST("/:job",
//	    middleware.CrawlRateLimit(limiter, time.Minute),
//	    ctl.RunOne,
//	)
//
// interval <= 0 时不限流
func CrawlRateLimit(limiter *SyncRateLimiter, interval time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if interval <= 0 {
			c.Next()
			return
		}

		key := CrawlAllKey
		if job := c.Param("job"); job != "" {
			key = CrawlJobKey(job)
		}

		result := limiter.Check(key, interval)
		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": formatRetryMessage(result.RetryAfter),
				"data": gin.H{
					"retry_after": int(result.RetryAfter.Seconds()),
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// ==================== 辅助函数 ====================

// formatRetryMessage 格式化重试提示信息
func formatRetryMessage(d time.Duration) string {
	seconds := int(d.Seconds())

	if seconds < 60 {
		return fmt.Sprintf("抓取冷却中，请 %d 秒后重试", seconds)
	}

	minutes := seconds / 60
	remainingSeconds := seconds % 60

	if remainingSeconds == 0 {
		return fmt.Sprintf("抓取冷却中，请 %d 分钟后重试", minutes)
	}

	return fmt.Sprintf("抓取冷却中，请 %d 分 %d 秒后重试", minutes, remainingSeconds)
}
