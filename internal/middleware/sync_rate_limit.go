package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== 冷却限流中间件 ====================

// SyncRateLimit 按店铺 + 触发类型限流
//
// 使用示例:
//
//	stores.POST("/:store/recrawl",
//	    middleware.SyncRateLimit(limiter, middleware.SyncTypeRecrawl, 0),
//	    recrawlCtl.TriggerRecrawl,
//	)
//
// interval 为 0 时使用默认值。下游处理返回 5xx 时撤销本次冷却
func SyncRateLimit(limiter *SyncRateLimiter, syncType SyncType, interval time.Duration) gin.HandlerFunc {
	if interval == 0 {
		interval = GetInterval(syncType)
	}

	return func(c *gin.Context) {
		key := GlobalSyncKey(syncType)
		if storeID := c.Param("store"); storeID != "" {
			key = StoreSyncKey(storeID, syncType)
		}

		result := limiter.Check(key, interval)
		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": formatRetryMessage(result.RetryAfter),
				"data": gin.H{
					"retry_after": int(result.RetryAfter.Seconds()),
					"sync_type":   syncType,
				},
			})
			c.Abort()
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			limiter.Reset(key)
		}
	}
}

// ==================== 辅助函数 ====================

// formatRetryMessage 格式化重试提示信息
func formatRetryMessage(d time.Duration) string {
	seconds := int(d.Seconds())

	if seconds < 60 {
		return fmt.Sprintf("冷却中，请 %d 秒后重试", seconds)
	}

	minutes := seconds / 60
	remainingSeconds := seconds % 60

	if remainingSeconds == 0 {
		return fmt.Sprintf("冷却中，请 %d 分钟后重试", minutes)
	}
	return fmt.Sprintf("冷却中，请 %d 分 %d 秒后重试", minutes, remainingSeconds)
}
