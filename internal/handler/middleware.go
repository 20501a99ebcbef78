package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"jira_search/internal/logger"
)

// HandleSlackRetry acknowledges Slack retries without running the command
// again. Slack retries slash commands that take longer than 3 seconds while
// the first attempt is still being served.
func HandleSlackRetry() gin.HandlerFunc {
	return func(c *gin.Context) {
		retryNum := c.GetHeader("X-Slack-Retry-Num")
		if retryNum == "" {
			c.Next()
			return
		}
		logger.GetLogger().Info("slack retry request",
			zap.String("path", c.FullPath()),
			zap.String("retry_num", retryNum),
			zap.String("retry_reason", c.GetHeader("X-Slack-Retry-Reason")))
		c.String(http.StatusOK, "ok (retry skipped)")
		c.Abort()
	}
}
