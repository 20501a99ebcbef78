package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"jira_search/internal/logger"
)

const minTokenLength = 8

// HandleSetupPersonalToken handles the /jira-token slash command, which
// stores the caller's Jira personal access token.
func (h *Handler) HandleSetupPersonalToken(c *gin.Context) {
	c.Set(logger.RedactBodyKey, true)

	cmd, err := slack.SlashCommandParse(c.Request)
	if err != nil {
		logger.GetLogger().Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusOK, ephemeral(fmt.Sprintf(defaultErrorMessage, "invalid slash command")))
		return
	}
	c.Set(logger.UserIDKey, cmd.UserID)

	token := strings.TrimSpace(cmd.Text)
	if err := validateToken(token); err != nil {
		logger.GetLogger().Error("invalid token", zap.String("user_id", cmd.UserID), zap.Error(err))
		c.JSON(http.StatusOK, ephemeral(err.Error()))
		return
	}

	if h.tokenStore == nil {
		c.JSON(http.StatusOK, ephemeral(fmt.Sprintf(defaultErrorMessage, "token storage is not configured")))
		return
	}
	if err := h.tokenStore.SetToken(c.Request.Context(), cmd.UserID, token); err != nil {
		logger.GetLogger().Error("failed to store token", zap.String("user_id", cmd.UserID), zap.Error(err))
		c.JSON(http.StatusOK, ephemeral(fmt.Sprintf("failed to store token: %v", err)))
		return
	}

	c.JSON(http.StatusOK, ephemeral("Token successfully stored"))
}

func validateToken(token string) error {
	if len(token) < minTokenLength {
		return fmt.Errorf("Token must be at least %d characters long", minTokenLength)
	}
	return nil
}
