package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"jira_search/internal/logger"
	"jira_search/internal/model"
	"jira_search/internal/service/jira"
)

const maxSlackIssues = 20

// VerifySlackSignature rejects requests without a valid Slack signature.
// Without a signing secret every request is rejected, since the user_id in
// the payload could not be trusted.
func (h *Handler) VerifySlackSignature() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.signingSecret == "" {
			logger.GetLogger().Warn("rejecting slack request, SLACK_SIGNING_SECRET is not set", zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "slack commands are not configured"})
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		verifier, err := slack.NewSecretsVerifier(c.Request.Header, h.signingSecret)
		if err != nil {
			logger.GetLogger().Warn("invalid slack signature headers", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		if _, err := verifier.Write(body); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		if err := verifier.Ensure(); err != nil {
			logger.GetLogger().Warn("slack signature mismatch", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		c.Next()
	}
}

// HandleSlashSearch handles the /jira-search slash command. The command
// text is the JQL query.
func (h *Handler) HandleSlashSearch(c *gin.Context) {
	cmd, err := slack.SlashCommandParse(c.Request)
	if err != nil {
		logger.GetLogger().Error("failed to parse slash command", zap.Error(err))
		c.JSON(http.StatusOK, ephemeral(fmt.Sprintf(defaultErrorMessage, "invalid slash command")))
		return
	}
	c.Set(logger.UserIDKey, cmd.UserID)

	searcher, err := h.searcherFor(c.Request.Context(), cmd.UserID)
	if err != nil {
		logger.GetLogger().Error("failed to get user personal token", zap.String("user_id", cmd.UserID), zap.Error(err))
		c.JSON(http.StatusOK, ephemeral(fmt.Sprintf(defaultErrorMessage, err.Error())))
		return
	}

	result, err := searcher.SearchIssues(c.Request.Context(), cmd.Text, jira.SearchOptions{Limit: maxSlackIssues})
	if err != nil {
		logger.GetLogger().Error("slash search failed", zap.String("jql", cmd.Text), zap.Error(err))
		c.JSON(http.StatusOK, ephemeral(fmt.Sprintf(defaultErrorMessage, err.Error())))
		return
	}

	c.JSON(http.StatusOK, searchResultMessage(cmd.Text, result))
}

func ephemeral(text string) slack.Msg {
	return slack.Msg{
		ResponseType: slack.ResponseTypeEphemeral,
		Text:         text,
	}
}

// searchResultMessage renders a search result as an ephemeral Block Kit message
func searchResultMessage(query string, result *model.SearchResult) slack.Msg {
	summary := fmt.Sprintf("Found %d issues", result.Total())
	if !result.HasTotal() {
		summary = fmt.Sprintf("Showing %d issues (more available)", result.Len())
	}
	if query != "" {
		summary += fmt.Sprintf(" for `%s`", query)
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, summary, false, false), nil, nil),
	}
	if result.Len() > 0 {
		blocks = append(blocks, slack.NewDividerBlock())
		var lines []string
		for _, issue := range result.Issues() {
			lines = append(lines, issueLine(issue))
		}
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, strings.Join(lines, "\n"), false, false), nil, nil))
	}

	return slack.Msg{
		ResponseType: slack.ResponseTypeEphemeral,
		Text:         summary,
		Blocks:       slack.Blocks{BlockSet: blocks},
	}
}

func issueLine(issue model.Issue) string {
	line := "*" + issue.Key + "*"
	if issue.Summary != "" {
		line += " " + issue.Summary
	}
	if issue.Status != nil && issue.Status.Name != "" {
		line += " _(" + issue.Status.Name + ")_"
	}
	return line
}
