package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"jira_search/internal/logger"
	"jira_search/internal/model"
	"jira_search/internal/service/jira"
	"jira_search/internal/storage"
)

// Searcher is the search service used by the HTTP handlers
type Searcher interface {
	SearchIssues(ctx context.Context, query string, opts jira.SearchOptions) (*model.SearchResult, error)
}

// Handler serves the HTTP and Slack endpoints
type Handler struct {
	searcher      Searcher
	forToken      func(token string) Searcher
	tokenStore    storage.TokenStore
	signingSecret string
}

// NewHandler creates a Handler. Slash commands run with the Slack user's
// stored personal token when one exists, otherwise with the client's
// credentials.
func NewHandler(client *jira.Client, projectsFilter string, tokenStore storage.TokenStore, slackSigningSecret string) *Handler {
	return &Handler{
		searcher: jira.NewSearcher(client, projectsFilter),
		forToken: func(token string) Searcher {
			return jira.NewSearcher(client.WithPersonalToken(token), projectsFilter)
		},
		tokenStore:    tokenStore,
		signingSecret: slackSigningSecret,
	}
}

// Router builds the gin engine with all routes
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinLogMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/search", h.HandleSearch)

	slackGroup := r.Group("/slack", h.VerifySlackSignature(), HandleSlackRetry())
	slackGroup.POST("/search", h.HandleSlashSearch)
	slackGroup.POST("/token", h.HandleSetupPersonalToken)

	return r
}

type searchQuery struct {
	JQL            string `form:"jql"`
	Fields         string `form:"fields"`
	StartAt        int    `form:"start_at" binding:"min=0"`
	Limit          int    `form:"limit" binding:"min=0"`
	Expand         string `form:"expand"`
	ProjectsFilter string `form:"projects_filter"`
}

// HandleSearch handles GET /search. The caller is not authenticated, so it
// always searches with the configured credentials.
func (h *Handler) HandleSearch(c *gin.Context) {
	var q searchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.searcher.SearchIssues(c.Request.Context(), q.JQL, jira.SearchOptions{
		Fields:         q.Fields,
		Start:          q.StartAt,
		Limit:          q.Limit,
		Expand:         q.Expand,
		ProjectsFilter: q.ProjectsFilter,
	})
	if err != nil {
		logger.GetLogger().Error("search failed", zap.String("jql", q.JQL), zap.Error(err))
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result.ToSimplified())
}

// searcherFor picks the searcher for a Slack user whose identity came from a
// verified request: their personal token when stored, the default
// credentials otherwise.
func (h *Handler) searcherFor(ctx context.Context, userID string) (Searcher, error) {
	if userID == "" || h.tokenStore == nil {
		return h.searcher, nil
	}
	token, err := h.tokenStore.GetToken(ctx, userID)
	if errors.Is(err, storage.ErrTokenNotFound) {
		return h.searcher, nil
	}
	if err != nil {
		return nil, err
	}
	return h.forToken(token), nil
}

// statusFor maps a Jira client error to the status returned to the caller
func statusFor(err error) int {
	var httpErr *jira.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
		return httpErr.StatusCode
	}
	return http.StatusBadGateway
}
