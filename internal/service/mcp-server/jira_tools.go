package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"jira_search/internal/logger"
	"jira_search/internal/model"
	"jira_search/internal/service/jira"
)

// Searcher is the search service behind the tools
type Searcher interface {
	SearchIssues(ctx context.Context, query string, opts jira.SearchOptions) (*model.SearchResult, error)
	GetBoardIssues(ctx context.Context, boardID, query string, opts jira.SearchOptions) (*model.SearchResult, error)
	GetSprintIssues(ctx context.Context, sprintID string, opts jira.SearchOptions) (*model.SearchResult, error)
	GetIssue(ctx context.Context, key, fields string) (model.Issue, error)
}

type toolHandler struct {
	searcher Searcher
}

const fieldsDescription = "Comma-separated fields to return in the results. Use '*all' for every field, including custom fields"

// registerJiraTools registers all Jira-related tools with the server
func registerJiraTools(s *server.MCPServer, searcher Searcher) {
	h := &toolHandler{searcher: searcher}

	searchTool := mcp.NewTool("jira_search",
		mcp.WithDescription("Search Jira issues using JQL (Jira Query Language)"),
		mcp.WithString("jql",
			mcp.Description("JQL query string, e.g. 'project = PROJ AND status = \"In Progress\"'. May be empty when projects_filter is set"),
		),
		mcp.WithString("fields",
			mcp.Description(fieldsDescription),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of results (1-%d)", jira.MaxLimit)),
		),
		mcp.WithNumber("start_at",
			mcp.Description("Zero-based index of the first issue to return"),
		),
		mcp.WithString("projects_filter",
			mcp.Description("Comma-separated project keys to restrict the search to. Overrides the configured default filter"),
		),
		mcp.WithString("expand",
			mcp.Description("Fields to expand, e.g. 'renderedFields'"),
		),
	)

	getIssueTool := mcp.NewTool("jira_get_issue",
		mcp.WithDescription("Get details of a specific Jira issue"),
		mcp.WithString("issue_key",
			mcp.Required(),
			mcp.Description("Jira issue key (e.g., 'PROJ-123')"),
		),
		mcp.WithString("fields",
			mcp.Description(fieldsDescription),
		),
	)

	boardIssuesTool := mcp.NewTool("jira_get_board_issues",
		mcp.WithDescription("Get the issues on an agile board, optionally filtered by JQL"),
		mcp.WithString("board_id",
			mcp.Required(),
			mcp.Description("Board ID (e.g., '1000')"),
		),
		mcp.WithString("jql",
			mcp.Description("JQL query string to filter the board issues"),
		),
		mcp.WithString("fields",
			mcp.Description(fieldsDescription),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of results (1-%d)", jira.MaxLimit)),
		),
		mcp.WithNumber("start_at",
			mcp.Description("Zero-based index of the first issue to return"),
		),
		mcp.WithString("expand",
			mcp.Description("Fields to expand"),
		),
	)

	sprintIssuesTool := mcp.NewTool("jira_get_sprint_issues",
		mcp.WithDescription("Get the issues in a sprint"),
		mcp.WithString("sprint_id",
			mcp.Required(),
			mcp.Description("Sprint ID (e.g., '10001')"),
		),
		mcp.WithString("fields",
			mcp.Description(fieldsDescription),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of results (1-%d)", jira.MaxLimit)),
		),
		mcp.WithNumber("start_at",
			mcp.Description("Zero-based index of the first issue to return"),
		),
	)

	s.AddTool(searchTool, h.handleSearch)
	s.AddTool(getIssueTool, h.handleGetIssue)
	s.AddTool(boardIssuesTool, h.handleGetBoardIssues)
	s.AddTool(sprintIssuesTool, h.handleGetSprintIssues)
}

func (h *toolHandler) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	query := stringArg(args, "jql")

	result, err := h.searcher.SearchIssues(ctx, query, searchOptions(args))
	if err != nil {
		logger.GetLogger().Error("jira_search failed", zap.String("jql", query), zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result.ToSimplified())
}

func (h *toolHandler) handleGetIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	issueKey := stringArg(args, "issue_key")
	if issueKey == "" {
		return mcp.NewToolResultError("issue_key is required"), nil
	}

	issue, err := h.searcher.GetIssue(ctx, issueKey, stringArg(args, "fields"))
	if err != nil {
		logger.GetLogger().Error("jira_get_issue failed", zap.String("issue_key", issueKey), zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(issue.ToSimplified())
}

func (h *toolHandler) handleGetBoardIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	boardID := stringArg(args, "board_id")
	if boardID == "" {
		return mcp.NewToolResultError("board_id is required"), nil
	}

	result, err := h.searcher.GetBoardIssues(ctx, boardID, stringArg(args, "jql"), searchOptions(args))
	if err != nil {
		logger.GetLogger().Error("jira_get_board_issues failed", zap.String("board_id", boardID), zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result.ToSimplified())
}

func (h *toolHandler) handleGetSprintIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sprintID := stringArg(args, "sprint_id")
	if sprintID == "" {
		return mcp.NewToolResultError("sprint_id is required"), nil
	}

	result, err := h.searcher.GetSprintIssues(ctx, sprintID, searchOptions(args))
	if err != nil {
		logger.GetLogger().Error("jira_get_sprint_issues failed", zap.String("sprint_id", sprintID), zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result.ToSimplified())
}

func searchOptions(args map[string]any) jira.SearchOptions {
	return jira.SearchOptions{
		Fields:         stringArg(args, "fields"),
		Start:          intArg(args, "start_at"),
		Limit:          intArg(args, "limit"),
		Expand:         stringArg(args, "expand"),
		ProjectsFilter: stringArg(args, "projects_filter"),
	}
}

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

func intArg(args map[string]any, name string) int {
	return cast.ToInt(args[name])
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}
