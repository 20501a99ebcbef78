package jira

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"jira_search/internal/jql"
	"jira_search/internal/logger"
	"jira_search/internal/model"
)

const (
	// DefaultLimit is the page size used when the caller does not set one
	DefaultLimit = 10
	// MaxLimit caps a single page
	MaxLimit = 50
)

// API is the subset of the Jira REST API the Searcher needs
type API interface {
	Search(ctx context.Context, req SearchRequest) (any, error)
	BoardIssues(ctx context.Context, boardID string, q IssueQuery) (any, error)
	SprintIssues(ctx context.Context, sprintID string, q IssueQuery) (any, error)
	GetIssue(ctx context.Context, key string, fields []string) (any, error)
}

// Searcher runs searches against Jira and normalizes the results
type Searcher struct {
	api            API
	projectsFilter string
}

// NewSearcher creates a Searcher. projectsFilter is the configured default
// comma-separated project list, used when a call does not pass its own.
func NewSearcher(api API, projectsFilter string) *Searcher {
	return &Searcher{api: api, projectsFilter: projectsFilter}
}

// SearchOptions are the optional parameters of a search
type SearchOptions struct {
	Fields         string // comma-separated, "*all" for every field
	Start          int
	Limit          int
	Expand         string
	ProjectsFilter string // overrides the configured default when set
}

// SearchIssues runs a JQL search scoped to the effective project filter.
// A query that already names a project keeps its own predicate and the
// filter is not applied.
func (s *Searcher) SearchIssues(ctx context.Context, query string, opts SearchOptions) (*model.SearchResult, error) {
	finalJQL := s.scopeQuery(query, opts.ProjectsFilter)
	fields := parseFields(opts.Fields)

	logger.GetLogger().Debug("searching issues",
		zap.String("jql", finalJQL),
		zap.Strings("fields", fields),
		zap.Int("start", opts.Start),
		zap.Int("limit", clampLimit(opts.Limit)))

	raw, err := s.api.Search(ctx, SearchRequest{
		JQL:        finalJQL,
		Fields:     requestFields(fields),
		StartAt:    max(opts.Start, 0),
		MaxResults: clampLimit(opts.Limit),
		Expand:     opts.Expand,
	})
	if err != nil {
		return nil, fmt.Errorf("error searching issues: %w", err)
	}
	return model.NewSearchResultFromResponse(raw, fields), nil
}

// GetBoardIssues lists issues on a board, optionally filtered by JQL
func (s *Searcher) GetBoardIssues(ctx context.Context, boardID, query string, opts SearchOptions) (*model.SearchResult, error) {
	fields := parseFields(opts.Fields)
	raw, err := s.api.BoardIssues(ctx, boardID, IssueQuery{
		JQL:        query,
		Fields:     requestFields(fields),
		StartAt:    max(opts.Start, 0),
		MaxResults: clampLimit(opts.Limit),
		Expand:     opts.Expand,
	})
	if err != nil {
		return nil, fmt.Errorf("error getting board issues: %w", err)
	}
	return model.NewSearchResultFromResponse(raw, fields), nil
}

// GetSprintIssues lists issues in a sprint
func (s *Searcher) GetSprintIssues(ctx context.Context, sprintID string, opts SearchOptions) (*model.SearchResult, error) {
	fields := parseFields(opts.Fields)
	raw, err := s.api.SprintIssues(ctx, sprintID, IssueQuery{
		Fields:     requestFields(fields),
		StartAt:    max(opts.Start, 0),
		MaxResults: clampLimit(opts.Limit),
	})
	if err != nil {
		return nil, fmt.Errorf("error getting sprint issues: %w", err)
	}
	return model.NewSearchResultFromResponse(raw, fields), nil
}

// GetIssue fetches a single issue
func (s *Searcher) GetIssue(ctx context.Context, key, fields string) (model.Issue, error) {
	requested := parseFields(fields)
	raw, err := s.api.GetIssue(ctx, key, requestFields(requested))
	if err != nil {
		return model.Issue{}, fmt.Errorf("error getting issue %s: %w", key, err)
	}
	data, ok := raw.(map[string]any)
	if !ok {
		return model.Issue{}, fmt.Errorf("error getting issue %s: unexpected response", key)
	}
	return model.NewIssueFromResponse(data, requested), nil
}

func (s *Searcher) scopeQuery(query, projectsFilter string) string {
	filter := projectsFilter
	if filter == "" {
		filter = s.projectsFilter
	}
	return jql.Scope(query, jql.ParseProjectKeys(filter))
}

// parseFields returns nil for the default field set
func parseFields(fields string) []string {
	var out []string
	for _, f := range strings.Split(fields, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func requestFields(fields []string) []string {
	if fields == nil {
		return model.DefaultIssueFields
	}
	return fields
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}
