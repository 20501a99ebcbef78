package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"jira_search/internal/logger"
)

// UnknownCount marks a pagination value the API did not report
const UnknownCount = -1

// SearchResult is one page of a JQL search, normalized across the Cloud and
// Server/Data Center response shapes. It is not modified after construction.
type SearchResult struct {
	total      int
	startAt    int
	maxResults int
	issues     []Issue
}

// NewSearchResult creates a SearchResult from already known values
func NewSearchResult(total, startAt, maxResults int, issues []Issue) *SearchResult {
	return &SearchResult{
		total:      total,
		startAt:    startAt,
		maxResults: maxResults,
		issues:     cloneIssues(issues),
	}
}

// paginationStyle identifies which pagination convention a response follows
type paginationStyle int

const (
	// paginationOffset is the Server/DC (and legacy Cloud) shape: total, startAt, maxResults
	paginationOffset paginationStyle = iota
	// paginationIsLast is the Cloud /search/jql shape: no total, an isLast flag
	paginationIsLast
)

func detectPagination(data map[string]any) paginationStyle {
	_, hasIsLast := data["isLast"]
	if data["total"] == nil && hasIsLast {
		return paginationIsLast
	}
	return paginationOffset
}

// NewSearchResultFromResponse normalizes a raw search response. It never
// fails: malformed or negative pagination values fall back to their
// defaults and a missing or non-object response yields an empty result.
func NewSearchResultFromResponse(raw any, requestedFields []string) *SearchResult {
	data, ok := raw.(map[string]any)
	if !ok {
		if raw != nil {
			logger.GetLogger().Debug("received non-object search response, returning empty result",
				zap.String("type", fmt.Sprintf("%T", raw)))
		}
		return &SearchResult{issues: []Issue{}}
	}
	if len(data) == 0 {
		return &SearchResult{issues: []Issue{}}
	}

	issues := []Issue{}
	if list, ok := data["issues"].([]any); ok {
		for _, item := range list {
			switch v := item.(type) {
			case nil:
			case string:
				if v != "" {
					issues = append(issues, NewIssue(v))
				}
			case map[string]any:
				if len(v) > 0 {
					issues = append(issues, NewIssueFromResponse(v, requestedFields))
				}
			}
		}
	}

	var total int
	switch detectPagination(data) {
	case paginationIsLast:
		total = UnknownCount
		if isLast, _ := cast.ToBoolE(data["isLast"]); isLast {
			total = len(issues)
		}
	default:
		total = nonNegative(data["total"], UnknownCount)
	}

	return &SearchResult{
		total:      total,
		startAt:    nonNegative(data["startAt"], 0),
		maxResults: nonNegative(data["maxResults"], UnknownCount),
		issues:     issues,
	}
}

// Total is the number of matching issues across all pages, or UnknownCount
func (r *SearchResult) Total() int { return r.total }

// HasTotal reports whether the API reported (or allowed inferring) the total
func (r *SearchResult) HasTotal() bool { return r.total != UnknownCount }

// StartAt is the zero-based offset of the first returned issue
func (r *SearchResult) StartAt() int { return r.startAt }

// MaxResults is the page size, or UnknownCount
func (r *SearchResult) MaxResults() int { return r.maxResults }

// HasMaxResults reports whether the page size is known
func (r *SearchResult) HasMaxResults() bool { return r.maxResults != UnknownCount }

// Issues returns a deep copy of the issues in API order
func (r *SearchResult) Issues() []Issue { return cloneIssues(r.issues) }

// Len is the number of issues on this page
func (r *SearchResult) Len() int { return len(r.issues) }

// ToSimplified converts the result to the map shape returned to callers.
// Unknown values are emitted as -1.
func (r *SearchResult) ToSimplified() map[string]any {
	issues := make([]map[string]any, 0, len(r.issues))
	for _, issue := range r.issues {
		issues = append(issues, issue.ToSimplified())
	}
	return map[string]any{
		"total":       r.total,
		"start_at":    r.startAt,
		"max_results": r.maxResults,
		"issues":      issues,
	}
}

// coerceInt converts an integer-like value, returning def when it cannot.
// Strings are parsed as base-10 after trimming surrounding whitespace.
func coerceInt(v any, def int) int {
	switch t := v.(type) {
	case nil:
		return def
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return def
		}
		return n
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
		f, err := t.Float64()
		if err != nil {
			return def
		}
		return int(f)
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return n
}

// nonNegative is coerceInt for counts and offsets, which Jira never reports
// below zero
func nonNegative(v any, def int) int {
	if n := coerceInt(v, def); n >= 0 {
		return n
	}
	return def
}

func cloneIssues(issues []Issue) []Issue {
	out := make([]Issue, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.clone())
	}
	return out
}
