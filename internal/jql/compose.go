// Package jql builds JQL query strings scoped to Jira projects.
package jql

import (
	"fmt"
	"strings"
)

// Compose scopes query to the given projects.
//
// An empty or whitespace-only query becomes the bare project predicate,
// since "(   ) AND ..." is not valid JQL. A query that starts
// with ORDER BY keeps its ordering clause verbatim after the predicate.
// Any other query is parenthesized and joined with AND. The query is
// returned unchanged when no project keys are given.
//
// Compose does not look for project predicates already present in query;
// Scope does.
func Compose(query string, projectKeys []string) string {
	if len(projectKeys) == 0 {
		return query
	}

	predicate := projectPredicate(projectKeys)
	switch {
	case strings.TrimSpace(query) == "":
		return predicate
	case startsWithOrderBy(query):
		return predicate + " " + query
	default:
		return fmt.Sprintf("(%s) AND %s", query, predicate)
	}
}

func projectPredicate(keys []string) string {
	if len(keys) == 1 {
		return fmt.Sprintf(`project = "%s"`, keys[0])
	}
	quoted := make([]string, 0, len(keys))
	for _, k := range keys {
		quoted = append(quoted, `"`+k+`"`)
	}
	return fmt.Sprintf("project IN (%s)", strings.Join(quoted, ", "))
}

func startsWithOrderBy(query string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "ORDER BY")
}

// ParseProjectKeys splits a comma-separated list of project keys,
// trimming whitespace and dropping empty entries.
func ParseProjectKeys(s string) []string {
	var keys []string
	for _, part := range strings.Split(s, ",") {
		if k := strings.TrimSpace(part); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Scope is Compose, except that a filtering query which already contains a
// project clause is returned unchanged. Empty and ORDER BY-only queries are
// always scoped.
func Scope(query string, projectKeys []string) string {
	if len(projectKeys) == 0 {
		return query
	}
	if strings.TrimSpace(query) != "" && !startsWithOrderBy(query) && HasProjectClause(query) {
		return query
	}
	return Compose(query, projectKeys)
}

// HasProjectClause reports whether query contains "project = " or
// "project IN". The match is case-sensitive, so free text such as
// "Project in progress" does not count.
func HasProjectClause(query string) bool {
	return strings.Contains(query, "project = ") || strings.Contains(query, "project IN")
}
