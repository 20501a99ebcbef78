package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, body string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewSearchResultFromResponse_Empty(t *testing.T) {
	for name, raw := range map[string]any{
		"nil":       nil,
		"empty map": map[string]any{},
		"list":      []any{"a", "b"},
		"string":    "not a response",
		"number":    42,
	} {
		t.Run(name, func(t *testing.T) {
			result := NewSearchResultFromResponse(raw, nil)
			assert.Equal(t, 0, result.Total())
			assert.Equal(t, 0, result.StartAt())
			assert.Equal(t, 0, result.MaxResults())
			assert.Empty(t, result.Issues())
			assert.NotNil(t, result.Issues())
		})
	}
}

func TestNewSearchResultFromResponse_ServerPagination(t *testing.T) {
	raw := decode(t, `{
		"issues": [{"id": "10001", "key": "TEST-123", "fields": {"summary": "Test issue"}}],
		"total": 1,
		"startAt": 0,
		"maxResults": 50
	}`)

	result := NewSearchResultFromResponse(raw, nil)
	assert.Equal(t, 1, result.Total())
	assert.Equal(t, 0, result.StartAt())
	assert.Equal(t, 50, result.MaxResults())
	require.Equal(t, 1, result.Len())
	assert.Equal(t, "TEST-123", result.Issues()[0].Key)
	assert.Equal(t, "Test issue", result.Issues()[0].Summary)
}

func TestNewSearchResultFromResponse_StringifiedPagination(t *testing.T) {
	raw := map[string]any{
		"issues":     []any{},
		"total":      "120",
		"startAt":    " 50 ",
		"maxResults": json.Number("25"),
	}

	result := NewSearchResultFromResponse(raw, nil)
	assert.Equal(t, 120, result.Total())
	assert.Equal(t, 50, result.StartAt())
	assert.Equal(t, 25, result.MaxResults())
}

func TestNewSearchResultFromResponse_MalformedPagination(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"non numeric strings", map[string]any{"issues": []any{}, "total": "many", "startAt": "abc", "maxResults": "lots"}},
		{"nulls", map[string]any{"issues": []any{}, "total": nil, "startAt": nil, "maxResults": nil}},
		{"objects", map[string]any{"issues": []any{}, "total": map[string]any{}, "startAt": []any{1}, "maxResults": map[string]any{"n": 1}}},
		{"absent", map[string]any{"issues": []any{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewSearchResultFromResponse(tt.raw, nil)
			assert.Equal(t, UnknownCount, result.Total())
			assert.False(t, result.HasTotal())
			assert.Equal(t, 0, result.StartAt())
			assert.Equal(t, UnknownCount, result.MaxResults())
			assert.False(t, result.HasMaxResults())
		})
	}
}

func TestNewSearchResultFromResponse_NegativePagination(t *testing.T) {
	raw := map[string]any{"issues": []any{}, "total": -2, "startAt": -5, "maxResults": "-3"}

	result := NewSearchResultFromResponse(raw, nil)
	assert.Equal(t, UnknownCount, result.Total())
	assert.False(t, result.HasTotal())
	assert.Equal(t, 0, result.StartAt())
	assert.Equal(t, UnknownCount, result.MaxResults())
	assert.False(t, result.HasMaxResults())
}

func TestNewSearchResultFromResponse_FloatPagination(t *testing.T) {
	raw := map[string]any{"total": 12.0, "startAt": 10.9, "maxResults": json.Number("50.0")}

	result := NewSearchResultFromResponse(raw, nil)
	assert.Equal(t, 12, result.Total())
	assert.Equal(t, 10, result.StartAt())
	assert.Equal(t, 50, result.MaxResults())
}

func TestNewSearchResultFromResponse_CloudIsLast(t *testing.T) {
	t.Run("last page infers total", func(t *testing.T) {
		raw := decode(t, `{
			"issues": [{"key": "A-1"}, {"key": "A-2"}, {"key": "A-3"}],
			"isLast": true,
			"maxResults": 50
		}`)
		result := NewSearchResultFromResponse(raw, nil)
		assert.Equal(t, 3, result.Total())
		assert.Equal(t, result.Len(), result.Total())
		assert.Equal(t, 0, result.StartAt())
		assert.Equal(t, 50, result.MaxResults())
	})

	t.Run("last page with no issues", func(t *testing.T) {
		result := NewSearchResultFromResponse(decode(t, `{"issues": [], "isLast": true}`), nil)
		assert.Equal(t, 0, result.Total())
		assert.True(t, result.HasTotal())
	})

	t.Run("more pages leaves total unknown", func(t *testing.T) {
		raw := decode(t, `{"issues": [{"key": "A-1"}], "isLast": false, "nextPageToken": "abc"}`)
		result := NewSearchResultFromResponse(raw, nil)
		assert.Equal(t, UnknownCount, result.Total())
		assert.Equal(t, 1, result.Len())
	})

	t.Run("explicit total wins over isLast", func(t *testing.T) {
		raw := decode(t, `{"issues": [{"key": "A-1"}], "isLast": true, "total": 10}`)
		result := NewSearchResultFromResponse(raw, nil)
		assert.Equal(t, 10, result.Total())
	})
}

func TestNewSearchResultFromResponse_NoTotalNoIsLast(t *testing.T) {
	raw := decode(t, `{"issues": [{"key": "X"}], "startAt": 0, "maxResults": 50}`)

	result := NewSearchResultFromResponse(raw, nil)
	assert.Equal(t, UnknownCount, result.Total())
	assert.Equal(t, 0, result.StartAt())
	assert.Equal(t, 50, result.MaxResults())
}

func TestNewSearchResultFromResponse_IssueShapes(t *testing.T) {
	raw := decode(t, `{
		"issues": [
			"PROJ-1",
			{"id": "2", "key": "PROJ-2", "fields": {"summary": "Second"}},
			null,
			"",
			{},
			42
		],
		"isLast": true
	}`)

	result := NewSearchResultFromResponse(raw, nil)
	issues := result.Issues()
	require.Len(t, issues, 2)
	assert.Equal(t, "PROJ-1", issues[0].Key)
	assert.Empty(t, issues[0].Summary)
	assert.Equal(t, "PROJ-2", issues[1].Key)
	assert.Equal(t, "Second", issues[1].Summary)
	assert.Equal(t, 2, result.Total())
}

func TestNewSearchResultFromResponse_IssuesNotAList(t *testing.T) {
	raw := map[string]any{"issues": "PROJ-1", "total": 5}

	result := NewSearchResultFromResponse(raw, nil)
	assert.Empty(t, result.Issues())
	assert.Equal(t, 5, result.Total())
}

func TestSearchResult_IssuesIsACopy(t *testing.T) {
	result := NewSearchResult(1, 0, 10, []Issue{NewIssue("A-1")})

	issues := result.Issues()
	issues[0].Key = "CHANGED"
	assert.Equal(t, "A-1", result.Issues()[0].Key)
}

func TestSearchResult_IssuesIsADeepCopy(t *testing.T) {
	raw := decode(t, `{
		"issues": [{"key": "A-1", "fields": {
			"labels": ["backend"],
			"status": {"name": "Open"},
			"assignee": {"displayName": "Ann"},
			"customfield_1": {"value": "x", "children": ["c"]}
		}}],
		"total": 1
	}`)
	result := NewSearchResultFromResponse(raw, []string{AllFields})

	issues := result.Issues()
	issues[0].Labels[0] = "changed"
	issues[0].Status.Name = "Done"
	issues[0].Assignee.DisplayName = "Bob"
	issues[0].CustomFields["customfield_1"].(map[string]any)["value"] = "y"
	issues[0].CustomFields["customfield_1"].(map[string]any)["children"].([]any)[0] = "d"
	issues[0].CustomFields["new"] = 1

	original := result.Issues()[0]
	assert.Equal(t, []string{"backend"}, original.Labels)
	assert.Equal(t, "Open", original.Status.Name)
	assert.Equal(t, "Ann", original.Assignee.DisplayName)
	assert.Equal(t, map[string]any{"value": "x", "children": []any{"c"}}, original.CustomFields["customfield_1"])
	assert.NotContains(t, original.CustomFields, "new")
}

func TestSearchResult_ToSimplified(t *testing.T) {
	raw := decode(t, `{
		"issues": [{"id": "1", "key": "A-1", "fields": {"summary": "One", "status": {"name": "Open"}}}],
		"isLast": false,
		"maxResults": 25
	}`)

	simplified := NewSearchResultFromResponse(raw, nil).ToSimplified()
	assert.Equal(t, -1, simplified["total"])
	assert.Equal(t, 0, simplified["start_at"])
	assert.Equal(t, 25, simplified["max_results"])

	issues, ok := simplified["issues"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, issues, 1)
	assert.Equal(t, "A-1", issues[0]["key"])
	assert.Equal(t, map[string]any{"name": "Open"}, issues[0]["status"])
}

func TestSearchResult_ToSimplifiedEmpty(t *testing.T) {
	simplified := NewSearchResultFromResponse(nil, nil).ToSimplified()

	assert.Equal(t, 0, simplified["total"])
	assert.Equal(t, 0, simplified["start_at"])
	assert.Equal(t, 0, simplified["max_results"])
	assert.Equal(t, []map[string]any{}, simplified["issues"])
}
