package model

import (
	"slices"
	"strings"

	"github.com/spf13/cast"
)

// AllFields requests every field Jira returns for an issue
const AllFields = "*all"

// DefaultIssueFields are the fields parsed when a caller does not ask for specific ones
var DefaultIssueFields = []string{
	"summary",
	"description",
	"status",
	"assignee",
	"reporter",
	"labels",
	"priority",
	"created",
	"updated",
	"issuetype",
}

var standardFields = []string{
	"summary",
	"description",
	"status",
	"issuetype",
	"priority",
	"assignee",
	"reporter",
	"project",
	"labels",
	"created",
	"updated",
}

// NamedField is a Jira field that carries a display name (status, priority, issue type)
type NamedField struct {
	ID   string
	Name string
}

// JiraUser represents a Jira user
type JiraUser struct {
	AccountID   string
	Name        string
	DisplayName string
	Email       string
}

// JiraProject represents the project an issue belongs to
type JiraProject struct {
	ID   string
	Key  string
	Name string
}

// Issue represents a Jira issue as returned by search and issue endpoints
type Issue struct {
	ID          string
	Key         string
	Summary     string
	Description string
	Status      *NamedField
	IssueType   *NamedField
	Priority    *NamedField
	Assignee    *JiraUser
	Reporter    *JiraUser
	Project     *JiraProject
	Labels      []string
	Created     string
	Updated     string

	// CustomFields holds requested fields outside the standard set, verbatim
	CustomFields map[string]any

	requestedFields []string
}

// NewIssue creates a minimal issue that only carries its key
func NewIssue(key string) Issue {
	return Issue{Key: key}
}

// NewIssueFromResponse builds an Issue from a raw API issue object.
// requestedFields limits which fields are parsed; nil means DefaultIssueFields.
func NewIssueFromResponse(data map[string]any, requestedFields []string) Issue {
	issue := Issue{
		ID:              cast.ToString(data["id"]),
		Key:             cast.ToString(data["key"]),
		requestedFields: requestedFields,
	}

	fields := cast.ToStringMap(data["fields"])
	if len(fields) == 0 {
		return issue
	}

	wanted := func(name string) bool { return issue.wants(name) }

	if wanted("summary") {
		issue.Summary = cast.ToString(fields["summary"])
	}
	if wanted("description") {
		issue.Description = descriptionText(fields["description"])
	}
	if wanted("status") {
		issue.Status = namedField(fields["status"])
	}
	if wanted("issuetype") {
		issue.IssueType = namedField(fields["issuetype"])
	}
	if wanted("priority") {
		issue.Priority = namedField(fields["priority"])
	}
	if wanted("assignee") {
		issue.Assignee = jiraUser(fields["assignee"])
	}
	if wanted("reporter") {
		issue.Reporter = jiraUser(fields["reporter"])
	}
	if wanted("project") {
		issue.Project = jiraProject(fields["project"])
	}
	if wanted("labels") {
		if labels, ok := fields["labels"].([]any); ok {
			issue.Labels = cast.ToStringSlice(labels)
		}
	}
	if wanted("created") {
		issue.Created = cast.ToString(fields["created"])
	}
	if wanted("updated") {
		issue.Updated = cast.ToString(fields["updated"])
	}

	for name, value := range fields {
		if value == nil || slices.Contains(standardFields, name) {
			continue
		}
		if !issue.allFields() && !slices.Contains(requestedFields, name) {
			continue
		}
		if issue.CustomFields == nil {
			issue.CustomFields = make(map[string]any)
		}
		issue.CustomFields[name] = value
	}

	return issue
}

// clone copies the issue so that no slice, map or pointer is shared
func (i Issue) clone() Issue {
	out := i
	out.Status = cloneNamed(i.Status)
	out.IssueType = cloneNamed(i.IssueType)
	out.Priority = cloneNamed(i.Priority)
	out.Assignee = cloneUser(i.Assignee)
	out.Reporter = cloneUser(i.Reporter)
	if i.Project != nil {
		p := *i.Project
		out.Project = &p
	}
	out.Labels = slices.Clone(i.Labels)
	out.requestedFields = slices.Clone(i.requestedFields)
	if i.CustomFields != nil {
		out.CustomFields = make(map[string]any, len(i.CustomFields))
		for k, v := range i.CustomFields {
			out.CustomFields[k] = cloneValue(v)
		}
	}
	return out
}

func cloneNamed(f *NamedField) *NamedField {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

func cloneUser(u *JiraUser) *JiraUser {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for idx, val := range t {
			out[idx] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

func (i Issue) allFields() bool {
	return slices.Contains(i.requestedFields, AllFields)
}

func (i Issue) wants(name string) bool {
	if i.requestedFields == nil {
		return slices.Contains(DefaultIssueFields, name)
	}
	return i.allFields() || slices.Contains(i.requestedFields, name)
}

// ToSimplified converts the issue to the map shape returned to callers
func (i Issue) ToSimplified() map[string]any {
	out := map[string]any{
		"key": i.Key,
	}
	if i.ID != "" {
		out["id"] = i.ID
	}
	if i.Summary != "" {
		out["summary"] = i.Summary
	}
	if i.Description != "" {
		out["description"] = i.Description
	}
	if i.Status != nil {
		out["status"] = i.Status.simplified()
	}
	if i.IssueType != nil {
		out["issue_type"] = i.IssueType.simplified()
	}
	if i.Priority != nil {
		out["priority"] = i.Priority.simplified()
	}
	if i.Assignee != nil {
		out["assignee"] = i.Assignee.simplified()
	}
	if i.Reporter != nil {
		out["reporter"] = i.Reporter.simplified()
	}
	if i.Project != nil {
		out["project"] = map[string]any{"key": i.Project.Key, "name": i.Project.Name}
	}
	if len(i.Labels) > 0 {
		out["labels"] = i.Labels
	}
	if i.Created != "" {
		out["created"] = i.Created
	}
	if i.Updated != "" {
		out["updated"] = i.Updated
	}
	for name, value := range i.CustomFields {
		out[name] = map[string]any{"value": value}
	}
	return out
}

func (f *NamedField) simplified() map[string]any {
	return map[string]any{"name": f.Name}
}

func (u *JiraUser) simplified() map[string]any {
	out := map[string]any{"display_name": u.DisplayName}
	if u.Email != "" {
		out["email"] = u.Email
	}
	if u.AccountID != "" {
		out["account_id"] = u.AccountID
	}
	if u.Name != "" {
		out["name"] = u.Name
	}
	return out
}

func namedField(v any) *NamedField {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return &NamedField{
		ID:   cast.ToString(m["id"]),
		Name: cast.ToString(m["name"]),
	}
}

func jiraUser(v any) *JiraUser {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return &JiraUser{
		AccountID:   cast.ToString(m["accountId"]),
		Name:        cast.ToString(m["name"]),
		DisplayName: cast.ToString(m["displayName"]),
		Email:       cast.ToString(m["emailAddress"]),
	}
}

func jiraProject(v any) *JiraProject {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return &JiraProject{
		ID:   cast.ToString(m["id"]),
		Key:  cast.ToString(m["key"]),
		Name: cast.ToString(m["name"]),
	}
}

// descriptionText returns the description as plain text. Cloud v3 returns
// Atlassian Document Format, Server returns a plain string.
func descriptionText(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case string:
		return d
	case map[string]any:
		if d["type"] != "doc" {
			return ""
		}
		var paragraphs []string
		for _, block := range asList(d["content"]) {
			if text := adfText(block); text != "" {
				paragraphs = append(paragraphs, text)
			}
		}
		return strings.Join(paragraphs, "\n")
	default:
		return cast.ToString(v)
	}
}

func adfText(node any) string {
	m, ok := node.(map[string]any)
	if !ok {
		return ""
	}
	if text, ok := m["text"].(string); ok {
		return text
	}
	var sb strings.Builder
	for _, child := range asList(m["content"]) {
		sb.WriteString(adfText(child))
	}
	return sb.String()
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}
