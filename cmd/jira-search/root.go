package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"jira_search/internal/config"
	"jira_search/internal/logger"
	"jira_search/internal/model"
	"jira_search/internal/service/jira"

	"github.com/spf13/cobra"
)

// searcher is the subset of *jira.Searcher the commands call
type searcher interface {
	SearchIssues(ctx context.Context, query string, opts jira.SearchOptions) (*model.SearchResult, error)
	GetBoardIssues(ctx context.Context, boardID, query string, opts jira.SearchOptions) (*model.SearchResult, error)
	GetSprintIssues(ctx context.Context, sprintID string, opts jira.SearchOptions) (*model.SearchResult, error)
	GetIssue(ctx context.Context, key, fields string) (model.Issue, error)
}

// newSearcher is swapped out in tests
var newSearcher = func() (searcher, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		return nil, err
	}
	return jira.NewSearcher(jira.NewClientFromConfig(cfg), cfg.ProjectsFilter), nil
}

type searchFlags struct {
	jql      string
	fields   string
	limit    int
	start    int
	projects string
	expand   string
}

func (f *searchFlags) options() jira.SearchOptions {
	return jira.SearchOptions{
		Fields:         f.fields,
		Start:          f.start,
		Limit:          f.limit,
		Expand:         f.expand,
		ProjectsFilter: f.projects,
	}
}

func (f *searchFlags) register(cmd *cobra.Command, withJQL bool) {
	if withJQL {
		cmd.Flags().StringVar(&f.jql, "jql", "", "JQL query; an empty query matches every issue in scope")
	}
	cmd.Flags().StringVar(&f.fields, "fields", "", "comma-separated fields to return, or *all")
	cmd.Flags().IntVar(&f.limit, "limit", jira.DefaultLimit, fmt.Sprintf("maximum issues to return (1-%d)", jira.MaxLimit))
	cmd.Flags().IntVar(&f.start, "start", 0, "zero-based index of the first issue")
	cmd.Flags().StringVar(&f.expand, "expand", "", "fields to expand, e.g. renderedFields")
}

func newRootCmd() *cobra.Command {
	var flags searchFlags

	root := &cobra.Command{
		Use:           "jira-search",
		Short:         "Search Jira issues with JQL and print the normalized result as JSON",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSearcher()
			if err != nil {
				return err
			}
			result, err := s.SearchIssues(cmd.Context(), flags.jql, flags.options())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result.ToSimplified())
		},
	}
	flags.register(root, true)
	root.Flags().StringVar(&flags.projects, "projects", "", "comma-separated project keys overriding JIRA_PROJECTS_FILTER")

	root.AddCommand(newIssueCmd(), newBoardCmd(), newSprintCmd())
	return root
}

func newIssueCmd() *cobra.Command {
	var fields string
	cmd := &cobra.Command{
		Use:   "issue KEY",
		Short: "Get a single issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSearcher()
			if err != nil {
				return err
			}
			issue, err := s.GetIssue(cmd.Context(), args[0], fields)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), issue.ToSimplified())
		},
	}
	cmd.Flags().StringVar(&fields, "fields", "", "comma-separated fields to return, or *all")
	return cmd
}

func newBoardCmd() *cobra.Command {
	var flags searchFlags
	cmd := &cobra.Command{
		Use:   "board ID",
		Short: "List issues on an agile board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSearcher()
			if err != nil {
				return err
			}
			result, err := s.GetBoardIssues(cmd.Context(), args[0], flags.jql, flags.options())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result.ToSimplified())
		},
	}
	flags.register(cmd, true)
	return cmd
}

func newSprintCmd() *cobra.Command {
	var flags searchFlags
	cmd := &cobra.Command{
		Use:   "sprint ID",
		Short: "List issues in a sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSearcher()
			if err != nil {
				return err
			}
			result, err := s.GetSprintIssues(cmd.Context(), args[0], flags.options())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result.ToSimplified())
		},
	}
	flags.register(cmd, false)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
