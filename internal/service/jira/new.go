package jira

import "jira_search/internal/config"

// NewClientFromConfig creates a Client from the application config
func NewClientFromConfig(cfg *config.Config) *Client {
	return NewClient(Options{
		URL:             cfg.JiraURL,
		Username:        cfg.JiraUsername,
		APIToken:        cfg.JiraAPIToken,
		PersonalToken:   cfg.JiraPersonalToken,
		IsCloud:         cfg.JiraIsCloud,
		SSLVerify:       cfg.SSLVerify,
		Timeout:         cfg.Timeout,
		RetryMaxElapsed: cfg.RetryMaxElapsed,
	})
}
