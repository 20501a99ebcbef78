package main

import (
	"log"

	"jira_search/internal/config"
	"jira_search/internal/logger"
	mcpserver "jira_search/internal/service/mcp-server"
	"jira_search/internal/service/jira"

	"go.uber.org/zap"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	client := jira.NewClientFromConfig(cfg)
	server := mcpserver.NewServer(jira.NewSearcher(client, cfg.ProjectsFilter), version)

	logger.GetLogger().Info("starting jira search MCP server",
		zap.String("jira_url", cfg.JiraURL),
		zap.Bool("cloud", client.IsCloud()))
	if err := mcpserver.Serve(server); err != nil {
		logger.GetLogger().Fatal("server error", zap.Error(err))
	}
}
