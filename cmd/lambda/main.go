package main

import (
	"context"
	"log"

	"jira_search/internal/config"
	"jira_search/internal/handler"
	"jira_search/internal/logger"
	"jira_search/internal/service/jira"
	"jira_search/internal/storage"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
)

var ginLambda *ginadapter.GinLambda

func initRouter(ctx context.Context) (*gin.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		return nil, err
	}

	tokenStore, err := storage.New(ctx, cfg.TokenBucketName, cfg.TokenEncryptKey)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	h := handler.NewHandler(jira.NewClientFromConfig(cfg), cfg.ProjectsFilter, tokenStore, cfg.SlackSigningSecret)
	return h.Router(), nil
}

func handleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	router, err := initRouter(context.Background())
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer logger.Sync()

	ginLambda = ginadapter.New(router)
	lambda.Start(handleRequest)
}
