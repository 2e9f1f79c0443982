package main

import (
	"context"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"

	"guest-session-store/handler"
	"guest-session-store/internal/integrations/gemini"
	"guest-session-store/internal/integrations/paramstore"
	"guest-session-store/internal/logging"
	"guest-session-store/internal/repository"
	"guest-session-store/internal/store"
	"guest-session-store/internal/summary"
)

func main() {
	ctx := context.Background()

	logger := logging.New("session-store")
	defer func() { _ = logger.Sync() }()

	// ---- Configuration (read only here) ----
	sessionTable := mustEnv(logger, "SESSION_TABLE")
	paramPrefix := mustEnv(logger, "PARAM_PREFIX")
	summaryWorkers := envInt("SUMMARY_WORKERS", 2)
	summaryQueueSize := envInt("SUMMARY_QUEUE_SIZE", 32)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Fatal("failed to load AWS config", zap.Error(err))
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		logger.Fatal("failed to create SSM client", zap.Error(err))
	}
	cachedParams, err := paramstore.NewCached(ssmClient)
	if err != nil {
		logger.Fatal("failed to create cached parameter getter", zap.Error(err))
	}
	tableClient, err := repository.New(awsdynamodb.NewFromConfig(cfg), sessionTable)
	if err != nil {
		logger.Fatal("failed to create table client", zap.Error(err))
	}
	summarizer, err := gemini.NewClient(cachedParams, paramPrefix)
	if err != nil {
		logger.Fatal("failed to create Gemini client", zap.Error(err))
	}

	// ---- Store + summary pipeline ----
	sessionStore, err := store.New(tableClient, logger)
	if err != nil {
		logger.Fatal("failed to create session store", zap.Error(err))
	}
	pool := summary.NewPool(summaryWorkers, summaryQueueSize, logger)
	generator, err := summary.NewGenerator(sessionStore, summarizer, pool, logger,
		summary.WithPropertyContext(propertyContext(cachedParams, paramPrefix)))
	if err != nil {
		logger.Fatal("failed to create summary generator", zap.Error(err))
	}
	sessionStore.SetSummaryTrigger(generator)

	// ---- Handler ----
	h, err := handler.NewHandler(sessionStore)
	if err != nil {
		logger.Fatal("failed to create handler", zap.Error(err))
	}

	lambda.Start(h.Handle)
}

// propertyContext resolves the per-property context parameter used to
// enrich summaries. Missing parameters simply mean no context.
func propertyContext(params paramstore.Getter, prefix string) summary.ContextProvider {
	return func(ctx context.Context, propertyID string) string {
		value, err := params.GetParameter(ctx, prefix+"/properties/"+propertyID+"/context")
		if err != nil {
			return ""
		}
		return value
	}
}

func mustEnv(logger *zap.Logger, key string) string {
	v := os.Getenv(key)
	if v == "" {
		logger.Fatal("required environment variable is not set", zap.String("key", key))
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
