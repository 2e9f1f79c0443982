// Command summarize backfills narrative summaries for conversation and
// voice session records that finished without one, pacing collaborator
// calls through an interval limiter.
package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"

	"guest-session-store/internal/integrations/gemini"
	"guest-session-store/internal/integrations/paramstore"
	"guest-session-store/internal/logging"
	"guest-session-store/internal/repository"
	"guest-session-store/internal/store"
	"guest-session-store/internal/summary"
)

func main() {
	ctx := context.Background()

	logFile := envStr("LOG_FILE", "logs/summarize.log")
	logger := logging.NewWithFile("summarize", logFile)
	defer func() { _ = logger.Sync() }()

	sessionTable := mustEnv(logger, "SESSION_TABLE")
	paramPrefix := mustEnv(logger, "PARAM_PREFIX")
	batchCap := envInt("BATCH_CAP", 25)
	callInterval := envInt("CALL_INTERVAL_MS", 2000)

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Fatal("failed to load AWS config", zap.Error(err))
	}

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
	sessionStore, err := store.New(tableClient, logger)
	if err != nil {
		logger.Fatal("failed to create session store", zap.Error(err))
	}

	pool := summary.NewPool(1, 1, logger)
	defer pool.Close()
	generator, err := summary.NewGenerator(sessionStore, summarizer, pool, logger)
	if err != nil {
		logger.Fatal("failed to create summary generator", zap.Error(err))
	}

	limiter := summary.NewIntervalLimiter(time.Duration(callInterval) * time.Millisecond)
	result, err := generator.RunBatch(ctx, limiter, batchCap)
	if err != nil {
		logger.Error("summary batch failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("summary batch complete",
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("errored", result.Errored))
}

func mustEnv(logger *zap.Logger, key string) string {
	v := os.Getenv(key)
	if v == "" {
		logger.Fatal("required environment variable is not set", zap.String("key", key))
	}
	return v
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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
