package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/joescharf/forge/internal/artifact"
	"github.com/joescharf/forge/internal/llm"
	"github.com/joescharf/forge/internal/pipeline"
	"github.com/joescharf/forge/internal/runner"
	"github.com/joescharf/forge/internal/store"
)

// llmConfig reads the llm.* keys.
func llmConfig() llm.Config {
	return llm.Config{
		Provider:    viper.GetString("llm.provider"),
		Model:       viper.GetString("llm.model"),
		APIKey:      viper.GetString("llm.api_key"),
		BaseURL:     viper.GetString("llm.base_url"),
		Timeout:     viper.GetDuration("llm.timeout"),
		MaxAttempts: viper.GetInt("llm.retry.max_attempts"),
		BaseDelay:   viper.GetDuration("llm.retry.base_delay"),
		RPS:         viper.GetFloat64("llm.rate_limit.rps"),
		Burst:       viper.GetInt("llm.rate_limit.burst"),
	}
}

// pipelineConfig reads the pipeline.* keys plus the per-call llm settings.
func pipelineConfig() pipeline.Config {
	return pipeline.Config{
		MaxIterations: viper.GetInt("pipeline.max_iterations"),
		Language:      viper.GetString("pipeline.language"),
		Parallel:      viper.GetBool("pipeline.parallel"),
		Temperature:   viper.GetFloat64("llm.temperature"),
		MaxTokens:     viper.GetInt("llm.max_tokens"),
		Timeout:       viper.GetDuration("llm.timeout"),
	}
}

func s3Config() artifact.S3Config {
	return artifact.S3Config{
		Endpoint:  viper.GetString("s3.endpoint"),
		Region:    viper.GetString("s3.region"),
		AccessKey: viper.GetString("s3.access_key"),
		SecretKey: viper.GetString("s3.secret_key"),
		Bucket:    viper.GetString("s3.bucket"),
		UseSSL:    viper.GetBool("s3.use_ssl"),
	}
}

// newLLMClient creates the configured model client with its middleware
// chain. Replaceable in tests.
var newLLMClient = func(ctx context.Context) (llm.Client, error) {
	return llm.New(ctx, llmConfig(), logger)
}

// newRunner builds a runner from config. s may be nil to skip recording.
func newRunner(ctx context.Context, s store.Store) (*runner.Runner, error) {
	client, err := newLLMClient(ctx)
	if err != nil {
		return nil, err
	}

	opts := []runner.Option{runner.WithLogger(logger)}
	if s != nil {
		opts = append(opts, runner.WithStore(s))
	}
	if cfg := s3Config(); cfg.Enabled() {
		up, err := artifact.NewS3Uploader(cfg)
		if err != nil {
			return nil, fmt.Errorf("configure artifact upload: %w", err)
		}
		opts = append(opts, runner.WithUploader(up))
	}
	return runner.New(client, pipelineConfig(), opts...)
}
