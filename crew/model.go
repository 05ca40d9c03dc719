package crew

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/agentcrew/config"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model"
	anthropicmodel "github.com/hupe1980/agentcrew/model/anthropic"
	openaimodel "github.com/hupe1980/agentcrew/model/openai"
)

// NewModel builds the model selected by cfg.Type, wrapped with retries.
func NewModel(cfg config.LLMConfig, logger logging.Logger) (model.Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var m model.Model

	switch cfg.Type {
	case config.LLMOpenAI:
		m = openaimodel.NewModel(func(o *openaimodel.Options) {
			o.Model = cfg.OpenAIModel
			o.ClientOptions = append(o.ClientOptions, option.WithAPIKey(cfg.OpenAIAPIKey))
			if cfg.OpenAIBaseURL != "" {
				o.ClientOptions = append(o.ClientOptions, option.WithBaseURL(cfg.OpenAIBaseURL))
			}
		})
	case config.LLMAzureOpenAI:
		m = openaimodel.NewAzureModel(cfg.AzureEndpoint, cfg.APIVersion, cfg.AzureAPIKey, cfg.AzureDeployment)
	case config.LLMDeepSeek:
		m = openaimodel.NewDeepSeekModel(cfg.DeepSeekAPIKey, func(o *openaimodel.Options) {
			o.Model = cfg.DeepSeekModel
		})
	case config.LLMAnthropic:
		m = anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			o.Model = anthropic.Model(cfg.AnthropicModel)
			o.APIKey = cfg.AnthropicAPIKey
			// Retries happen in model.WithRetry.
			o.ClientOptions = append(o.ClientOptions, anthropicopt.WithMaxRetries(0))
		})
	default:
		return nil, fmt.Errorf("unsupported LLM_TYPE %q", cfg.Type)
	}

	return model.WithRetry(m, func(o *model.RetryOptions) {
		o.MaxTries = uint(cfg.MaxRetries) + 1
		o.Retryable = retryable
		if logger != nil {
			o.Logger = logger
		}
	}), nil
}

// retryable skips client errors that another attempt cannot fix.
func retryable(err error) bool {
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return oaiErr.StatusCode == 429 || oaiErr.StatusCode >= 500
	}

	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return antErr.StatusCode == 429 || antErr.StatusCode >= 500
	}

	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
