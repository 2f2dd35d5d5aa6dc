package pipeline

import (
	"errors"
	"time"

	"github.com/lumarank/lumarank/internal/config"
	"github.com/lumarank/lumarank/internal/resilience"
)

// retryMalformed retries transient failures and unparseable model output.
func retryMalformed(err error) bool {
	return resilience.IsTransient(err) || errors.Is(err, ErrMalformedOutput)
}

// PoliciesFromConfig builds the per-stage retry policies.
func PoliciesFromConfig(cfg *config.Config) Policies {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	llmTimeout := time.Duration(cfg.LLM.TimeoutSecs) * time.Second
	an := cfg.Analysis

	return Policies{
		Fetch: resilience.NewPolicy("fetch", cfg.Fetch.MaxAttempts, ms(cfg.Fetch.InitialBackoffMs), ms(cfg.Fetch.MaxBackoffMs)).
			WithAttemptTimeout(time.Duration(cfg.Fetch.TimeoutSecs) * time.Second),
		Extract: resilience.NewPolicy("extract", an.ExtractAttempts, ms(an.InitialBackoffMs), ms(an.MaxBackoffMs)).
			WithAttemptTimeout(llmTimeout).
			WithRetryable(retryMalformed),
		Generate: resilience.NewPolicy("generate", an.GenerateAttempts, ms(an.InitialBackoffMs), ms(an.MaxBackoffMs)).
			WithAttemptTimeout(llmTimeout).
			WithRetryable(retryMalformed),
		Test: resilience.NewPolicy("test", an.TestAttempts, ms(an.InitialBackoffMs), ms(an.MaxBackoffMs)).
			WithAttemptTimeout(llmTimeout),
	}
}

// ExtractOptionsFromConfig maps config onto ExtractOptions.
func ExtractOptionsFromConfig(cfg *config.Config) ExtractOptions {
	return ExtractOptions{
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.ExtractTemperature,
		PromptChars: cfg.Analysis.PromptTextChars,
	}
}

// GenerateOptionsFromConfig maps config onto GenerateOptions.
func GenerateOptionsFromConfig(cfg *config.Config) GenerateOptions {
	return GenerateOptions{
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.GenerateTemperature,
		PerSet:      cfg.Analysis.QuestionsPerSet,
		MinPerSet:   cfg.Analysis.MinQuestions,
		MaxPerSet:   cfg.Analysis.MaxQuestions,
	}
}

// TestOptionsFromConfig maps config onto TestOptions.
func TestOptionsFromConfig(cfg *config.Config) TestOptions {
	return TestOptions{
		MaxTokens:   cfg.LLM.TestMaxTokens,
		Temperature: cfg.LLM.TestTemperature,
		Concurrency: cfg.Analysis.TestConcurrency,
	}
}
