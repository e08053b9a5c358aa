package main

import (
	"context"
	"fmt"

	"github.com/fwojciec/taskchat"
	"github.com/fwojciec/taskchat/anthropic"
	"github.com/fwojciec/taskchat/config"
	"github.com/fwojciec/taskchat/gemini"
	"github.com/fwojciec/taskchat/openai"
)

// providerEnv holds the API key environment variables. Env is only read in
// main().
type providerEnv struct {
	anthropic string
	gemini    string
	openai    string
}

// resolveProvider selects and constructs the reasoning provider. An explicit
// llm.provider wins; otherwise exactly one API key variable must be set.
// llm.api_key overrides the provider's env var.
func resolveProvider(ctx context.Context, cfg config.LLMConfig, env providerEnv) (taskchat.Provider, string, error) {
	name := cfg.Provider
	if name == "" {
		var found []string
		if env.anthropic != "" {
			found = append(found, "anthropic")
		}
		if env.gemini != "" {
			found = append(found, "gemini")
		}
		if env.openai != "" {
			found = append(found, "openai")
		}
		switch len(found) {
		case 0:
			return nil, "", fmt.Errorf("no API key found: set ANTHROPIC_API_KEY, GEMINI_API_KEY or OPENAI_API_KEY (or use --provider and llm.api_key)")
		case 1:
			name = found[0]
		default:
			return nil, "", fmt.Errorf("multiple API keys found %v: use --provider to select", found)
		}
	}

	key := cfg.APIKey
	switch name {
	case "anthropic":
		if key == "" {
			key = env.anthropic
		}
		if key == "" {
			return nil, "", fmt.Errorf("ANTHROPIC_API_KEY not set (use llm.api_key or environment variable)")
		}
		var opts []anthropic.Option
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		return anthropic.New(key, opts...), name, nil
	case "gemini":
		if key == "" {
			key = env.gemini
		}
		if key == "" {
			return nil, "", fmt.Errorf("GEMINI_API_KEY not set (use llm.api_key or environment variable)")
		}
		var opts []gemini.Option
		if cfg.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Model))
		}
		client, err := gemini.New(ctx, key, opts...)
		if err != nil {
			return nil, "", fmt.Errorf("gemini: %w", err)
		}
		return client, name, nil
	case "openai":
		if key == "" {
			key = env.openai
		}
		if key == "" {
			return nil, "", fmt.Errorf("OPENAI_API_KEY not set (use llm.api_key or environment variable)")
		}
		var opts []openai.Option
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		return openai.New(key, opts...), name, nil
	default:
		return nil, "", fmt.Errorf("unknown provider %q: must be \"anthropic\", \"gemini\" or \"openai\"", name)
	}
}
