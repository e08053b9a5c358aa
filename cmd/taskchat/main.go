// Command taskchat serves the conversational task assistant: a chat API
// whose answers come from a reasoning provider that manages the user's
// tasks through the task backend.
//
// Usage:
//
//	ANTHROPIC_API_KEY=sk-... taskchat [flags]
//	GEMINI_API_KEY=gk-...   taskchat [flags]
//	OPENAI_API_KEY=or-...   taskchat [flags]
//
// Settings come from taskchat.yaml (or --config) and TASKCHAT_* variables;
// flags override both.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fwojciec/taskchat/agent"
	"github.com/fwojciec/taskchat/config"
	taskhttp "github.com/fwojciec/taskchat/http"
	"github.com/fwojciec/taskchat/jwt"
	"github.com/fwojciec/taskchat/rest"
	"github.com/fwojciec/taskchat/sqlite"
	"github.com/fwojciec/taskchat/tools"
	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"
)

const shutdownGrace = 10 * time.Second

// options are the command-line flags. The struct tags are interpreted by
// github.com/jessevdk/go-flags.
type options struct {
	Config      string `short:"c" long:"config" description:"Path to a YAML config file (default: ./taskchat.yaml if present)"`
	Addr        string `long:"addr" description:"Listen address, overrides server.addr"`
	Provider    string `long:"provider" description:"Provider: anthropic, gemini, openai (auto-detected from env vars if omitted)"`
	Model       string `long:"model" description:"Model ID (default: provider default)"`
	PrintConfig bool   `long:"print-config" description:"Print the effective configuration and exit"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "taskchat: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseOptions(args)
	if errors.Is(err, errHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if opts.PrintConfig {
		out, err := cfg.Dump()
		if err != nil {
			return err
		}
		_, err = stdout.Write(out)
		return err
	}

	log, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, providerName, err := resolveProvider(ctx, cfg.LLM, providerEnv{
		anthropic: os.Getenv("ANTHROPIC_API_KEY"),
		gemini:    os.Getenv("GEMINI_API_KEY"),
		openai:    os.Getenv("OPENAI_API_KEY"),
	})
	if err != nil {
		return err
	}
	systemPrompt, err := loadSystemPrompt(cfg.LLM.SystemPromptPath)
	if err != nil {
		return err
	}

	verifier, err := jwt.NewVerifier(cfg.Auth.Secret)
	if err != nil {
		return err
	}

	backend := rest.New(
		rest.WithBaseURL(cfg.Backend.BaseURL),
		rest.WithTimeout(cfg.Backend.Timeout),
		rest.WithLogger(log.With().Str("component", "rest").Logger()),
	)
	registry, err := tools.New(backend, tools.WithLogger(log.With().Str("component", "tools").Logger()))
	if err != nil {
		return fmt.Errorf("tools: %w", err)
	}

	orchOpts := []agent.OrchestratorOption{
		agent.WithSystemPrompt(systemPrompt),
		agent.WithDefaultModel(cfg.LLM.Model),
		agent.WithTurnTimeout(cfg.Server.TurnTimeout),
		agent.WithOrchestratorLogger(log.With().Str("component", "agent").Logger()),
	}
	if cfg.LLM.MaxTokens > 0 {
		orchOpts = append(orchOpts, agent.WithOutputTokens(cfg.LLM.MaxTokens))
	}
	loop := agent.New(provider, agent.WithLogger(log.With().Str("component", "loop").Logger()))
	assistant := agent.NewOrchestrator(loop, registry, orchOpts...)

	db, err := sqlite.Open(ctx, cfg.Database.Path, sqlite.WithLogger(log.With().Str("component", "sqlite").Logger()))
	if err != nil {
		return err
	}
	defer db.Close()

	srv := taskhttp.NewServer(assistant, sqlite.NewConversationStore(db),
		taskhttp.WithLogger(log),
		taskhttp.WithPinger(db),
		taskhttp.WithAuthenticator(verifier.Authenticate),
		taskhttp.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
	)
	if err := srv.Open(cfg.Server.Addr); err != nil {
		return err
	}
	log.Info().
		Str("addr", srv.Addr()).
		Str("provider", providerName).
		Str("model", cfg.LLM.Model).
		Str("backend", cfg.Backend.BaseURL).
		Str("database", cfg.Database.Path).
		Msg("taskchat listening")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	// In-flight turns get their full budget before the server gives up.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.TurnTimeout+shutdownGrace)
	defer cancel()
	return srv.Close(shutdownCtx)
}

var errHelp = errors.New("help requested")

func parseOptions(args []string) (options, error) {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return opts, errHelp
		}
		return opts, err
	}
	return opts, nil
}

// loadConfig loads the configuration and applies flag overrides.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	if opts.Provider != "" {
		cfg.LLM.Provider = opts.Provider
	}
	if opts.Model != "" {
		cfg.LLM.Model = opts.Model
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSystemPrompt reads the prompt file, or returns the built-in prompt
// when no path is configured.
func loadSystemPrompt(path string) (string, error) {
	if path == "" {
		return agent.DefaultSystemPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}
	return string(data), nil
}

func newLogger(cfg config.LogConfig, w io.Writer) (zerolog.Logger, error) {
	lvl, err := cfg.ZerologLevel()
	if err != nil {
		return zerolog.Nop(), err
	}
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
