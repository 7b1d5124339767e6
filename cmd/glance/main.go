// Command glance is the terminal companion for PostgreSQL: it wires the
// State Store, Database Gateway, LLM Service, Safety Classifier,
// Orchestrator Actor, and Command Router into either an interactive
// bubbletea session or a headless scripted run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jordigilh/glance/internal/config"
	"github.com/jordigilh/glance/internal/dbgateway"
	apperrors "github.com/jordigilh/glance/internal/errors"
	"github.com/jordigilh/glance/internal/headless"
	"github.com/jordigilh/glance/internal/llmsvc"
	"github.com/jordigilh/glance/internal/logging"
	"github.com/jordigilh/glance/internal/orchestrator"
	"github.com/jordigilh/glance/internal/statestore"
	"github.com/jordigilh/glance/internal/telemetry"
	"github.com/jordigilh/glance/internal/tui"
)

const (
	exitOK        = 0
	exitAssertion = 1
	exitConfig    = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cli, connString, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}

	cfg := config.Merge(cli, config.Config{}, config.FromEnv(nil), config.Defaults())
	if connString != "" {
		applyConnectionString(&cfg, connString)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}

	logger, err := logging.New("", false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}
	defer logger.Sync()

	statePath := cfg.StatePath
	if statePath == "" {
		statePath = defaultStatePath()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := statestore.Open(ctx, statePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}
	defer store.Close()
	store.SetLogger(logger)
	if store.WasRecovered() {
		fmt.Fprintf(os.Stderr, "state store at %s failed an integrity check and was recovered; the previous file was kept at %s.bak\n", statePath, statePath)
	}

	if settings, err := store.Settings.Get(ctx); err == nil && settings != nil {
		persisted := config.Config{LLMProvider: string(settings.Provider), LLMModel: settings.Model}
		cfg = config.Merge(cli, persisted, config.FromEnv(nil), config.Defaults())
		if connString != "" {
			applyConnectionString(&cfg, connString)
		}
	}

	gateway, err := buildLLMGateway(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}
	cache := llmsvc.NewCache(cfg.LLMProvider, cfg.LLMModel, os.Getenv("GLANCE_CACHE_REDIS_URL"))
	svc := llmsvc.NewService(gateway, store, cache)

	actor := orchestrator.New(store, svc, orchestrator.DefaultQueueCapacity)

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)
	shutdownTracing, err := telemetry.InitTracing(os.Getenv("GLANCE_OTEL_STDOUT") == "1")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}
	defer shutdownTracing(context.Background())

	if debugAddr := os.Getenv("GLANCE_DEBUG_ADDR"); debugAddr != "" {
		srv := telemetry.NewServer(debugAddr, registry, actor.StatusSnapshot)
		go srv.Start(ctx)
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go actor.Run(runCtx)

	if err := connectInitialProfile(ctx, actor, store, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}

	if cfg.Headless {
		return runHeadless(ctx, actor, cfg, metrics)
	}
	return runInteractive(actor, metrics)
}

func parseFlags(args []string) (config.Config, string, error) {
	fs := flag.NewFlagSet("glance", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var c config.Config
	fs.StringVar(&c.Host, "host", "", "database host")
	fs.IntVar(&c.Port, "port", 0, "database port")
	fs.StringVar(&c.Database, "database", "", "database name")
	fs.StringVar(&c.User, "user", "", "database user")
	fs.StringVar(&c.ConnectionName, "connection", "", "load a saved connection profile")
	configPath := fs.String("config", "", "path to a TOML configuration file (parsing is out of scope)")
	fs.StringVar(&c.LLMProvider, "llm", "", "LLM provider (openai, anthropic, ollama)")
	fs.StringVar(&c.LLMModel, "model", "", "LLM model name")
	fs.BoolVar(&c.Headless, "headless", false, "run without the interactive TUI")
	fs.BoolVar(&c.MockDB, "mock-db", false, "use the deterministic mock database backend")
	fs.StringVar(&c.Events, "events", "", "inline comma-separated headless event DSL")
	fs.StringVar(&c.ScriptPath, "script", "", "path to a headless event DSL script file")
	fs.StringVar(&c.Output, "output", "", "headless output format: text, json, or frames")
	allowPlaintext := fs.Bool("allow-plaintext", false, "permit storing secrets in plaintext when no keyring is available")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, "", err
	}
	_ = configPath
	if *allowPlaintext {
		os.Setenv("GLANCE_ALLOW_PLAINTEXT", "1")
	}

	var connString string
	if fs.NArg() > 0 {
		connString = fs.Arg(0)
	}
	return c, connString, nil
}

// applyConnectionString accepts a bare positional "host:port/database"
// shorthand; anything more elaborate (postgres:// URLs with
// credentials) is left to --connection / the Command Router's /conn
// add, since this path never resolves secrets.
func applyConnectionString(cfg *config.Config, s string) {
	hostPort, db, hasDB := strings.Cut(s, "/")
	if hasDB {
		cfg.Database = db
	}
	host, port, hasPort := strings.Cut(hostPort, ":")
	cfg.Host = host
	if hasPort {
		fmt.Sscanf(port, "%d", &cfg.Port)
	}
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "db-glance", "state.db")
	}
	return filepath.Join(home, ".config", "db-glance", "state.db")
}

func buildLLMGateway(cfg config.Config) (llmsvc.Gateway, error) {
	switch cfg.LLMProvider {
	case "anthropic":
		key := os.Getenv(config.ProviderAPIKeyEnvVar("anthropic"))
		if key == "" {
			return nil, apperrors.ConfigError("llm", "ANTHROPIC_API_KEY is not set")
		}
		return llmsvc.NewAnthropicGateway(key, cfg.LLMModel), nil
	case "ollama":
		url := os.Getenv("OLLAMA_URL")
		return llmsvc.NewOllamaGateway(url, cfg.LLMModel)
	case "openai", "":
		key := os.Getenv(config.ProviderAPIKeyEnvVar("openai"))
		if key == "" {
			return nil, apperrors.ConfigError("llm", "OPENAI_API_KEY is not set")
		}
		return llmsvc.NewOpenAIGateway(key, cfg.LLMModel)
	default:
		return nil, apperrors.ConfigError("llm", fmt.Sprintf("unknown provider %q", cfg.LLMProvider))
	}
}

// connectInitialProfile resolves the connection the session should
// start against: --mock-db wins outright, else --connection names a
// saved profile, else the flag-derived fields (host/port/database/user)
// are written to the State Store (created, or updated keeping its
// secret reference) under that name, or the default profile's name,
// before connecting.
func connectInitialProfile(ctx context.Context, actor *orchestrator.Actor, store *statestore.Store, cfg config.Config) error {
	if cfg.MockDB {
		return actor.ConnectMock(ctx, dbgateway.NewMockGateway())
	}

	name := cfg.ConnectionName
	if name == "" {
		name = statestore.DefaultConnectionName
	}

	if cfg.Host != "" || cfg.Database != "" {
		profile := &statestore.ConnectionProfile{
			Name:     name,
			Backend:  "postgres",
			Host:     cfg.Host,
			Port:     cfg.Port,
			Database: cfg.Database,
			User:     cfg.User,
			SSLMode:  cfg.SSLMode,
		}
		if existing, err := store.Connections.Get(ctx, name); err == nil && existing != nil {
			profile.SecretRef = existing.SecretRef
			if err := store.Connections.Update(ctx, profile); err != nil {
				return err
			}
		} else if err := store.Connections.Create(ctx, profile); err != nil {
			return err
		}
	}

	done := make(chan orchestrator.Event, 1)
	go func() {
		for e := range actor.Events() {
			if e.Kind == orchestrator.EventConnectionSwitched || e.Kind == orchestrator.EventConnectionSwitchFailed {
				done <- e
				return
			}
		}
	}()
	actor.Submit(orchestrator.Request{ID: "startup-connect", Kind: orchestrator.RequestConnect, ConnectionName: name})

	select {
	case e := <-done:
		if e.Kind == orchestrator.EventConnectionSwitchFailed {
			return apperrors.New(apperrors.KindConnection, "initial connect").WithDetails(e.Message)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func runInteractive(actor *orchestrator.Actor, metrics *telemetry.Metrics) int {
	p := tea.NewProgram(tui.New(actor, metrics), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}
	return exitOK
}

func runHeadless(ctx context.Context, actor *orchestrator.Actor, cfg config.Config, metrics *telemetry.Metrics) int {
	var events []headless.Event
	switch {
	case cfg.ScriptPath != "":
		f, err := os.Open(cfg.ScriptPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitConfig
		}
		defer f.Close()
		parsed, err := headless.ParseScript(f)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitConfig
		}
		events = parsed
	case cfg.Events != "":
		parsed, err := headless.ParseLine(cfg.Events)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitConfig
		}
		events = parsed
	default:
		fmt.Fprintln(os.Stderr, "headless mode requires --events or --script")
		return exitConfig
	}

	screen := newTranscriptScreen(actor, metrics)
	runner := &headless.Runner{Actor: actor, Screen: screen}

	idx, err := runner.Run(ctx, events)
	screen.flush(cfg.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "assertion failed at event %d: %v\n", idx, err)
		return exitAssertion
	}
	return exitOK
}
