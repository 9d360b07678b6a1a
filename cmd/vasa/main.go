package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vasa-labs/vasa/internal/api"
	"github.com/vasa-labs/vasa/internal/config"
	"github.com/vasa-labs/vasa/internal/genai"
	"github.com/vasa-labs/vasa/internal/lockfile"
	"github.com/vasa-labs/vasa/internal/memory"
	"github.com/vasa-labs/vasa/internal/store"
	"github.com/vasa-labs/vasa/internal/tasks"
	"github.com/vasa-labs/vasa/internal/util"
	"github.com/vasa-labs/vasa/internal/voice"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for VASA state data
	DefaultStateDir = "/var/lib/vasa"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "vasa.db"
	// DefaultTaskQueueSize bounds the fire-and-forget task backlog
	DefaultTaskQueueSize = 64
	// DefaultTaskRetryDelay is the wait before the single retry of a failed task
	DefaultTaskRetryDelay = 5 * time.Second
)

// Flags holds command line flag values
type Flags struct {
	configPath *string
	stateDir   *string
	dbDSN      *string
	apiAddr    *string
	openaiKey  *string
	memoryKey  *string
	voiceKey   *string
}

func main() {
	initializeLogger()

	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	flags := parseCommandLineFlags()

	cfg, err := config.LoadConfig(*flags.configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	applyFlagOverrides(cfg, flags)
	applyEnvFallbacks(cfg)

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", cfg.Database.DSN)
	}

	if store.DetectDSNType(cfg.Database.DSN) == "sqlite" {
		lock, err := lockfile.AcquireLock(filepath.Dir(cfg.Database.DSN))
		if err != nil {
			slog.Error("Failed to lock state directory", "error", err)
			os.Exit(1)
		}
		defer lock.Release()
	}

	st, err := buildStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	queue := tasks.NewQueue(DefaultTaskQueueSize, DefaultTaskRetryDelay)
	defer queue.Stop()

	apiOpts := buildAPIOptions(cfg, queue)

	server, err := api.NewServer(st, apiOpts...)
	if err != nil {
		slog.Error("Failed to build API server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping VASA with configured modules", "addr", cfg.Server.Addr, "dsn_type", store.DetectDSNType(cfg.Database.DSN))
	if err := server.Run(ctx); err != nil {
		slog.Error("VASA failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("VASA exited successfully")
}

// initializeLogger sets up structured logging; VASA_DEBUG enables debug level
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("VASA_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// parseCommandLineFlags parses command line arguments
func parseCommandLineFlags() Flags {
	flags := Flags{
		configPath: flag.String("config", "", "path to YAML configuration file"),
		stateDir:   flag.String("state-dir", DefaultStateDir, "state directory for VASA data"),
		dbDSN:      flag.String("db-dsn", "", "database DSN, SQLite file path or PostgreSQL connection string (overrides config)"),
		apiAddr:    flag.String("api-addr", "", "API server address (overrides config)"),
		openaiKey:  flag.String("openai-api-key", "", "OpenAI API key (overrides config and $OPENAI_API_KEY)"),
		memoryKey:  flag.String("memory-api-key", "", "semantic memory API key (overrides config and $MEM0_API_KEY)"),
		voiceKey:   flag.String("voice-api-key", "", "voice vendor API key (overrides config and $ELEVENLABS_API_KEY)"),
	}
	flag.Parse()

	slog.Debug("flags parsed",
		"configPath", *flags.configPath,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"openaiKeySet", *flags.openaiKey != "",
		"memoryKeySet", *flags.memoryKey != "",
		"voiceKeySet", *flags.voiceKey != "")
	return flags
}

// applyFlagOverrides layers explicit command line flags over file/env configuration
func applyFlagOverrides(cfg *config.Config, flags Flags) {
	if *flags.dbDSN != "" {
		cfg.Database.DSN = *flags.dbDSN
	}
	if *flags.apiAddr != "" {
		cfg.Server.Addr = *flags.apiAddr
	}
	if *flags.openaiKey != "" {
		cfg.OpenAI.APIKey = *flags.openaiKey
	}
	if *flags.memoryKey != "" {
		cfg.Memory.APIKey = *flags.memoryKey
	}
	if *flags.voiceKey != "" {
		cfg.Voice.APIKey = *flags.voiceKey
	}
}

// applyEnvFallbacks fills credentials from the vendors' conventional
// environment variables when neither config nor flags set them
func applyEnvFallbacks(cfg *config.Config) {
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Memory.APIKey == "" {
		cfg.Memory.APIKey = os.Getenv("MEM0_API_KEY")
	}
	if cfg.Voice.APIKey == "" {
		cfg.Voice.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if cfg.Voice.WebhookSecret == "" {
		cfg.Voice.WebhookSecret = os.Getenv("ELEVENLABS_WEBHOOK_SECRET")
	}
}

// buildStore constructs the persistence backend from the configured DSN
func buildStore(cfg *config.Config) (store.Store, error) {
	dsn := cfg.Database.DSN
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", dsn)
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// buildAPIOptions constructs API server options from the configuration,
// skipping collaborators whose credentials are missing so the service
// starts degraded instead of failing
func buildAPIOptions(cfg *config.Config, queue *tasks.Queue) []api.Option {
	apiOpts := []api.Option{
		api.WithAddr(cfg.Server.Addr),
		api.WithTaskQueue(queue),
		api.WithAgents(cfg.Voice.Agents),
	}
	if cfg.Voice.WebhookSecret != "" {
		apiOpts = append(apiOpts, api.WithWebhookSecret(cfg.Voice.WebhookSecret))
	}

	var memClient *memory.Client
	if cfg.Memory.APIKey != "" {
		memOpts := []memory.Option{memory.WithAPIKey(cfg.Memory.APIKey)}
		if cfg.Memory.BaseURL != "" {
			memOpts = append(memOpts, memory.WithBaseURL(cfg.Memory.BaseURL))
		}
		var err error
		memClient, err = memory.NewClient(memOpts...)
		if err != nil {
			slog.Error("Failed to initialize memory client, continuing without it", "error", err)
			memClient = nil
		} else {
			apiOpts = append(apiOpts, api.WithMemoryService(memClient))
		}
	} else {
		slog.Warn("No semantic memory API key configured, memory endpoints degraded")
	}

	if cfg.OpenAI.APIKey != "" {
		genaiOpts := []genai.Option{genai.WithAPIKey(cfg.OpenAI.APIKey)}
		if cfg.OpenAI.Model != "" {
			genaiOpts = append(genaiOpts, genai.WithModel(cfg.OpenAI.Model))
		}
		gen, err := genai.NewClient(genaiOpts...)
		if err != nil {
			slog.Error("Failed to initialize GenAI client, chat disabled", "error", err)
		} else if memClient != nil {
			timeout := time.Duration(cfg.Memory.ChatTimeoutSeconds) * time.Second
			apiOpts = append(apiOpts, api.WithChatResponder(memory.NewChatPipeline(memClient, gen, timeout)))
		} else {
			slog.Warn("Chat requires the semantic memory client, chat disabled")
		}
	} else {
		slog.Warn("No OpenAI API key configured, chat disabled")
	}

	if cfg.Voice.APIKey != "" {
		voiceOpts := []voice.Option{voice.WithAPIKey(cfg.Voice.APIKey)}
		if cfg.Voice.BaseURL != "" {
			voiceOpts = append(voiceOpts, voice.WithBaseURL(cfg.Voice.BaseURL))
		}
		vc, err := voice.NewClient(voiceOpts...)
		if err != nil {
			slog.Error("Failed to initialize voice client, signed URLs disabled", "error", err)
		} else {
			apiOpts = append(apiOpts, api.WithVoiceClient(vc))
		}
	} else {
		slog.Warn("No voice vendor API key configured, signed URLs disabled")
	}

	return apiOpts
}
