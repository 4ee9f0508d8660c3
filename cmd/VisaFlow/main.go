// VisaFlow is a conversational visa application assistant. It chats with
// applicants, matches them to the right visa form, and walks them through
// filling it field by field.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/OpenVisa/VisaFlow/internal/api"
	"github.com/OpenVisa/VisaFlow/internal/flow"
	"github.com/OpenVisa/VisaFlow/internal/genai"
	"github.com/OpenVisa/VisaFlow/internal/store"
	"github.com/OpenVisa/VisaFlow/internal/util"
	"github.com/joho/godotenv"
	"github.com/openai/openai-go"
)

// Default configuration constants
const (
	// DefaultAITimeoutSeconds bounds each reasoning call.
	DefaultAITimeoutSeconds = 30
)

func main() {
	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Initialize structured logger
	initializeLogger(*flags.debug)

	if *flags.openaiKey == "" {
		slog.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}

	// Build module options
	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	flowOpts := buildFlowOptions(flags)
	apiOpts := buildAPIOptions(flags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping VisaFlow with configured modules",
		"addr", *flags.apiAddr, "backend", backendName(*flags.dbDSN), "model", *flags.model)
	if err := api.Run(ctx, storeOpts, genaiOpts, flowOpts, apiOpts); err != nil {
		slog.Error("VisaFlow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("VisaFlow exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseDSN      string
	OpenAIKey        string
	OpenAIModel      string
	APIAddr          string
	AITimeoutSeconds int
	MinUserTurns     int
	Debug            bool
}

// Flags holds command line flag values
type Flags struct {
	dbDSN     *string
	openaiKey *string
	model     *string
	apiAddr   *string
	aiTimeout *int
	minTurns  *int
	debug     *bool
}

// initializeLogger sets up structured logging at the configured level.
func initializeLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseDSN:      os.Getenv("DATABASE_DSN"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      os.Getenv("OPENAI_MODEL"),
		APIAddr:          os.Getenv("API_ADDR"),
		AITimeoutSeconds: util.ParseIntEnv("AI_TIMEOUT_SECONDS", DefaultAITimeoutSeconds),
		MinUserTurns:     util.ParseIntEnv("MIN_USER_TURNS", flow.MinUserTurnsForMatching),
		Debug:            util.ParseBoolEnv("VISAFLOW_DEBUG", false),
	}

	// Legacy DATABASE_URL support.
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = os.Getenv("DATABASE_URL")
	}
	if config.OpenAIModel == "" {
		config.OpenAIModel = string(genai.DefaultModel)
	}
	if config.APIAddr == "" {
		config.APIAddr = api.DefaultAddr
		slog.Debug("No API_ADDR set, using default", "default_addr", config.APIAddr)
	}
	return config
}

// parseCommandLineFlags parses command line flags with environment defaults.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		dbDSN:     flag.String("db", config.DatabaseDSN, "database DSN (SQLite path or postgres:// URL; empty for in-memory)"),
		openaiKey: flag.String("openai-key", config.OpenAIKey, "OpenAI API key"),
		model:     flag.String("model", config.OpenAIModel, "OpenAI chat model name"),
		apiAddr:   flag.String("addr", config.APIAddr, "HTTP listen address"),
		aiTimeout: flag.Int("ai-timeout", config.AITimeoutSeconds, "per-call AI timeout in seconds"),
		minTurns:  flag.Int("min-turns", config.MinUserTurns, "user turns collected before form matching starts"),
		debug:     flag.Bool("debug", config.Debug, "enable debug logging"),
	}
	flag.Parse()
	return flags
}

// buildStoreOptions builds store module options from flags.
func buildStoreOptions(flags Flags) []store.Option {
	var opts []store.Option
	if *flags.dbDSN != "" {
		opts = append(opts, store.WithDSN(*flags.dbDSN))
	}
	return opts
}

// buildGenAIOptions builds GenAI module options from flags.
func buildGenAIOptions(flags Flags) []genai.Option {
	return []genai.Option{
		genai.WithAPIKey(*flags.openaiKey),
		genai.WithModel(openai.ChatModel(*flags.model)),
		genai.WithTimeout(time.Duration(*flags.aiTimeout) * time.Second),
	}
}

// buildFlowOptions builds conversation flow options from flags.
func buildFlowOptions(flags Flags) []flow.Option {
	return []flow.Option{flow.WithMinUserTurns(*flags.minTurns)}
}

// buildAPIOptions builds API module options from flags.
func buildAPIOptions(flags Flags) []api.Option {
	return []api.Option{api.WithAddr(*flags.apiAddr)}
}

func backendName(dsn string) string {
	switch {
	case dsn == "":
		return "memory"
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres"
	default:
		return "sqlite"
	}
}
