package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/vbonduro/domeok/internal/auth"
	"github.com/vbonduro/domeok/internal/completion"
	"github.com/vbonduro/domeok/internal/completion/claude"
	"github.com/vbonduro/domeok/internal/completion/ollama"
	"github.com/vbonduro/domeok/internal/completion/openai"
	"github.com/vbonduro/domeok/internal/config"
	"github.com/vbonduro/domeok/internal/db"
	"github.com/vbonduro/domeok/internal/imagesearch"
	"github.com/vbonduro/domeok/internal/logging"
	"github.com/vbonduro/domeok/internal/ocr/clova"
	"github.com/vbonduro/domeok/internal/ratelimit"
	"github.com/vbonduro/domeok/internal/service"
	"github.com/vbonduro/domeok/internal/store"
	"github.com/vbonduro/domeok/internal/web"
)

func main() {
	// A missing .env is normal in containers; the environment wins either way.
	_ = godotenv.Load()
	cfg := config.Load()

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		cleanup()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	verifier, err := auth.NewVerifier(cfg.JWTSecretKey)
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return err
	}
	rdb := redis.NewClient(redisOpts)
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("failed to close redis client", "error", err)
		}
	}()

	ingredients := store.NewIngredientStore(database)

	assistant := service.NewAssistantService(
		ingredients,
		ratelimit.NewLimiter(rdb, logger),
		newCompleter(cfg, logger),
		clova.NewClient(cfg.OCRAPIURL, cfg.OCRSecretKey),
		imagesearch.NewUnsplashClient(cfg.UnsplashAccessKey, logger),
		service.Limits{Recipe: cfg.RecipeDailyLimit, Receipt: cfg.ReceiptDailyLimit},
		logger,
	)
	pantry := service.NewPantryService(ingredients, logger)
	server := web.NewServer(assistant, pantry, verifier, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.ListenAndServe(ctx, cfg.ListenAddr)
}

// newCompleter picks the completion backend. Missing credentials are not
// fatal: the client reports ServiceUnavailable on each call instead.
func newCompleter(cfg *config.Config, logger *slog.Logger) completion.Completer {
	switch cfg.CompletionBackend {
	case "claude":
		if cfg.ClaudeAPIKey == "" {
			logger.Warn("CLAUDE_API_KEY is empty; completion requests will fail")
		}
		logger.Info("using Claude completion backend", "model", cfg.ClaudeModel)
		return claude.NewClient(cfg.ClaudeAPIKey, cfg.ClaudeModel)
	case "ollama":
		logger.Info("using Ollama completion backend", "host", cfg.OllamaHost, "model", cfg.OllamaModel)
		return ollama.NewClient(cfg.OllamaHost, cfg.OllamaModel)
	default:
		if cfg.OpenAIAPIKey == "" {
			logger.Warn("OPENAI_API_KEY is empty; completion requests will fail")
		}
		logger.Info("using OpenAI completion backend", "model", cfg.OpenAIModel)
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	}
}
