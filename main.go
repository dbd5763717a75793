package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/lh-counsel/server/internal/agent/graph"
	"github.com/lh-counsel/server/internal/agent/graph/nodes"
	"github.com/lh-counsel/server/internal/agent/model"
	"github.com/lh-counsel/server/internal/agent/repo"
	"github.com/lh-counsel/server/internal/core"
	"github.com/lh-counsel/server/internal/handler"
	logx "github.com/lh-counsel/server/pkg/logger"
	pkgpostgres "github.com/lh-counsel/server/pkg/postgres"
	pkgredis "github.com/lh-counsel/server/pkg/redis"
	pkgsqlite "github.com/lh-counsel/server/pkg/sqlite"
)

var Version = "dev"

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host           string  `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port           int     `envconfig:"SERVER_PORT" default:"8080"`
	GinMode        string  `envconfig:"GIN_MODE"`
	AllowedOrigins string  `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	RateLimit      float64 `envconfig:"SERVER_RATE_LIMIT" default:"20"`
	RateBurst      int     `envconfig:"SERVER_RATE_BURST" default:"40"`
}

// AppConfig defines all configurable parameters of the counselling server,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis          pkgredis.Config
	HousingDB      pkgsqlite.Config   `split_words:"true"`
	LoanDB         pkgsqlite.Config   `split_words:"true"`
	VectorDatabase pkgpostgres.Config `split_words:"true"`
	Server         ServerConfig

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	RouterModel  model.RouterModelConfig
	ChatModel    model.ChatModelConfig
	Embedding    model.EmbeddingConfig
	Router       model.RouterConfig
	Dialog       model.DialogConfig
	RAG          model.RAGConfig
	NoticeAPI    model.NoticeAPIConfig
	Conversation model.ConversationConfig
}

func main() {
	ctx := context.Background()
	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load structured config from env
	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	env := core.ParseEnvironment(envCfg.Env)
	logx.Init(logx.LoggerOpts{
		Environment: env,
		Service:     "lh-counsel",
		Level:       envCfg.LogLevel,
	})

	ttl, err := time.ParseDuration(envCfg.Conversation.TTL)
	if err != nil {
		logx.Fatal().Err(err).Str("value", envCfg.Conversation.TTL).Msg("Invalid CONVERSATION_TTL")
	}

	rdb, err := envCfg.Redis.New(ctx)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
	}
	defer rdb.Close()
	logx.Info().Msg("Connected to Redis")

	housingDB, err := envCfg.HousingDB.Open()
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to open housing database")
	}
	defer housingDB.Close()

	loanDB, err := envCfg.LoanDB.Open()
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to open loan database")
	}
	defer loanDB.Close()

	if !envCfg.VectorDatabase.Enabled() {
		logx.Fatal().Msg("VECTOR_DATABASE_URL is required for notice retrieval")
	}
	vectorDB, err := envCfg.VectorDatabase.New(ctx)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to connect to vector database")
	}
	defer vectorDB.Close()
	logx.Info().Msg("Connected to SQL stores")

	client, err := nodes.NewGenAIClient(ctx, envCfg.APIKey, envCfg.BaseURL)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	embedder, err := repo.NewGeminiEmbedder(client, envCfg.Embedding)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create embedder")
	}

	notices, err := repo.NewNoticeClient(envCfg.NoticeAPI)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create notice client")
	}

	housingRepo := repo.NewHousingRepository(housingDB)
	runner, err := graph.BuildTurnGraph(ctx, graph.Config{
		Client:       client,
		RouterModel:  envCfg.RouterModel,
		ChatModel:    envCfg.ChatModel,
		Router:       envCfg.Router,
		Dialog:       envCfg.Dialog,
		RAG:          envCfg.RAG,
		Conversation: envCfg.Conversation,
		Eligibility:  housingRepo,
		Regions:      housingRepo,
		Notices:      notices,
		Pricer:       repo.NewLoanRepository(loanDB),
		Retriever:    repo.NewNoticeRetriever(vectorDB, embedder),
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build graph")
	}

	chatHandler := handler.NewChatHandler(runner, repo.NewRedisStateRepository(rdb, ttl))

	if envCfg.Server.GinMode == "" {
		envCfg.Server.GinMode = env.GinMode()
	}
	gin.SetMode(envCfg.Server.GinMode)
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	if origins := splitOrigins(envCfg.Server.AllowedOrigins); len(origins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "lh-counsel",
			"version": Version,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := router.Group("/api/v1")
	apiV1.Use(handler.RateLimit(rate.NewLimiter(rate.Limit(envCfg.Server.RateLimit), envCfg.Server.RateBurst)))
	{
		apiV1.POST("/chat", chatHandler.Turn)
		apiV1.DELETE("/chat/:id", chatHandler.Reset)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", envCfg.Server.Host, envCfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logx.Info().Str("addr", srv.Addr).Str("version", Version).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logx.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("Server forced to shutdown")
	}
	logx.Info().Msg("Server stopped")
}

// splitOrigins parses a comma separated origin list; nil means any origin.
func splitOrigins(v string) []string {
	var out []string
	for _, o := range strings.Split(v, ",") {
		o = strings.TrimSpace(o)
		if o == "*" {
			return nil
		}
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
