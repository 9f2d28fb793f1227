package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	backend "github.com/redis/go-redis/v9"

	"github.com/mkwei/parlor/backend/internal/cache"
	"github.com/mkwei/parlor/backend/internal/checkpoint"
	"github.com/mkwei/parlor/backend/internal/config"
	"github.com/mkwei/parlor/backend/internal/handler"
	"github.com/mkwei/parlor/backend/internal/metrics"
	"github.com/mkwei/parlor/backend/internal/model/persona"
	"github.com/mkwei/parlor/backend/internal/service/ai"
	"github.com/mkwei/parlor/backend/internal/service/conversation"
	"github.com/mkwei/parlor/backend/internal/service/transcript"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	personaStore := persona.NewMemoryStore(persona.Seed())
	m := metrics.New()

	// Durable stores: Redis when configured, in-memory otherwise.
	var transcripts transcript.Store
	var checkpoints checkpoint.Store
	if cfg.Redis.Enabled() {
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to reach redis at %s: %v", cfg.Redis.Addr, err)
		}
		transcripts = transcript.NewRedisStore(client, "parlor:")
		checkpoints = checkpoint.NewRedisStore(client)
		log.Printf("using redis stores at %s", cfg.Redis.Addr)
	} else {
		transcripts = transcript.NewMemoryStore()
		checkpoints = checkpoint.NewMemoryStore()
		log.Println("REDIS_ADDR not set, using in-memory stores")
	}

	var conversations *conversation.Service
	if cfg.AI.Enabled() {
		factory := func(ctx context.Context, _ persona.Persona, modelID string, temperature float64) (einomodel.ChatModel, error) {
			return cfg.AI.NewChatModel(ctx, modelID, temperature, nil)
		}
		defaults := ai.Defaults{ModelID: cfg.AI.DefaultModel, Temperature: cfg.AI.DefaultTemperature}

		models := ai.NewModels(personaStore, factory, defaults,
			cache.New[string, *ai.Binding](cfg.Cache.MaxPersonas, cfg.Cache.TTL), m)
		agents := ai.NewAgents(personaStore, models, checkpoints,
			cache.New[string, *ai.Agent](cfg.Cache.MaxPersonas, cfg.Cache.TTL), cfg.AI.HistoryLimit, m)

		conversations = conversation.NewService(transcripts, agents, m)
		log.Println("conversation service initialized")
	} else {
		log.Println("ark credentials not configured, streaming endpoints disabled")
	}

	router := handler.NewRouter(personaStore, transcripts, conversations, m)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("parlor backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
