package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/rfp-ai/server/config"
	"github.com/rfp-ai/server/internal/agents"
	"github.com/rfp-ai/server/internal/chat"
	"github.com/rfp-ai/server/internal/chunker"
	"github.com/rfp-ai/server/internal/extract"
	"github.com/rfp-ai/server/internal/index"
	idxmemory "github.com/rfp-ai/server/internal/index/memory"
	idxpgvector "github.com/rfp-ai/server/internal/index/pgvector"
	"github.com/rfp-ai/server/internal/llm/ollama"
	"github.com/rfp-ai/server/internal/pipeline"
	"github.com/rfp-ai/server/internal/server"
	"github.com/rfp-ai/server/internal/store"
	stmemory "github.com/rfp-ai/server/internal/store/memory"
	stpostgres "github.com/rfp-ai/server/internal/store/postgres"
)

func main() {
	var (
		configPath  = flag.String("config", "config.yaml", "Path to configuration file")
		migrateFlag = flag.Bool("migrate", false, "Run database migrations and exit")
		devFlag     = flag.Bool("dev", false, "Development logging")
	)
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(*devFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *migrateFlag {
		if err := runMigrations(cfg.Database.ConnectionString, log); err != nil {
			log.Fatal("migrations failed", zap.Error(err))
		}
		log.Info("migrations completed")
		return
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, log *zap.Logger) error {
	embedClient := ollama.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.ChatModel, cfg.Ollama.EmbedModel)

	var (
		docStore store.DocumentStore
		idx      index.Index
	)
	if cfg.Database.ConnectionString != "" {
		pg, err := stpostgres.New(cfg.Database.ConnectionString)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pg.Close()
		docStore = pg
		idx = idxpgvector.New(pg.Pool(), embedClient, cfg.Processing.EmbedConcurrency, cfg.Processing.MaxRetries)
		log.Info("using postgres document store")
	} else {
		docStore = stmemory.NewDocumentStore()
		idx = idxmemory.New(embedClient, cfg.Processing.EmbedConcurrency, cfg.Processing.MaxRetries)
		log.Info("no database configured, using in-memory store")
	}

	ch, err := chunker.New(cfg.Processing.ChunkSize, cfg.Processing.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("invalid chunking config: %w", err)
	}

	roster := agents.FilterRoster(agents.DefaultRoster(), cfg.Agents.Passes)
	orch := agents.NewOrchestrator(embedClient, idx, roster, agents.Options{
		TopK:        cfg.Processing.TopK,
		Concurrency: cfg.Processing.AgentConcurrency,
		MaxRetries:  cfg.Processing.MaxRetries,
	}, log)

	coord := pipeline.NewCoordinator(docStore, idx, extract.NewExtractor(), ch, orch, log)
	chatEngine := chat.NewEngine(idx, embedClient, cfg.Processing.TopK, log)

	srv := server.New(docStore, coord, chatEngine, cfg.Server.CORSOrigins, log)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

// runMigrations applies the SQL files under migrations/ in order.
func runMigrations(connString string, log *zap.Logger) error {
	if connString == "" {
		return fmt.Errorf("DATABASE_URL or database.connection_string must be set")
	}
	pg, err := stpostgres.New(connString)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pg.Close()

	entries, err := os.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || len(name) < 7 || name[len(name)-7:] != ".up.sql" {
			continue
		}
		sql, err := os.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := pg.Pool().Exec(context.Background(), string(sql)); err != nil {
			return fmt.Errorf("migration %s failed: %w", name, err)
		}
		log.Info("applied migration", zap.String("file", name))
	}
	return nil
}
