package cli

import (
	"fmt"

	"github.com/askdocs/askdocs/engine/auth"
	authpg "github.com/askdocs/askdocs/engine/auth/infra/postgres"
	"github.com/askdocs/askdocs/engine/auth/uc"
	"github.com/askdocs/askdocs/engine/knowledge"
	"github.com/askdocs/askdocs/engine/knowledge/answer"
	"github.com/askdocs/askdocs/engine/knowledge/chunk"
	"github.com/askdocs/askdocs/engine/knowledge/document"
	"github.com/askdocs/askdocs/engine/knowledge/embedder"
	"github.com/askdocs/askdocs/engine/knowledge/generator"
	"github.com/askdocs/askdocs/engine/knowledge/ingest"
	"github.com/askdocs/askdocs/engine/knowledge/retriever"
	"github.com/askdocs/askdocs/engine/knowledge/session"
	"github.com/askdocs/askdocs/engine/knowledge/vectordb"
	"github.com/askdocs/askdocs/pkg/config"
	"github.com/askdocs/askdocs/pkg/logger"
	"github.com/askdocs/askdocs/server"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// ServeCmd starts the HTTP API.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the askdocs HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	logLevel, logJSON, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.SetupLogger(logLevel, logJSON)
	ctx := logger.ContextWithLogger(cmd.Context(), log)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	if err := authpg.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	if err := document.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	if err := session.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	keyRepo := authpg.NewRepository(pool)
	bootstrap := uc.NewBootstrap(keyRepo, cfg.Auth.KeyPrefix, cfg.Auth.BcryptCost)
	plaintext, created, err := bootstrap.Execute(ctx)
	if err != nil {
		return fmt.Errorf("bootstrapping credential store: %w", err)
	}
	if created {
		// Shown exactly once, on the first ever startup. Store it somewhere
		// safe; it cannot be recovered.
		log.Warn("initial superadmin API key created", "api_key", plaintext)
	}

	store, err := vectordb.NewPGStore(ctx, &vectordb.Config{
		Pool:        pool,
		Dimension:   cfg.Embedder.Dimension,
		EnsureIndex: true,
	})
	if err != nil {
		return err
	}

	emb, err := embedder.New(&embedder.Config{
		Provider:  embedder.Provider(cfg.Embedder.Provider),
		Model:     cfg.Embedder.Model,
		Dimension: cfg.Embedder.Dimension,
		BatchSize: cfg.Embedder.BatchSize,
		APIKey:    cfg.Embedder.APIKey,
		BaseURL:   cfg.Embedder.BaseURL,
		CacheSize: cfg.Embedder.CacheSize,
	})
	if err != nil {
		return fmt.Errorf("building embedder: %w", err)
	}

	gen, err := generator.New(&generator.Config{
		Provider:   generator.Provider(cfg.Generator.Provider),
		Model:      cfg.Generator.Model,
		APIKey:     cfg.Generator.APIKey,
		BaseURL:    cfg.Generator.BaseURL,
		BufferSize: cfg.Generator.BufferSize,
	})
	if err != nil {
		return fmt.Errorf("building generator: %w", err)
	}

	splitter, err := chunk.NewSplitter(chunk.Settings{
		MaxSize:           cfg.Chunking.MaxSize,
		Overlap:           cfg.Chunking.Overlap,
		MinSize:           cfg.Chunking.MinSize,
		BoundaryTolerance: cfg.Chunking.BoundaryTolerance,
	})
	if err != nil {
		return fmt.Errorf("building splitter: %w", err)
	}

	catalog := document.NewPGStore(pool)
	pipeline := ingest.NewPipeline(splitter, emb, store, catalog)
	ret := retriever.New(emb, store, retriever.Options{
		TopK:             cfg.Retrieval.TopK,
		MinScore:         cfg.Retrieval.MinScore,
		MaxContextTokens: cfg.Retrieval.MaxContextTokens,
	})
	knowledgeSvc := knowledge.NewService(pipeline, answer.New(ret, gen), catalog, store, session.NewPGStore(pool))

	srv := server.New(&cfg.Server, server.Deps{
		Knowledge: knowledgeSvc,
		Gate:      auth.NewGate(keyRepo),
		Issue:     uc.NewIssue(keyRepo, cfg.Auth.KeyPrefix, cfg.Auth.BcryptCost),
		List:      uc.NewList(keyRepo),
		Revoke:    uc.NewRevoke(keyRepo),
	}, log)
	return srv.Run(ctx)
}
