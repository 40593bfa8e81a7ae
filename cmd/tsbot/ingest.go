package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nhdandz/TSBot/chunk"
	"github.com/nhdandz/TSBot/config"
	"github.com/nhdandz/TSBot/databases"
	"github.com/nhdandz/TSBot/embedder"
	"github.com/nhdandz/TSBot/rag"
	"github.com/nhdandz/TSBot/router"
	"github.com/nhdandz/TSBot/sqlagent"
)

// IngestCmd indexes the retrieval inputs: legal chunks, few-shot SQL
// examples, and router exemplars.
type IngestCmd struct {
	Chunks      string `help:"Chunk JSON file (overrides paths.chunks)." type:"path"`
	SQLExamples string `name:"sql-examples" help:"Question/SQL pairs JSON file (overrides paths.sql_examples)." type:"path"`
	Routes      string `help:"Router intents JSON file (overrides paths.intents)." type:"path"`
	BatchSize   int    `name:"batch-size" help:"Embedding/upsert batch size." default:"100"`
}

func (c *IngestCmd) Run(cli *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	chunksPath := c.Chunks
	if chunksPath == "" {
		chunksPath = cfg.Paths.Chunks
	}
	examplesPath := c.SQLExamples
	if examplesPath == "" {
		examplesPath = cfg.Paths.SQLExamples
	}
	routesPath := c.Routes
	if routesPath == "" {
		routesPath = cfg.Paths.Intents
	}
	if chunksPath == "" && examplesPath == "" && routesPath == "" {
		return fmt.Errorf("nothing to ingest: set --chunks, --sql-examples or --routes (or the paths section)")
	}

	embed, err := cfg.Embedding.Build()
	if err != nil {
		return err
	}
	vectors, err := databases.NewQdrantStore(cfg.Qdrant)
	if err != nil {
		return fmt.Errorf("connect qdrant: %w", err)
	}
	defer func() { _ = vectors.Close() }()

	retryer := rag.NewRetryer(rag.DefaultRetryConfig())

	if chunksPath != "" {
		if err := ingestChunks(ctx, cfg, embed, vectors, retryer, chunksPath, c.BatchSize); err != nil {
			return err
		}
	}
	if examplesPath != "" {
		if err := ingestSQLExamples(ctx, cfg, embed, vectors, retryer, examplesPath, c.BatchSize); err != nil {
			return err
		}
	}
	if routesPath != "" {
		if err := ingestRoutes(ctx, cfg, embed, vectors, routesPath); err != nil {
			return err
		}
	}
	return nil
}

// ingestChunks embeds every chunk's enriched text and upserts the
// vectors in batches, retrying transient store failures.
func ingestChunks(ctx context.Context, cfg *config.Config, embed embedder.Embedder, vectors databases.VectorStore, retryer *rag.Retryer, path string, batchSize int) error {
	chunks, err := chunk.LoadFile(path)
	if err != nil {
		return err
	}
	store, err := chunk.NewStore(chunks)
	if err != nil {
		return err
	}

	if err := vectors.CreateCollection(ctx, cfg.RAG.Collection, uint64(embed.Dimension())); err != nil {
		return fmt.Errorf("create collection %s: %w", cfg.RAG.Collection, err)
	}

	all := store.All()
	for start := 0; start < len(all); start += batchSize {
		end := min(start+batchSize, len(all))

		texts := make([]string, 0, end-start)
		for _, ch := range all[start:end] {
			texts = append(texts, store.EnrichedText(ch, cfg.RAG.ParentContextLength, 3))
		}
		vecs, err := embed.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunk batch at %d: %w", start, err)
		}

		points := make([]databases.Point, 0, end-start)
		for i, ch := range all[start:end] {
			points = append(points, databases.Point{
				ID:      ch.CanonicalID(),
				Vector:  vecs[i],
				Payload: ch.Payload(),
			})
		}
		err = retryer.Do(ctx, "upsert chunks", func() error {
			return vectors.Upsert(ctx, cfg.RAG.Collection, points)
		})
		if err != nil {
			return err
		}
		slog.Info("Indexed chunk batch", "from", start, "to", end)
	}
	slog.Info("Chunk ingestion complete", "collection", cfg.RAG.Collection, "chunks", len(all))
	return nil
}

// ingestSQLExamples indexes question/SQL pairs for few-shot retrieval.
// The file is a JSON array of {question, sql} objects.
func ingestSQLExamples(ctx context.Context, cfg *config.Config, embed embedder.Embedder, vectors databases.VectorStore, retryer *rag.Retryer, path string, batchSize int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read sql examples: %w", err)
	}
	var examples []sqlagent.Example
	if err := json.Unmarshal(data, &examples); err != nil {
		return fmt.Errorf("parse sql examples: %w", err)
	}
	if len(examples) == 0 {
		return fmt.Errorf("no sql examples in %s", path)
	}

	if err := vectors.CreateCollection(ctx, cfg.SQLAgent.Collection, uint64(embed.Dimension())); err != nil {
		return fmt.Errorf("create collection %s: %w", cfg.SQLAgent.Collection, err)
	}

	for start := 0; start < len(examples); start += batchSize {
		end := min(start+batchSize, len(examples))

		texts := make([]string, 0, end-start)
		for _, ex := range examples[start:end] {
			texts = append(texts, ex.Question)
		}
		vecs, err := embed.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed sql examples at %d: %w", start, err)
		}

		points := make([]databases.Point, 0, end-start)
		for i, ex := range examples[start:end] {
			points = append(points, databases.Point{
				ID:     fmt.Sprintf("sql-example-%d", start+i),
				Vector: vecs[i],
				Payload: map[string]any{
					"question": ex.Question,
					"sql":      ex.SQL,
				},
			})
		}
		err = retryer.Do(ctx, "upsert sql examples", func() error {
			return vectors.Upsert(ctx, cfg.SQLAgent.Collection, points)
		})
		if err != nil {
			return err
		}
	}
	slog.Info("SQL example ingestion complete", "collection", cfg.SQLAgent.Collection, "examples", len(examples))
	return nil
}

// ingestRoutes embeds the router exemplars and mirrors them into the
// intents collection.
func ingestRoutes(ctx context.Context, cfg *config.Config, embed embedder.Embedder, vectors databases.VectorStore, path string) error {
	routes, err := router.LoadRoutesFile(path)
	if err != nil {
		return err
	}
	if routes == nil {
		slog.Warn("Intents file missing, indexing default routes", "path", path)
	}

	rcfg := cfg.Router.ToRouter()
	rcfg.MirrorToDB = true
	if err := router.New(routes, embed, vectors, rcfg).Initialize(ctx); err != nil {
		return fmt.Errorf("index routes: %w", err)
	}
	slog.Info("Route ingestion complete")
	return nil
}
