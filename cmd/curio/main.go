/*
   Copyright 2025 Poiesic Systems

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/curio"
	"github.com/poiesic/curio/ai"
	"github.com/poiesic/curio/embedgen"
	"github.com/poiesic/curio/harvest"
	"github.com/poiesic/curio/storage/badger"
	"github.com/poiesic/curio/throttle"
)

func main() {
	app := &cli.App{
		Name:  "curio",
		Usage: "Artifact catalog enrichment and semantic search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "harvest",
				Usage:  "Fetch catalog pages and fill missing artifact fields",
				Action: harvestCommand,
				Flags: append(databaseFlags(),
					&cli.StringFlag{
						Name:     "source-url",
						Usage:    "Catalog page URL template with one %d verb for the object id",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "cache-dir",
						Usage: "BadgerDB directory for the fetched-document cache (empty disables caching)",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Maximum simultaneous fetches",
						Value: harvest.DefaultConcurrency,
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Cap the worklist size (0 = no cap)",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Report intended changes without writing",
					},
				),
			},
			{
				Name:   "summarize",
				Usage:  "Write embedding summaries for enriched artifacts",
				Action: summarizeCommand,
				Flags: append(databaseFlags(), aiFlags(
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Cap the worklist size (0 = no cap)",
					})...),
			},
			{
				Name:   "embed",
				Usage:  "Generate embeddings for pending artifact summaries",
				Action: embedCommand,
				Flags: append(databaseFlags(), aiFlags(
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Cap the worklist size (0 = no cap)",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per item",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N items",
						Value: 25,
					})...),
			},
			{
				Name:      "search",
				Usage:     "Search artifacts by free-text query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: append(databaseFlags(), aiFlags(
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"k"},
						Usage:   "Maximum results to return",
						Value:   10,
					})...),
			},
		},
	}

	// Interrupts cancel the command context so in-flight runs stop cleanly;
	// already-written rows stay, the next run resumes the remainder.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func databaseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "dsn",
			Aliases:  []string{"d"},
			Usage:    "PostgreSQL connection string",
			EnvVars:  []string{"CURIO_DATABASE_URL"},
			Required: true,
		},
	}
}

func aiFlags(extra ...cli.Flag) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "ai-host",
			Usage: "OpenAI-compatible service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:  "generator-model",
			Usage: "Text-generation model name",
			Value: "qwen2.5:3b",
		},
		&cli.IntFlag{
			Name:  "dimensions",
			Usage: "Embedding dimensionality (must match the stored vectors)",
			Value: 768,
		},
		&cli.StringFlag{
			Name:    "ai-token",
			Usage:   "API token for the AI service",
			EnvVars: []string{"CURIO_AI_TOKEN"},
		},
	}
	return append(flags, extra...)
}

func aiConfigFromFlags(c *cli.Context) *ai.Config {
	return ai.NewConfig(
		ai.WithHost(c.String("ai-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithGeneratorModel(c.String("generator-model")),
		ai.WithEmbeddingDimensions(c.Int("dimensions")),
		ai.WithToken(c.String("ai-token")),
	)
}

func openCatalog(c *cli.Context) (*curio.Catalog, error) {
	config := aiConfigFromFlags(c)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	return curio.NewCatalog(c.Context, c.String("dsn"), curio.WithAIConfig(config))
}

func harvestCommand(c *cli.Context) error {
	ctx := c.Context

	catalog, err := curio.NewCatalog(ctx, c.String("dsn"))
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer catalog.Close()

	var fetcher harvest.Fetcher = harvest.NewHTTPFetcher(c.String("source-url"))
	if cacheDir := c.String("cache-dir"); cacheDir != "" {
		cache, err := badger.OpenDocumentCache(cacheDir, false, badger.DefaultTTL)
		if err != nil {
			return fmt.Errorf("failed to open document cache: %w", err)
		}
		defer cache.Close()
		fetcher = harvest.NewCachingFetcher(fetcher, cache)
	}

	harvester := catalog.NewHarvester(fetcher,
		harvest.WithConcurrency(c.Int("concurrency")),
		harvest.WithDryRun(c.Bool("dry-run")))

	stats, err := harvester.Run(ctx, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("harvest failed: %w", err)
	}

	fmt.Printf("Processed: %d\nUpdated:   %d\nSkipped:   %d\nErrored:   %d\n",
		stats.Processed.Load(), stats.Updated.Load(),
		stats.Skipped.Load(), stats.Errored.Load())
	return nil
}

func summarizeCommand(c *cli.Context) error {
	catalog, err := openCatalog(c)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer catalog.Close()

	stats, err := catalog.NewSummaryWriter().Run(c.Context, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("summary run failed: %w", err)
	}

	fmt.Printf("Processed: %d\nSucceeded: %d\nFailed:    %d\n",
		stats.Processed, stats.Succeeded, stats.Failed)
	return nil
}

func embedCommand(c *cli.Context) error {
	catalog, err := openCatalog(c)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer catalog.Close()

	config := &embedgen.Config{
		MaxRetries: c.Int("max-retries"),
		Backoff: throttle.Backoff{
			Base: c.Duration("retry-delay"),
			Max:  30 * time.Second,
		},
		ReportInterval: c.Int("report-interval"),
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	generator := catalog.NewGenerator(config, os.Stderr)
	stats, err := generator.Run(c.Context, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("embedding run failed: %w", err)
	}

	fmt.Printf("Processed: %d\nSucceeded: %d\nFailed:    %d\n",
		stats.Processed, stats.Succeeded, stats.Failed)
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a query argument is required")
	}

	catalog, err := openCatalog(c)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer catalog.Close()

	searcher, err := catalog.NewSearcher()
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	resp, err := searcher.Search(c.Context, query, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Printf("Query: %s\n\n", resp.CleanedQuery)
	if len(resp.Results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, result := range resp.Results {
		title := result.Artifact.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%2d. [%.3f] %s (object %d)\n", i+1, result.Similarity, title, result.Artifact.ObjectID)
		if result.Artifact.Artist != "" {
			fmt.Printf("      %s", result.Artifact.Artist)
			if result.Artifact.Date != "" {
				fmt.Printf(", %s", result.Artifact.Date)
			}
			fmt.Println()
		}
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
