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

package curio

import (
	"context"
	"io"
	"log/slog"

	"github.com/poiesic/curio/ai"
	"github.com/poiesic/curio/ai/openai"
	"github.com/poiesic/curio/embedgen"
	"github.com/poiesic/curio/harvest"
	"github.com/poiesic/curio/search"
	"github.com/poiesic/curio/storage"
	"github.com/poiesic/curio/storage/postgres"
)

// Catalog wires the artifact repository and AI provider together and hands
// out the pipeline components built on them.
type Catalog struct {
	repo     storage.ArtifactRepository
	provider ai.Provider
	logger   *slog.Logger
}

// CatalogOption configures a Catalog.
type CatalogOption func(*catalogOptions)

type catalogOptions struct {
	aiConfig *ai.Config
}

// WithAIConfig overrides the default AI provider configuration.
func WithAIConfig(config *ai.Config) CatalogOption {
	return func(o *catalogOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// NewCatalog connects to PostgreSQL with the given DSN and initializes the
// AI provider.
func NewCatalog(ctx context.Context, dsn string, opts ...CatalogOption) (*Catalog, error) {
	options := &catalogOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	repo, err := postgres.NewRepository(ctx, dsn)
	if err != nil {
		return nil, err
	}

	provider, err := openai.NewProvider(options.aiConfig)
	if err != nil {
		repo.Close()
		return nil, err
	}

	return &Catalog{
		repo:     repo,
		provider: provider,
		logger:   slog.Default(),
	}, nil
}

// Close releases the AI provider and the repository.
func (c *Catalog) Close() error {
	if err := c.provider.Close(); err != nil {
		c.logger.Error("error closing AI provider", "err", err)
	}
	if err := c.repo.Close(); err != nil {
		c.logger.Error("error closing repository", "err", err)
		return err
	}
	return nil
}

// Repository returns the artifact repository.
func (c *Catalog) Repository() storage.ArtifactRepository {
	return c.repo
}

// NewHarvester creates a harvester that fetches catalog pages through the
// given fetcher.
func (c *Catalog) NewHarvester(fetcher harvest.Fetcher, opts ...harvest.Option) *harvest.Harvester {
	return harvest.NewHarvester(c.repo, fetcher, opts...)
}

// NewSummaryWriter creates a summary writer over the catalog's repository
// and text generator.
func (c *Catalog) NewSummaryWriter() *embedgen.SummaryWriter {
	return embedgen.NewSummaryWriter(c.repo, c.provider.TextGenerator())
}

// NewGenerator creates an embedding generator.
// progress is where periodic progress output is written.
func (c *Catalog) NewGenerator(config *embedgen.Config, progress io.Writer) *embedgen.Generator {
	return embedgen.NewGenerator(c.repo, c.provider.Embedder(), config, progress)
}

// NewSearcher creates a searcher bound to the catalog's repository and
// provider.
func (c *Catalog) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(c.repo, c.provider, opts...)
}
