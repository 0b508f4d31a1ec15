package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/curio/ai"
)

const rewriteInstruction = `You rewrite museum catalog search queries. ` +
	`Strip filler words and keep terms that identify artworks: cultures, ` +
	`periods, materials, techniques, subjects, artist names. If the query is ` +
	`a single broad category such as a culture or era name, expand it into a ` +
	`short phrase combining that category with generic art vocabulary ` +
	`(for example "mexican" becomes "mexican art mural folk"). ` +
	`Respond with the rewritten phrase only.`

// QueryProcessor rewrites free-text queries into phrases that embed well.
// A provider failure degrades to the raw query so ranking still proceeds.
type QueryProcessor struct {
	generator ai.TextGenerator
	logger    *slog.Logger
}

// NewQueryProcessor creates a query processor.
func NewQueryProcessor(generator ai.TextGenerator) *QueryProcessor {
	return &QueryProcessor{
		generator: generator,
		logger:    slog.Default().With("component", "query-processor"),
	}
}

// Process returns the cleaned query phrase. On provider failure or an
// unusable response it falls back to the raw query unmodified.
func (p *QueryProcessor) Process(ctx context.Context, query string) string {
	rewritten, err := p.generator.GenerateText(ctx, rewriteInstruction, query)
	if err != nil {
		p.logger.Warn("query rewrite failed, using raw query", "error", err)
		return query
	}

	cleaned := cleanModelOutput(rewritten)
	if cleaned == "" {
		p.logger.Warn("query rewrite produced nothing, using raw query")
		return query
	}
	return cleaned
}

// cleanModelOutput strips quoting, code fences and label prefixes that
// models wrap around short answers.
func cleanModelOutput(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.Trim(s, "\"'`")
	s = strings.TrimSpace(s)

	for _, prefix := range []string{"rewritten phrase:", "rewritten query:", "query:", "phrase:"} {
		if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}

	// A multi-line answer means the model ignored the instruction; keep the
	// first line, which is usually the phrase.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}
