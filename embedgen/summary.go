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

package embedgen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/curio/ai"
	"github.com/poiesic/curio/core"
	"github.com/poiesic/curio/storage"
)

// maxPromptDescription truncates very long descriptions before they reach
// the generation prompt.
const maxPromptDescription = 300

const summaryInstruction = `You are an art historian and museum curator. ` +
	`Write exactly 2-3 sentences summarizing the artifact described below. ` +
	`Include style, technique, period characteristics or cultural meaning when ` +
	`the information supports it. Use accessible museum-quality language. ` +
	`Respond with the summary only.`

// SummaryWriter derives embedding summaries for artifacts that have
// enrichment text but no summary yet.
type SummaryWriter struct {
	repo      storage.ArtifactRepository
	generator ai.TextGenerator
	logger    *slog.Logger
}

// NewSummaryWriter creates a summary writer.
func NewSummaryWriter(repo storage.ArtifactRepository, generator ai.TextGenerator) *SummaryWriter {
	return &SummaryWriter{
		repo:      repo,
		generator: generator,
		logger:    slog.Default().With("component", "summary-writer"),
	}
}

// SummaryStats aggregates the outcome counts of one summary run.
type SummaryStats struct {
	Processed int
	Succeeded int
	Failed    int
}

// Run writes summaries for up to limit artifacts (limit <= 0 means the whole
// worklist). Per-item failures are counted and skipped; the item stays
// eligible for the next run.
func (w *SummaryWriter) Run(ctx context.Context, limit int) (*SummaryStats, error) {
	items, err := w.repo.ListNeedingSummary(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting worklist: %w", err)
	}

	stats := &SummaryStats{}
	w.logger.Info("starting summary run", "items", len(items))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Processed++

		summary, err := w.generator.GenerateText(ctx, summaryInstruction, BuildSummaryPrompt(item))
		if err != nil {
			w.logger.Warn("generation failed", "object_id", item.ObjectID, "error", err)
			stats.Failed++
			continue
		}

		summary = cleanSummary(summary)
		if summary == "" {
			stats.Failed++
			continue
		}

		if err := w.repo.SetSummary(ctx, item.ObjectID, summary); err != nil {
			w.logger.Warn("saving summary failed", "object_id", item.ObjectID, "error", err)
			stats.Failed++
			continue
		}
		stats.Succeeded++
	}

	w.logger.Info("summary run complete",
		"processed", stats.Processed, "succeeded", stats.Succeeded, "failed", stats.Failed)
	return stats, nil
}

// BuildSummaryPrompt assembles the generation context from an artifact's
// populated fields. Unpopulated fields are omitted rather than sent as
// placeholders.
func BuildSummaryPrompt(artifact *core.Artifact) string {
	var parts []string
	add := func(label, value string) {
		if value != "" {
			parts = append(parts, label+": "+value)
		}
	}

	add("Title", artifact.Title)
	add("Artist", artifact.Artist)
	add("Date", artifact.Date)
	add("Medium", artifact.Medium)
	add("Culture", artifact.Culture)
	add("Department", artifact.Department)
	add("Credit line", artifact.CreditLine)

	if desc := artifact.Description; desc != "" {
		if len(desc) > maxPromptDescription {
			desc = truncateRunes(desc, maxPromptDescription) + "..."
		}
		parts = append(parts, "Description: "+desc)
	}

	return strings.Join(parts, "\n")
}

// truncateRunes cuts s to at most max bytes without splitting a UTF-8 rune.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// cleanSummary strips label prefixes the model sometimes includes.
func cleanSummary(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 8 && strings.EqualFold(s[:8], "summary:") {
		s = strings.TrimSpace(s[8:])
	}
	return s
}
