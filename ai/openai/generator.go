// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/poiesic/curio/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// TextGenerator implements ai.TextGenerator using OpenAI-compatible chat APIs.
type TextGenerator struct {
	client llms.Model
	logger *slog.Logger
}

// newTextGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newTextGenerator(config *ai.Config) (*TextGenerator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GeneratorHost),
		openai.WithToken(config.Token),
		openai.WithModel(config.GeneratorModel),
		openai.WithHTTPClient(&http.Client{Timeout: config.RequestTimeout}),
	)
	if err != nil {
		return nil, err
	}

	return &TextGenerator{
		client: client,
		logger: slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewTextGenerator creates a new text generator using the provided configuration.
//
// Returns ai.TextGenerator interface to enforce abstraction.
func NewTextGenerator(config *ai.Config) (ai.TextGenerator, error) {
	return newTextGenerator(config)
}

// GenerateText sends the instruction and message to the chat API and returns
// the generated text. Temperature is pinned low so repeated runs over the
// same inputs stay close to deterministic.
func (g *TextGenerator) GenerateText(ctx context.Context, instruction, message string) (string, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(instruction),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(message),
			},
		},
	}

	response, err := g.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		g.logger.Error("failed to generate content", "err", err)
		return "", err
	}

	if len(response.Choices) < 1 {
		g.logger.Debug("no choices returned from model")
		return "", ai.ErrEmptyResponse
	}

	text := strings.TrimSpace(response.Choices[0].Content)
	if text == "" {
		return "", ai.ErrEmptyResponse
	}

	return text, nil
}
