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


// Package ai provides abstractions for the AI services used in curio.
//
// This package defines interfaces for the two external AI operations the
// pipeline depends on: text embeddings and text generation. It follows the
// dependency inversion principle, allowing the enrichment and search
// components to depend on abstractions rather than concrete providers.
//
// # Design Principles
//
// The package is designed around three key interfaces:
//
//   - Embedder: Generates fixed-dimensionality vector embeddings from text
//   - TextGenerator: Produces text from an instruction and a user message
//   - Provider: Aggregates AI services for convenient initialization
//
// # Implementation Packages
//
// The ai package includes two implementation sub-packages:
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Dimensionality Contract
//
// The similarity ranker requires query vectors and stored vectors to come
// from the same model at the same dimensionality; embedding spaces from
// different models are not comparable. Embedder implementations enforce the
// configured dimensionality and return ErrDimensionMismatch when the
// provider responds with vectors of a different length.
//
// # Usage Example
//
//	config := ai.DefaultConfig()
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "Mexican folk pottery")
//	phrase, err := provider.TextGenerator().GenerateText(ctx, instruction, query)
package ai
