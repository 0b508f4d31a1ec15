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


package core

import (
	"fmt"
	"time"
)

// ValidateArtifact validates an Artifact according to domain rules.
//
// Validation rules:
//   - ObjectID must be positive
//   - Embedding may only be set when EmbeddingSummary is set (the embedding
//     always derives from a summary that was persisted first)
//   - ProcessedAt must not be in the future
//
// NOT validated (populated by the pipeline):
//   - enrichment fields (empty until the harvester runs)
//   - EmbeddingSummary (empty until the summary writer runs)
func ValidateArtifact(artifact *Artifact) error {
	if artifact == nil {
		return fmt.Errorf("%w: artifact is nil", ErrInvalidArtifact)
	}

	if artifact.ObjectID <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidArtifact, ErrInvalidObjectID)
	}

	if len(artifact.Embedding) > 0 && artifact.EmbeddingSummary == "" {
		return fmt.Errorf("%w: %w", ErrInvalidArtifact, ErrEmbeddingWithoutSummary)
	}

	if artifact.ProcessedAt != nil && !IsValidTimestamp(*artifact.ProcessedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidArtifact, ErrInvalidTimestamp)
	}

	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
