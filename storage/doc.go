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


// Package storage provides the storage abstraction layer for curio.
//
// This package defines repository interfaces that decouple storage
// implementation from the pipeline. The artifact table lives in PostgreSQL
// with a pgvector column (storage/postgres); an in-memory implementation
// (storage/memory) backs tests; the fetched-document cache is BadgerDB
// (storage/badger).
//
// # Constructor Return Type Pattern
//
// Public constructors return interface types to enforce abstraction and
// enable multiple backends:
//
//	repo, err := postgres.NewRepository(ctx, dsn)  // returns storage.ArtifactRepository
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support concurrent
// access from multiple goroutines. The harvester relies on this: merges are
// per-row and commutative, so no cross-item ordering is required.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation and timeout
// support.
package storage
