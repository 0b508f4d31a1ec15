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

// Package search provides semantic search over embedded artifact summaries.
//
// A query is first rewritten by a text-generation model into a phrase that
// embeds well, falling back to the raw query when the model is unavailable.
// The phrase is embedded with the same model used at generation time and
// artifacts are ranked by cosine similarity with deterministic tie-breaks.
package search
