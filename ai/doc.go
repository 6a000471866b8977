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


// Package ai defines the embedding abstraction used by the ingestion
// pipeline and search.
//
// The core depends only on the Embedder interface; concrete backends live
// in sub-packages and are selected once at construction time from a
// Config with a Provider enum:
//
//   - ai/openai: production implementation for OpenAI-compatible APIs
//   - ai/mock: deterministic test double requiring no external service
//
// Public constructors return the Embedder interface to prevent coupling
// to a concrete backend; the mock constructor returns its concrete type
// so tests can inject behavior and assert call counts.
package ai
