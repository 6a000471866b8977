// Package openai implements the ai.Embedder interface against any
// OpenAI-compatible embeddings API (OpenAI, Ollama, LocalAI, vLLM) via
// langchaingo.
package openai
