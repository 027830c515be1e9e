// Package engine defines the inference capability consumed by the worker and
// the providers that implement it. Files by concern:
//
//   - engine.go: Provider/Tokenizer/Model/Streamer interfaces and value types.
//   - stopping.go: StoppingCriteria, the cooperative interrupt flag.
//   - tokenizer.go: shared tokenizer for remote backends, ChatML rendering.
//   - errors.go: ErrDependencyUnavailable and friends.
//   - host.go: host memory/CPU probe (gopsutil).
//   - provider.go: NewProvider factory keyed by provider name.
//   - ollama.go: Ollama HTTP API provider.
//   - openai.go: OpenAI-compatible server provider (llama-server, vLLM, ...).
//   - llama.go / llama_stub.go: in-process go-llama.cpp provider (tag `llama`).
//   - echo.go: deterministic development provider.
//
// Every provider emits the generation header ("assistant\n") as the first
// output token so decoded sequences always begin with one prompt line.
package engine
