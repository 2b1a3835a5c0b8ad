// Package llm provides a chat completion client for OpenAI-compatible
// endpoints (AIML API, OpenRouter) used to generate page content.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, receive a JSON payload.
// Client.HealthCheck: verify API key and model availability.
// DecodeLLMJSON: decode model output that may be fenced or wrapped in prose.
// IsRateLimited: classify an error as upstream rate limiting.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 30s, up to 3 attempts by default).
// Context cancellation aborts retries immediately. The regeneration processor
// owns its own rate limit policy and constructs the client with
// WithRetryMaxAttempts(1).
package llm
