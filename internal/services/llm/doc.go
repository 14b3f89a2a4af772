// Package llm provides the chat-completion collaborator used by the summary,
// insight and link enrichment stages.
//
// The client speaks the OpenAI-compatible /chat/completions protocol. Complete
// returns free text bounded by a token limit; CompleteJSON requests a
// json_object response and returns the raw payload for the caller to decode
// with DecodeJSON, which tolerates code fences and surrounding prose.
//
// # Retry Behaviour
//
// Requests are retried on HTTP 408/429/5xx, network timeouts and empty
// content using an exponential backoff (base 1s, max 10s, 5 attempts by
// default). Retry-After headers override the computed delay. Context
// cancellation aborts retries immediately. Exhausted or permanent failures
// are marked services.ErrCompletion.
package llm
