// Package providers implements the Completer interface for each supported LLM
// provider.
//
// Supported providers: Anthropic (Claude) through anthropic-sdk-go, OpenAI
// through openai-go with strict json_schema output, Google (Gemini) over its
// REST API, and the OpenAI-compatible local servers Ollama, LM Studio and
// LocalAI through go-openai.
//
// SDK-level retries are disabled. All providers share one retry helper with
// exponential back-off that retries rate limits and 5xx responses and gives up
// immediately on authentication failures.
//
// Use [New] to obtain a Completer by provider name and model string.
package providers
