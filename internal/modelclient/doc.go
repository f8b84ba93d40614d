// Package modelclient normalizes LLM provider APIs behind a single Model
// interface and layers retry with exponential backoff on top. Providers
// classify failures themselves: rate limiting and server errors surface as
// *TransientError so the retry decorator knows what is worth waiting for.
package modelclient
