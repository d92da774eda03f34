// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "litsearch/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SearchConfig holds settings for the search stage.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResults is the maximum number of papers to collect (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// APIKey is an optional Semantic Scholar API key for higher rate limits.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRateRetries bounds backoff retries on HTTP 429 before the run
	// stops paging and keeps what it has (default 5).
	MaxRateRetries int `json:"max_rate_retries" yaml:"max_rate_retries"`
}

// AcquireConfig holds settings for the PDF acquisition stage.
type AcquireConfig struct {
	HTTPConfig `yaml:",inline"`

	// Dir is the directory PDFs and their metadata sidecars are written to.
	Dir string `json:"dir" yaml:"dir"`

	// SourceTimeout bounds each individual source attempt (default 30s).
	SourceTimeout time.Duration `json:"source_timeout" yaml:"source_timeout"`

	// DownloadDelay is the delay between consecutive records (default 1s).
	DownloadDelay time.Duration `json:"download_delay" yaml:"download_delay"`

	// UnpaywallEmail identifies the caller to the Unpaywall API, which
	// rejects requests without one.
	UnpaywallEmail string `json:"unpaywall_email,omitempty" yaml:"unpaywall_email,omitempty"`

	// OpenAlexEmail joins the OpenAlex polite pool when set.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty"`
}

// EnhanceConfig holds settings for LLM query enhancement.
type EnhanceConfig struct {
	// Enabled turns enhancement on. When off (or when the call fails) the
	// raw query is used unchanged.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Model is the chat model identifier (e.g. "qwen3:latest").
	Model string `json:"model" yaml:"model"`

	// BaseURL points at an OpenAI-compatible endpoint. Defaults to a local
	// Ollama server.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey authenticates against the endpoint, if it requires one.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}
