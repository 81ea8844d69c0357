// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paper-digest/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// SourceConfig holds settings for the arXiv source client.
type SourceConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Categories are the arXiv categories queried by a run (e.g. "cs.CV").
	Categories []string `json:"categories" yaml:"categories" mapstructure:"categories"`

	// MaxResults caps the number of records fetched per run (default 500).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// PageSize is the number of records per API request (default 100).
	PageSize int `json:"page_size" yaml:"page_size" mapstructure:"page_size"`

	// RequestInterval is the minimum delay between API requests (default 3s).
	RequestInterval time.Duration `json:"request_interval" yaml:"request_interval" mapstructure:"request_interval"`
}

// AIProvider selects the language-model backend.
type AIProvider string

const (
	ProviderAnthropic AIProvider = "anthropic"
	ProviderOpenAI    AIProvider = "openai"
)

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Provider is "anthropic" (default) or "openai" (any compatible endpoint).
	Provider AIProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the API endpoint (OpenAI-compatible providers).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// MaxRetries is the number of retry attempts for failed API calls (default 1).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// Timeout bounds each API call attempt (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxConcurrentCalls caps in-flight API calls process-wide (default 3).
	MaxConcurrentCalls int `json:"max_concurrent_calls" yaml:"max_concurrent_calls" mapstructure:"max_concurrent_calls"`
}

// PipelineConfig holds the orchestrator settings.
type PipelineConfig struct {
	// UserProfile is the free-text description of the user's interests.
	UserProfile string `json:"user_profile" yaml:"user_profile" mapstructure:"user_profile"`

	// SummarizeThreshold is the minimum score that triggers automatic
	// summarization during a run (default 85).
	SummarizeThreshold int `json:"summarize_threshold" yaml:"summarize_threshold" mapstructure:"summarize_threshold"`

	// DisplayThreshold is the minimum score for a paper to appear in a
	// digest (default 85).
	DisplayThreshold int `json:"display_threshold" yaml:"display_threshold" mapstructure:"display_threshold"`

	// ImportantAuthorFloor is the score given to papers by authors flagged
	// important when the model scored them lower (default 90, 0 disables).
	ImportantAuthorFloor int `json:"important_author_floor" yaml:"important_author_floor" mapstructure:"important_author_floor"`

	// Concurrency is the number of papers processed in parallel (default 5).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// LookbackDays is the fetch window of a scheduled run, ending today (default 2).
	LookbackDays int `json:"lookback_days" yaml:"lookback_days" mapstructure:"lookback_days"`

	// FullText enables PDF download and text extraction before summarizing.
	FullText bool `json:"full_text" yaml:"full_text" mapstructure:"full_text"`

	// MaxPDFPages bounds text extraction (default 12).
	MaxPDFPages int `json:"max_pdf_pages" yaml:"max_pdf_pages" mapstructure:"max_pdf_pages"`
}

// NotifyConfig holds notifier credentials. A notifier is enabled when its
// credentials are present.
type NotifyConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	TelegramBotToken string `json:"telegram_bot_token,omitempty" yaml:"telegram_bot_token,omitempty" mapstructure:"telegram_bot_token"`
	TelegramChatID   string `json:"telegram_chat_id,omitempty" yaml:"telegram_chat_id,omitempty" mapstructure:"telegram_chat_id"`

	PushoverUserKey  string `json:"pushover_user_key,omitempty" yaml:"pushover_user_key,omitempty" mapstructure:"pushover_user_key"`
	PushoverAPIToken string `json:"pushover_api_token,omitempty" yaml:"pushover_api_token,omitempty" mapstructure:"pushover_api_token"`

	WebhookURL string `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty" mapstructure:"webhook_url"`
}

// ScheduleConfig controls the daily automatic run.
type ScheduleConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// At is the UTC time of day, "HH:MM" (default "06:00").
	At string `json:"at" yaml:"at" mapstructure:"at"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	// Path is the database file (default "data/paper_digest.db").
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
}

// Config groups all settings.
type Config struct {
	Source   SourceConfig   `json:"source" yaml:"source" mapstructure:"source"`
	AI       AIConfig       `json:"ai" yaml:"ai" mapstructure:"ai"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline" mapstructure:"pipeline"`
	Notify   NotifyConfig   `json:"notify" yaml:"notify" mapstructure:"notify"`
	Schedule ScheduleConfig `json:"schedule" yaml:"schedule" mapstructure:"schedule"`
	Store    StoreConfig    `json:"store" yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `json:"server" yaml:"server" mapstructure:"server"`
}

// DefaultUserProfile is used when no profile is configured.
const DefaultUserProfile = `I am interested in Computer Vision and Multi-modal Learning.
Keywords: Video Understanding, VLM, Segmentation, Reasoning, 3D.
Avoid: Network Security, Pure Math, HCI.`

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Source: SourceConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   60 * time.Second,
				UserAgent: "paper-digest/0.1",
			},
			Categories:      []string{"cs.CV", "cs.CL", "cs.AI"},
			MaxResults:      500,
			PageSize:        100,
			RequestInterval: 3 * time.Second,
		},
		AI: AIConfig{
			Provider:           ProviderAnthropic,
			Model:              "claude-sonnet-4-5-20250929",
			MaxRetries:         1,
			Timeout:            60 * time.Second,
			MaxConcurrentCalls: 3,
		},
		Pipeline: PipelineConfig{
			UserProfile:          DefaultUserProfile,
			SummarizeThreshold:   85,
			DisplayThreshold:     85,
			ImportantAuthorFloor: 90,
			Concurrency:          5,
			LookbackDays:         2,
			FullText:             true,
			MaxPDFPages:          12,
		},
		Notify: NotifyConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   30 * time.Second,
				UserAgent: "paper-digest/0.1",
			},
		},
		Schedule: ScheduleConfig{At: "06:00"},
		Store:    StoreConfig{Path: "data/paper_digest.db"},
		Server:   ServerConfig{Addr: ":8080"},
	}
}
