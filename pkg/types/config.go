package types

// Config is the application configuration, assembled from config files and
// environment overrides.
type Config struct {
	// Model is the default "provider/model" used when a session does not
	// name one.
	Model string `json:"model,omitempty"`

	LogLevel string `json:"logLevel,omitempty"`

	Server   ServerConfig              `json:"server,omitempty"`
	Provider map[string]ProviderConfig `json:"provider,omitempty"`
	Tools    ToolsConfig               `json:"tools,omitempty"`
	Ledger   LedgerConfig              `json:"ledger,omitempty"`
	Store    StoreConfig               `json:"store,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `json:"port,omitempty"`

	// DisableCORS turns off the permissive CORS middleware.
	DisableCORS bool `json:"disableCORS,omitempty"`
}

// ProviderConfig configures one LLM provider backend.
type ProviderConfig struct {
	APIKey   string `json:"apiKey,omitempty"`
	BaseURL  string `json:"baseURL,omitempty"`
	Model    string `json:"model,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// ToolsConfig configures the image-processing tool endpoints.
type ToolsConfig struct {
	// BaseURL is the model-provider gateway the tools POST to.
	BaseURL string `json:"baseURL,omitempty"`
	APIKey  string `json:"apiKey,omitempty"`

	// TimeoutSeconds bounds each tool invocation.
	TimeoutSeconds int `json:"timeoutSeconds,omitempty"`

	// Endpoints overrides the per-tool request path, keyed by tool name.
	Endpoints map[string]string `json:"endpoints,omitempty"`
}

// LedgerConfig configures the external credit ledger.
type LedgerConfig struct {
	// URL of the credit ledger service. Empty means the in-process
	// ledger is used (local/dev mode).
	URL            string `json:"url,omitempty"`
	APIKey         string `json:"apiKey,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
}

// StoreConfig selects and configures the session store backend.
type StoreConfig struct {
	// Backend is "memory" (default) or "redis".
	Backend string `json:"backend,omitempty"`

	RedisAddr     string `json:"redisAddr,omitempty"`
	RedisPassword string `json:"redisPassword,omitempty"`
	RedisDB       int    `json:"redisDB,omitempty"`
}
