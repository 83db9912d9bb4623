package config

// Config is the root configuration for quotemill.
type Config struct {
	Gateway    GatewayConfig    `yaml:"gateway,omitempty"`
	Discovery  DiscoveryConfig  `yaml:"discovery,omitempty"`
	Enrichment EnrichmentConfig `yaml:"enrichment,omitempty"`
	Pricing    PricingConfig    `yaml:"pricing,omitempty"`
	Provider   ProviderConfig   `yaml:"provider,omitempty"`
	Session    SessionConfig    `yaml:"session,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
}

// GatewayConfig controls the HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "token" | "password"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// DiscoveryConfig tunes the requirements conversation.
type DiscoveryConfig struct {
	MaxTurns   int `yaml:"maxTurns,omitempty"`
	TailWindow int `yaml:"tailWindow,omitempty"` // messages handed to enrichment per turn
}

// EnrichmentConfig tunes background inventory extraction.
type EnrichmentConfig struct {
	Cadence        int      `yaml:"cadence,omitempty"` // force extraction every N turns
	TimeoutSeconds int      `yaml:"timeoutSeconds,omitempty"`
	Keywords       []string `yaml:"keywords,omitempty"`
}

// PricingConfig configures the pricing stage.
type PricingConfig struct {
	CatalogPath string `yaml:"catalogPath,omitempty"` // YAML price catalog; builtin catalog when empty
	Currency    string `yaml:"currency,omitempty"`
}

// ProviderConfig points at the external reasoning service. When BaseURL
// is empty the gateway cannot answer turns and says so at startup.
type ProviderConfig struct {
	BaseURL string `yaml:"baseUrl,omitempty"`
	APIKey  string `yaml:"apiKey,omitempty"`
}

// SessionConfig defines session persistence.
type SessionConfig struct {
	Store string `yaml:"store,omitempty"` // "sqlite" | "memory"
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}
