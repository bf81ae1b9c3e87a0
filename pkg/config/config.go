// Package config defines the service configuration and its loading
// order: built-in defaults, then the YAML file (with environment
// variables expanded), then process environment overrides.
package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the indexing service.
type Config struct {
	Store         VectorStoreConfig   `yaml:"vector_store"`
	Collections   CollectionsConfig   `yaml:"collections"`
	Embedders     EmbeddersConfig     `yaml:"embedders"`
	Chunking      ChunkingConfig      `yaml:"chunking"`
	Backup        BackupConfig        `yaml:"backup"`
	Server        ServerConfig        `yaml:"server"`
	Watcher       WatcherConfig       `yaml:"watcher"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logger        LoggerConfig        `yaml:"logger"`
}

// VectorStoreConfig locates the vector store.
type VectorStoreConfig struct {
	Type   string `yaml:"type"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS *bool  `yaml:"use_tls"`
}

// CollectionsConfig names the two collections the service manages.
type CollectionsConfig struct {
	Documents string `yaml:"documents"`
	Code      string `yaml:"code"`
}

// EmbedderConfig configures one embedding provider.
type EmbedderConfig struct {
	Type       string `yaml:"type"`
	Host       string `yaml:"host"`
	Model      string `yaml:"model"`
	Dimension  int    `yaml:"dimension"`
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_seconds"`
	MaxRetries int    `yaml:"max_retries"`
}

// EmbeddersConfig holds the documentation and code embedders.
type EmbeddersConfig struct {
	Docs EmbedderConfig `yaml:"docs"`
	Code EmbedderConfig `yaml:"code"`
}

// ChunkingConfig configures document splitting. Documents above
// Threshold tokens are chunked before embedding.
type ChunkingConfig struct {
	Size       int      `yaml:"size"`
	Overlap    int      `yaml:"overlap"`
	Threshold  int      `yaml:"threshold"`
	Separators []string `yaml:"separators"`
}

// BackupConfig configures local backups.
type BackupConfig struct {
	Directory string `yaml:"directory"`
}

// Transport values accepted by ServerConfig.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// ServerConfig configures the tool server.
type ServerConfig struct {
	Transport string     `yaml:"transport"`
	Host      string     `yaml:"host"`
	Port      int        `yaml:"port"`
	Auth      AuthConfig `yaml:"auth"`
}

// AuthConfig configures JWT validation for the HTTP transport.
type AuthConfig struct {
	Enabled  bool   `yaml:"enabled"`
	JWKSURL  string `yaml:"jwks_url"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

// WatcherConfig configures source directory watching.
type WatcherConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Directory   string   `yaml:"directory"`
	DebounceSec int      `yaml:"debounce_seconds"`
	Extensions  []string `yaml:"extensions"`
	Exclude     []string `yaml:"exclude"`
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	TracingEnabled bool   `yaml:"tracing_enabled"`
	ServiceName    string `yaml:"service_name"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
}

// LoggerConfig configures the process logger.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Load builds the configuration: defaults, then the YAML file at path
// (optional; environment variables in it are expanded), then the
// environment overrides. Validation is the caller's step so partial
// configs can still drive commands that do not need the store.
func Load(path string) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}

	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		var rawMap map[string]any
		if err := yaml.Unmarshal(data, &rawMap); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		expanded, _ := ExpandEnvVarsInData(rawMap).(map[string]any)
		if err := decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)
	cfg.SetDefaults()

	return cfg, nil
}

func decode(input map[string]any, output *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(input)
}

// SetDefaults applies default values to unset fields.
func (c *Config) SetDefaults() {
	if c.Store.Type == "" {
		c.Store.Type = "qdrant"
	}
	if c.Store.Host == "" {
		c.Store.Host = "localhost"
	}
	if c.Store.Port == 0 {
		c.Store.Port = 6334
	}

	if c.Collections.Documents == "" {
		c.Collections.Documents = "haystack_mcp"
	}
	if c.Collections.Code == "" {
		c.Collections.Code = "haystack_mcp_code"
	}

	c.Embedders.Docs.setDefaults("sentence-transformers/all-MiniLM-L6-v2", 384)
	c.Embedders.Code.setDefaults("jinaai/jina-embeddings-v2-base-code", 768)

	if c.Chunking.Size == 0 {
		c.Chunking.Size = 512
	}
	if c.Chunking.Overlap == 0 {
		c.Chunking.Overlap = 50
	}
	if c.Chunking.Threshold == 0 {
		c.Chunking.Threshold = c.Chunking.Size
	}
	if len(c.Chunking.Separators) == 0 {
		c.Chunking.Separators = []string{"\n\n", "\n", ". ", " "}
	}

	if c.Backup.Directory == "" {
		c.Backup.Directory = "./backups"
	}

	if c.Server.Transport == "" {
		c.Server.Transport = TransportStdio
	}
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8087
	}

	if c.Watcher.DebounceSec == 0 {
		c.Watcher.DebounceSec = 2
	}

	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = "haystack"
	}

	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "text"
	}
}

func (e *EmbedderConfig) setDefaults(model string, dimension int) {
	if e.Type == "" {
		e.Type = "tei"
	}
	if e.Host == "" {
		switch e.Type {
		case "ollama":
			e.Host = "http://localhost:11434"
		case "openai":
			e.Host = "https://api.openai.com"
		default:
			e.Host = "http://localhost:8080"
		}
	}
	if e.Model == "" {
		e.Model = model
	}
	if e.Dimension == 0 {
		e.Dimension = dimension
	}
	if e.TimeoutSec == 0 {
		e.TimeoutSec = 60
	}
	if e.MaxRetries == 0 {
		e.MaxRetries = 3
	}
}

// Validate checks the configuration for errors. Call after SetDefaults.
func (c *Config) Validate() error {
	if c.Store.Type != "qdrant" {
		return fmt.Errorf("unsupported vector store type: %q", c.Store.Type)
	}
	if c.Store.Host == "" {
		return fmt.Errorf("vector store host is required")
	}
	if c.Store.Port <= 0 || c.Store.Port > 65535 {
		return fmt.Errorf("vector store port %d out of range", c.Store.Port)
	}

	if c.Collections.Documents == "" || c.Collections.Code == "" {
		return fmt.Errorf("collection names cannot be empty")
	}
	if c.Collections.Documents == c.Collections.Code {
		return fmt.Errorf("documentation and code collections must differ")
	}

	for name, e := range map[string]EmbedderConfig{"docs": c.Embedders.Docs, "code": c.Embedders.Code} {
		if e.Dimension <= 0 {
			return fmt.Errorf("%s embedder dimension must be positive, got %d", name, e.Dimension)
		}
		switch e.Type {
		case "tei", "ollama", "openai":
		default:
			return fmt.Errorf("%s embedder type %q not supported", name, e.Type)
		}
	}

	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunk overlap (%d) must be in [0, size)", c.Chunking.Overlap)
	}

	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("unsupported server transport: %q", c.Server.Transport)
	}

	if c.Server.Auth.Enabled && c.Server.Auth.JWKSURL == "" {
		return fmt.Errorf("auth is enabled but jwks_url is empty")
	}

	if c.Watcher.Enabled && c.Watcher.Directory == "" {
		return fmt.Errorf("watcher is enabled but directory is empty")
	}

	return nil
}

// BoolPtr returns a pointer to b, for optional config booleans.
func BoolPtr(b bool) *bool { return &b }
