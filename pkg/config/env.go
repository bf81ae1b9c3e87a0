package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var envVarPatterns = struct {
	withDefault *regexp.Regexp
	braced      *regexp.Regexp
	simple      *regexp.Regexp
}{
	withDefault: regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`),
	braced:      regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`),
	simple:      regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`),
}

func expandEnvVars(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}

	s = envVarPatterns.withDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.withDefault.FindStringSubmatch(match)
		if len(parts) == 3 {
			if val := os.Getenv(parts[1]); val != "" {
				return val
			}
			return parts[2]
		}
		return match
	})

	s = envVarPatterns.braced.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.braced.FindStringSubmatch(match)
		if len(parts) == 2 {
			return os.Getenv(parts[1])
		}
		return match
	})

	s = envVarPatterns.simple.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.simple.FindStringSubmatch(match)
		if len(parts) == 2 {
			return os.Getenv(parts[1])
		}
		return match
	})

	return s
}

// parseValue retypes an expanded string so `port: ${PORT:-6334}`
// decodes as an int rather than a string.
func parseValue(value string) any {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	if intVal, err := strconv.Atoi(value); err == nil {
		return intVal
	}
	if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
		return floatVal
	}
	return value
}

// ExpandEnvVarsInData recursively expands ${VAR}, ${VAR:-default} and
// $VAR references in the parsed YAML tree.
func ExpandEnvVarsInData(data any) any {
	switch v := data.(type) {
	case string:
		expanded := expandEnvVars(v)
		if expanded != v {
			return parseValue(expanded)
		}
		return expanded
	case map[string]any:
		result := make(map[string]any, len(v))
		for key, value := range v {
			result[key] = ExpandEnvVarsInData(value)
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = ExpandEnvVarsInData(item)
		}
		return result
	default:
		return v
	}
}

// LoadEnvFiles loads .env.local and .env if present.
func LoadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies the well-known environment variables on
// top of whatever the config file set.
//
//	VECTOR_STORE_URL      store endpoint, scheme decides TLS
//	VECTOR_STORE_API_KEY  store API key
//	DOC_COLLECTION        documentation collection name
//	CODE_COLLECTION       code collection name
//	DOC_EMBEDDING_MODEL   documentation embedding model
//	DOC_EMBEDDING_DIM     documentation embedding dimension
//	CODE_EMBEDDING_MODEL  code embedding model
//	CODE_EMBEDDING_DIM    code embedding dimension
func ApplyEnvOverrides(cfg *Config) {
	if raw := os.Getenv("VECTOR_STORE_URL"); raw != "" {
		applyStoreURL(&cfg.Store, raw)
	}
	if key := os.Getenv("VECTOR_STORE_API_KEY"); key != "" {
		cfg.Store.APIKey = key
	}

	if v := os.Getenv("DOC_COLLECTION"); v != "" {
		cfg.Collections.Documents = v
	}
	if v := os.Getenv("CODE_COLLECTION"); v != "" {
		cfg.Collections.Code = v
	}

	if v := os.Getenv("DOC_EMBEDDING_MODEL"); v != "" {
		cfg.Embedders.Docs.Model = v
	}
	if v := os.Getenv("DOC_EMBEDDING_DIM"); v != "" {
		if dim, err := strconv.Atoi(v); err == nil {
			cfg.Embedders.Docs.Dimension = dim
		}
	}
	if v := os.Getenv("CODE_EMBEDDING_MODEL"); v != "" {
		cfg.Embedders.Code.Model = v
	}
	if v := os.Getenv("CODE_EMBEDDING_DIM"); v != "" {
		if dim, err := strconv.Atoi(v); err == nil {
			cfg.Embedders.Code.Dimension = dim
		}
	}
}

// applyStoreURL splits host, port and TLS out of a store URL. Bare
// host[:port] strings (no scheme) are accepted too.
func applyStoreURL(store *VectorStoreConfig, raw string) {
	input := raw
	if !strings.Contains(input, "://") {
		input = "tcp://" + input
	}

	u, err := url.Parse(input)
	if err != nil || u.Hostname() == "" {
		store.Host = raw
		return
	}

	store.Host = u.Hostname()
	if portStr := u.Port(); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			store.Port = port
		}
	}
	switch u.Scheme {
	case "https":
		store.UseTLS = BoolPtr(true)
	case "http":
		store.UseTLS = BoolPtr(false)
	}
}
