package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "TDPCHAT_"

	// DefaultPath is read when no config file is named. It may be absent.
	DefaultPath = "tdpchat.yaml"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// nestedSections lists sub-sections whose keys contain a dot after the
// section name, so TDPCHAT_STORE_SEARCH_FETCH_K maps to store.search.fetch_k.
var nestedSections = map[string][]string{
	"store": {"qdrant", "search"},
}

// Load reads configuration from path, then overrides it with environment
// variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (TDPCHAT_SERVER_PORT, TDPCHAT_STORE_SEARCH_K, ...)
//  2. YAML config file
//  3. Default()
//
// An empty path reads DefaultPath if it exists. A named path must exist.
// The file must not be group or world writable and must be under 1MB.
//
// API keys fall back to OPENAI_API_KEY when unset.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	required := path != ""
	if path == "" {
		path = DefaultPath
	}
	content, err := readConfigFile(path, required)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyKeyFallbacks(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps TDPCHAT_SECTION_FIELD_NAME to section.field_name, splitting
// off a known sub-section where the section has one.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	for _, sub := range nestedSections[section] {
		if rest, found := strings.CutPrefix(field, sub+"_"); found {
			return section + "." + sub + "." + rest
		}
	}
	return section + "." + field
}

// readConfigFile returns nil content when the file is absent and not required.
func readConfigFile(path string, required bool) ([]byte, error) {
	// Open once and validate the descriptor to avoid a TOCTOU race.
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigFileProperties checks file type, permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if !info.Mode().IsRegular() {
		return fmt.Errorf("config path is not a regular file")
	}
	// The file may hold API keys. Skip on Windows (different permission model).
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm&0o022 != 0 {
			return fmt.Errorf("insecure config file permissions: %v (must not be group or world writable)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

func applyKeyFallbacks(cfg *Config) {
	if !cfg.Generation.APIKey.IsSet() {
		cfg.Generation.APIKey = Secret(os.Getenv("OPENAI_API_KEY"))
	}
	if !cfg.Embeddings.APIKey.IsSet() {
		cfg.Embeddings.APIKey = cfg.Generation.APIKey
	}
}
