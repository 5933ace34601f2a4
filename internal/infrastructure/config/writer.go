package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigYAML is the default configuration content.
const DefaultConfigYAML = `# Menu-Core Configuration

matching:
  high_threshold: 0.9
  low_threshold: 0.5
  candidate_limit: 20
  weights:
    exact: 0.9
    containment: 0.6
    jaccard: 0.6
    edit_distance: 0.7
  # stoplist and strip_patterns default to the built-in tables when omitted

ledger:
  auto_promote: false
  promote_threshold: 3

sqlite:
  # path: .menu/menu.db (or set MENU_DB_PATH env var)

server:
  addr: ":8080"
  batch_limit: 100
  read_timeout: 15s

log:
  level: info
  format: console

semantic:
  enabled: false
  limit: 5

embedder:
  provider: openai
  model: text-embedding-3-small
  requests_per_second: 3
  # api_key: your-api-key (or set OPENAI_API_KEY env var)

qdrant:
  host: localhost
  port: 6334
  collection: menu_standard_menus
  # api_key: your-api-key (for Qdrant Cloud)
`

// WriteDefault creates the .menu directory and writes a default config file.
func WriteDefault(basePath string) error {
	configDir := ConfigDir(basePath)
	configFile := ConfigFilePath(basePath)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists: %s", configFile)
	}

	if err := os.WriteFile(configFile, []byte(DefaultConfigYAML), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Write writes the given config to the config file.
func Write(basePath string, cfg *Config) error {
	if err := os.MkdirAll(ConfigDir(basePath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(ConfigFilePath(basePath), data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
