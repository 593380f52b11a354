package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config holds CLI-level defaults. The core engine (pkg/bcache.Options) has
// no config-file or environment-variable surface of its own (spec §6); these
// are purely the demo CLI's conveniences.
type Config struct {
	AutoVacuumThreshold float64 `json:"auto_vacuum_threshold,omitempty"` //nolint:tagliatelle
	DecodeAsMapping     bool    `json:"decode_as_mapping,omitempty"`     //nolint:tagliatelle
}

// DefaultConfig returns the CLI's built-in defaults, overridden by any
// config file found.
func DefaultConfig() Config {
	return Config{
		AutoVacuumThreshold: 0, // 0 => pkg/bcache.DefaultAutoVacuumThreshold
	}
}

// ConfigFileName is the project-local config file name, loaded from the
// current working directory if present.
const ConfigFileName = ".bcache.json"

// LoadConfig loads configuration with the following precedence (highest
// wins): defaults, then the global user config
// (~/.config/bcache/config.json), then a project config file
// (./.bcache.json), mirroring calvinalkan-agent-task/config.go's layering.
func LoadConfig(workDir string) (Config, error) {
	cfg := DefaultConfig()

	if globalCfg, ok, err := loadJSONCConfig(globalConfigPath()); err != nil {
		return Config{}, err
	} else if ok {
		cfg = mergeConfig(cfg, globalCfg)
	}

	projectPath := filepath.Join(workDir, ConfigFileName)

	if projectCfg, ok, err := loadJSONCConfig(projectPath); err != nil {
		return Config{}, err
	} else if ok {
		cfg = mergeConfig(cfg, projectCfg)
	}

	return cfg, nil
}

func globalConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bcache", "config.json")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "bcache", "config.json")
}

func loadJSONCConfig(path string) (Config, bool, error) {
	if path == "" {
		return Config{}, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("reading config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("invalid JSONC in %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, false, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, true, nil
}

// mergeConfig overlays override's explicitly-set fields onto base.
func mergeConfig(base, override Config) Config {
	if override.AutoVacuumThreshold != 0 {
		base.AutoVacuumThreshold = override.AutoVacuumThreshold
	}

	if override.DecodeAsMapping {
		base.DecodeAsMapping = override.DecodeAsMapping
	}

	return base
}
