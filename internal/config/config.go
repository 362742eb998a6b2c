// Package config loads application configuration from JSONC files and
// environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/tidwall/jsonc"

	"github.com/pixelforge-ai/pixelforge/pkg/types"
)

// Load merges configuration sources in priority order:
//  1. Global config (~/.config/pixelforge/pixelforge.json[c])
//  2. Working-directory config (pixelforge.json[c])
//  3. PIXELFORGE_CONFIG file override
//  4. Environment variables (highest priority)
func Load(directory string) (*types.Config, error) {
	cfg := &types.Config{
		Provider: make(map[string]types.ProviderConfig),
	}

	loaded := make(map[string]bool)
	loadOnce := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil || loaded[abs] {
			return
		}
		if loadFile(path, cfg) == nil {
			loaded[abs] = true
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		globalDir := filepath.Join(home, ".config", "pixelforge")
		loadOnce(filepath.Join(globalDir, "pixelforge.json"))
		loadOnce(filepath.Join(globalDir, "pixelforge.jsonc"))
	}

	if directory != "" {
		loadOnce(filepath.Join(directory, "pixelforge.json"))
		loadOnce(filepath.Join(directory, "pixelforge.jsonc"))
	}

	if path := os.Getenv("PIXELFORGE_CONFIG"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("PIXELFORGE_CONFIG: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// loadFile reads one JSONC config file into cfg.
func loadFile(path string, cfg *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = jsonc.ToJSON(data)
	data = interpolate(data)

	var fileCfg types.Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	merge(cfg, &fileCfg)
	return nil
}

var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

// interpolate replaces {env:VAR} placeholders with environment values.
func interpolate(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// merge overlays src onto dst; src wins for set fields.
func merge(dst, src *types.Config) {
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
	if src.Server.DisableCORS {
		dst.Server.DisableCORS = true
	}
	for id, pc := range src.Provider {
		dst.Provider[id] = pc
	}
	if src.Tools.BaseURL != "" {
		dst.Tools.BaseURL = src.Tools.BaseURL
	}
	if src.Tools.APIKey != "" {
		dst.Tools.APIKey = src.Tools.APIKey
	}
	if src.Tools.TimeoutSeconds != 0 {
		dst.Tools.TimeoutSeconds = src.Tools.TimeoutSeconds
	}
	if len(src.Tools.Endpoints) > 0 {
		if dst.Tools.Endpoints == nil {
			dst.Tools.Endpoints = make(map[string]string)
		}
		for name, ep := range src.Tools.Endpoints {
			dst.Tools.Endpoints[name] = ep
		}
	}
	if src.Ledger.URL != "" {
		dst.Ledger.URL = src.Ledger.URL
	}
	if src.Ledger.APIKey != "" {
		dst.Ledger.APIKey = src.Ledger.APIKey
	}
	if src.Ledger.TimeoutSeconds != 0 {
		dst.Ledger.TimeoutSeconds = src.Ledger.TimeoutSeconds
	}
	if src.Store.Backend != "" {
		dst.Store = src.Store
	}
}

// applyEnvOverrides applies PIXELFORGE_* environment variables and the
// conventional provider key variables.
func applyEnvOverrides(cfg *types.Config) {
	if v := os.Getenv("PIXELFORGE_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("PIXELFORGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PIXELFORGE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PIXELFORGE_REDIS_ADDR"); v != "" {
		cfg.Store.Backend = "redis"
		cfg.Store.RedisAddr = v
	}
	if v := os.Getenv("PIXELFORGE_LEDGER_URL"); v != "" {
		cfg.Ledger.URL = v
	}
	if v := os.Getenv("PIXELFORGE_TOOLS_URL"); v != "" {
		cfg.Tools.BaseURL = v
	}

	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		pc := cfg.Provider["anthropic"]
		pc.APIKey = v
		cfg.Provider["anthropic"] = pc
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		pc := cfg.Provider["openai"]
		pc.APIKey = v
		cfg.Provider["openai"] = pc
	}
}

// applyDefaults fills unset fields with defaults.
func applyDefaults(cfg *types.Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Tools.TimeoutSeconds == 0 {
		cfg.Tools.TimeoutSeconds = 120
	}
	if cfg.Ledger.TimeoutSeconds == 0 {
		cfg.Ledger.TimeoutSeconds = 10
	}
}
