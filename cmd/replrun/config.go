package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type defaults struct {
	url     string
	lang    string
	logPath string
}

type fileConfig struct {
	URL  string `toml:"url"`
	Lang string `toml:"lang"`
	Log  string `toml:"log"`
}

// loadFileConfig overlays a TOML config file onto the built-in defaults.
// Command-line flags still take precedence over both.
func loadFileConfig(path string, cfg defaults) (defaults, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return defaults{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("url") {
		if v := strings.TrimSpace(raw.URL); v != "" {
			cfg.url = v
		}
	}

	if meta.IsDefined("lang") {
		cfg.lang = strings.TrimSpace(raw.Lang)
	}

	if meta.IsDefined("log") {
		cfg.logPath = strings.TrimSpace(raw.Log)
	}

	return cfg, nil
}
