// Package config handles configuration loading for the DRO viewer server.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Data   DataConfig   `yaml:"data"`
	Cache  CacheConfig  `yaml:"cache"`
	Render RenderConfig `yaml:"render"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// DataConfig contains study source settings.
type DataConfig struct {
	// StudyPath points at a study directory (study.json + array files),
	// or at a TileDB group when Source is "tiledb".
	StudyPath string `yaml:"study_path"`
	Source    string `yaml:"source"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	ImageSizeMB     int `yaml:"image_size_mb"`
	ImageTTLMinutes int `yaml:"image_ttl_minutes"`
	DerivedEntries  int `yaml:"derived_entries"`
}

// RenderConfig contains rendering settings.
type RenderConfig struct {
	FigureWidth     int    `yaml:"figure_width"`
	FigureHeight    int    `yaml:"figure_height"`
	DefaultColormap string `yaml:"default_colormap"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Data: DataConfig{
			StudyPath: "./data/dro",
			Source:    "dir",
		},
		Cache: CacheConfig{
			ImageSizeMB:     256,
			ImageTTLMinutes: 10,
			DerivedEntries:  512,
		},
		Render: RenderConfig{
			FigureWidth:     640,
			FigureHeight:    480,
			DefaultColormap: "viridis",
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Data.StudyPath == "" {
		cfg.Data.StudyPath = defaults.Data.StudyPath
	}
	if cfg.Data.Source == "" {
		cfg.Data.Source = defaults.Data.Source
	}
	if cfg.Cache.ImageSizeMB == 0 {
		cfg.Cache.ImageSizeMB = defaults.Cache.ImageSizeMB
	}
	if cfg.Cache.ImageTTLMinutes == 0 {
		cfg.Cache.ImageTTLMinutes = defaults.Cache.ImageTTLMinutes
	}
	if cfg.Cache.DerivedEntries == 0 {
		cfg.Cache.DerivedEntries = defaults.Cache.DerivedEntries
	}
	if cfg.Render.FigureWidth == 0 {
		cfg.Render.FigureWidth = defaults.Render.FigureWidth
	}
	if cfg.Render.FigureHeight == 0 {
		cfg.Render.FigureHeight = defaults.Render.FigureHeight
	}
	if cfg.Render.DefaultColormap == "" {
		cfg.Render.DefaultColormap = defaults.Render.DefaultColormap
	}
}
