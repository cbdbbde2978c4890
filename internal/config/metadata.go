package config

import "fmt"

// MetadataConfig holds the local image and tag store configuration
type MetadataConfig struct {
	Type    string               `mapstructure:"type"    yaml:"type"`
	Name    string               `mapstructure:"name"    yaml:"name"`
	Version int                  `mapstructure:"version" yaml:"version"`
	SQLite  MetadataSQLiteConfig `mapstructure:"sqlite"  yaml:"sqlite"`
}

// MetadataSQLiteConfig holds SQLite-specific configuration
type MetadataSQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// Validate checks that the configured store can be opened at all
func (c MetadataConfig) Validate() error {
	if c.Type != "sqlite" {
		return fmt.Errorf("unsupported metadata type '%s'", c.Type)
	}
	if c.Name == "" {
		return fmt.Errorf("metadata name is required")
	}
	if c.Version < 1 {
		return fmt.Errorf("metadata version must be positive, got %d", c.Version)
	}
	if c.SQLite.Path == "" {
		return fmt.Errorf("sqlite path is required")
	}
	return nil
}
