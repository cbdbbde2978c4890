package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

func GetDefault() BaseConfig {
	return BaseConfig{
		ShutdownTimeout: "10s",

		Log: LogConfig{
			Level:      "INFO",
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Rotation: LogRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},

		Metadata: MetadataConfig{
			Type:    "sqlite",
			Name:    "snaptag",
			Version: 1,
			SQLite: MetadataSQLiteConfig{
				Path: defaultDatabasePath(),
			},
		},
	}
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "snaptag.db"
	}
	return filepath.Join(home, ".snaptag", "snaptag.db")
}

func setDefaults() {
	defaults := GetDefault()

	viper.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)

	viper.SetDefault("metadata.type", defaults.Metadata.Type)
	viper.SetDefault("metadata.name", defaults.Metadata.Name)
	viper.SetDefault("metadata.version", defaults.Metadata.Version)
	viper.SetDefault("metadata.sqlite.path", defaults.Metadata.SQLite.Path)
}
