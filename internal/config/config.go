package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Config holds tool-wide settings. Everything has a working default; the
// config file and BA2PATCH_* environment variables are optional overrides.
type Config struct {
	ArchiveExtension string `mapstructure:"archive_extension"`
	DefaultTarget    string `mapstructure:"default_target"`
	Recursive        bool   `mapstructure:"recursive"`
	DeltaTool        string `mapstructure:"delta_tool"`
	BackupSuffix     string `mapstructure:"backup_suffix"`
	LogFormat        string `mapstructure:"log_format"`
	LogLevel         string `mapstructure:"log_level"`
	LogFile          string `mapstructure:"log_file"`
}

func Default() *Config {
	return &Config{
		ArchiveExtension: ".ba2",
		DefaultTarget:    "v1",
		DeltaTool:        "xdelta3",
		BackupSuffix:     ".bak",
		LogFormat:        "text",
		LogLevel:         "info",
	}
}

// Load reads the config file (explicit path, or ba2patch.yaml in the OS
// config dir or the working directory) over the defaults. A missing file is
// not an error.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()

	// Register every key with viper so AutomaticEnv can see it; env values
	// are only consulted for keys viper already knows about.
	defaults := Default()
	v.SetDefault("archive_extension", defaults.ArchiveExtension)
	v.SetDefault("default_target", defaults.DefaultTarget)
	v.SetDefault("recursive", defaults.Recursive)
	v.SetDefault("delta_tool", defaults.DeltaTool)
	v.SetDefault("backup_suffix", defaults.BackupSuffix)
	v.SetDefault("log_format", defaults.LogFormat)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_file", defaults.LogFile)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("ba2patch")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("BA2PATCH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "ba2patch")
	case "darwin":
		return "/Library/Application Support/ba2patch"
	default:
		return "/etc/ba2patch"
	}
}
