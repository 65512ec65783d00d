package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. RUNVIEW_STATE_DIR.
const EnvPrefix = "RUNVIEW"

// Config is the runviewctl configuration file layout.
type Config struct {
	StateDir     string    `mapstructure:"state_dir"`
	StateKey     string    `mapstructure:"state_key"`
	DefaultsFile string    `mapstructure:"defaults_file"`
	Engine       string    `mapstructure:"engine"`
	Log          LogConfig `mapstructure:"log"`
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() (Config, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve config dir: %w", err)
	}
	return Config{
		StateDir: filepath.Join(dir, "runview"),
		StateKey: "runview",
		Engine:   "expr",
		Log: LogConfig{
			Level: "warn",
		},
	}, nil
}

// LoadConfig reads path (optional), then RUNVIEW_* environment variables,
// then any flags set on flags. Later sources win.
func LoadConfig(path string, flags *pflag.FlagSet) (Config, error) {
	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("state_key", cfg.StateKey)
	v.SetDefault("defaults_file", cfg.DefaultsFile)
	v.SetDefault("engine", cfg.Engine)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.pretty", cfg.Log.Pretty)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, flag := range map[string]string{
			"state_dir":     "state-dir",
			"state_key":     "state-key",
			"defaults_file": "defaults",
			"engine":        "engine",
			"log.level":     "log-level",
			"log.pretty":    "pretty",
		} {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.StateDir = os.ExpandEnv(cfg.StateDir)
	cfg.DefaultsFile = os.ExpandEnv(cfg.DefaultsFile)
	if strings.TrimSpace(cfg.StateDir) == "" {
		return Config{}, fmt.Errorf("state_dir must not be empty")
	}
	return cfg, nil
}
