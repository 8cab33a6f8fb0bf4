// Package config loads server configuration from an optional YAML file with
// environment-variable overrides. Defaults come from the struct itself, so a
// bare invocation runs with sensible local settings.
package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/promptduel/server/internal/models"
)

// Config is the full server configuration.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`

	// DatabaseURL enables the Postgres record store when set.
	DatabaseURL string `mapstructure:"database_url"`

	// RedisAddr enables the round journal and leaderboard mirror when set.
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`

	DatasetPath string `mapstructure:"dataset_path"`
	ImageDir    string `mapstructure:"image_dir"`

	LogLevel string `mapstructure:"log_level"`

	Defaults RoomDefaults `mapstructure:"room_defaults"`
}

// RoomDefaults seed the settings of newly created rooms.
type RoomDefaults struct {
	Rounds         int `mapstructure:"rounds"`
	TimeLimitSec   int `mapstructure:"time_limit_sec"`
	MaxPlayers     int `mapstructure:"max_players"`
	CharacterLimit int `mapstructure:"character_limit"`
}

// RoomSettings converts the configured defaults into normalized settings.
func (d RoomDefaults) RoomSettings() models.RoomSettings {
	return models.RoomSettings{
		Rounds:         d.Rounds,
		TimeLimitSec:   d.TimeLimitSec,
		MaxPlayers:     d.MaxPlayers,
		CharacterLimit: d.CharacterLimit,
	}.Normalize()
}

// Default returns the configuration used when no file or env overrides exist.
func Default() Config {
	def := models.DefaultRoomSettings()
	return Config{
		ListenAddr:  ":8080",
		DatasetPath: "data/prompts.csv",
		ImageDir:    "data/images",
		LogLevel:    "info",
		Defaults: RoomDefaults{
			Rounds:         def.Rounds,
			TimeLimitSec:   def.TimeLimitSec,
			MaxPlayers:     def.MaxPlayers,
			CharacterLimit: def.CharacterLimit,
		},
	}
}

// Load reads configuration, starting from Default, merging the file at path
// if non-empty, then applying environment overrides (LISTEN_ADDR,
// DATABASE_URL, ROOM_DEFAULTS_ROUNDS and so on).
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	m := make(map[string]any)
	if err := mapstructure.Decode(cfg, &m); err != nil {
		return Config{}, fmt.Errorf("decode defaults: %w", err)
	}
	if err := v.MergeConfigMap(m); err != nil {
		return Config{}, fmt.Errorf("merge defaults: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
