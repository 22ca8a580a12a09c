// Package config loads server configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Content  ContentConfig  `mapstructure:"content"`
}

// ServerConfig configures the outward-facing surfaces.
type ServerConfig struct {
	WebSocket       WebSocketConfig `mapstructure:"websocket"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
}

// WebSocketConfig configures the websocket gateway.
type WebSocketConfig struct {
	Address string `mapstructure:"address"`
}

// DatabaseConfig configures the saved-game store.
type DatabaseConfig struct {
	URL      string        `mapstructure:"url"`
	MaxConns int32         `mapstructure:"max_conns"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EngineConfig configures game engine behavior.
type EngineConfig struct {
	ChoiceTimeout   time.Duration `mapstructure:"choice_timeout"`
	MovePacingDelay time.Duration `mapstructure:"move_pacing_delay"`
	RollbackEnabled bool          `mapstructure:"rollback_enabled"`
	StartingMoney   int           `mapstructure:"starting_money"`
	ReplayDir       string        `mapstructure:"replay_dir"`
}

// ContentConfig points at the static game content.
type ContentConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load reads configuration from path, applying defaults and ENGINE_*
// environment overrides (dots become underscores).
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.websocket.address", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.timeout", 5*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("engine.choice_timeout", 5*time.Minute)
	v.SetDefault("engine.move_pacing_delay", 0)
	v.SetDefault("engine.rollback_enabled", true)
	v.SetDefault("engine.starting_money", 0)
	v.SetDefault("engine.replay_dir", "replays")
	v.SetDefault("content.dir", "data")

	v.SetEnvPrefix("ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
