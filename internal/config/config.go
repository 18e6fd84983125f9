package config

import (
	"errors"
	"os"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	LLM      LLMConfig
	Server   ServerConfig
	Market   MarketConfig
	History  HistoryConfig
	Database DatabaseConfig
	Log      LogConfig
}

// LLMConfig holds the completion provider configuration.
type LLMConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	Temperature    float32 `mapstructure:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// MarketConfig bounds the market-data augmentation step.
type MarketConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxSymbols     int    `mapstructure:"max_symbols"`
	LookbackDays   int    `mapstructure:"lookback_days"`
	ProbeSymbol    string `mapstructure:"probe_symbol"`
}

// HistoryConfig bounds the summarized conversation history.
type HistoryConfig struct {
	MaxChars int `mapstructure:"max_chars"`
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from config.yaml in the working directory, or from
// the file named by CONFIG_PATH when set. The LLM API key may also be supplied
// via the LLM_API_KEY environment variable.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Running on defaults plus environment is fine; an explicit
		// CONFIG_PATH that cannot be read is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.LLM.APIKey == "" {
		config.LLM.APIKey = os.Getenv("LLM_API_KEY")
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("llm.timeout_seconds", 30)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("market.timeout_seconds", 8)
	v.SetDefault("market.max_symbols", 5)
	v.SetDefault("market.lookback_days", 30)
	v.SetDefault("market.probe_symbol", "^NSEI")
	v.SetDefault("history.max_chars", 4000)
	v.SetDefault("database.path", "data/arthamitra.db")
	v.SetDefault("log.level", "info")
}
