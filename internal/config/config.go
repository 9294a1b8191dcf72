package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	DBPath        string `mapstructure:"BOOKSHELF_DB" validate:"required"`
	Addr          string `mapstructure:"BOOKSHELF_ADDR" validate:"required"`
	Env           string `mapstructure:"BOOKSHELF_ENV" validate:"oneof=dev prod"`
	SessionSecret string `mapstructure:"BOOKSHELF_SESSION_SECRET" validate:"required,min=16"`
	SecureCookies bool   `mapstructure:"BOOKSHELF_SECURE_COOKIES"`
	HistoryFile   string `mapstructure:"BOOKSHELF_HISTORY_FILE"`
}

var defaults = map[string]any{
	"BOOKSHELF_DB":             "bookshelf.db",
	"BOOKSHELF_ADDR":           ":8080",
	"BOOKSHELF_ENV":            "dev",
	"BOOKSHELF_SESSION_SECRET": "dev-only-session-secret",
	"BOOKSHELF_SECURE_COOKIES": false,
	"BOOKSHELF_HISTORY_FILE":   "",
}

var validate = validator.New()

// Load reads configuration from the environment after loading envFile, if it
// exists. Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the field constraints; callers run it again after applying
// flag overrides.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
