package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// DBDSN vacío => repos en memoria (modo dev).
	DBDSN string `mapstructure:"DB_DSN"`

	AuthJWTSecret    string `mapstructure:"AUTH_JWT_SECRET"`
	ShareTokenSecret string `mapstructure:"SHARE_TOKEN_SECRET"`

	UserAPIURL   string `mapstructure:"USER_API_URL"`
	UserAPIKey   string `mapstructure:"USER_API_KEY"`
	RecordAPIURL string `mapstructure:"RECORD_API_URL"`
	RecordAPIKey string `mapstructure:"RECORD_API_KEY"`

	// PublicBaseURL es el prefijo de las share URLs que ven los pacientes.
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("USER_API_URL", "http://localhost:5000")
	v.SetDefault("RECORD_API_URL", "http://localhost:5000")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	// bind explícito para que Unmarshal los levante
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DB_DSN")
	v.BindEnv("AUTH_JWT_SECRET")
	v.BindEnv("SHARE_TOKEN_SECRET")
	v.BindEnv("USER_API_URL")
	v.BindEnv("USER_API_KEY")
	v.BindEnv("RECORD_API_URL")
	v.BindEnv("RECORD_API_KEY")
	v.BindEnv("PUBLIC_BASE_URL")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("LOG_FORMAT")

	// .env es opcional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	if c.IsProduction() {
		if c.AuthJWTSecret == "" {
			return fmt.Errorf("AUTH_JWT_SECRET is required in production")
		}
		if c.ShareTokenSecret == "" {
			return fmt.Errorf("SHARE_TOKEN_SECRET is required in production")
		}
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required in production")
		}
	}
	return nil
}
