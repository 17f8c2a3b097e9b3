package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Token    TokenConfig    `mapstructure:"token"`
	Fee      FeeConfig      `mapstructure:"fee"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	Twilio   TwilioConfig   `mapstructure:"twilio"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
}

type ServerConfig struct {
	Port       int    `mapstructure:"port"`
	AckBaseURL string `mapstructure:"ack_base_url"`
}

type TokenConfig struct {
	Secret string `mapstructure:"secret"`
}

// FeeConfig is the fixed price of sending one notification batch,
// in the currency's smallest unit.
type FeeConfig struct {
	Amount   int64  `mapstructure:"amount"`
	Currency string `mapstructure:"currency"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type StripeConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type TwilioConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	From       string `mapstructure:"from"`
}

type DispatchConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	BatchTTL      time.Duration `mapstructure:"batch_ttl"`
}

// LoadConfig reads the YAML config file and environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetEnvPrefix("SANTA")
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.ack_base_url", "http://localhost:8080/confirm")
	viper.SetDefault("fee.amount", 199)
	viper.SetDefault("fee.currency", "usd")
	viper.SetDefault("smtp.port", 587)
	viper.SetDefault("smtp.from", "secretsanta@example.com")
	viper.SetDefault("dispatch.timeout", 15*time.Second)
	viper.SetDefault("dispatch.sweep_interval", 10*time.Minute)
	viper.SetDefault("dispatch.batch_ttl", 24*time.Hour)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if cfg.Token.Secret == "" {
		return nil, fmt.Errorf("token.secret is required")
	}

	return &cfg, nil
}
