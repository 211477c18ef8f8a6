/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables (with an
 * optional .env file), providing a centralized way to manage settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"errors"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the custody service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	AppEnv               string `mapstructure:"APP_ENV"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	NotificationExchange string `mapstructure:"NOTIFICATION_EXCHANGE"`
	AuthJWTSecret        string `mapstructure:"AUTH_JWT_SECRET"`
	OtpHashSecret        string `mapstructure:"OTP_HASH_SECRET"`
	OtpExpiryMinutes     int    `mapstructure:"OTP_EXPIRY_MINUTES"`
	OtpMaxAttempts       int    `mapstructure:"OTP_MAX_ATTEMPTS"`
	OtpMaxPerWindow      int    `mapstructure:"OTP_MAX_PER_WINDOW"`
	OtpRateWindowHours   int    `mapstructure:"OTP_RATE_WINDOW_HOURS"`
	OtpSweepSchedule     string `mapstructure:"OTP_SWEEP_SCHEDULE"`
	OtpGeneratePerMinute int    `mapstructure:"OTP_GENERATE_RATE_LIMIT_PER_MINUTE"`
	OtpVerifyPerMinute   int    `mapstructure:"OTP_VERIFY_RATE_LIMIT_PER_MINUTE"`
}

// IsDevelopment reports whether the service runs in a development deployment,
// the only mode allowed to surface plaintext OTP codes in API responses.
func (c Config) IsDevelopment() bool {
	env := strings.ToLower(strings.TrimSpace(c.AppEnv))
	return env == "development" || env == "dev" || env == "local"
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("NOTIFICATION_EXCHANGE", "notifications")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "chequevault:rate_limit")
	viper.SetDefault("OTP_EXPIRY_MINUTES", 10)
	viper.SetDefault("OTP_MAX_ATTEMPTS", 3)
	viper.SetDefault("OTP_MAX_PER_WINDOW", 3)
	viper.SetDefault("OTP_RATE_WINDOW_HOURS", 24)
	viper.SetDefault("OTP_SWEEP_SCHEDULE", "*/5 * * * *")
	viper.SetDefault("OTP_GENERATE_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("OTP_VERIFY_RATE_LIMIT_PER_MINUTE", 30)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("APP_ENV")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("NOTIFICATION_EXCHANGE")
	_ = viper.BindEnv("AUTH_JWT_SECRET")
	_ = viper.BindEnv("OTP_HASH_SECRET", "OTP_HASH_SECRET", "OTP_SECRET")
	_ = viper.BindEnv("OTP_EXPIRY_MINUTES")
	_ = viper.BindEnv("OTP_MAX_ATTEMPTS")
	_ = viper.BindEnv("OTP_MAX_PER_WINDOW")
	_ = viper.BindEnv("OTP_RATE_WINDOW_HOURS")
	_ = viper.BindEnv("OTP_SWEEP_SCHEDULE")
	_ = viper.BindEnv("OTP_GENERATE_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("OTP_VERIFY_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	if err = viper.Unmarshal(&config); err != nil {
		return config, err
	}

	if strings.TrimSpace(config.OtpHashSecret) == "" {
		return config, errors.New("OTP_HASH_SECRET must be configured")
	}
	return config, nil
}
