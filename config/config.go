// Package config handles loading and managing application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/gcmtshop/cca-payments/internal/platform/ccavenue"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Gateway   GatewayConfig
	Frontend  FrontendConfig
	CORS      CORSConfig
	Core      CoreConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        `env:"PORT" validate:"required,numeric"`
	GinMode      string        `env:"GIN_MODE" validate:"oneof=debug release test"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" validate:"gt=0"`
	// TrustedProxies may set X-Forwarded-For. Empty means the peer address
	// is the client IP.
	TrustedProxies []string `env:"TRUSTED_PROXIES" validate:"dive,ip|cidr"`
}

// DatabaseConfig holds the order store connection settings.
type DatabaseConfig struct {
	DSN             string        `env:"DATABASE_DSN" validate:"required"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" validate:"gte=0"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" validate:"gt=0"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `env:"DB_AUTO_MIGRATE"`
}

// GatewayConfig holds the merchant credentials and the URLs the gateway
// posts back to.
type GatewayConfig struct {
	MerchantID  string          `env:"CCA_MERCHANT_ID" validate:"required"`
	WorkingKey  ccavenue.Secret `env:"CCA_WORKING_KEY" validate:"required,len=32"`
	AccessCode  string          `env:"CCA_ACCESS_CODE" validate:"required"`
	RedirectURL string          `env:"CCA_REDIRECT_URL" validate:"required,url"`
	CancelURL   string          `env:"CCA_CANCEL_URL" validate:"required,url"`
	Currency    string          `env:"CCA_CURRENCY" validate:"required,len=3"`
	Language    string          `env:"CCA_LANGUAGE" validate:"required"`
}

// FrontendConfig holds the storefront pages a callback redirects to.
type FrontendConfig struct {
	SuccessURL string `env:"FRONTEND_SUCCESS_URL" validate:"required,url"`
	FailureURL string `env:"FRONTEND_FAILURE_URL" validate:"required,url"`
}

// CORSConfig lists the browser origins allowed to call the checkout API.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" validate:"dive,url"`
}

// CoreConfig holds the shop backend API configuration.
// An empty BaseURL disables notifications.
type CoreConfig struct {
	BaseURL string `env:"SHOP_CORE_URL" validate:"omitempty,url"`
	APIKey  string `env:"SHOP_CORE_API_KEY" validate:"required_with=BaseURL"`
}

// RateLimitConfig bounds checkout requests per client IP.
type RateLimitConfig struct {
	PerSecond float64 `env:"CHECKOUT_RATE_LIMIT" validate:"gt=0"`
	Burst     int     `env:"CHECKOUT_RATE_BURST" validate:"gt=0"`
}

// LogConfig controls the logrus logger.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `env:"LOG_FORMAT" validate:"oneof=text json"`
}

const (
	defaultAllowedOrigins = "https://gcmtshop.com,http://localhost:3000"
	// The storefront uses a hash router.
	defaultFrontendURL = "https://gcmtshop.com/#"
)

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			GinMode:        getEnv("GIN_MODE", "debug"),
			ReadTimeout:    getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DATABASE_DSN", ""),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Gateway: GatewayConfig{
			MerchantID:  getEnv("CCA_MERCHANT_ID", ""),
			WorkingKey:  ccavenue.Secret(getEnv("CCA_WORKING_KEY", "")),
			AccessCode:  getEnv("CCA_ACCESS_CODE", ""),
			RedirectURL: getEnv("CCA_REDIRECT_URL", ""),
			CancelURL:   getEnv("CCA_CANCEL_URL", ""),
			Currency:    getEnv("CCA_CURRENCY", "INR"),
			Language:    getEnv("CCA_LANGUAGE", "EN"),
		},
		Frontend: FrontendConfig{
			SuccessURL: strings.TrimRight(getEnv("FRONTEND_SUCCESS_URL", defaultFrontendURL), "/"),
			FailureURL: strings.TrimRight(getEnv("FRONTEND_FAILURE_URL", defaultFrontendURL), "/"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", defaultAllowedOrigins)),
		},
		Core: CoreConfig{
			BaseURL: strings.TrimRight(getEnv("SHOP_CORE_URL", ""), "/"),
			APIKey:  getEnv("SHOP_CORE_API_KEY", ""),
		},
		RateLimit: RateLimitConfig{
			PerSecond: getEnvFloat("CHECKOUT_RATE_LIMIT", 5),
			Burst:     getEnvInt("CHECKOUT_RATE_BURST", 10),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
	}
}

// Validate checks the loaded values. Errors name the offending environment
// variables and never echo their values.
func (c *Config) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})

	err := v.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fmt.Sprintf("%s (%s)", fe.Field(), describe(fe)))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_with":
		return "is required when " + fe.Param() + " is set"
	case "len":
		return "must be " + fe.Param() + " characters"
	case "url":
		return "must be a URL"
	case "ip|cidr":
		return "must be an IP or CIDR"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}

// getEnv retrieves an environment variable with a fallback default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer with a fallback.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean with a fallback.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("30s") or whole seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.TrimRight(part, "/"))
		}
	}
	return out
}
