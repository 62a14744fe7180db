// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	APIName          string `env:"MB_API_APP_NAME" default:"Profile API"`
	APIVersion       string `env:"MB_API_APP_VERSION" default:"v1"`
	ServerPort       string `env:"MB_API_SERVER_PORT" default:"3007"`
	ServerLogLevel   string `env:"MB_API_SERVER_LOG_LEVEL" default:"info"`
	ServerBodyLimit  string `env:"MB_API_SERVER_BODY_LIMIT" default:"100M"`
	BaseURL          string `env:"MB_API_BASE_URL" default:"http://localhost:3007/"`
	PublicDir        string `env:"MB_API_PUBLIC_DIR" default:"./public"`
	TermsFile        string `env:"MB_API_TERMS_FILE" default:"./termos.pdf"`
	PostgresDsn      string `env:"MB_API_PG_DSN"`
	PostgresSchema   string `env:"MB_API_PG_SCHEMA" default:"api"`
	PostgresLogLevel string `env:"MB_API_PG_LOG_LEVEL" default:"warn"`
	RedisHost        string `env:"MB_API_REDIS_HOST" default:"localhost"`
	RedisPort        string `env:"MB_API_REDIS_PORT" default:"6379"`
	RedisPassword    string `env:"MB_API_REDIS_PASSWORD" default:""`

	AuthEnabled      bool          `env:"MB_API_AUTH_ENABLED" default:"true"`
	AuthWhitelist    []string      `env:"MB_API_AUTH_WHITELIST" default:"POST:/api/auth/register,POST:/api/auth/login,POST:/api/auth/confirm,POST:/api/auth/forgot-password,POST:/api/auth/reset-password,GET:/api/"`
	SessionTTL       time.Duration `env:"MB_API_SESSION_TTL" default:"720h"`
	SessionCacheTTL  time.Duration `env:"MB_API_SESSION_CACHE_TTL" default:"60s"`
	SessionPurgeCron string        `env:"MB_API_SESSION_PURGE_CRON" default:"0 * * * *"`

	AvatarStorage  string `env:"MB_API_AVATAR_STORAGE" default:"local"`
	AvatarMaxBytes int64  `env:"MB_API_AVATAR_MAX_BYTES" default:"5242880"`
	MinioEndpoint  string `env:"MB_API_MINIO_ENDPOINT" default:""`
	MinioAccessKey string `env:"MB_API_MINIO_ACCESS_KEY" default:""`
	MinioSecretKey string `env:"MB_API_MINIO_SECRET_KEY" default:""`
	MinioBucket    string `env:"MB_API_MINIO_BUCKET" default:"avatars"`
	MinioUseSSL    bool   `env:"MB_API_MINIO_USE_SSL" default:"false"`
	MinioPublicURL string `env:"MB_API_MINIO_PUBLIC_URL" default:""`

	SMTPHost     string `env:"MB_API_SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort     int    `env:"MB_API_SMTP_PORT" default:"587"`
	SMTPEmail    string `env:"MB_API_SMTP_EMAIL" default:""`
	SMTPPassword string `env:"MB_API_SMTP_EMAIL_PASSWORD" default:""`
	SMTPFrom     string `env:"MB_API_SMTP_FROM" default:"\"ConectPets\" <no-reply@conectpets.com.br>"`
}

var (
	SingleLine string = "--------------------------------------------------"
)

var (
	instance *Config
	once     sync.Once
	err      error
)

// Get returns the application configuration
func Get() (*Config, error) {
	once.Do(func() {
		// a missing .env file is fine, the environment may already be set
		_ = godotenv.Load()
		instance, err = loadConfig()
	})
	return instance, err
}

// loadConfig loads configuration from environment variables
func loadConfig() (*Config, error) {
	cfg := &Config{}
	if err := cfg.loadFromEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv loads configuration from environment variables.
// A field without a `default` tag is required.
func (c *Config) loadFromEnv(lookup func(string) (string, bool)) error {
	t := reflect.TypeOf(*c)
	v := reflect.ValueOf(c).Elem()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		envTag := field.Tag.Get("env")
		if envTag == "" {
			return fmt.Errorf("missing env tag for field %s", field.Name)
		}

		value, ok := lookup(envTag)
		if !ok || value == "" {
			defaultValue, hasDefault := field.Tag.Lookup("default")
			if !hasDefault {
				return fmt.Errorf("env variable %s is required but not set", envTag)
			}
			value = defaultValue
		}

		if err := setField(v.Field(i), value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", envTag, err)
		}
	}

	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func setField(f reflect.Value, value string) error {
	if f.Type() == durationType {
		if value == "" {
			f.SetInt(0)
			return nil
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		f.SetInt(int64(d))
		return nil
	}

	switch f.Kind() {
	case reflect.String:
		f.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		f.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		f.SetInt(n)
	case reflect.Slice:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		f.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field kind %s", f.Kind())
	}
	return nil
}

// String returns the configuration as a string
func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("\n--------------------------------------\n")
	sb.WriteString("Configuration:\n")
	sb.WriteString("--------------------------------------\n")

	t := reflect.TypeOf(*c)
	v := reflect.ValueOf(*c)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		value := fmt.Sprintf("%v", v.Field(i).Interface())

		// Mask sensitive fields
		value = maskSensitiveField(field.Name, value)
		sb.WriteString(fmt.Sprintf("  %s:  %s\n", field.Name, value))
	}

	sb.WriteString("--------------------------------------\n")

	return sb.String()
}

func maskSensitiveField(fieldName, value string) string {
	sensitiveFields := []string{"token", "dsn", "secret", "password", "key"}

	fieldNameLower := strings.ToLower(fieldName)
	for _, sensitive := range sensitiveFields {
		if strings.Contains(fieldNameLower, sensitive) {
			return maskValue(value)
		}
	}

	return value
}

func maskValue(value string) string {
	if len(value) <= 3 {
		return strings.Repeat("*", 7)
	}
	return value[:3] + strings.Repeat("*", 7)
}
