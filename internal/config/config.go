package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// 開発モードを表すAPP_ENVの値。
const EnvDevelopment = "development"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL    string        `envconfig:"DATABASE_URL"`
	DBMaxOpenConns int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	DBMaxIdleConns int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	DBRetryDelay   time.Duration `envconfig:"DB_RETRY_DELAY" default:"100ms"`

	// Token
	JWTSecret string        `envconfig:"JWT_SECRET"`
	JWTExpiry time.Duration `envconfig:"JWT_EXPIRY" default:"8760h"`

	// Password
	BcryptCost int `envconfig:"BCRYPT_COST" default:"10"`

	// Rate Limit（req/min/IP）
	RateLimitAuth int `envconfig:"RATE_LIMIT_AUTH" default:"20"`

	// Server
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`
	AppEnv     string `envconfig:"APP_ENV" default:"production"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`

	// CORS
	CORSAllowedOrigin string `envconfig:"CORS_ALLOWED_ORIGIN" default:"http://localhost:5173"`
}

// IsDevelopment は開発モードかどうかを返す。
// 開発モードではエラーレスポンスに内部エラーの詳細を含める。
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// Required fields
	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", cfg.BcryptCost)
	}
	if cfg.JWTExpiry <= 0 {
		return nil, fmt.Errorf("JWT_EXPIRY must be positive, got %s", cfg.JWTExpiry)
	}

	return cfg, nil
}

// LoadDotEnv は.envファイルの内容を環境変数に読み込む。
// 既に設定済みの環境変数は上書きしない。ファイルが存在しない場合は何もしない。
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
