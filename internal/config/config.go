package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
)

// Configは API サーバーの設定
type Config struct {
	Port string // サーバーポート（5555）

	DatabaseURL      string // あれば Postgres* より優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string

	JWTSecret string        // JWT署名シークレット
	TokenTTL  time.Duration // アクセストークンの有効期限

	GoEnv    string // dev/prod
	FEURL    string // フロントURL（CORS）
	ImageDir string // 商品画像の置き場所（/images で配信）

	RefundWindow time.Duration // 返金を受け付ける期間（0 は無制限）

	// 初回起動用の管理者（空なら作らない）
	SeedAdminUsername string
	SeedAdminPassword string

	LogLevel string
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Config{
		Port: os.Getenv("PORT"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		GoEnv:    os.Getenv("GO_ENV"),
		FEURL:    os.Getenv("FE_URL"),
		ImageDir: getenv("IMAGE_DIR", "public/images"),

		SeedAdminUsername: os.Getenv("SEED_ADMIN_USERNAME"),
		SeedAdminPassword: os.Getenv("SEED_ADMIN_PASSWORD"),

		LogLevel: getenv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.TokenTTL, err = durationOr("TOKEN_TTL", 12*time.Hour); err != nil {
		return Config{}, err
	}
	days, err := atoiOr("REFUND_WINDOW_DAYS", 30)
	if err != nil {
		return Config{}, err
	}
	cfg.RefundWindow = time.Duration(days) * 24 * time.Hour

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.DatabaseURL == "" {
		pgPort, err := mustAtoi("POSTGRES_PORT")
		if err != nil {
			return Config{}, err
		}
		cfg.PostgresPort = pgPort

		if cfg.PostgresUser == "" {
			return Config{}, fmt.Errorf("POSTGRES_USER is required")
		}
		if cfg.PostgresPassword == "" {
			return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
		}
		if cfg.PostgresDB == "" {
			return Config{}, fmt.Errorf("POSTGRES_DB is required")
		}
		if cfg.PostgresHost == "" {
			return Config{}, fmt.Errorf("POSTGRES_HOST is required")
		}
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GoEnv == "" {
		return Config{}, fmt.Errorf("GO_ENV is required")
	}
	if cfg.FEURL == "" {
		return Config{}, fmt.Errorf("FE_URL is required")
	}
	if cfg.SeedAdminUsername != "" && len(cfg.SeedAdminPassword) < 8 {
		return Config{}, fmt.Errorf("SEED_ADMIN_PASSWORD must be at least 8 characters")
	}

	return cfg, nil
}

// DSN は gorm(postgres) の接続文字列。
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

// TerminalConfig はレジ端末（cmd/pos）の設定
type TerminalConfig struct {
	APIBaseURL     string
	Terminal       string // セッションのキー（端末名）
	RedisAddr      string // 空ならメモリに保存
	RedisPassword  string
	RequestTimeout time.Duration
	CatalogTTL     time.Duration
	SessionTTL     time.Duration
	LogLevel       string
}

func LoadTerminal() (TerminalConfig, error) {
	cfg := TerminalConfig{
		APIBaseURL:    getenv("POS_API_URL", "http://localhost:5555"),
		Terminal:      getenv("POS_TERMINAL", "till-1"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.RequestTimeout, err = durationOr("POS_REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return TerminalConfig{}, err
	}
	if cfg.CatalogTTL, err = durationOr("POS_CATALOG_TTL", time.Minute); err != nil {
		return TerminalConfig{}, err
	}
	if cfg.SessionTTL, err = durationOr("POS_SESSION_TTL", 12*time.Hour); err != nil {
		return TerminalConfig{}, err
	}
	if cfg.Terminal == "" {
		return TerminalConfig{}, fmt.Errorf("POS_TERMINAL is required")
	}
	return cfg, nil
}

// LogLevel は LOG_LEVEL の文字列を gommon のレベルにする（不明なら INFO）。
func LogLevel(s string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}

func mustAtoi(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func atoiOr(key string, def int) (int, error) {
	if os.Getenv(key) == "" {
		return def, nil
	}
	i, err := mustAtoi(key)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return i, nil
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
