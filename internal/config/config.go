package config

import (
	"errors"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	ErrAppPortRange             = errors.New("APP_PORT must be between 1 and 65535")
	ErrBcryptCostRange          = errors.New("BCRYPT_SALT_ROUNDS must be between 10 and 16")
	ErrSignInRatePerMin         = errors.New("SIGNIN_RATE_PER_MIN must be greater than or equal to 1")
	ErrLogLevelEmpty            = errors.New("LOG_LEVEL cannot be empty")
	ErrLogFormatEmpty           = errors.New("LOG_FORMAT cannot be empty")
	ErrMongoURIEmpty            = errors.New("MONGO_URI cannot be empty")
	ErrMongoDBNameEmpty         = errors.New("MONGO_DB_NAME cannot be empty")
	ErrJWTSecretRequired        = errors.New("JWT_SECRET is required")
	ErrJWTSecretTooShort        = errors.New("JWT_SECRET must be at least 32 characters for HS256")
	ErrJWTRefreshSecretRequired = errors.New("JWT_REFRESH_SECRET is required")
	ErrJWTRefreshSecretShort    = errors.New("JWT_REFRESH_SECRET must be at least 32 characters for HS256")
	ErrJWTSecretsIdentical      = errors.New("JWT_REFRESH_SECRET must differ from JWT_SECRET")
	ErrJWTAlgorithmUnsupported  = errors.New("JWT_ALGORITHM must be HS256")
	ErrJWTExpire                = errors.New("JWT_EXPIRE must be greater than 0")
	ErrJWTRefreshExpire         = errors.New("JWT_REFRESH_EXPIRE must be greater than JWT_EXPIRE")
	ErrCookieExpiresIn          = errors.New("JWT_COOKIE_EXPIRES_IN must be greater than 0")
	ErrUserRateLimit            = errors.New("USER_RATE_LIMIT_MAX, USER_RATE_LIMIT_WINDOW and USER_RATE_LIMIT_CACHE_SIZE must be greater than 0")
	ErrEmailTimeout             = errors.New("EMAIL_TIMEOUT must be greater than 0")
	ErrWSMaxSession             = errors.New("WS_MAX_SESSION_SEC must be greater than 0")
	ErrWSOutboxBuffer           = errors.New("WS_OUTBOX_BUFFER must be greater than 0")
	ErrClientURLEmpty           = errors.New("CLIENT_URL cannot be empty")
)

// Config holds all application configuration
type Config struct {
	AppPort               int    `mapstructure:"APP_PORT"`
	NodeEnv               string `mapstructure:"NODE_ENV"`
	DevMode               bool   `mapstructure:"DEV_MODE"`
	LogLevel              string `mapstructure:"LOG_LEVEL"`
	LogFormat             string `mapstructure:"LOG_FORMAT"`
	RequestLoggingEnabled bool   `mapstructure:"REQUEST_LOGGING_ENABLED"`
	RouteMetricsEnabled   bool   `mapstructure:"ROUTE_METRICS_ENABLED"`

	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`

	JWTSecret          string        `mapstructure:"JWT_SECRET"`
	JWTAlgorithm       string        `mapstructure:"JWT_ALGORITHM"`
	JWTExpire          time.Duration `mapstructure:"JWT_EXPIRE"`
	JWTRefreshSecret   string        `mapstructure:"JWT_REFRESH_SECRET"`
	JWTRefreshExpire   time.Duration `mapstructure:"JWT_REFRESH_EXPIRE"`
	JWTCookieExpiresIn int           `mapstructure:"JWT_COOKIE_EXPIRES_IN"`
	BcryptCost         int           `mapstructure:"BCRYPT_SALT_ROUNDS"`
	ClientURL          string        `mapstructure:"CLIENT_URL"`

	SignInRatePerMin       int           `mapstructure:"SIGNIN_RATE_PER_MIN"`
	UserRateLimitMax       int           `mapstructure:"USER_RATE_LIMIT_MAX"`
	UserRateLimitWindow    time.Duration `mapstructure:"USER_RATE_LIMIT_WINDOW"`
	UserRateLimitCacheSize int           `mapstructure:"USER_RATE_LIMIT_CACHE_SIZE"`

	SMTPHost     string        `mapstructure:"SMTP_HOST"`
	SMTPPort     int           `mapstructure:"SMTP_PORT"`
	SMTPUsername string        `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string        `mapstructure:"SMTP_PASSWORD"`
	EmailFrom    string        `mapstructure:"EMAIL_FROM"`
	EmailTimeout time.Duration `mapstructure:"EMAIL_TIMEOUT"`

	WSMaxSessionSec int `mapstructure:"WS_MAX_SESSION_SEC"`
	WSOutboxBuffer  int `mapstructure:"WS_OUTBOX_BUFFER"`

	SubscriptionSweepSpec  string `mapstructure:"SUBSCRIPTION_SWEEP_SPEC"`
	PyroscopeServerAddress string `mapstructure:"PYROSCOPE_SERVER_ADDRESS"`
}

// IsProduction reports whether cookies must be marked secure.
func (c Config) IsProduction() bool {
	return c.NodeEnv == "production"
}

// CookieTTL is the lifetime of the auth cookies.
func (c Config) CookieTTL() time.Duration {
	return time.Duration(c.JWTCookieExpiresIn) * 24 * time.Hour
}

var (
	cachedConfig *Config
	configMutex  sync.RWMutex
)

// Load loads configuration from environment variables and .env file
// It caches the result for subsequent calls
func Load() (Config, error) {
	configMutex.RLock()
	if cachedConfig != nil {
		defer configMutex.RUnlock()
		return *cachedConfig, nil
	}
	configMutex.RUnlock()

	configMutex.Lock()
	defer configMutex.Unlock()

	// another goroutine may have loaded it while we waited for the lock
	if cachedConfig != nil {
		return *cachedConfig, nil
	}

	v := viper.New()

	v.SetDefault("APP_PORT", 8080)
	v.SetDefault("NODE_ENV", "development")
	v.SetDefault("DEV_MODE", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("REQUEST_LOGGING_ENABLED", true)
	v.SetDefault("ROUTE_METRICS_ENABLED", true)
	v.SetDefault("MONGO_URI", "mongodb://mongo:27017")
	v.SetDefault("MONGO_DB_NAME", "infinitiflow")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ALGORITHM", "HS256")
	v.SetDefault("JWT_EXPIRE", "15m")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_REFRESH_EXPIRE", "720h")
	v.SetDefault("JWT_COOKIE_EXPIRES_IN", 7)
	v.SetDefault("BCRYPT_SALT_ROUNDS", 12)
	v.SetDefault("CLIENT_URL", "http://localhost:3000")
	v.SetDefault("SIGNIN_RATE_PER_MIN", 20)
	v.SetDefault("USER_RATE_LIMIT_MAX", 100)
	v.SetDefault("USER_RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("USER_RATE_LIMIT_CACHE_SIZE", 10000)
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("EMAIL_FROM", "InfinitiFlow <noreply@infinitiflow.io>")
	v.SetDefault("EMAIL_TIMEOUT", "10s")
	v.SetDefault("WS_MAX_SESSION_SEC", 900)
	v.SetDefault("WS_OUTBOX_BUFFER", 64)
	v.SetDefault("SUBSCRIPTION_SWEEP_SPEC", "@every 1h")
	v.SetDefault("PYROSCOPE_SERVER_ADDRESS", "")

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	// a missing .env is fine
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.DevMode {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = "dev-only-access-secret-with-32-plus-characters"
		}
		if cfg.JWTRefreshSecret == "" {
			cfg.JWTRefreshSecret = "dev-only-refresh-secret-with-32-plus-characters"
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	cachedConfig = &cfg

	return cfg, nil
}

// ResetCache clears the cached configuration (for testing purposes)
func ResetCache() {
	configMutex.Lock()
	defer configMutex.Unlock()
	cachedConfig = nil
}

// Validate checks if required configuration fields are properly set
func (c Config) Validate() error {
	if c.AppPort <= 0 || c.AppPort > 65535 {
		return ErrAppPortRange
	}
	if c.BcryptCost < 10 || c.BcryptCost > 16 {
		return ErrBcryptCostRange
	}
	if c.SignInRatePerMin < 1 {
		return ErrSignInRatePerMin
	}
	if c.LogLevel == "" {
		return ErrLogLevelEmpty
	}
	if c.LogFormat == "" {
		return ErrLogFormatEmpty
	}
	if c.MongoURI == "" {
		return ErrMongoURIEmpty
	}
	if c.MongoDBName == "" {
		return ErrMongoDBNameEmpty
	}
	if c.JWTAlgorithm != "HS256" {
		return ErrJWTAlgorithmUnsupported
	}
	if c.JWTSecret == "" {
		return ErrJWTSecretRequired
	}
	if len(c.JWTSecret) < 32 {
		return ErrJWTSecretTooShort
	}
	if c.JWTRefreshSecret == "" {
		return ErrJWTRefreshSecretRequired
	}
	if len(c.JWTRefreshSecret) < 32 {
		return ErrJWTRefreshSecretShort
	}
	if c.JWTRefreshSecret == c.JWTSecret {
		return ErrJWTSecretsIdentical
	}
	if c.JWTExpire <= 0 {
		return ErrJWTExpire
	}
	if c.JWTRefreshExpire <= c.JWTExpire {
		return ErrJWTRefreshExpire
	}
	if c.JWTCookieExpiresIn <= 0 {
		return ErrCookieExpiresIn
	}
	if c.ClientURL == "" {
		return ErrClientURLEmpty
	}
	if c.UserRateLimitMax <= 0 || c.UserRateLimitWindow <= 0 || c.UserRateLimitCacheSize <= 0 {
		return ErrUserRateLimit
	}
	if c.EmailTimeout <= 0 {
		return ErrEmailTimeout
	}
	if c.WSMaxSessionSec <= 0 {
		return ErrWSMaxSession
	}
	if c.WSOutboxBuffer <= 0 {
		return ErrWSOutboxBuffer
	}
	return nil
}
