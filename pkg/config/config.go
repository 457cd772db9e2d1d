package config

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Orders        OrdersConfig
	GCP           GCPConfig
	GCS           GCSConfig
	Media         MediaConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	Metrics       MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ANUCARTS_APP_ENV" required:"true"`
	Port         string `envconfig:"ANUCARTS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ANUCARTS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ANUCARTS_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"ANUCARTS_LOG_FORMAT" default:"json"`

	// CORSOrigins lists the web origins allowed to call the API. The mobile
	// client does not send an Origin header.
	CORSOrigins []string `envconfig:"ANUCARTS_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:8081"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ANUCARTS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN                string        `envconfig:"ANUCARTS_DB_DSN"`
	SlowQueryThreshold time.Duration `envconfig:"ANUCARTS_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`

	LegacyHost     string `envconfig:"ANUCARTS_DB_HOST"`
	LegacyPort     int    `envconfig:"ANUCARTS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ANUCARTS_DB_USER"`
	LegacyPassword string `envconfig:"ANUCARTS_DB_PASSWORD"`
	LegacyName     string `envconfig:"ANUCARTS_DB_NAME"`
	LegacySSLMode  string `envconfig:"ANUCARTS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ANUCARTS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ANUCARTS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ANUCARTS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ANUCARTS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ANUCARTS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ANUCARTS_REDIS_ADDR"`
	Password     string        `envconfig:"ANUCARTS_REDIS_PASSWORD"`
	DB           int           `envconfig:"ANUCARTS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ANUCARTS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ANUCARTS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ANUCARTS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ANUCARTS_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"ANUCARTS_REDIS_WRITE_TIMEOUT" default:"3s"`
	CartCacheTTL time.Duration `envconfig:"ANUCARTS_REDIS_CART_CACHE_TTL" default:"10m"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"ANUCARTS_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"ANUCARTS_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"ANUCARTS_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"ANUCARTS_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"ANUCARTS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"ANUCARTS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"ANUCARTS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"ANUCARTS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"ANUCARTS_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow      time.Duration `envconfig:"ANUCARTS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit  int           `envconfig:"ANUCARTS_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit     int           `envconfig:"ANUCARTS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	SignupWindow     time.Duration `envconfig:"ANUCARTS_AUTH_RATE_LIMIT_SIGNUP_WINDOW" default:"5m"`
	SignupEmailLimit int           `envconfig:"ANUCARTS_AUTH_RATE_LIMIT_SIGNUP_EMAIL_LIMIT" default:"3"`
	SignupIPLimit    int           `envconfig:"ANUCARTS_AUTH_RATE_LIMIT_SIGNUP_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate         bool `envconfig:"ANUCARTS_AUTO_MIGRATE" default:"false"`
	CartClearOnCheckout bool `envconfig:"ANUCARTS_CART_CLEAR_ON_CHECKOUT" default:"false"`
}

type OrdersConfig struct {
	FanoutTimeout      time.Duration `envconfig:"ANUCARTS_ORDERS_FANOUT_TIMEOUT" default:"5s"`
	ReconcileBatchSize int           `envconfig:"ANUCARTS_ORDERS_RECONCILE_BATCH_SIZE" default:"50"`
	ReconcileMinAge    time.Duration `envconfig:"ANUCARTS_ORDERS_RECONCILE_MIN_AGE" default:"1m"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ANUCARTS_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"ANUCARTS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ANUCARTS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName    string        `envconfig:"ANUCARTS_GCS_BUCKET_NAME" required:"true"`
	PublicBaseURL string        `envconfig:"ANUCARTS_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
	UploadTimeout time.Duration `envconfig:"ANUCARTS_GCS_UPLOAD_TIMEOUT" default:"20s"`
}

type MediaConfig struct {
	MaxImageUploadMB int `envconfig:"ANUCARTS_MAX_IMAGE_UPLOAD_MB" default:"10"`
}

// MaxImageBytes returns the upload ceiling in bytes.
func (m MediaConfig) MaxImageBytes() int64 {
	if m.MaxImageUploadMB <= 0 {
		return 10 << 20
	}
	return int64(m.MaxImageUploadMB) << 20
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"ANUCARTS_PUBSUB_ORDERS_TOPIC" required:"true"`
}

// OutboxConfig tunes the relay. A failed publish is retried after
// RetryBase, doubling per attempt up to RetryMax, until MaxAttempts.
type OutboxConfig struct {
	BatchSize      int           `envconfig:"ANUCARTS_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval   time.Duration `envconfig:"ANUCARTS_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts    int           `envconfig:"ANUCARTS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetryBase      time.Duration `envconfig:"ANUCARTS_OUTBOX_RETRY_BASE" default:"2s"`
	RetryMax       time.Duration `envconfig:"ANUCARTS_OUTBOX_RETRY_MAX" default:"5m"`
	PublishTimeout time.Duration `envconfig:"ANUCARTS_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
}

type CronConfig struct {
	Interval           time.Duration `envconfig:"ANUCARTS_CRON_INTERVAL" default:"1m"`
	LockTTL            time.Duration `envconfig:"ANUCARTS_CRON_LOCK_TTL" default:"2m"`
	OutboxRetention    time.Duration `envconfig:"ANUCARTS_CRON_OUTBOX_RETENTION" default:"720h"`
	RetentionBatchSize int           `envconfig:"ANUCARTS_CRON_RETENTION_BATCH_SIZE" default:"500"`
}

// MetricsConfig controls the standalone /metrics listener used by the
// workers. The API serves metrics on its own router.
type MetricsConfig struct {
	Addr string `envconfig:"ANUCARTS_METRICS_ADDR"`
}

// ensureDSN assembles a postgres URL from the discrete ANUCARTS_DB_* parts
// when no DSN is configured.
func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	var missing []string
	for env, v := range map[string]string{EnvDBHost: db.LegacyHost, EnvDBUser: db.LegacyUser, EnvDBName: db.LegacyName} {
		if v == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(db.LegacyUser),
		Host:   net.JoinHostPort(db.LegacyHost, strconv.Itoa(db.LegacyPort)),
		Path:   db.LegacyName,
	}
	if db.LegacyPassword != "" {
		u.User = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	if db.LegacySSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.LegacySSLMode}}.Encode()
	}
	db.DSN = u.String()
	return nil
}
