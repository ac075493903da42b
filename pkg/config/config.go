package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "PARTSDEPOT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "PARTSDEPOT_DB_DSN"
	EnvDBHost = "PARTSDEPOT_DB_HOST"
	EnvDBUser = "PARTSDEPOT_DB_USER"
	EnvDBName = "PARTSDEPOT_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Reservations  ReservationsConfig
	Cron          CronConfig
	GCP           GCPConfig
	GCS           GCSConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
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
	Env          string `envconfig:"PARTSDEPOT_APP_ENV" required:"true"`
	Port         string `envconfig:"PARTSDEPOT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PARTSDEPOT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PARTSDEPOT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PARTSDEPOT_DB_DSN"`
	Driver string `envconfig:"PARTSDEPOT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PARTSDEPOT_DB_HOST"`
	LegacyPort     int    `envconfig:"PARTSDEPOT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PARTSDEPOT_DB_USER"`
	LegacyPassword string `envconfig:"PARTSDEPOT_DB_PASSWORD"`
	LegacyName     string `envconfig:"PARTSDEPOT_DB_NAME"`
	LegacySSLMode  string `envconfig:"PARTSDEPOT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PARTSDEPOT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PARTSDEPOT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PARTSDEPOT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PARTSDEPOT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PARTSDEPOT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PARTSDEPOT_REDIS_ADDR"`
	Password     string        `envconfig:"PARTSDEPOT_REDIS_PASSWORD"`
	DB           int           `envconfig:"PARTSDEPOT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PARTSDEPOT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PARTSDEPOT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PARTSDEPOT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PARTSDEPOT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PARTSDEPOT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"PARTSDEPOT_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"PARTSDEPOT_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"PARTSDEPOT_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"PARTSDEPOT_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PARTSDEPOT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PARTSDEPOT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PARTSDEPOT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PARTSDEPOT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PARTSDEPOT_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"PARTSDEPOT_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"PARTSDEPOT_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"PARTSDEPOT_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"PARTSDEPOT_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"PARTSDEPOT_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"PARTSDEPOT_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PARTSDEPOT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PARTSDEPOT_AUTO_MIGRATE" default:"false"`
}

// ReservationsConfig controls the customer hold window.
type ReservationsConfig struct {
	HoldTTL time.Duration `envconfig:"PARTSDEPOT_RESERVATION_HOLD_TTL" default:"24h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"PARTSDEPOT_CRON_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"PARTSDEPOT_CRON_LOCK_TTL" default:"20m"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PARTSDEPOT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PARTSDEPOT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PARTSDEPOT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"PARTSDEPOT_GCS_BUCKET_NAME"`
	UploadURLExpiry   time.Duration `envconfig:"PARTSDEPOT_GCS_UPLOAD_URL_EXPIRY" default:"15m"`
	DownloadURLExpiry time.Duration `envconfig:"PARTSDEPOT_GCS_DOWNLOAD_URL_EXPIRY" default:"1h"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"PARTSDEPOT_PUBSUB_DOMAIN_TOPIC" default:"partsdepot-domain-events"`
	DomainSubscription string `envconfig:"PARTSDEPOT_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PARTSDEPOT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PARTSDEPOT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PARTSDEPOT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
