package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type AppConfig struct {
	HTTPPort              string
	Env                   string
	DatabaseDSN           string
	DBDriver              string
	SwaggerEnable         bool
	DocsPath              string
	MasterToken           string
	CORSAllowedOrigin     string
	LogLevel              string
	SeedFile              string
	EventLogDir           string
	EventWebhookURL       string
	EventWebhookToken     string
	BroadcastWriteTimeout time.Duration
	Postgres              PostgresConfig
	Storage               StorageConfig
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	PublicURL string
}

func (s StorageConfig) Enabled() bool {
	return s.Endpoint != "" && s.AccessKey != "" && s.SecretKey != "" && s.Bucket != ""
}

// ViewerConfig configures cmd/viewer.
type ViewerConfig struct {
	APIURL       string
	HubURL       string
	CommunityID  int
	PollInterval time.Duration
	Token        string
	LogLevel     string
}

func Load() *AppConfig {
	pg := PostgresConfig{
		Host:     getEnv("POSTGRES_HOST", ""),
		Port:     getEnv("POSTGRES_PORT", ""),
		User:     getEnv("POSTGRES_USER", ""),
		Password: getEnv("POSTGRES_PASSWORD", ""),
		DBName:   getEnv("POSTGRES_DB", ""),
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}

	storage := StorageConfig{
		Endpoint:  getEnv("STORAGE_ENDPOINT", getEnv("MINIO_ENDPOINT", "")),
		AccessKey: getEnv("STORAGE_ACCESS_KEY", getEnv("MINIO_ACCESS_KEY", "")),
		SecretKey: getEnv("STORAGE_SECRET_KEY", getEnv("MINIO_SECRET_KEY", "")),
		Bucket:    getEnv("STORAGE_BUCKET", getEnv("MINIO_BUCKET", "")),
		Region:    getEnv("STORAGE_REGION", getEnv("MINIO_REGION", "")),
		UseSSL:    getEnv("STORAGE_USE_SSL", getEnv("MINIO_USE_SSL", "false")) == "true",
		PublicURL: getEnv("STORAGE_PUBLIC_URL", getEnv("MINIO_PUBLIC_URL", "")),
	}

	dsn := getEnv("DATABASE_DSN", "")
	driver := inferDriver(strings.ToLower(getEnv("DB_DRIVER", "")), dsn, pg)

	switch driver {
	case DriverPostgres:
		if dsn == "" {
			dsn = buildPostgresDSN(pg)
		}
	case DriverSQLite:
		if dsn == "" {
			dsn = "file:checkin.db"
		}
	}

	return &AppConfig{
		HTTPPort:              getEnv("HTTP_PORT", "8080"),
		Env:                   getEnv("APP_ENV", "development"),
		DatabaseDSN:           dsn,
		DBDriver:              driver,
		SwaggerEnable:         getEnv("SWAGGER_ENABLE", "true") == "true",
		DocsPath:              getEnv("DOCS_PATH", "docs/openapi.yaml"),
		MasterToken:           getEnv("API_MASTER_TOKEN", ""),
		CORSAllowedOrigin:     strings.TrimSpace(getEnv("CORS_ALLOWED_ORIGIN", "")),
		LogLevel:              strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		SeedFile:              getEnv("SEED_FILE", ""),
		EventLogDir:           getEnv("EVENT_LOG_DIR", ""),
		EventWebhookURL:       strings.TrimSpace(getEnv("EVENT_WEBHOOK_URL", "")),
		EventWebhookToken:     getEnv("EVENT_WEBHOOK_TOKEN", ""),
		BroadcastWriteTimeout: getDuration("BROADCAST_WRITE_TIMEOUT", 5*time.Second),
		Postgres:              pg,
		Storage:               storage,
	}
}

// inferDriver picks the backend when DB_DRIVER is unset: postgres for a
// postgres DSN or POSTGRES_HOST, sqlite for any other DSN, memory otherwise.
func inferDriver(explicit, dsn string, pg PostgresConfig) string {
	switch explicit {
	case DriverMemory, DriverSQLite, DriverPostgres:
		return explicit
	case "postgresql", "pg":
		return DriverPostgres
	case "sqlite3":
		return DriverSQLite
	}
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres"):
		return DriverPostgres
	case pg.Host != "":
		return DriverPostgres
	case dsn != "":
		return DriverSQLite
	default:
		return DriverMemory
	}
}

func LoadViewer() *ViewerConfig {
	apiURL := strings.TrimRight(getEnv("CHECKIN_API_URL", "http://localhost:8080"), "/")
	hubURL := getEnv("CHECKIN_HUB_URL", "")
	if hubURL == "" {
		hubURL = deriveHubURL(apiURL)
	}
	community := 0
	fmt.Sscanf(getEnv("CHECKIN_COMMUNITY_ID", "0"), "%d", &community)
	return &ViewerConfig{
		APIURL:       apiURL,
		HubURL:       hubURL,
		CommunityID:  community,
		PollInterval: getDuration("POLL_INTERVAL", 10*time.Second),
		Token:        getEnv("API_MASTER_TOKEN", ""),
		LogLevel:     strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
	}
}

// deriveHubURL maps http(s)://host to ws(s)://host/eventHub.
func deriveHubURL(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return "ws://localhost:8080/eventHub"
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/eventHub"
	u.RawQuery = ""
	return u.String()
}

func buildPostgresDSN(pg PostgresConfig) string {
	host := pg.Host
	if host == "" {
		host = "localhost"
	}
	port := pg.Port
	if port == "" {
		port = "5432"
	}
	ssl := pg.SSLMode
	if ssl == "" {
		ssl = "disable"
	}

	u := &url.URL{Scheme: "postgres", Host: fmt.Sprintf("%s:%s", host, port)}
	if pg.User != "" {
		if pg.Password != "" {
			u.User = url.UserPassword(pg.User, pg.Password)
		} else {
			u.User = url.User(pg.User)
		}
	}
	if pg.DBName != "" {
		u.Path = pg.DBName
	}
	q := u.Query()
	q.Set("sslmode", ssl)
	u.RawQuery = q.Encode()
	return u.String()
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("config: invalid %s=%q, using %s", key, raw, def)
		return def
	}
	return d
}

func MustLoad() *AppConfig {
	cfg := Load()
	if cfg.HTTPPort == "" {
		log.Fatal("HTTP_PORT required")
	}
	if cfg.DBDriver == DriverPostgres && cfg.DatabaseDSN == "" {
		log.Fatal("DATABASE_DSN required for postgres driver")
	}
	return cfg
}
