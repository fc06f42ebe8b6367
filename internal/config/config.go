package config

import (
	"fmt"
	"os"
	"time"

	pkgcfg "github.com/Skotchmaster/cactus_shop/pkg/config"
)

type S3Config struct {
	Bucket   string
	Region   string
	Key      string
	Secret   string
	Endpoint string
	URL      string
}

type Config struct {
	ServiceName string
	ServerPort  string
	LogLevel    string

	DatabaseURL string
	JWTSecret   []byte
	AuthURL     string

	KafkaBrokers []string

	ESURL      string
	ESUser     string
	ESPassword string

	RedisAddr     string
	RedisPassword string
	SidebarTTL    time.Duration

	StorageDriver    string // local | s3
	StorageLocalRoot string
	StorageURL       string
	S3               S3Config
}

// Load reads the service configuration from the environment. DATABASE_URL and
// JWT_SECRET are required; every other integration is optional.
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: pkgcfg.EnvDefault("SERVICE_NAME", "cactus_shop"),
		ServerPort:  pkgcfg.EnvDefault("SERVER_PORT", "8080"),
		LogLevel:    os.Getenv("LOG_LEVEL"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   []byte(os.Getenv("JWT_SECRET")),
		AuthURL:     os.Getenv("AUTH_URL"),

		KafkaBrokers: pkgcfg.CSV(os.Getenv("KAFKA_BROKERS")),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		SidebarTTL:    pkgcfg.EnvDurationDefault("SIDEBAR_CACHE_TTL", 5*time.Minute),

		StorageDriver:    pkgcfg.EnvDefault("STORAGE_DRIVER", "local"),
		StorageLocalRoot: pkgcfg.EnvDefault("STORAGE_LOCAL_ROOT", "./media"),
		StorageURL:       pkgcfg.EnvDefault("STORAGE_URL", "/media"),
		S3: S3Config{
			Bucket:   os.Getenv("S3_BUCKET"),
			Region:   pkgcfg.EnvDefault("S3_REGION", "us-east-1"),
			Key:      os.Getenv("S3_KEY"),
			Secret:   os.Getenv("S3_SECRET"),
			Endpoint: os.Getenv("S3_ENDPOINT"),
			URL:      os.Getenv("S3_URL"),
		},
	}

	if err := pkgcfg.MustNonEmpty("DATABASE_URL", cfg.DatabaseURL); err != nil {
		return nil, err
	}
	if err := pkgcfg.MustNonEmptyBytes("JWT_SECRET", cfg.JWTSecret); err != nil {
		return nil, err
	}
	switch cfg.StorageDriver {
	case "local":
	case "s3":
		if err := pkgcfg.MustNonEmpty("S3_BUCKET", cfg.S3.Bucket); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	return cfg, nil
}

// LoadDB reads only what the migrate and seed commands need.
func LoadDB() (string, error) {
	dsn := os.Getenv("DATABASE_URL")
	if err := pkgcfg.MustNonEmpty("DATABASE_URL", dsn); err != nil {
		return "", err
	}
	return dsn, nil
}
