package config

import (
	"os"
	"time"
)

type ServiceConfig struct {
	Port        string
	PostgresCfg PostgresConfig
	RedisCfg    RedisConfig
	RabbitMQCfg RabbitMQConfig
	MinioCfg    MinioConfig
	AuthCfg     AuthConfig
}

type PostgresConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	Username string
	Password string
	Host     string
	Port     string
}

type MinioConfig struct {
	MinioUrl       string
	MinioAccessKey string
	MinioSecretKey string
	MinioSecure    string
	MinioLocation  string
}

// AuthConfig holds the token-signing material and lifetimes. Access and
// refresh tokens are signed with distinct secrets.
type AuthConfig struct {
	AccessTokenSecret    string
	RefreshTokenSecret   string
	AccessTokenLifetime  time.Duration
	RefreshTokenLifetime time.Duration
	AdminUsername        string
	AdminPassword        string
	RequestTimeout       time.Duration
}

func New() *ServiceConfig {
	return &ServiceConfig{
		Port: getEnv("PORT", "8080"),
		PostgresCfg: PostgresConfig{
			DBname:   getEnv("DB_NAME", "rbac_service"),
			Username: os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PWD"),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
		},
		RedisCfg: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PWD"),
			DB:       0,
		},
		RabbitMQCfg: RabbitMQConfig{
			Username: os.Getenv("RABBITMQ_USER"),
			Password: os.Getenv("RABBITMQ_PWD"),
			Host:     getEnv("RABBITMQ_HOST", "localhost"),
			Port:     getEnv("RABBITMQ_PORT", "5672"),
		},
		MinioCfg: MinioConfig{
			MinioUrl:       os.Getenv("MINIO_URL"),
			MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
			MinioSecure:    getEnv("MINIO_SECURE", "false"),
			MinioLocation:  getEnv("MINIO_LOCATION", "us-east-1"),
		},
		AuthCfg: AuthConfig{
			AccessTokenSecret:    os.Getenv("ACCESS_TOKEN_SECRET"),
			RefreshTokenSecret:   os.Getenv("REFRESH_TOKEN_SECRET"),
			AccessTokenLifetime:  getDurationEnv("ACCESS_TOKEN_LIFETIME", 15*time.Minute),
			RefreshTokenLifetime: getDurationEnv("REFRESH_TOKEN_LIFETIME", 7*24*time.Hour),
			AdminUsername:        getEnv("ADMIN_USERNAME", "admin"),
			AdminPassword:        os.Getenv("ADMIN_PWD"),
			RequestTimeout:       getDurationEnv("REQUEST_TIMEOUT", 30*time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
