package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	AWS       AWSConfig
	Classroom ClassroomConfig
	Worker    WorkerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:3001)
	WSAllowedOrigins   []string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/classroom?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the transcript bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	TranscriptsBucket    string
	PresignExpireMinutes int
}

// ClassroomConfig holds per-session limits.
type ClassroomConfig struct {
	ReactionTTL           time.Duration
	MaxChatMessageLength  int
	RecentChatLimit       int
	SubscriberBuffer      int
	EndedSessionRetention time.Duration
}

// WorkerConfig holds background job settings.
type WorkerConfig struct {
	PollTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	InProcess    bool // also run the job processor inside the API server
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
			WSAllowedOrigins:   splitTrim(getEnv("WS_ALLOWED_ORIGINS", ""), ","),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "classroom"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			TranscriptsBucket:    getEnv("AWS_S3_TRANSCRIPTS_BUCKET", "classroom-transcripts"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Classroom: ClassroomConfig{
			ReactionTTL:           getEnvDuration("REACTION_TTL", 3*time.Second),
			MaxChatMessageLength:  getEnvInt("MAX_CHAT_MESSAGE_LENGTH", 2000),
			RecentChatLimit:       getEnvInt("RECENT_CHAT_LIMIT", 50),
			SubscriberBuffer:      getEnvInt("SUBSCRIBER_BUFFER", 256),
			EndedSessionRetention: getEnvDuration("ENDED_SESSION_RETENTION", 10*time.Minute),
		},
		Worker: WorkerConfig{
			PollTimeout:  getEnvDuration("WORKER_POLL_TIMEOUT", 5*time.Second),
			MaxRetries:   getEnvInt("WORKER_MAX_RETRIES", 3),
			RetryBackoff: getEnvDuration("WORKER_RETRY_BACKOFF", 5*time.Second),
			InProcess:    getEnv("WORKER_IN_PROCESS", "false") == "true",
		},
	}
	if cfg.Classroom.ReactionTTL <= 0 {
		return nil, fmt.Errorf("REACTION_TTL must be positive, got %s", cfg.Classroom.ReactionTTL)
	}
	if cfg.Classroom.MaxChatMessageLength <= 0 {
		return nil, fmt.Errorf("MAX_CHAT_MESSAGE_LENGTH must be positive, got %d", cfg.Classroom.MaxChatMessageLength)
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("3s", "10m") or plain seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

// SplitList splits a comma-separated setting, dropping blanks.
func SplitList(s string) []string { return splitTrim(s, ",") }

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
