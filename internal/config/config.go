package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port              string
	AllowOrigins      string
	JWTSecret         string
	AggregatorBaseURL string
	AggregatorTimeout int // seconds, per upstream call
	VaultBaseURL      string
	VaultToken        string
	VaultTimeout      int // seconds
	MaxSyncIterations int // hard cap on pagination loop
	SyncCommitTimeout int // seconds, covers the whole commit transaction
	ScanBatchLimit    int // candidate rows per matcher pass
	SyncPerHour       int // sync invocations per user per rolling hour
	TaskQueueSize     int
	AdminCacheTTLSec  int
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func Load() *Config {
	return &Config{
		Port:              getenv("PORT", "8080"),
		AllowOrigins:      getenv("ALLOW_ORIGINS", "*"),
		JWTSecret:         getenv("JWT_SECRET", ""),
		AggregatorBaseURL: getenv("AGGREGATOR_BASE_URL", "https://sandbox.aggregator.example.com"),
		AggregatorTimeout: atoi("AGGREGATOR_TIMEOUT_SECONDS", 15),
		VaultBaseURL:      getenv("VAULT_BASE_URL", "http://127.0.0.1:8200"),
		VaultToken:        getenv("VAULT_TOKEN", ""),
		VaultTimeout:      atoi("VAULT_TIMEOUT_SECONDS", 5),
		MaxSyncIterations: atoi("MAX_SYNC_ITERATIONS", 50),
		SyncCommitTimeout: atoi("SYNC_COMMIT_TIMEOUT_SECONDS", 60),
		ScanBatchLimit:    atoi("SCAN_BATCH_LIMIT", 500),
		SyncPerHour:       atoi("SYNC_PER_HOUR", 10),
		TaskQueueSize:     atoi("TASK_QUEUE_SIZE", 64),
		AdminCacheTTLSec:  atoi("ADMIN_CACHE_TTL_SECONDS", 300),
	}
}
