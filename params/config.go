package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type API struct {
	Addr string
	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string
}

type Storage struct {
	// DataDir holds the Pebble journal (DataDir/journal).
	DataDir string
	// SyncWrites fsyncs every journal append. Off trades durability of the
	// last few orders for throughput.
	SyncWrites bool
}

type Log struct {
	File  string
	Level string
}

type Config struct {
	API     API
	Storage Storage
	Log     Log
	// Markets are registered at boot when not already journaled,
	// e.g. "BTC_USD,ETH_USD".
	Markets []string
}

func Default() Config {
	return Config{
		API: API{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
		Storage: Storage{
			DataDir:    "data",
			SyncWrites: true,
		},
		Log: Log{
			File:  "data/node.log",
			Level: "info",
		},
		Markets: []string{"BTC_USD"},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)
	cfg.Storage.DataDir = getEnv("DATA_DIR", cfg.Storage.DataDir)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)

	if v := os.Getenv("JOURNAL_SYNC"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Storage.SyncWrites = b
		}
	}
	if v := os.Getenv("MARKETS"); v != "" {
		cfg.Markets = splitList(v)
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.API.CORSOrigins = splitList(v)
	}

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
