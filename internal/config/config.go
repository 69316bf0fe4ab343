package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Environment string
	HTTPAddr    string
	DataDir     string
	DBPath      string

	SchoolAPIURL         string
	SchoolAPIToken       string
	SchoolAPITokenFile   string
	SchoolAPITimeoutSec  int
	PendingTTLSeconds    int
	DispatcherPollSec    int
	HTTPShutdownGraceSec int

	APIURL string
}

func FromEnv() Config {
	dataDir := stringOrDefault("TOOL_RUNTIME_DATA_DIR", "/data")
	dbPath := stringOrDefault("TOOL_RUNTIME_DB_PATH", filepath.Join(dataDir, "tool-runtime", "meta.sqlite"))

	return Config{
		Environment: stringOrDefault("TOOL_RUNTIME_ENV", "development"),
		HTTPAddr:    stringOrDefault("TOOL_RUNTIME_HTTP_ADDR", ":8080"),
		DataDir:     dataDir,
		DBPath:      dbPath,

		SchoolAPIURL:         stringOrDefault("TOOL_RUNTIME_SCHOOL_API_URL", "https://api.classpilot.example/v2"),
		SchoolAPIToken:       strings.TrimSpace(os.Getenv("TOOL_RUNTIME_SCHOOL_API_TOKEN")),
		SchoolAPITokenFile:   strings.TrimSpace(os.Getenv("TOOL_RUNTIME_SCHOOL_API_TOKEN_FILE")),
		SchoolAPITimeoutSec:  intOrDefault("TOOL_RUNTIME_SCHOOL_API_TIMEOUT_SECONDS", 15),
		PendingTTLSeconds:    intOrDefault("TOOL_RUNTIME_PENDING_TTL_SECONDS", 600),
		DispatcherPollSec:    intOrDefault("TOOL_RUNTIME_DISPATCHER_POLL_SECONDS", 15),
		HTTPShutdownGraceSec: intOrDefault("TOOL_RUNTIME_HTTP_SHUTDOWN_GRACE_SECONDS", 10),

		APIURL: stringOrDefault("TOOL_RUNTIME_API_URL", "http://localhost:8080"),
	}
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}
