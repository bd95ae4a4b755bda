package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string

	StrictGender    bool
	IngestWorkers   int
	CommitGroupSize int

	MatchProbableThreshold float64
	MatchConflictThreshold float64
	MatchAgeTolerance      int

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	WatchLabel       string
	WatchIntervalSec int
	WatchFetchMax    int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "voters.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		StrictGender:    getEnvBool("STRICT_GENDER", false),
		IngestWorkers:   getEnvInt("INGEST_WORKERS", 4),
		CommitGroupSize: getEnvInt("COMMIT_GROUP_SIZE", 100),

		MatchProbableThreshold: getEnvFloat("MATCH_PROBABLE_THRESHOLD", 0.88),
		MatchConflictThreshold: getEnvFloat("MATCH_CONFLICT_THRESHOLD", 0.70),
		MatchAgeTolerance:      getEnvInt("MATCH_AGE_TOLERANCE", 3),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		WatchLabel:       getEnv("WATCH_LABEL", "INBOX"),
		WatchIntervalSec: getEnvInt("WATCH_INTERVAL_SEC", 60),
		WatchFetchMax:    getEnvInt("WATCH_FETCH_MAX", 20),
	}

	if cfg.IngestWorkers < 1 {
		cfg.IngestWorkers = 1
	}
	if cfg.CommitGroupSize < 1 {
		cfg.CommitGroupSize = 1
	}
	if cfg.MatchConflictThreshold > cfg.MatchProbableThreshold {
		return Config{}, fmt.Errorf("MATCH_CONFLICT_THRESHOLD (%.2f) must not exceed MATCH_PROBABLE_THRESHOLD (%.2f)",
			cfg.MatchConflictThreshold, cfg.MatchProbableThreshold)
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
