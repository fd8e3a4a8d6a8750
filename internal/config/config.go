package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses durations
)

// Config holds all runtime configuration values.  Each field
// corresponds to an environment variable.  The types reflect how the
// values are used: strings for identifiers and secrets, durations for
// intervals, int64 for nanoton amounts.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	JWTSecret string // secret used to verify service tokens

	IndexerURL     string        // base URL of the ledger indexer API
	IndexerAPIKey  string        // indexer API key (optional)
	IndexerTimeout time.Duration // per-request indexer timeout

	WalletAddress string // operator account premium payments must reach
	ToleranceNano int64  // absolute amount slack in nanotons

	SweepInterval time.Duration // how often the expiry sweeper runs
}

// Load reads configuration values from environment variables and
// returns a Config.  Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		IndexerURL:     must("INDEXER_URL"),
		IndexerAPIKey:  os.Getenv("INDEXER_API_KEY"),
		IndexerTimeout: parseDur(getenv("INDEXER_TIMEOUT", "10s")),
		WalletAddress:  must("WALLET_ADDRESS"),
		ToleranceNano:  envInt64("AMOUNT_TOLERANCE_NANOTON", 10_000_000),
		SweepInterval:  parseDur(getenv("SWEEP_INTERVAL", "30s")),
	}
}

// must retrieves the value of a required environment variable.  If
// the variable is unset or empty, the application logs a fatal error
// and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// envInt64 reads an int64 with a default; malformed values fall back
// to the default rather than halting, since every caller has a sane
// built-in value.
func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	return def
}
