package config // package config loads application configuration from environment variables

import (
    "log"
    "os"
    "strconv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations
// and counts.
type Config struct {
    Env                string // application environment (e.g. "dev", "prod")
    Port               string // HTTP port to listen on
    Store              string // seat store backend: "mysql" or "memory"
    DBUser             string // database username
    DBPass             string // database password (optional)
    DBHost             string // database host address
    DBPort             string // database port number
    DBName             string // database name
    JWTSecret          string // secret used to verify JWTs
    HoldTTLMin         int    // pending hold time-to-live in minutes
    ReclaimIntervalSec int    // reaper sweep interval in seconds
    LockRetryAttempts  int    // acquire attempts before reporting contention
    LockRetryBackoffMs int    // base backoff between acquire attempts
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  The tuning knobs
// default rather than fail so a bare .env still boots.
func Load() Config {
    cfg := Config{
        Env:                must("APP_ENV"),
        Port:               must("APP_PORT"),
        Store:              envDefault("STORE", "mysql"),
        DBPass:             os.Getenv("DB_PASS"), // empty allowed
        JWTSecret:          must("JWT_SECRET"),
        HoldTTLMin:         intDefault("HOLD_TTL_MIN", 10),
        ReclaimIntervalSec: intDefault("RECLAIM_INTERVAL_SEC", 60),
        LockRetryAttempts:  intDefault("LOCK_RETRY_ATTEMPTS", 3),
        LockRetryBackoffMs: intDefault("LOCK_RETRY_BACKOFF_MS", 50),
    }
    if cfg.Store == "mysql" {
        cfg.DBUser = must("DB_USER")
        cfg.DBHost = must("DB_HOST")
        cfg.DBPort = must("DB_PORT")
        cfg.DBName = must("DB_NAME")
    }
    return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// envDefault returns the variable's value or the given default when unset.
func envDefault(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

// intDefault reads an optional integer variable; a malformed value is
// fatal, an absent one falls back to the default.
func intDefault(key string, def int) int {
    s := os.Getenv(key)
    if s == "" {
        return def
    }
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
