package config // package config loads application configuration from environment variables

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Config holds the runtime configuration of the catalog server.  Each field
// corresponds to an environment variable; unset or invalid values fall back
// to the defaults documented on Load.
type Config struct {
	Env             string        // application environment (dev, test, prod)
	Host            string        // interface the HTTP server binds to
	Port            string        // HTTP port to listen on
	BooksDBPath     string        // JSON snapshot of the book collection
	UsersDBPath     string        // JSON snapshot of the user collection
	BcryptCost      int           // bcrypt cost for password hashing
	LogLevel        string        // debug, info, warn or error
	LogFormat       string        // text or json
	ShutdownTimeout time.Duration // grace period for in-flight requests
}

// LoadDotEnv reads a .env file from the working directory into the process
// environment.  Variables already present in the environment win.  A missing
// file is not an error.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads configuration values from environment variables.
//
//	APP_ENV           dev
//	APP_HOST          0.0.0.0
//	APP_PORT / PORT   3000
//	BOOKS_DB_PATH     db/books.json
//	USERS_DB_PATH     db/users.json
//	BCRYPT_COST       bcrypt.DefaultCost
//	LOG_LEVEL         info
//	LOG_FORMAT        text
//	SHUTDOWN_TIMEOUT  10s
func Load() Config {
	port := envStr("APP_PORT", "")
	if port == "" {
		port = envStr("PORT", "3000")
	}
	cost := envInt("BCRYPT_COST", bcrypt.DefaultCost)
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return Config{
		Env:             envStr("APP_ENV", "dev"),
		Host:            envStr("APP_HOST", "0.0.0.0"),
		Port:            port,
		BooksDBPath:     envStr("BOOKS_DB_PATH", "db/books.json"),
		UsersDBPath:     envStr("USERS_DB_PATH", "db/users.json"),
		BcryptCost:      cost,
		LogLevel:        envStr("LOG_LEVEL", "info"),
		LogFormat:       envStr("LOG_FORMAT", "text"),
		ShutdownTimeout: envDur("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Addr returns the host:port pair the server listens on.
func (c Config) Addr() string { return c.Host + ":" + c.Port }

func envStr(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
