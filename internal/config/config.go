package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request timeout on the HTTP API

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Session
	PublicURL       string        // where this dashboard is reachable, used for the login redirect
	AuthURL         string        // identity provider authorize endpoint
	DefaultProvider string        // provider used when the login request names none
	SessionFile     string        // persisted session (JSON, 0600)
	SessionTTL      time.Duration // lifetime requested on each refresh
	RefreshInterval time.Duration // how often the session is refreshed
	LoginTimeout    time.Duration // how long a started login waits for the redirect
	ResyncInterval  time.Duration // forced full refetch of the list, 0 disables

	ImportFile string // Homepage bookmarks.yaml offered to /api/import (optional, empty = disabled)

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts   []string // restrict the API to specific Host headers (default: PublicURL host)
	AllowedCIDRS   []string // optional, restrict infra endpoints to specific IPs (e.g. "1.2.3.4, 10.0.0.0/8")
	AllowedOrigins []string // CORS origins (default: PublicURL)
	TrustProxy     bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)

	RateLimitBurst     int // mutating API requests allowed in a burst, per client IP
	RateLimitPerMinute int // refill rate of the burst, per client IP
}

// Load reads the configuration from the environment, after loading envFile if it
// exists. Missing required settings panic.
func Load(envFile string) *Config {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			panic(fmt.Sprintf("❌ FATAL: Failed to load %s: %v", envFile, err))
		}
	}

	publicURL := strings.TrimRight(getenv("LINKVAULT_PUBLIC_URL", "http://localhost:8080"), "/")

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("LINKVAULT_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("LINKVAULT_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("LINKVAULT_REQUEST_TIMEOUT", 10*time.Second),

		// Logging
		LogLevel:  getenv("LINKVAULT_LOG_LEVEL", "info"),
		PrettyLog: mustBool("LINKVAULT_PRETTY_LOG", true),

		// Session
		PublicURL:       publicURL,
		AuthURL:         requireEnv("LINKVAULT_AUTH_URL"),
		DefaultProvider: getenv("LINKVAULT_DEFAULT_PROVIDER", "google"),
		SessionFile:     getenv("LINKVAULT_SESSION_FILE", defaultSessionFile()),
		SessionTTL:      mustDuration("LINKVAULT_SESSION_TTL", time.Hour),
		RefreshInterval: mustDuration("LINKVAULT_REFRESH_INTERVAL", 15*time.Minute),
		LoginTimeout:    mustDuration("LINKVAULT_LOGIN_TIMEOUT", 5*time.Minute),
		ResyncInterval:  mustDuration("LINKVAULT_RESYNC_INTERVAL", 5*time.Minute),

		ImportFile: getenv("LINKVAULT_IMPORT_FILE", ""), // Optional, empty = import disabled

		// Redis settings
		RedisAddr:             requireEnv("LINKVAULT_REDIS_ADDR"),
		RedisUser:             getenv("LINKVAULT_REDIS_USERNAME", ""),
		RedisPasswordRequired: mustBool("LINKVAULT_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("LINKVAULT_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("LINKVAULT_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts:   getenvSlice("LINKVAULT_ALLOWED_HOSTS", []string{hostOf(publicURL)}),
		AllowedCIDRS:   parseAllowedIPs(getenv("LINKVAULT_ALLOWED_CIDRS", "")),
		AllowedOrigins: getenvSlice("LINKVAULT_ALLOWED_ORIGINS", []string{publicURL}),
		TrustProxy:     mustBool("LINKVAULT_TRUST_PROXY", false),

		RateLimitBurst:     getenvInt("LINKVAULT_RATE_LIMIT_BURST", 20),
		RateLimitPerMinute: getenvInt("LINKVAULT_RATE_LIMIT_PER_MIN", 60),
	}

	// Validate Redis password configuration
	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: LINKVAULT_REDIS_PASSWORD is required when LINKVAULT_REDIS_PASSWORD_REQUIRED=true")
	}
	if _, err := url.ParseRequestURI(cfg.AuthURL); err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid LINKVAULT_AUTH_URL %q: %v", cfg.AuthURL, err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".linkvault", "session.json")
	}
	return filepath.Join(home, ".linkvault", "session.json")
}

// hostOf returns the Host header value expected for rawURL (host[:port]).
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvSlice(key string, def []string) []string {
	if v := splitAndTrim(os.Getenv(key)); len(v) > 0 {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
