package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per request; uploads wait for one workflow run per item

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	DBPath         string // SQLite file, parent directory is created on start
	MaxUploadBytes int64  // cap on a multipart upload

	// Dify
	DifyBaseURL        string        // ex: https://api.dify.ai/v1
	DifyCategorizeKey  string        // categorize-json workflow key
	DifyCSVKey         string        // csv-to-json workflow key (optional, empty = /convert disabled)
	DifyUser           string        // end-user id sent with every workflow run
	DifyTimeout        time.Duration // per workflow run
	DifyOutputKey      string        // workflow output holding the classification
	DifyLabelKey       string        // key of the label inside that output
	ClassifyWorkers    int           // concurrent workflow runs per batch (1 = sequential)
	CategorySeedFile   string        // optional YAML list of categories created on start
	SeedReloadInterval time.Duration // 0 = only on start and POST /reload

	// Redis label cache (optional, empty address = no cache)
	RedisAddr           string
	RedisUser           string
	RedisPassword       string
	RedisDB             int
	RedisDT             time.Duration // dial timeout
	RedisRT             time.Duration // read timeout
	RedisWT             time.Duration // write timeout
	RedisMaxWait        time.Duration // max wait between retries
	RedisPingTimeout    time.Duration // timeout for each ping attempt
	RedisPoolSize       int
	RedisConnectTimeout time.Duration // total time to retry connecting
	RedisRetryInterval  time.Duration // initial wait between retries, grows exponentially
	CacheTTL            time.Duration

	// X import (optional, empty client id = /auth/x disabled)
	XClientID     string
	XClientSecret string
	XRedirectURI  string
	XScopes       []string
	XAuthURL      string
	XTokenURL     string
	XAPIBaseURL   string
	XMaxPages     int

	// Abuse control
	RateLimitBurst     int
	RateLimitPerMinute int
	AllowedHosts       []string // optional, restrict access to specific Host headers
	AllowedCIDRS       []string // optional, restrict /readyz and /reload (e.g. "10.0.0.0/8, 127.0.0.1")
	TrustProxy         bool     // true => trust X-Forwarded-For headers
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("SORTMARK_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("SORTMARK_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("SORTMARK_REQUEST_TIMEOUT", 10*time.Minute),

		// Logging
		LogLevel:  getenv("SORTMARK_LOG_LEVEL", "info"),
		PrettyLog: mustBool("SORTMARK_PRETTY_LOG", true),

		// Storage
		DBPath:         getenv("SORTMARK_DB_PATH", "data/sortmark.db"),
		MaxUploadBytes: int64(getenvInt("SORTMARK_MAX_UPLOAD_BYTES", 10<<20)),

		// Dify
		DifyBaseURL:        requireEnv("SORTMARK_DIFY_BASE_URL"),
		DifyCategorizeKey:  requireEnv("SORTMARK_DIFY_API_KEY_CATEGORIZE"),
		DifyCSVKey:         getenv("SORTMARK_DIFY_API_KEY_CSV_TO_JSON", ""),
		DifyUser:           getenv("SORTMARK_DIFY_USER", "sortmark"),
		DifyTimeout:        mustDuration("SORTMARK_DIFY_TIMEOUT", 60*time.Second),
		DifyOutputKey:      getenv("SORTMARK_DIFY_OUTPUT_KEY", "categorized_bookmark_json"),
		DifyLabelKey:       getenv("SORTMARK_DIFY_LABEL_KEY", "分類項目"),
		ClassifyWorkers:    getenvInt("SORTMARK_CLASSIFY_WORKERS", 1),
		CategorySeedFile:   getenv("SORTMARK_CATEGORY_SEED_FILE", ""),
		SeedReloadInterval: mustDuration("SORTMARK_SEED_RELOAD_INTERVAL", 24*time.Hour),

		// Redis settings
		RedisAddr:           getenv("SORTMARK_REDIS_ADDR", ""),
		RedisUser:           getenv("SORTMARK_REDIS_USERNAME", ""),
		RedisPassword:       getenv("SORTMARK_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("SORTMARK_REDIS_DB", 0),
		RedisDT:             mustDuration("SORTMARK_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("SORTMARK_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("SORTMARK_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("SORTMARK_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("SORTMARK_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("SORTMARK_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("SORTMARK_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("SORTMARK_REDIS_RETRY_INTERVAL", 2*time.Second),
		CacheTTL:            mustDuration("SORTMARK_CACHE_TTL", 7*24*time.Hour),

		// X import
		XClientID:     getenv("SORTMARK_X_CLIENT_ID", ""),
		XClientSecret: getenv("SORTMARK_X_CLIENT_SECRET", ""),
		XRedirectURI:  getenv("SORTMARK_X_REDIRECT_URI", "http://localhost:8080/auth/x/callback"),
		XScopes:       splitScopes(getenv("SORTMARK_X_SCOPES", "bookmark.read,tweet.read,users.read,offline.access")),
		XAuthURL:      getenv("SORTMARK_X_AUTH_URL", ""),
		XTokenURL:     getenv("SORTMARK_X_TOKEN_URL", ""),
		XAPIBaseURL:   getenv("SORTMARK_X_API_BASE_URL", ""),
		XMaxPages:     getenvInt("SORTMARK_X_MAX_PAGES", 8),

		// Access restrictions
		RateLimitBurst:     getenvInt("SORTMARK_RATE_LIMIT_BURST", 5),
		RateLimitPerMinute: getenvInt("SORTMARK_RATE_LIMIT_PER_MIN", 10),
		AllowedHosts:       splitAndTrim(getenv("SORTMARK_ALLOWED_HOSTS", "")),
		AllowedCIDRS:       splitAndTrim(getenv("SORTMARK_ALLOWED_CIDRS", "127.0.0.1/32,::1/128")),
		TrustProxy:         mustBool("SORTMARK_TRUST_PROXY", false),
	}

	if cfg.MaxUploadBytes <= 0 {
		panic(fmt.Sprintf("❌ FATAL: SORTMARK_MAX_UPLOAD_BYTES must be > 0, got %d", cfg.MaxUploadBytes))
	}
	if cfg.ClassifyWorkers < 1 {
		panic(fmt.Sprintf("❌ FATAL: SORTMARK_CLASSIFY_WORKERS must be >= 1, got %d", cfg.ClassifyWorkers))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	for _, s := range []*string{&cp.DifyCategorizeKey, &cp.DifyCSVKey, &cp.RedisPassword, &cp.XClientSecret} {
		if *s != "" {
			*s = "***REDACTED***"
		}
	}
	return cp
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

// splitScopes accepts both "a,b" and the space separated form X documents.
func splitScopes(s string) []string {
	return splitAndTrim(strings.ReplaceAll(s, " ", ","))
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
