package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything cmd/server needs to wire the process.
type Config struct {
	Server    Server
	Postgres  Postgres
	Redis     Redis
	Kafka     Kafka
	Notify    Notify
	Bootstrap Bootstrap
}

// Server captures HTTP gateway level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
}

// Postgres holds the connection string for the durable stores. Empty means
// run on in-memory stores (development and tests).
type Postgres struct {
	URL string
}

// Redis configures the conversation store backend. Empty URL means Redis is
// not configured and conversations stay in process memory.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the audit event sink. No brokers means audit events stay
// on the in-process store only.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Notify points outbound notices at the chat gateway. An empty URL routes
// notices to the log instead.
type Notify struct {
	WebhookURL string
	Timeout    time.Duration
}

// Bootstrap holds the fixed allow-list of principal ids permitted to claim
// the first admin role. This list is the sole root of trust for admins.
type Bootstrap struct {
	AdminPrincipalIDs []int64
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("FIXDESK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	kafkaTopic := os.Getenv("KAFKA_AUDIT_TOPIC")
	if kafkaTopic == "" {
		kafkaTopic = "fixdesk.audit"
	}

	return Config{
		Server: Server{
			Addr:          addr,
			JWTSigningKey: jwtSigningKey,
		},
		Postgres: Postgres{
			URL: os.Getenv("POSTGRES_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   kafkaTopic,
		},
		Notify: Notify{
			WebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
			Timeout:    envDuration("NOTIFY_TIMEOUT", 5*time.Second),
		},
		Bootstrap: Bootstrap{
			AdminPrincipalIDs: envInt64List("BOOTSTRAP_ADMIN_IDS"),
		},
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt64List(key string) []int64 {
	var out []int64
	for _, p := range envList(key) {
		if v, err := strconv.ParseInt(p, 10, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}
