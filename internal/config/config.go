package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Backend struct {
		BaseURL string
	}
	WebSocket struct {
		Path                 string
		TokenParam           string
		MaxReconnectAttempts int
		BaseDelay            time.Duration
		MaxDelay             time.Duration
	}
	API struct {
		Addr     string
		BasePath string
	}
	TokenStore struct {
		Kind     string
		RedisURL string
		Key      string
	}
	DB struct {
		DSN string
	}
	Kafka struct {
		Broker string
		Topic  string
	}
	Telegram struct {
		BotToken  string
		ChatID    int64
		RateLimit int
	}
	Notification struct {
		QueueSize  int
		MaxWorkers int
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	var cfg Config

	// Backend
	cfg.Backend.BaseURL = strings.TrimRight(getenv("API_BASE_URL"), "/")

	// WebSocket settings
	cfg.WebSocket.Path = getenv("WS_PATH")
	cfg.WebSocket.TokenParam = getenv("WS_TOKEN_PARAM")
	if n, err := strconv.Atoi(getenv("WS_MAX_RECONNECT_ATTEMPTS")); err == nil {
		cfg.WebSocket.MaxReconnectAttempts = n
	}
	if ms, err := strconv.Atoi(getenv("WS_BASE_DELAY_MS")); err == nil {
		cfg.WebSocket.BaseDelay = time.Duration(ms) * time.Millisecond
	}
	if ms, err := strconv.Atoi(getenv("WS_MAX_DELAY_MS")); err == nil {
		cfg.WebSocket.MaxDelay = time.Duration(ms) * time.Millisecond
	}

	// API settings
	cfg.API.Addr = getenv("HTTP_ADDR")
	cfg.API.BasePath = getenv("API_BASE_PATH")

	// Token store
	cfg.TokenStore.Kind = strings.ToLower(getenv("TOKEN_STORE"))
	cfg.TokenStore.RedisURL = getenv("REDIS_URL")
	cfg.TokenStore.Key = getenv("TOKEN_KEY")

	// Optional sinks
	cfg.DB.DSN = getenv("DB_DSN")
	cfg.Kafka.Broker = getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = getenv("KAFKA_TOPIC")
	cfg.Telegram.BotToken = getenv("TELEGRAM_BOT_TOKEN")
	if id, err := strconv.ParseInt(getenv("TELEGRAM_CHAT_ID"), 10, 64); err == nil {
		cfg.Telegram.ChatID = id
	}
	if r, err := strconv.Atoi(getenv("TELEGRAM_RATE_LIMIT")); err == nil {
		cfg.Telegram.RateLimit = r
	}

	// Worker settings
	if qs, err := strconv.Atoi(getenv("QUEUE_SIZE")); err == nil {
		cfg.Notification.QueueSize = qs
	}
	if mw, err := strconv.Atoi(getenv("MAX_WORKERS")); err == nil {
		cfg.Notification.MaxWorkers = mw
	}

	cfg.Logging.Dir = getenv("LOG_DIR")
	cfg.Logging.Level = getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.Backend.BaseURL == "" {
		missing = append(missing, "API_BASE_URL")
	}
	if cfg.TokenStore.Kind == "redis" && cfg.TokenStore.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}
	if cfg.Kafka.Broker != "" && cfg.Kafka.Topic == "" {
		missing = append(missing, "KAFKA_TOPIC")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}
	if _, err := cfg.SocketURL(); err != nil {
		return Config{}, err
	}

	// Apply defaults
	if cfg.WebSocket.Path == "" {
		cfg.WebSocket.Path = "/ws"
	}
	if cfg.WebSocket.TokenParam == "" {
		cfg.WebSocket.TokenParam = "token"
	}
	if cfg.WebSocket.MaxReconnectAttempts == 0 {
		cfg.WebSocket.MaxReconnectAttempts = 5
	}
	if cfg.WebSocket.BaseDelay == 0 {
		cfg.WebSocket.BaseDelay = time.Second
	}
	if cfg.WebSocket.MaxDelay == 0 {
		cfg.WebSocket.MaxDelay = 30 * time.Second
	}
	if cfg.API.Addr == "" {
		cfg.API.Addr = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.TokenStore.Kind == "" {
		cfg.TokenStore.Kind = "memory"
	}
	if cfg.TokenStore.Key == "" {
		cfg.TokenStore.Key = "auth_token"
	}
	if cfg.Telegram.RateLimit == 0 {
		cfg.Telegram.RateLimit = 1
	}
	if cfg.Notification.QueueSize == 0 {
		cfg.Notification.QueueSize = 500
	}
	if cfg.Notification.MaxWorkers == 0 {
		cfg.Notification.MaxWorkers = 4
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}

// SocketURL derives the push endpoint from the backend base URL,
// converting http to ws and https to wss. The path is WebSocket.Path
// or /ws when unset.
func (c Config) SocketURL() (string, error) {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid API_BASE_URL %q: %w", c.Backend.BaseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid API_BASE_URL %q: unsupported scheme %q", c.Backend.BaseURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid API_BASE_URL %q: missing host", c.Backend.BaseURL)
	}
	path := c.WebSocket.Path
	if path == "" {
		path = "/ws"
	}
	u.Path = path
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
