package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultEnv             = "development"
	defaultHTTPHost        = "0.0.0.0"
	defaultHTTPPort        = 8080
	defaultRedisAddr       = "localhost:6379"
	defaultRedisDB         = 0
	defaultCacheTTLSeconds = 5

	defaultSymbols        = "AAPL:150,GOOGL:2800,MSFT:380,BTC-USD:42000"
	defaultUpdateInterval = 10 * time.Millisecond
	defaultVolatility     = 0.002
	defaultBufferSize     = 10000
	defaultGapThreshold   = 10
	defaultSnapshotDepth  = 10
	defaultSpreadAlertPct = 5.0
	defaultAuditInterval  = 100
	defaultPersistPeriod  = 5 * time.Second

	defaultAMQPExchange = "market.updates"
	defaultAMQPPrefetch = 64
)

// Config keeps the runtime configuration for the pipeline.
type Config struct {
	Env      string
	HTTP     HTTPConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Feed     FeedConfig
	RabbitMQ RabbitMQConfig
}

// HTTPConfig holds HTTP server related settings.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr renders the listen address in host:port form.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// PostgresConfig stores database connection parameters. An empty DSN
// disables snapshot persistence.
type PostgresConfig struct {
	DSN string
}

// Enabled reports whether a storage backend is configured.
func (p PostgresConfig) Enabled() bool {
	return p.DSN != ""
}

// RedisConfig stores Redis connection parameters.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig stores HTTP response cache behavior.
type CacheConfig struct {
	TTLSeconds int
}

// FeedConfig controls the incoming update feed and book maintenance.
type FeedConfig struct {
	// Source selects where updates come from: "sim" runs the in-process
	// generator, "amqp" consumes the broker exchange.
	Source string

	// Symbols maps each tracked symbol to its starting reference price.
	Symbols map[string]decimal.Decimal

	UpdateInterval time.Duration
	Volatility     float64
	BufferSize     int
	GapThreshold   uint64
	SnapshotDepth  int
	SpreadAlertPct float64

	// AuditInterval is the accepted-update count between full book audits.
	AuditInterval uint64

	// PersistPeriod is how often book snapshots are written to storage.
	PersistPeriod time.Duration
}

// SymbolList returns the configured symbols in input order.
func (f FeedConfig) SymbolList() []string {
	symbols := make([]string, 0, len(f.Symbols))
	for symbol := range f.Symbols {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// RabbitMQConfig stores broker connection parameters. An empty URL
// disables publishing.
type RabbitMQConfig struct {
	URL      string
	Exchange string
	Prefetch int
}

// Enabled reports whether a broker is configured.
func (r RabbitMQConfig) Enabled() bool {
	return r.URL != ""
}

// Load builds Config from environment variables.
func Load() (*Config, error) {
	host := getString("HTTP_HOST", defaultHTTPHost)
	port, err := getInt("HTTP_PORT", defaultHTTPPort)
	if err != nil {
		return nil, fmt.Errorf("parse HTTP_PORT: %w", err)
	}

	redisDB, err := getInt("REDIS_DB", defaultRedisDB)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_DB: %w", err)
	}
	cacheTTL, err := getInt("CACHE_TTL_SECONDS", defaultCacheTTLSeconds)
	if err != nil {
		return nil, fmt.Errorf("parse CACHE_TTL_SECONDS: %w", err)
	}

	feed, err := loadFeed()
	if err != nil {
		return nil, err
	}

	prefetch, err := getInt("AMQP_PREFETCH", defaultAMQPPrefetch)
	if err != nil {
		return nil, fmt.Errorf("parse AMQP_PREFETCH: %w", err)
	}

	return &Config{
		Env:  getString("APP_ENV", defaultEnv),
		HTTP: HTTPConfig{Host: host, Port: port},
		Postgres: PostgresConfig{
			DSN: os.Getenv("DATABASE_DSN"),
		},
		Redis: RedisConfig{
			Addr:     getString("REDIS_ADDR", defaultRedisAddr),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Cache: CacheConfig{
			TTLSeconds: cacheTTL,
		},
		Feed: feed,
		RabbitMQ: RabbitMQConfig{
			URL:      os.Getenv("AMQP_URL"),
			Exchange: getString("AMQP_EXCHANGE", defaultAMQPExchange),
			Prefetch: prefetch,
		},
	}, nil
}

func loadFeed() (FeedConfig, error) {
	symbols, err := ParseSymbols(getString("FEED_SYMBOLS", defaultSymbols))
	if err != nil {
		return FeedConfig{}, fmt.Errorf("parse FEED_SYMBOLS: %w", err)
	}

	interval, err := getDuration("FEED_UPDATE_INTERVAL", defaultUpdateInterval)
	if err != nil {
		return FeedConfig{}, fmt.Errorf("parse FEED_UPDATE_INTERVAL: %w", err)
	}
	volatility, err := getFloat("FEED_VOLATILITY", defaultVolatility)
	if err != nil {
		return FeedConfig{}, fmt.Errorf("parse FEED_VOLATILITY: %w", err)
	}
	bufferSize, err := getInt("FEED_BUFFER_SIZE", defaultBufferSize)
	if err != nil {
		return FeedConfig{}, fmt.Errorf("parse FEED_BUFFER_SIZE: %w", err)
	}
	gapThreshold, err := getInt("FEED_GAP_THRESHOLD", defaultGapThreshold)
	if err != nil {
		return FeedConfig{}, fmt.Errorf("parse FEED_GAP_THRESHOLD: %w", err)
	}
	snapshotDepth, err := getInt("FEED_SNAPSHOT_DEPTH", defaultSnapshotDepth)
	if err != nil {
		return FeedConfig{}, fmt.Errorf("parse FEED_SNAPSHOT_DEPTH: %w", err)
	}
	spreadAlert, err := getFloat("FEED_SPREAD_ALERT_PCT", defaultSpreadAlertPct)
	if err != nil {
		return FeedConfig{}, fmt.Errorf("parse FEED_SPREAD_ALERT_PCT: %w", err)
	}
	auditInterval, err := getInt("FEED_AUDIT_INTERVAL", defaultAuditInterval)
	if err != nil {
		return FeedConfig{}, fmt.Errorf("parse FEED_AUDIT_INTERVAL: %w", err)
	}
	persistPeriod, err := getDuration("FEED_PERSIST_PERIOD", defaultPersistPeriod)
	if err != nil {
		return FeedConfig{}, fmt.Errorf("parse FEED_PERSIST_PERIOD: %w", err)
	}

	source := getString("FEED_SOURCE", "sim")
	switch source {
	case "sim", "amqp":
	default:
		return FeedConfig{}, fmt.Errorf("FEED_SOURCE must be sim or amqp, got %q", source)
	}

	return FeedConfig{
		Source:         source,
		Symbols:        symbols,
		UpdateInterval: interval,
		Volatility:     volatility,
		BufferSize:     bufferSize,
		GapThreshold:   uint64(gapThreshold),
		SnapshotDepth:  snapshotDepth,
		SpreadAlertPct: spreadAlert,
		AuditInterval:  uint64(auditInterval),
		PersistPeriod:  persistPeriod,
	}, nil
}

// ParseSymbols parses a "SYM:price,SYM:price" list into a symbol to
// reference price map.
func ParseSymbols(raw string) (map[string]decimal.Decimal, error) {
	symbols := make(map[string]decimal.Decimal)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		symbol, priceText, found := strings.Cut(part, ":")
		if !found {
			return nil, fmt.Errorf("symbol entry %q must be SYMBOL:price", part)
		}
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			return nil, fmt.Errorf("empty symbol in entry %q", part)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(priceText))
		if err != nil {
			return nil, fmt.Errorf("parse price for %s: %w", symbol, err)
		}
		if price.Sign() <= 0 {
			return nil, fmt.Errorf("price for %s must be positive", symbol)
		}
		symbols[symbol] = price
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols configured")
	}
	return symbols, nil
}

func getString(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to int: %w", key, value, err)
	}
	return parsed, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to float: %w", key, value, err)
	}
	return parsed, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to duration: %w", key, value, err)
	}
	return parsed, nil
}
