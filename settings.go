package cachedemo

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/magiconair/properties"
)

// Property keys recognised in the settings file.
const (
	KeyEndpointHost     = "MEMCACHED_CLUSTER_ENDPOINT_HOSTNAME"
	KeyEndpointPort     = "MEMCACHED_CLUSTER_ENDPOINT_PORT"
	KeyExpiry           = "MEMCACHED_CACHE_EXPIRY_IN_SECS"
	KeyFlushOnShutdown  = "MEMCACHED_CACHE_FLUSH_ON_SHUTDOWN"
	KeySuppressLogging  = "MEMCACHED_CLIENT_SUPPRESS_LOGGING"
	KeyShutdownTimeout  = "MEMCACHED_CLIENT_SHUTDOWN_TIMEOUT_IN_SECS"
	KeyGeneratedEntries = "NUMBER_OF_AUTO_GENERATED_ENTRIES"

	KeyDriver           = "CACHE_DRIVER"
	KeyPrefix           = "CACHE_KEY_PREFIX"
	KeyAutoDiscovery    = "MEMCACHED_CLUSTER_AUTO_DISCOVERY"
	KeyOperationTimeout = "MEMCACHED_CLIENT_OPERATION_TIMEOUT_IN_MILLIS"
	KeyMaxIdleConns     = "MEMCACHED_CLIENT_MAX_IDLE_CONNS"
	KeyRedisPassword    = "REDIS_PASSWORD"
	KeyRedisDB          = "REDIS_DB"
	KeyDynamoTable      = "DYNAMODB_TABLE"
	KeyDynamoRegion     = "DYNAMODB_REGION"
	KeyDynamoEndpoint   = "DYNAMODB_ENDPOINT"
	KeyNATSBucket       = "NATS_BUCKET"
	KeySQLDriverName    = "SQL_DRIVER_NAME"
	KeySQLDSN           = "SQL_DSN"
	KeySQLTable         = "SQL_TABLE"
)

// Settings is the immutable value set the demo runs with.
type Settings struct {
	Host               string
	Port               int
	Expiry             time.Duration
	FlushOnShutdown    bool
	SuppressClientLogs bool
	ShutdownTimeout    time.Duration
	GeneratedEntries   int

	Driver           Driver
	Prefix           string
	AutoDiscovery    bool
	OperationTimeout time.Duration
	MaxIdleConns     int
	RedisPassword    string
	RedisDB          int
	DynamoTable      string
	DynamoRegion     string
	DynamoEndpoint   string
	NATSBucket       string
	SQLDriverName    string
	SQLDSN           string
	SQLTable         string
}

// Endpoint returns the host:port the cache is reached on.
func (s Settings) Endpoint() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LoadSettings reads a properties file. Every failure is an ErrConfiguration.
func LoadSettings(path string) (Settings, error) {
	props, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
	}
	return ParseSettings(props)
}

// maxDurationSecs is the largest whole-second count a time.Duration holds.
const maxDurationSecs = int(math.MaxInt64 / int64(time.Second))

// ParseSettings validates props and converts them into Settings.
func ParseSettings(props *properties.Properties) (Settings, error) {
	r := settingsReader{props: props}
	s := Settings{
		Host:               r.requiredString(KeyEndpointHost),
		Port:               r.requiredInt(KeyEndpointPort, 1, 65535),
		Expiry:             time.Duration(r.requiredInt(KeyExpiry, 0, maxDurationSecs)) * time.Second,
		FlushOnShutdown:    r.requiredBool(KeyFlushOnShutdown),
		SuppressClientLogs: r.requiredBool(KeySuppressLogging),
		ShutdownTimeout:    time.Duration(r.requiredInt(KeyShutdownTimeout, 0, maxDurationSecs)) * time.Second,
		GeneratedEntries:   r.requiredInt(KeyGeneratedEntries, 0, -1),

		Prefix:           r.optionalString(KeyPrefix, ""),
		AutoDiscovery:    r.optionalBool(KeyAutoDiscovery, true),
		OperationTimeout: time.Duration(r.optionalInt(KeyOperationTimeout, int(defaultMemcachedTimeout/time.Millisecond), 1)) * time.Millisecond,
		MaxIdleConns:     r.optionalInt(KeyMaxIdleConns, defaultMemcachedMaxIdleConns, 1),
		RedisPassword:    r.optionalString(KeyRedisPassword, ""),
		RedisDB:          r.optionalInt(KeyRedisDB, 0, 0),
		DynamoTable:      r.optionalString(KeyDynamoTable, defaultDynamoTable),
		DynamoRegion:     r.optionalString(KeyDynamoRegion, defaultDynamoRegion),
		DynamoEndpoint:   r.optionalString(KeyDynamoEndpoint, ""),
		NATSBucket:       r.optionalString(KeyNATSBucket, defaultNATSBucket),
		SQLDriverName:    r.optionalString(KeySQLDriverName, "sqlite"),
		SQLDSN:           r.optionalString(KeySQLDSN, "file::memory:?cache=shared"),
		SQLTable:         r.optionalString(KeySQLTable, defaultSQLTable),
	}
	name := r.optionalString(KeyDriver, string(DriverMemcached))
	if d, ok := ParseDriver(strings.ToLower(name)); ok {
		s.Driver = d
	} else {
		r.fail(KeyDriver, name, "unknown driver")
	}
	if r.err != nil {
		return Settings{}, r.err
	}
	return s, nil
}

// StoreConfig maps settings onto store construction.
func (s Settings) StoreConfig() StoreConfig {
	cfg := StoreConfig{
		Driver:                s.Driver,
		Prefix:                s.Prefix,
		MemcachedAddresses:    []string{s.Endpoint()},
		MemcachedDiscovery:    s.AutoDiscovery,
		MemcachedTimeout:      s.OperationTimeout,
		MemcachedMaxIdleConns: s.MaxIdleConns,
		RedisAddr:             s.Endpoint(),
		RedisPassword:         s.RedisPassword,
		RedisDB:               s.RedisDB,
		DynamoTable:           s.DynamoTable,
		DynamoRegion:          s.DynamoRegion,
		DynamoEndpoint:        s.DynamoEndpoint,
		NATSURL:               "nats://" + s.Endpoint(),
		NATSBucket:            s.NATSBucket,
		SQLDriverName:         s.SQLDriverName,
		SQLDSN:                s.SQLDSN,
		SQLTable:              s.SQLTable,
	}
	return cfg
}

// settingsReader records the first conversion failure and keeps returning
// zero values afterwards.
type settingsReader struct {
	props *properties.Properties
	err   error
}

func (r *settingsReader) fail(key, raw, reason string) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s=%q: %s", ErrConfiguration, key, raw, reason)
	}
}

func (r *settingsReader) lookup(key string) (string, bool) {
	raw, ok := r.props.Get(key)
	return strings.TrimSpace(raw), ok
}

func (r *settingsReader) requiredString(key string) string {
	raw, ok := r.lookup(key)
	if !ok || raw == "" {
		r.fail(key, raw, "required")
		return ""
	}
	return raw
}

// requiredInt parses key and checks it against [low, high]; high < 0 means
// unbounded.
func (r *settingsReader) requiredInt(key string, low, high int) int {
	raw, ok := r.lookup(key)
	if !ok {
		r.fail(key, raw, "required")
		return 0
	}
	return r.parseInt(key, raw, low, high)
}

func (r *settingsReader) requiredBool(key string) bool {
	raw, ok := r.lookup(key)
	if !ok {
		r.fail(key, raw, "required")
		return false
	}
	return r.parseBool(key, raw)
}

func (r *settingsReader) optionalString(key, def string) string {
	raw, ok := r.lookup(key)
	if !ok || raw == "" {
		return def
	}
	return raw
}

func (r *settingsReader) optionalInt(key string, def, low int) int {
	raw, ok := r.lookup(key)
	if !ok || raw == "" {
		return def
	}
	return r.parseInt(key, raw, low, -1)
}

func (r *settingsReader) optionalBool(key string, def bool) bool {
	raw, ok := r.lookup(key)
	if !ok || raw == "" {
		return def
	}
	return r.parseBool(key, raw)
}

func (r *settingsReader) parseInt(key, raw string, low, high int) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		r.fail(key, raw, "not an integer")
		return 0
	}
	if n < low || (high >= 0 && n > high) {
		r.fail(key, raw, "out of range")
		return 0
	}
	return n
}

func (r *settingsReader) parseBool(key, raw string) bool {
	b, err := strconv.ParseBool(strings.ToLower(raw))
	if err != nil {
		r.fail(key, raw, "not a boolean")
		return false
	}
	return b
}
