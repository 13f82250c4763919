package cachedemo

import (
	"log/slog"
	"time"
)

const (
	defaultMemcachedAddress      = "127.0.0.1:11211"
	defaultMemcachedTimeout      = 2500 * time.Millisecond
	defaultMemcachedMaxIdleConns = 2
	defaultMemoryCleanupInterval = 10 * time.Minute
	defaultDynamoTable           = "cache_entries"
	defaultDynamoRegion          = "us-east-1"
	defaultNATSBucket            = "cache"
	defaultSQLTable              = "cache_entries"
)

// StoreConfig controls how a Store is constructed.
type StoreConfig struct {
	Driver Driver

	// Prefix namespaces keys on shared backends. Empty leaves keys untouched.
	Prefix string

	// Observer receives an event after every store operation.
	Observer Observer

	// ClientLogger receives diagnostics from third-party client libraries.
	// Nil silences them.
	ClientLogger *slog.Logger

	MemoryCleanupInterval time.Duration

	// MemcachedAddresses lists host:port endpoints. With discovery enabled the
	// first address is treated as the cluster configuration endpoint.
	MemcachedAddresses    []string
	MemcachedDiscovery    bool
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	// RedisClient is used as-is when set; otherwise one is dialed from
	// RedisAddr.
	RedisClient   RedisClient
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DynamoClient   DynamoAPI
	DynamoTable    string
	DynamoRegion   string
	DynamoEndpoint string

	// NATSKeyValue is used as-is when set; otherwise a bucket is opened on
	// NATSURL.
	NATSKeyValue NATSKeyValue
	NATSURL      string
	NATSBucket   string

	SQLDriverName string
	SQLDSN        string
	SQLTable      string
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.Driver == "" {
		c.Driver = DriverMemcached
	}
	if c.MemoryCleanupInterval <= 0 {
		c.MemoryCleanupInterval = defaultMemoryCleanupInterval
	}
	if len(c.MemcachedAddresses) == 0 {
		c.MemcachedAddresses = []string{defaultMemcachedAddress}
	}
	if c.MemcachedTimeout <= 0 {
		c.MemcachedTimeout = defaultMemcachedTimeout
	}
	if c.MemcachedMaxIdleConns <= 0 {
		c.MemcachedMaxIdleConns = defaultMemcachedMaxIdleConns
	}
	if c.DynamoTable == "" {
		c.DynamoTable = defaultDynamoTable
	}
	if c.DynamoRegion == "" {
		c.DynamoRegion = defaultDynamoRegion
	}
	if c.NATSBucket == "" {
		c.NATSBucket = defaultNATSBucket
	}
	if c.SQLTable == "" {
		c.SQLTable = defaultSQLTable
	}
	return c
}
