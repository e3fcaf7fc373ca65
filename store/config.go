package store

import (
	"strconv"
	"time"

	"github.com/jacentio/arbor/internal/shard"
)

// DynamoConfig holds configuration for the DynamoDB backend.
type DynamoConfig struct {
	// Table is the name of the single table holding every collection.
	// Default: "arbor_documents"
	Table string

	// NumShards is the number of partitions per collection.
	// Higher values increase write throughput but require more parallel queries
	// when listing or filtering a collection.
	// Default: 1 (no sharding, single query)
	// Max: 256
	//
	// Per-partition limits:
	//   - Writes: 1,000/sec
	//   - Reads: 3,000/sec
	NumShards int

	// MaxRetryElapsed bounds how long a write keeps retrying after
	// optimistic-lock conflicts or unprocessed batch items.
	// Default: 5s
	MaxRetryElapsed time.Duration
}

// DefaultDynamoConfig returns sensible defaults for small datasets.
func DefaultDynamoConfig() DynamoConfig {
	return DynamoConfig{
		Table:           "arbor_documents",
		NumShards:       1,
		MaxRetryElapsed: 5 * time.Second,
	}
}

// dynamoConfigFromDescriptor reads table/shards from descriptor parameters.
// The database segment names the table unless a table parameter overrides it.
func dynamoConfigFromDescriptor(d Descriptor) DynamoConfig {
	cfg := DefaultDynamoConfig()
	if d.Database != "" {
		cfg.Table = d.Database
	}
	cfg.Table = d.Param("table", cfg.Table)
	if n, err := strconv.Atoi(d.Param("shards", "")); err == nil {
		cfg.NumShards = n
	}
	if dur, err := time.ParseDuration(d.Param("retry", "")); err == nil {
		cfg.MaxRetryElapsed = dur
	}
	return cfg
}

// validate ensures config values are within acceptable bounds.
func (c *DynamoConfig) validate() {
	if c.Table == "" {
		c.Table = "arbor_documents"
	}
	if c.NumShards < 1 {
		c.NumShards = 1
	}
	if c.NumShards > shard.MaxShards {
		c.NumShards = shard.MaxShards
	}
	if c.MaxRetryElapsed <= 0 {
		c.MaxRetryElapsed = 5 * time.Second
	}
}
