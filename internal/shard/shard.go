// Package shard provides partition key generation for the sharded document table.
package shard

import (
	"fmt"
	"hash/fnv"
)

// MaxShards is the upper bound on partitions per collection.
const MaxShards = 256

// PartitionKey computes the partition key holding a document of a collection.
// With numShards=1, every document of the collection goes to shard "00".
// With numShards>1, documents are distributed across shards based on the id hash.
func PartitionKey(collection, id string, numShards int) string {
	if numShards <= 1 {
		return fmt.Sprintf("%s#00", collection)
	}
	if numShards > MaxShards {
		numShards = MaxShards
	}
	h := fnv.New32a()
	h.Write([]byte(id))
	shard := h.Sum32() % uint32(numShards)
	return fmt.Sprintf("%s#%02x", collection, shard)
}

// PartitionKeys returns every partition key of a collection, in shard order.
// Listing or scanning a collection fans out over these.
func PartitionKeys(collection string, numShards int) []string {
	if numShards < 1 {
		numShards = 1
	}
	if numShards > MaxShards {
		numShards = MaxShards
	}
	keys := make([]string, numShards)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s#%02x", collection, i)
	}
	return keys
}
