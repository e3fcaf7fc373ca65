package shard

import (
	"strings"
	"testing"
)

func TestPartitionKey_SingleShard(t *testing.T) {
	// With numShards=1, all documents should go to shard "00"
	tests := []struct {
		collection string
		id         string
		expected   string
	}{
		{"users", "u1", "users#00"},
		{"users", "u2", "users#00"},
		{"config", "u1", "config#00"},
		{"orders", "42", "orders#00"},
	}

	for _, tt := range tests {
		result := PartitionKey(tt.collection, tt.id, 1)
		if result != tt.expected {
			t.Errorf("PartitionKey(%q, %q, 1) = %q, want %q",
				tt.collection, tt.id, result, tt.expected)
		}
	}
}

func TestPartitionKey_ZeroShards(t *testing.T) {
	// Zero or negative shards should be treated as 1
	result := PartitionKey("users", "u1", 0)
	if result != "users#00" {
		t.Errorf("expected 'users#00', got %q", result)
	}

	result = PartitionKey("users", "u1", -1)
	if result != "users#00" {
		t.Errorf("expected 'users#00', got %q", result)
	}
}

func TestPartitionKey_MultipleShards(t *testing.T) {
	collection := "users"
	numShards := 256

	shardCounts := make(map[string]int)
	for i := 0; i < 1000; i++ {
		id := "user-" + string(rune('a'+i%26)) + string(rune('0'+i%10))
		pk := PartitionKey(collection, id, numShards)

		if !strings.HasPrefix(pk, collection+"#") {
			t.Errorf("expected prefix %q#, got %q", collection, pk)
		}
		shardCounts[pk[len(collection)+1:]]++
	}

	if len(shardCounts) < 10 {
		t.Errorf("expected distribution across multiple shards, got only %d unique shards", len(shardCounts))
	}
}

func TestPartitionKey_Deterministic(t *testing.T) {
	first := PartitionKey("users", "u1", 256)
	for i := 0; i < 100; i++ {
		result := PartitionKey("users", "u1", 256)
		if result != first {
			t.Errorf("expected deterministic result %q, got %q on iteration %d", first, result, i)
		}
	}
}

func TestPartitionKey_HexFormat(t *testing.T) {
	result := PartitionKey("users", "test", 256)
	parts := strings.Split(result, "#")
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d: %q", len(parts), result)
	}

	shard := parts[1]
	if len(shard) != 2 {
		t.Errorf("expected 2-character shard, got %q", shard)
	}
	for _, c := range shard {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			t.Errorf("expected hex character, got %c", c)
		}
	}
}

func TestPartitionKey_InPartitionKeys(t *testing.T) {
	// Every computed key must be one of the keys a fan-out visits
	for _, numShards := range []int{1, 4, 16, 300} {
		keys := make(map[string]bool)
		for _, k := range PartitionKeys("users", numShards) {
			keys[k] = true
		}
		for i := 0; i < 200; i++ {
			pk := PartitionKey("users", strings.Repeat("x", i), numShards)
			if !keys[pk] {
				t.Errorf("numShards=%d: key %q not listed by PartitionKeys", numShards, pk)
			}
		}
	}
}

func TestPartitionKeys_Bounds(t *testing.T) {
	tests := []struct {
		numShards int
		expected  int
	}{
		{-1, 1},
		{0, 1},
		{1, 1},
		{16, 16},
		{256, 256},
		{1024, 256},
	}

	for _, tt := range tests {
		keys := PartitionKeys("c", tt.numShards)
		if len(keys) != tt.expected {
			t.Errorf("PartitionKeys(c, %d) returned %d keys, want %d", tt.numShards, len(keys), tt.expected)
		}
		if keys[0] != "c#00" {
			t.Errorf("expected first key 'c#00', got %q", keys[0])
		}
	}
}

func BenchmarkPartitionKey_SingleShard(b *testing.B) {
	id := "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		PartitionKey("users", id, 1)
	}
}

func BenchmarkPartitionKey_256Shards(b *testing.B) {
	id := "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		PartitionKey("users", id, 256)
	}
}
