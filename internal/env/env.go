// Package env provides cached environment-variable lookup helpers shared
// across the node's configuration and CLI layers.
package env

import (
	"os"
	"strconv"
	"sync"
)

var cache sync.Map // map[string]string

// ClearCache removes any cached value for key. Used by tests that mutate
// the environment between calls.
func ClearCache(key string) {
	cache.Delete(key)
}

func lookup(key string) (string, bool) {
	if v, ok := cache.Load(key); ok {
		return v.(string), true
	}
	if v, ok := os.LookupEnv(key); ok && v != "" {
		cache.Store(key, v)
		return v, true
	}
	return "", false
}

// OrDefault returns the value of the environment variable key, or fallback
// if it is unset or empty.
func OrDefault(key, fallback string) string {
	if v, ok := lookup(key); ok {
		return v
	}
	return fallback
}

// OrDefaultInt is OrDefault parsed as an int.
func OrDefaultInt(key string, fallback int) int {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// OrDefaultUint64 is OrDefault parsed as a uint64.
func OrDefaultUint64(key string, fallback uint64) uint64 {
	if v, ok := lookup(key); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
