// Package cache stores extracted document text so repeated uploads skip OCR.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is a byte-valued key/value store with per-entry expiry.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
}

// Key derives a cache key from a namespace and the raw bytes being described.
func Key(namespace string, data []byte) string {
	hash := sha256.Sum256(data)
	return "superclaims:v1:" + namespace + ":" + hex.EncodeToString(hash[:])
}
