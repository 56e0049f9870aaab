package models

import (
	"time"
)

// CacheEntry represents a cached value stored in the database fallback.
// The value column carries no explicit type so each dialect picks its
// own byte representation (blob on sqlite, bytea on postgres).
type CacheEntry struct {
	Key       string `gorm:"primaryKey;size:256"`
	Value     []byte
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
