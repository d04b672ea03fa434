// Package cache provides the idempotency layer for claim submissions:
// resubmitting the same claim content returns the already-made decision
// instead of running the pipeline again.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/claimgate/internal/model"
)

// Entry pairs a decided claim with its assigned identifier
type Entry struct {
	ClaimID  string
	Response model.DecisionResponse
}

// DecisionCache remembers decisions keyed by submission content digest
type DecisionCache struct {
	cache *gocache.Cache
}

// NewDecisionCache creates a cache whose entries expire after ttl
func NewDecisionCache(ttl time.Duration) *DecisionCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DecisionCache{
		cache: gocache.New(ttl, 10*time.Minute),
	}
}

// SubmissionKey digests the full submission content. Two submissions
// with identical claim text, metadata, and image map to the same key.
func SubmissionKey(claimText, metadataText string, image []byte) string {
	hash := sha256.New()
	hash.Write([]byte(claimText))
	hash.Write([]byte{0})
	hash.Write([]byte(metadataText))
	hash.Write([]byte{0})
	hash.Write(image)
	return "claimgate:v1:" + hex.EncodeToString(hash.Sum(nil))
}

// Get returns the cached entry for a submission key, if any
func (c *DecisionCache) Get(key string) (Entry, bool) {
	if val, found := c.cache.Get(key); found {
		return val.(Entry), true
	}
	return Entry{}, false
}

// Set records a decided submission
func (c *DecisionCache) Set(key string, entry Entry) {
	c.cache.Set(key, entry, gocache.DefaultExpiration)
}
