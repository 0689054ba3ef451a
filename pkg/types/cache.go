// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"slices"
	"time"
)

// StoragePolicy is the cache-control marking an entry is served with.
type StoragePolicy string

const (
	// PolicyNoStore entries are stored locally but served with
	// Cache-Control: no-store so intermediaries never keep them.
	PolicyNoStore StoragePolicy = "no-store"

	// PolicyRetained entries may be cached by intermediaries.
	PolicyRetained StoragePolicy = "retained"
)

// CacheControl returns the Cache-Control header value for the policy.
func (p StoragePolicy) CacheControl() string {
	if p == PolicyNoStore {
		return "no-store"
	}
	return ""
}

// CacheEntry is one stored blob inside a named cache.
type CacheEntry struct {
	CacheName     string        `json:"cache_name" yaml:"cache_name"`
	Key           string        `json:"key" yaml:"key"`
	Payload       []byte        `json:"payload" yaml:"-"`
	ContentType   string        `json:"content_type" yaml:"content_type"`
	StoragePolicy StoragePolicy `json:"storage_policy" yaml:"storage_policy"`
	CreatedAt     time.Time     `json:"created_at" yaml:"created_at"`
}

// CacheNames holds the current versioned name of each logical cache. Any
// other name found in the store is garbage at the next activation.
type CacheNames struct {
	// Static is the application shell cache.
	Static string `json:"static" yaml:"static" mapstructure:"static"`

	// Shared holds payloads handed over by share actions.
	Shared string `json:"shared" yaml:"shared" mapstructure:"shared"`
}

// Current returns the allow-list of live cache names.
func (n CacheNames) Current() []string {
	return []string{n.Static, n.Shared}
}

// IsCurrent reports whether name is one of the live cache names.
func (n CacheNames) IsCurrent(name string) bool {
	return slices.Contains(n.Current(), name)
}
