// Package store provides the playlist membership index used for
// idempotent merges and a persistent cross-catalog match cache.
package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// MembershipIndex answers "is this track already in the destination?"
// during a single flow. It is seeded from freshly fetched playlist or
// library contents, never persisted across invocations. A Bloom filter
// front-runs the exact map so bulk misses stay cheap; the LRU bounds
// memory on oversized libraries.
type MembershipIndex struct {
	ids      map[string]struct{}
	bloom    *bloom.BloomFilter
	lru      *lru.Cache[string, struct{}]
	mutex    sync.RWMutex
	capacity int
	fpRate   float64
}

// NewMembershipIndex creates an index holding up to capacity track IDs.
func NewMembershipIndex(capacity int, fpRate float64) *MembershipIndex {
	lruCache, _ := lru.New[string, struct{}](capacity)

	return &MembershipIndex{
		ids:      make(map[string]struct{}),
		bloom:    bloom.NewWithEstimates(uint(capacity), fpRate),
		lru:      lruCache,
		capacity: capacity,
		fpRate:   fpRate,
	}
}

// Seed loads the index from a snapshot of destination contents,
// replacing anything previously held. Empty IDs are skipped.
func (ix *MembershipIndex) Seed(trackIDs []string) {
	ix.mutex.Lock()
	defer ix.mutex.Unlock()

	ix.ids = make(map[string]struct{}, len(trackIDs))
	ix.bloom = bloom.NewWithEstimates(uint(ix.capacity), ix.fpRate)
	ix.lru.Purge()

	for _, id := range trackIDs {
		if id != "" {
			ix.add(id)
		}
	}
}

// Has reports whether the track ID is already present.
func (ix *MembershipIndex) Has(trackID string) bool {
	ix.mutex.RLock()
	defer ix.mutex.RUnlock()

	if !ix.bloom.TestString(trackID) {
		return false
	}
	_, ok := ix.ids[trackID]
	return ok
}

// Add records a track ID, evicting the oldest entry past capacity.
func (ix *MembershipIndex) Add(trackID string) {
	ix.mutex.Lock()
	defer ix.mutex.Unlock()

	if _, ok := ix.ids[trackID]; ok {
		return
	}
	ix.add(trackID)
}

// MissingFrom returns the IDs of trackIDs not present in the index,
// preserving their input order. Duplicates within trackIDs that resolve
// to the same missing ID are collapsed to the first occurrence.
func (ix *MembershipIndex) MissingFrom(trackIDs []string) []string {
	ix.mutex.RLock()
	defer ix.mutex.RUnlock()

	var out []string
	seen := make(map[string]struct{}, len(trackIDs))
	for _, id := range trackIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if ix.bloom.TestString(id) {
			if _, ok := ix.ids[id]; ok {
				continue
			}
		}
		out = append(out, id)
	}
	return out
}

// Size returns the number of IDs currently indexed.
func (ix *MembershipIndex) Size() int {
	ix.mutex.RLock()
	defer ix.mutex.RUnlock()
	return len(ix.ids)
}

func (ix *MembershipIndex) add(trackID string) {
	ix.ids[trackID] = struct{}{}
	ix.bloom.AddString(trackID)
	ix.lru.Add(trackID, struct{}{})

	for len(ix.ids) > ix.capacity {
		oldest, _, ok := ix.lru.GetOldest()
		if !ok {
			return
		}
		delete(ix.ids, oldest)
		ix.lru.Remove(oldest)
	}
}
