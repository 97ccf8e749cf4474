package history

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Quota enforces the dual cap (C4): entry count and live-referenced byte
// sum. It is invoked with idx.mu already held for writing, immediately
// after every append.
type Quota struct {
	maxHistory int
	maxQuota   int64

	mu      sync.Mutex
	orphans []string // checksums queued for blob deletion after a trim
}

func NewQuota(maxHistory int, maxQuota int64) *Quota {
	return &Quota{maxHistory: maxHistory, maxQuota: maxQuota}
}

func (q *Quota) attach(idx *Index) {
	idx.quota = q
}

// liveBytesLocked sums Size over every entry whose checksum is still the
// latest checksum for its file. Caller holds idx.mu.
func (q *Quota) liveBytesLocked(idx *Index) int64 {
	var total int64
	for _, positions := range idx.byFile {
		if len(positions) == 0 {
			continue
		}
		latest := idx.entries[positions[len(positions)-1]]
		if latest.Op == OpDelete {
			continue
		}
		for _, p := range positions {
			if idx.entries[p].Checksum == latest.Checksum {
				total += idx.entries[p].Size
			}
		}
	}
	return total
}

// enforceLocked drops entries from the head of the sequence while either
// quota is exceeded. Caller holds idx.mu for writing. Trimming never
// removes the sole remaining live entry for a file — if that would be
// required to satisfy quota, enforcement stops and logs QuotaExhausted
// rather than erroring the append that triggered it.
func (q *Quota) enforceLocked(idx *Index) {
	for q.overLocked(idx) {
		pos := q.oldestTrimmableLocked(idx)
		if pos < 0 {
			log.Warn().
				Int("count", len(idx.entries)).
				Int("max_history", q.maxHistory).
				Int64("max_quota", q.maxQuota).
				Msg("quota exhausted: cannot trim further without deleting a file's last live entry")
			return
		}
		removed := idx.removeLocked(pos)
		q.afterTrim(idx, removed)
	}
}

func (q *Quota) overLocked(idx *Index) bool {
	if len(idx.entries) > q.maxHistory {
		return true
	}
	if q.maxQuota > 0 && q.liveBytesLocked(idx) > q.maxQuota {
		return true
	}
	return false
}

// oldestTrimmableLocked finds the earliest entry that is safe to drop:
// any entry that is not the sole remaining live entry for its file. The
// oldest entry in the sequence is always entries[0] since removeLocked
// keeps the sequence dense; we still scan forward in case entries[0]
// happens to be a file's only live entry and a later entry is safe to
// drop instead, to avoid getting stuck needlessly.
func (q *Quota) oldestTrimmableLocked(idx *Index) int {
	for i := range idx.entries {
		file := idx.entries[i].File
		positions := idx.byFile[file]
		if len(positions) <= 1 {
			// This is the only entry left for the file; dropping it
			// would erase all history for a live file. Not trimmable
			// unless the file's latest state is itself a delete (no
			// live reference to protect).
			if len(positions) == 1 {
				latest := idx.entries[positions[0]]
				if latest.Op != OpDelete {
					continue
				}
			}
		}
		return i
	}
	return -1
}

// afterTrim queues removed's checksum for blob deletion if no remaining
// entry in the index still references it.
func (q *Quota) afterTrim(idx *Index, removed Entry) {
	if removed.Checksum == "" {
		return
	}
	for _, e := range idx.entries {
		if e.Checksum == removed.Checksum {
			return
		}
	}
	q.mu.Lock()
	q.orphans = append(q.orphans, removed.Checksum)
	q.mu.Unlock()
}

// DrainOrphans returns and clears the set of checksums queued for blob
// deletion since the last drain. Consumed by the engine's clean_interval
// housekeeping pass (SPEC_FULL.md §7) rather than synchronously, so a
// burst of trims doesn't pay a stat+unlink per entry with the writer
// lock held.
func (q *Quota) DrainOrphans() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.orphans
	q.orphans = nil
	return out
}
