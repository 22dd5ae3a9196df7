// internal/domain/watermark/state.go
package watermark

import (
	"context"
	"time"
)

// ProcessedKey records that a natural id was handled by a reconciliation cycle.
// Mirrored is the authoritative completion flag: an entry with Mirrored=false was
// notified but still needs its tracking record.
type ProcessedKey struct {
	NaturalID    int64
	ProcessedAt  time.Time
	RegisteredAt time.Time
	Mirrored     bool
}

// State is the singleton watermark document.
type State struct {
	LastCheckTime     *time.Time
	LastProcessedTime *time.Time
	ProcessedKeys     []ProcessedKey
}

// LoadStatus tells callers how much they can trust a loaded state.
type LoadStatus int

const (
	// Loaded means the stored document was read and decoded.
	Loaded LoadStatus = iota
	// Defaulted means the document is missing or malformed; the empty state stands in for it.
	Defaulted
	// Unavailable means the store could not be reached. The stored document may still hold
	// entries, so the empty state returned with it must not be written back over it.
	Unavailable
)

func (s LoadStatus) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Defaulted:
		return "defaulted"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Store persists the watermark somewhere readable by every scheduler running the monitor.
type Store interface {
	// Load never fails. Unless status is Loaded, the returned state is empty.
	Load(ctx context.Context) (state State, status LoadStatus)
	// Save prunes entries older than the retention window and writes the document.
	// Concurrent writers are not coordinated: the last write wins.
	Save(ctx context.Context, state State) error
}

// ProcessedSet returns the natural ids already handled, mirrored or not.
func (s *State) ProcessedSet() map[int64]bool {
	set := make(map[int64]bool, len(s.ProcessedKeys))
	for _, k := range s.ProcessedKeys {
		set[k.NaturalID] = true
	}
	return set
}

// Record adds the key, replacing an existing entry for the same id in place.
func (s *State) Record(key ProcessedKey) {
	for i := range s.ProcessedKeys {
		if s.ProcessedKeys[i].NaturalID == key.NaturalID {
			s.ProcessedKeys[i] = key
			return
		}
	}
	s.ProcessedKeys = append(s.ProcessedKeys, key)
}

// Merge records keys on top of s. An id already marked mirrored in s stays mirrored.
func (s *State) Merge(keys []ProcessedKey) {
	for _, k := range keys {
		for _, existing := range s.ProcessedKeys {
			if existing.NaturalID == k.NaturalID && existing.Mirrored {
				k.Mirrored = true
				break
			}
		}
		s.Record(k)
	}
}

// Unmirrored returns the entries a repair pass should retry.
func (s *State) Unmirrored() []ProcessedKey {
	var out []ProcessedKey
	for _, k := range s.ProcessedKeys {
		if !k.Mirrored {
			out = append(out, k)
		}
	}
	return out
}

// MarkMirrored flips the flag for id. It reports whether an entry was found.
func (s *State) MarkMirrored(naturalID int64) bool {
	for i := range s.ProcessedKeys {
		if s.ProcessedKeys[i].NaturalID == naturalID {
			s.ProcessedKeys[i].Mirrored = true
			return true
		}
	}
	return false
}

// Prune drops entries processed at or before cutoff and collapses duplicate ids,
// keeping the last occurrence at the position of the first.
func (s *State) Prune(cutoff time.Time) {
	kept := make([]ProcessedKey, 0, len(s.ProcessedKeys))
	index := make(map[int64]int, len(s.ProcessedKeys))
	for _, k := range s.ProcessedKeys {
		if !k.ProcessedAt.After(cutoff) {
			continue
		}
		if i, seen := index[k.NaturalID]; seen {
			kept[i] = k
			continue
		}
		index[k.NaturalID] = len(kept)
		kept = append(kept, k)
	}
	s.ProcessedKeys = kept
}
