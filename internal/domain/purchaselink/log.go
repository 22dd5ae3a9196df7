// internal/domain/purchaselink/log.go
package purchaselink

import "time"

// LogEntry remembers when a violation was last alerted on.
type LogEntry struct {
	PropositionID     int64
	CampaignID        int64
	CampaignName      string
	NotifiedAt        time.Time
	LastCheckedAt     time.Time
	NotificationCount int
}

// Log is keyed by Violation.Key.
type Log map[string]*LogEntry

// Clone returns a deep copy so a failed delivery can discard the changes.
func (l Log) Clone() Log {
	out := make(Log, len(l))
	for k, v := range l {
		entry := *v
		out[k] = &entry
	}
	return out
}

// SelectForNotification decides which violations are alerted on in this run and updates
// the log accordingly. New violations are always selected; known ones only once
// renotifyAfter has elapsed since their last alert. Every violation gets its
// LastCheckedAt refreshed.
func (l Log) SelectForNotification(violations []Violation, now time.Time, renotifyAfter time.Duration) []Notice {
	var notices []Notice
	for _, v := range violations {
		key := v.Key()
		entry, known := l[key]
		if !known {
			l[key] = &LogEntry{
				PropositionID:     v.PropositionID,
				CampaignID:        v.CampaignID,
				CampaignName:      v.CampaignName.String,
				NotifiedAt:        now,
				LastCheckedAt:     now,
				NotificationCount: 1,
			}
			notices = append(notices, Notice{Violation: v, NotificationCount: 1})
			continue
		}

		entry.LastCheckedAt = now
		if now.Sub(entry.NotifiedAt) < renotifyAfter {
			continue
		}
		if entry.NotificationCount < 1 {
			entry.NotificationCount = 1
		}
		entry.NotificationCount++
		entry.NotifiedAt = now
		notices = append(notices, Notice{Violation: v, NotificationCount: entry.NotificationCount})
	}
	return notices
}

// UnresolvedCount counts notices that are repeats of an earlier alert.
func UnresolvedCount(notices []Notice) int {
	n := 0
	for _, notice := range notices {
		if notice.NotificationCount > 1 {
			n++
		}
	}
	return n
}
