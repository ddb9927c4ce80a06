package store

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/trailwx/segment-weather/internal/weather"
)

// SnapshotStore persists the last delivered summary set per (trip, user).
// Records are overwritten wholesale; no history is retained. It implements
// weather.SnapshotStore.
type SnapshotStore struct {
	kv    KV
	clock clockwork.Clock

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// snapshotRecord is the persisted shape of one baseline.
type snapshotRecord struct {
	TripID    string                                   `json:"trip_id"`
	UserID    string                                   `json:"user_id"`
	SavedAt   time.Time                                `json:"saved_at"`
	Summaries map[string]weather.SegmentWeatherSummary `json:"summaries"`
}

// NewSnapshotStore wraps a KV with per-(trip,user) write serialization.
func NewSnapshotStore(kv KV, clock clockwork.Clock) *SnapshotStore {
	return &SnapshotStore{
		kv:    kv,
		clock: clock,
		locks: make(map[string]*sync.Mutex),
	}
}

// Save overwrites the baseline for (trip, user). Callers invoke it strictly
// after a report has been delivered.
func (s *SnapshotStore) Save(tripID, userID string, summaries map[string]weather.SegmentWeatherSummary) error {
	lock := s.keyLock(tripID, userID)
	lock.Lock()
	defer lock.Unlock()

	record := snapshotRecord{
		TripID:    tripID,
		UserID:    userID,
		SavedAt:   s.clock.Now().UTC(),
		Summaries: summaries,
	}
	if err := s.kv.Put(snapshotKey(tripID, userID), record); err != nil {
		return fmt.Errorf("saving snapshot for trip %s user %s: %w", tripID, userID, err)
	}
	return nil
}

// Load returns the stored baseline. A missing or corrupt record is "no
// baseline": change detection is skipped for the cycle instead of failing it.
func (s *SnapshotStore) Load(tripID, userID string) (map[string]weather.SegmentWeatherSummary, bool) {
	var record snapshotRecord
	found, err := s.kv.Get(snapshotKey(tripID, userID), &record)
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			log.Printf("WARN: snapshot for trip %s user %s is unreadable; treating as no baseline: %v", tripID, userID, err)
			return nil, false
		}
		log.Printf("WARN: loading snapshot for trip %s user %s: %v", tripID, userID, err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	return record.Summaries, true
}

func (s *SnapshotStore) keyLock(tripID, userID string) *sync.Mutex {
	key := snapshotKey(tripID, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// snapshotKey hex-encodes both IDs so the flat filename stays unambiguous:
// raw concatenation would let ("a", "b_c") and ("a_b", "c") collide on the
// same record, and IDs are caller-controlled.
func snapshotKey(tripID, userID string) string {
	return fmt.Sprintf("snapshot_%x_%x", userID, tripID)
}
