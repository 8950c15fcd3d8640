package store

import (
	"sync"

	"github.com/grovetools/canopy/pkg/models"
)

// Store holds the most recently published session snapshot.
// It is thread-safe and supports pub/sub for real-time updates.
// Mutation happens only through Publish, called from the engine's
// single consumer goroutine.
type Store struct {
	mu          sync.RWMutex
	sessions    []*models.SessionRecord
	subscribers map[chan Update]struct{}
}

// New creates a new Store instance.
func New() *Store {
	return &Store{
		subscribers: make(map[chan Update]struct{}),
	}
}

// GetSessions returns a deep copy of the published session snapshot,
// in display order.
func (s *Store) GetSessions() []*models.SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*models.SessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		result = append(result, rec.Clone())
	}
	return result
}

// GetSession returns a copy of the record for the given pid, or nil.
func (s *Store) GetSession(pid int) *models.SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.sessions {
		if rec.PID == pid {
			return rec.Clone()
		}
	}
	return nil
}

// Publish replaces the session snapshot and notifies subscribers of the
// update that produced it.
func (s *Store) Publish(sessions []*models.SessionRecord, u Update) {
	s.mu.Lock()
	s.sessions = sessions
	s.mu.Unlock()
	s.broadcast(u)
}

// Subscribe creates a new subscription channel for state updates.
func (s *Store) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, 100) // Buffered
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// BroadcastConfigReload sends a config reload notification to all
// subscribers. Used by the config watcher when canopy.yml changes.
func (s *Store) BroadcastConfigReload(file string) {
	s.broadcast(Update{
		Type:    UpdateConfigReload,
		Source:  "config",
		Payload: file,
	})
}

func (s *Store) broadcast(u Update) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Non-blocking send to prevent slow clients from stalling the daemon
		}
	}
}
