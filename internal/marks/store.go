// Package marks holds the in-memory timestamp list for the currently
// loaded video and enforces the single-open-mark invariant.
package marks

import (
	"errors"
	"sync"
)

// ErrInvalidState is returned when starting a mark while another is open.
var ErrInvalidState = errors.New("a timestamp is already being recorded")

// ErrNotFound is returned for stale or unknown timestamp ids.
var ErrNotFound = errors.New("timestamp not found")

// Store is the authoritative ordered list of timestamps for one video.
// At most one entry is open (no end time) at any moment.
type Store struct {
	mu        sync.RWMutex
	videoName string
	entries   []*Timestamp
	activeID  string
}

// NewStore creates an empty store with no video loaded.
func NewStore() *Store {
	return &Store{}
}

// LoadVideo declares the loaded video and resets all marks, mirroring a
// fresh file being opened in the player.
func (s *Store) LoadVideo(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoName = name
	s.entries = nil
	s.activeID = ""
}

// VideoName returns the name of the loaded video, without extension.
func (s *Store) VideoName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.videoName
}

// StartEntry opens a new mark at the given playback time. Fails with
// ErrInvalidState while another mark is open.
func (s *Store) StartEntry(currentTime float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID != "" {
		return "", ErrInvalidState
	}
	if currentTime < 0 {
		currentTime = 0
	}

	entry := &Timestamp{
		ID:        NewID(),
		StartTime: currentTime,
		Label:     defaultLabel(len(s.entries) + 1),
	}
	s.entries = append(s.entries, entry)
	s.activeID = entry.ID
	return entry.ID, nil
}

// EndEntry closes the active mark. The end time is clamped so it never
// precedes the start time; a seek backwards yields a zero-length range.
func (s *Store) EndEntry(id string, currentTime float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" || id != s.activeID {
		return ErrNotFound
	}

	entry := s.find(id)
	if entry == nil {
		return ErrNotFound
	}

	end := currentTime
	if end < entry.StartTime {
		end = entry.StartTime
	}
	entry.EndTime = &end
	s.activeID = ""
	return nil
}

// Relabel replaces the label of an existing mark.
func (s *Store) Relabel(id, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.find(id)
	if entry == nil {
		return ErrNotFound
	}
	entry.Label = label
	return nil
}

// Remove deletes a mark. Removing an unknown id is a no-op so a repeated
// delete from the UI does not surface an error.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range s.entries {
		if entry.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			if s.activeID == id {
				s.activeID = ""
			}
			return
		}
	}
}

// ActiveID returns the id of the open mark, or "" when none is open.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Entries returns a copy of all marks in creation order.
func (s *Store) Entries() []Timestamp {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Timestamp, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, *entry)
	}
	return out
}

// ClosedEntries returns marks with an end time, in creation order.
func (s *Store) ClosedEntries() []Timestamp {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Timestamp
	for _, entry := range s.entries {
		if entry.Closed() {
			out = append(out, *entry)
		}
	}
	return out
}

// Get returns a copy of one mark.
func (s *Store) Get(id string) (Timestamp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry := s.find(id)
	if entry == nil {
		return Timestamp{}, ErrNotFound
	}
	return *entry, nil
}

// Len returns the number of marks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) find(id string) *Timestamp {
	for _, entry := range s.entries {
		if entry.ID == id {
			return entry
		}
	}
	return nil
}
