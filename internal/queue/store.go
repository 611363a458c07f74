package queue

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	schemaVersion = 1
	fileType      = "pos_sync_queue"
)

type queueFile struct {
	SchemaVersion int               `yaml:"schema_version"`
	FileType      string            `yaml:"file_type"`
	Entries       []Entry           `yaml:"entries"`
	Resolutions   map[string]string `yaml:"resolutions,omitempty"`
}

// Store is the file-backed queue. All mutations go through one in-memory
// slice guarded by mu and are flushed to disk before the call returns.
// resolved maps terminal-local order IDs to their server-assigned IDs; it
// is persisted so entries enqueued after a restart still resolve.
type Store struct {
	mu       sync.Mutex
	path     string
	entries  []Entry
	resolved map[string]string
}

// Open loads the queue at path, creating an empty one if the file does
// not exist yet. Attempts counters survive the reload.
func Open(path string) (*Store, error) {
	s := &Store{path: path, resolved: make(map[string]string)}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read queue file: %w", err)
	}
	var qf queueFile
	if err := yaml.Unmarshal(b, &qf); err != nil {
		return nil, fmt.Errorf("parse queue file: %w", err)
	}
	if qf.FileType != "" && qf.FileType != fileType {
		return nil, fmt.Errorf("unexpected queue file type %q", qf.FileType)
	}
	s.entries = qf.Entries
	if qf.Resolutions != nil {
		s.resolved = qf.Resolutions
	}
	return s, nil
}

func (s *Store) persistLocked() error {
	return atomicWrite(s.path, queueFile{
		SchemaVersion: schemaVersion,
		FileType:      fileType,
		Entries:       s.entries,
		Resolutions:   s.resolved,
	})
}

// resolveEntryLocked substitutes a known server ID into the payload.
func (s *Store) resolveEntryLocked(e *Entry) {
	server, ok := s.resolved[e.Resource]
	if !ok {
		return
	}
	switch {
	case e.UpdateStatus != nil:
		e.UpdateStatus.OrderID = server
	case e.RecordPayment != nil:
		e.RecordPayment.OrderID = server
	case e.CancelOrder != nil:
		e.CancelOrder.OrderID = server
	case e.UpdateItems != nil:
		e.UpdateItems.OrderID = server
	}
}

// Enqueue appends the entry and persists before returning.
func (s *Store) Enqueue(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolveEntryLocked(&e)
	s.entries = append(s.entries, e)
	if err := s.persistLocked(); err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		return fmt.Errorf("persist enqueue: %w", err)
	}
	return nil
}

// Peek returns the oldest entry without removing it.
func (s *Store) Peek() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return Entry{}, false
	}
	return s.entries[0], true
}

// Dequeue removes the entry by ID. Removing an already-removed entry is
// a no-op, so a duplicate confirmation cannot double-apply.
func (s *Store) Dequeue(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			if err := s.persistLocked(); err != nil {
				return fmt.Errorf("persist dequeue: %w", err)
			}
			return nil
		}
	}
	return nil
}

// Fail records a delivery failure: attempts incremented, reason kept.
func (s *Store) Fail(id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries[i].Attempts++
			r := reason
			s.entries[i].LastError = &r
			if err := s.persistLocked(); err != nil {
				return fmt.Errorf("persist failure: %w", err)
			}
			return nil
		}
	}
	return nil
}

// ResolveResource rewrites the order ID inside every queued payload for
// the resource once the central store has assigned the real ID. The
// Resource key itself keeps the local ID so the dependency chain stays
// intact. Persisted, so the mapping survives a restart.
func (s *Store) ResolveResource(localID, serverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved[localID] = serverID
	for i := range s.entries {
		if s.entries[i].Resource == localID {
			s.resolveEntryLocked(&s.entries[i])
		}
	}
	if err := s.persistLocked(); err != nil {
		return fmt.Errorf("persist resolve: %w", err)
	}
	return nil
}

// List returns a copy of all entries in queue order.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// HasLater reports whether an entry for the resource exists that was
// enqueued after the given entry ID. If afterID is no longer queued
// (already confirmed and removed), every remaining entry for the resource
// is later, because the queue is FIFO per resource. The POS store uses
// this to decide if a server response may overwrite the optimistic view.
func (s *Store) HasLater(resource, afterID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, e := range s.entries {
		if e.ID == afterID {
			idx = i
			break
		}
	}
	for i, e := range s.entries {
		if i > idx && e.Resource == resource {
			return true
		}
	}
	return false
}
