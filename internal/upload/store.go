package upload

import (
	"sync"
	"time"
)

// Snapshot is an immutable view of the orchestrator at one point in time.
type Snapshot struct {
	Batch     int // sequence number of the current batch, 0 before the first
	Status    Status
	Files     []Record // insertion order
	UpdatedAt time.Time
}

// Count returns how many files are in status.
func (s Snapshot) Count(status FileStatus) int {
	n := 0
	for _, f := range s.Files {
		if f.Status == status {
			n++
		}
	}
	return n
}

// Settled reports whether every file reached a terminal status.
func (s Snapshot) Settled() bool {
	for _, f := range s.Files {
		if !f.Terminal() {
			return false
		}
	}
	return true
}

// Progress is the size-weighted completion of the batch in percent. Done
// files count fully; files that never transfer count as zero.
func (s Snapshot) Progress() int {
	if len(s.Files) == 0 {
		return 0
	}
	var total, sent float64
	for _, f := range s.Files {
		weight := float64(f.Size)
		if weight <= 0 {
			weight = 1
		}
		total += weight
		switch f.Status {
		case FileDone:
			sent += weight
		case FileUploading:
			sent += weight * float64(f.Percent()) / 100
		}
	}
	return int(sent * 100 / total)
}

func (s Snapshot) clone() Snapshot {
	dup := s
	dup.Files = cloneRecords(s.Files)
	return dup
}

// Store holds the latest snapshot and fans it out to subscribers. Only the
// orchestrator's loop goroutine publishes; any goroutine may read.
type Store struct {
	mu        sync.RWMutex
	snapshot  Snapshot
	nextID    int
	subs      map[int]chan Snapshot
	observers map[int]func(Snapshot)
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot.clone()
	if snap.Status == "" {
		snap.Status = StatusIdle
	}
	return snap
}

// Subscribe returns a channel that always holds the most recent snapshot not
// yet received. Intermediate snapshots may be skipped. The returned function
// unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs == nil {
		s.subs = make(map[int]chan Snapshot)
	}
	id := s.nextID
	s.nextID++
	ch := make(chan Snapshot, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// OnChange registers fn to be called synchronously for every published
// snapshot, in publication order. fn runs on the orchestrator's goroutine and
// must not call back into the orchestrator's mutating methods.
func (s *Store) OnChange(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.observers == nil {
		s.observers = make(map[int]func(Snapshot))
	}
	id := s.nextID
	s.nextID++
	s.observers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Store) publish(snap Snapshot) {
	snap.UpdatedAt = time.Now()

	s.mu.Lock()
	s.snapshot = snap.clone()
	for _, ch := range s.subs {
		offer(ch, snap.clone())
	}
	observers := make([]func(Snapshot), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snap.clone())
	}
}

// offer replaces any unread snapshot in ch with snap.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

func cloneRecords(records []Record) []Record {
	if len(records) == 0 {
		return nil
	}
	dup := make([]Record, len(records))
	for i, r := range records {
		dup[i] = r.clone()
	}
	return dup
}
