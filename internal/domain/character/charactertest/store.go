// Package charactertest provides an in-memory character.Store for tests.
package charactertest

import (
	"context"
	"sync"

	"github.com/go-faster/errors"

	"character-server/internal/domain/character"
)

var _ character.Store = (*Store)(nil)

// Store keeps rows in insertion order and counts session checkouts so tests
// can assert every acquired session was released. Like the Postgres store, a
// session only takes a connection on its first operation.
type Store struct {
	mu          sync.Mutex
	rows        []character.Character
	nextID      int64
	acquired    int
	released    int
	connections int

	// AcquireErr, when set, is returned by Acquire.
	AcquireErr error
	// OpErr, when set, is returned by every session operation.
	OpErr error
}

func NewStore() *Store {
	return &Store{nextID: 1}
}

func (s *Store) Acquire(context.Context) (character.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AcquireErr != nil {
		return nil, s.AcquireErr
	}
	s.acquired++
	return &session{store: s}, nil
}

// Outstanding reports sessions acquired but not yet released.
func (s *Store) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired - s.released
}

func (s *Store) Acquired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired
}

// Connections reports how many sessions ran at least one operation.
func (s *Store) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

// Rows returns a copy of the stored rows.
func (s *Store) Rows() []character.Character {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]character.Character(nil), s.rows...)
}

func (s *Store) indexOf(id int64) int {
	for i, c := range s.rows {
		if c.ID == id {
			return i
		}
	}
	return -1
}

type session struct {
	store     *Store
	released  bool
	connected bool
}

var errReleased = errors.New("session already released")

func (ss *session) begin() (*Store, error) {
	s := ss.store
	s.mu.Lock()
	if ss.released {
		s.mu.Unlock()
		return nil, errReleased
	}
	if !ss.connected {
		ss.connected = true
		s.connections++
	}
	if s.OpErr != nil {
		err := s.OpErr
		s.mu.Unlock()
		return nil, err
	}
	return s, nil
}

func (ss *session) Release() {
	s := ss.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if ss.released {
		return
	}
	ss.released = true
	s.released++
}

func (ss *session) Create(_ context.Context, in character.Create) (character.Character, error) {
	s, err := ss.begin()
	if err != nil {
		return character.Character{}, err
	}
	defer s.mu.Unlock()
	c := character.Character{ID: s.nextID, Name: in.Name, Story: in.Story}
	s.nextID++
	s.rows = append(s.rows, c)
	return c, nil
}

func (ss *session) List(_ context.Context, skip, limit int) ([]character.Character, error) {
	s, err := ss.begin()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	out := make([]character.Character, 0)
	if skip >= len(s.rows) {
		return out, nil
	}
	end := len(s.rows)
	if limit < end-skip {
		end = skip + limit
	}
	return append(out, s.rows[skip:end]...), nil
}

func (ss *session) Get(_ context.Context, id int64) (character.Character, error) {
	s, err := ss.begin()
	if err != nil {
		return character.Character{}, err
	}
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return character.Character{}, character.ErrNotFound
	}
	return s.rows[i], nil
}

func (ss *session) Update(_ context.Context, id int64, patch character.Patch) (character.Character, error) {
	s, err := ss.begin()
	if err != nil {
		return character.Character{}, err
	}
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return character.Character{}, character.ErrNotFound
	}
	if patch.Name != nil {
		s.rows[i].Name = *patch.Name
	}
	if patch.Story != nil {
		s.rows[i].Story = *patch.Story
	}
	return s.rows[i], nil
}

func (ss *session) Delete(_ context.Context, id int64) error {
	s, err := ss.begin()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return character.ErrNotFound
	}
	s.rows = append(s.rows[:i], s.rows[i+1:]...)
	return nil
}
