package board

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"taskboard-api/domain"
)

// memRepo is an in-memory Repository with the same observable behavior as
// the table-backed one: Update loads a fresh copy, applies the transform,
// and persists only when the transform succeeds.
type memRepo struct {
	mu     sync.Mutex
	boards map[string]*domain.Board
}

func newMemRepo() *memRepo {
	return &memRepo{boards: make(map[string]*domain.Board)}
}

func cloneBoard(b *domain.Board) *domain.Board {
	data, err := json.Marshal(b)
	if err != nil {
		panic(err)
	}
	var out domain.Board
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return &out
}

func (m *memRepo) Insert(_ context.Context, b *domain.Board) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.boards[b.ID]; ok {
		return fmt.Errorf("%w: board %s already exists", ErrConflict, b.ID)
	}
	m.boards[b.ID] = cloneBoard(b)
	return nil
}

func (m *memRepo) Get(_ context.Context, boardID string) (*domain.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boards[boardID]
	if !ok {
		return nil, fmt.Errorf("%w: board %s", ErrNotFound, boardID)
	}
	return cloneBoard(b), nil
}

func (m *memRepo) Update(_ context.Context, boardID string, apply func(*domain.Board) error) (*domain.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boards[boardID]
	if !ok {
		return nil, fmt.Errorf("%w: board %s", ErrNotFound, boardID)
	}
	work := cloneBoard(b)
	if err := apply(work); err != nil {
		return nil, err
	}
	m.boards[boardID] = cloneBoard(work)
	return work, nil
}

func (m *memRepo) Delete(_ context.Context, boardID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.boards[boardID]; !ok {
		return fmt.Errorf("%w: board %s", ErrNotFound, boardID)
	}
	delete(m.boards, boardID)
	return nil
}

func (m *memRepo) ListByMember(_ context.Context, userID string) ([]*domain.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Board
	for _, b := range m.boards {
		if b.OwnerID == userID || b.HasMember(userID) {
			out = append(out, cloneBoard(b))
		}
	}
	return out, nil
}

func (m *memRepo) FindByTask(_ context.Context, taskID string) (*domain.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.boards {
		for i := range b.Lists {
			for j := range b.Lists[i].Tasks {
				if b.Lists[i].Tasks[j].ID == taskID {
					return cloneBoard(b), nil
				}
			}
		}
	}
	return nil, fmt.Errorf("%w: no board contains task %s", ErrNotFound, taskID)
}

// stored returns the persisted copy for assertions against saved state.
func (m *memRepo) stored(boardID string) *domain.Board {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boards[boardID]
	if !ok {
		return nil
	}
	return cloneBoard(b)
}

type memDirectory struct {
	mu           sync.Mutex
	users        map[string]domain.User
	emailLookups int
}

func newMemDirectory(users ...domain.User) *memDirectory {
	d := &memDirectory{users: make(map[string]domain.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *memDirectory) CreateUser(_ context.Context, u *domain.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.users {
		if existing.Email == u.Email {
			return fmt.Errorf("%w: email %s already registered", ErrConflict, u.Email)
		}
	}
	d.users[u.ID] = *u
	return nil
}

func (d *memDirectory) UserByEmail(_ context.Context, email string) (*domain.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emailLookups++
	for _, u := range d.users {
		if u.Email == email {
			copied := u
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: no user with email %s", ErrNotFound, email)
}

func (d *memDirectory) UsersByID(_ context.Context, ids []string) (map[string]domain.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]domain.User, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type stubCommits struct {
	commits []domain.Commit
	err     error
	calls   int
}

func (s *stubCommits) FetchCommits(context.Context, string) ([]domain.Commit, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.Commit(nil), s.commits...), nil
}
