package tasks

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"

	SessionPending        Status = "pending"
	SessionExecuting      Status = "executing"
	SessionCompleted      Status = "completed"
	SessionPartialSuccess Status = "partial_success"
	SessionFailed         Status = "failed"
)

const DefaultTTL = 30 * time.Minute

var ErrSessionNotFound = errors.New("session not found")

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Action      Action     `json:"action"`
	Worksheet   string     `json:"worksheet,omitempty"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Result      *Outcome   `json:"result,omitempty"`

	op Operation
}

// Session is a planned list of tasks against one original workbook.
type Session struct {
	ID            string     `json:"session_id"`
	SourcePath    string     `json:"source_path"`
	Description   string     `json:"description,omitempty"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Tasks         []*Task    `json:"tasks"`
	ModifiedFiles []string   `json:"modified_files"`
}

// Store holds sessions that were planned but not yet executed. Sessions
// older than the TTL are dropped by Prune and are invisible to Get and
// Take.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

type StoreOption func(*Store)

func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sessions: map[string]*Session{},
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetTTL changes the expiry for pending sessions. Non-positive values are
// ignored.
func (s *Store) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	s.ttl = ttl
	s.mu.Unlock()
}

// Create validates every spec and registers a pending session. Nothing is
// registered when any spec is invalid.
func (s *Store) Create(sourcePath, description string, specs []TaskSpec) (*Session, error) {
	if sourcePath == "" {
		return nil, fmt.Errorf("%w: source path is required", ErrInvalidTask)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no tasks", ErrInvalidTask)
	}
	now := s.now().UTC()
	session := &Session{
		ID:            uuid.NewString(),
		SourcePath:    sourcePath,
		Description:   description,
		Status:        SessionPending,
		CreatedAt:     now,
		ModifiedFiles: []string{},
	}
	for i, spec := range specs {
		op, err := Decode(spec)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i+1, err)
		}
		title := spec.Title
		if title == "" {
			title = string(op.Action())
		}
		session.Tasks = append(session.Tasks, &Task{
			ID:        fmt.Sprintf("task_%d", i+1),
			Title:     title,
			Action:    op.Action(),
			Worksheet: spec.Worksheet,
			Status:    StatusPending,
			CreatedAt: now,
			op:        op,
		})
	}
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return session.clone(), nil
}

// Get returns a copy of a pending session.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.live(id)
	if !ok {
		return nil, false
	}
	return session.clone(), true
}

// Take removes a pending session and hands it to the caller, so a session
// runs at most once.
func (s *Store) Take(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.live(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	return session, nil
}

// List returns copies of the pending sessions, oldest first.
func (s *Store) List() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, 0, len(s.sessions))
	for id := range s.sessions {
		if session, ok := s.live(id); ok {
			out = append(out, session.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Prune drops expired sessions and reports how many were removed.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, session := range s.sessions {
		if s.expired(session) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *Store) live(id string) (*Session, bool) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if s.expired(session) {
		delete(s.sessions, id)
		return nil, false
	}
	return session, true
}

func (s *Store) expired(session *Session) bool {
	return s.now().UTC().Sub(session.CreatedAt) > s.ttl
}

func (session *Session) clone() *Session {
	out := *session
	out.Tasks = make([]*Task, len(session.Tasks))
	for i, task := range session.Tasks {
		copied := *task
		out.Tasks[i] = &copied
	}
	out.ModifiedFiles = append([]string{}, session.ModifiedFiles...)
	return &out
}
