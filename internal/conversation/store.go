package conversation

import (
	"errors"
	"sync"

	"afterlife.app/publisher/common/id"
	"afterlife.app/publisher/internal/model"
)

var ErrDraftNotFound = errors.New("draft not found")

// Store holds the in-flight conversation state of one serving process:
// drafts by ID and pending notes prompts by operator. Nothing is persisted
// and nothing expires.
type Store struct {
	mu      sync.Mutex
	drafts  map[int64]model.Draft
	pending map[int64]model.PendingPost
	newID   func() int64
}

func NewStore() *Store {
	return NewStoreWithIDs(id.New)
}

// NewStoreWithIDs lets tests supply deterministic draft IDs.
func NewStoreWithIDs(newID func() int64) *Store {
	return &Store{
		drafts:  make(map[int64]model.Draft),
		pending: make(map[int64]model.PendingPost),
		newID:   newID,
	}
}

// CreateDraft assigns d an ID and stores it.
func (s *Store) CreateDraft(d model.Draft) model.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	d.ID = s.newID()
	d.Notes = cloneNotes(d.Notes)
	s.drafts[d.ID] = d
	return d
}

func (s *Store) Draft(draftID int64) (model.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[draftID]
	if !ok {
		return model.Draft{}, ErrDraftNotFound
	}
	d.Notes = cloneNotes(d.Notes)
	return d, nil
}

func (s *Store) SetNotes(draftID int64, notes model.NoteList) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[draftID]
	if !ok {
		return ErrDraftNotFound
	}
	d.Notes = cloneNotes(notes)
	s.drafts[draftID] = d
	return nil
}

func (s *Store) DeleteDraft(draftID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, draftID)
}

// PutPending records p for its operator, replacing any earlier prompt.
// It reports whether one was replaced.
func (s *Store) PutPending(p model.PendingPost) (replaced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, replaced = s.pending[p.OperatorID]
	s.pending[p.OperatorID] = p
	return replaced
}

func (s *Store) Pending(operatorID int64) (model.PendingPost, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[operatorID]
	return p, ok
}

// TakePending removes and returns the operator's pending post.
func (s *Store) TakePending(operatorID int64) (model.PendingPost, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[operatorID]
	if ok {
		delete(s.pending, operatorID)
	}
	return p, ok
}

// Stats reports how many drafts and pending prompts are held.
func (s *Store) Stats() (drafts, pending int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts), len(s.pending)
}

func cloneNotes(n model.NoteList) model.NoteList {
	if n == nil {
		return nil
	}
	out := make(model.NoteList, len(n))
	copy(out, n)
	return out
}
