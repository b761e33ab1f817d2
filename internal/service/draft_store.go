package service

import (
	"sync"
)

type draftKey struct {
	title   string
	student string
}

// DraftStore holds AI feedback drafts until a teacher finalizes them. Drafts are not persisted.
type DraftStore struct {
	mu     sync.RWMutex
	drafts map[draftKey]string
}

func NewDraftStore() *DraftStore {
	return &DraftStore{drafts: make(map[draftKey]string)}
}

func (s *DraftStore) Put(title, student, draft string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[draftKey{title, student}] = draft
}

func (s *DraftStore) Get(title, student string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	draft, ok := s.drafts[draftKey{title, student}]
	return draft, ok
}

func (s *DraftStore) Delete(title, student string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, draftKey{title, student})
}

// DeleteTitle drops every draft of an assignment.
func (s *DraftStore) DeleteTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.drafts {
		if k.title == title {
			delete(s.drafts, k)
		}
	}
}
