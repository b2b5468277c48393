// Package mock provides an in-memory test double for the thread.Store
// interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/tutorvox/internal/thread"
)

// SaveCall records a single invocation of Save.
type SaveCall struct {
	UserID            string
	ThreadID          string
	Messages          []thread.Message
	AssistantResponse string
}

// Store is a mock implementation of thread.Store. It keeps saved threads in
// memory and records every call.
type Store struct {
	mu sync.Mutex

	// SaveErr, if non-nil, is returned by Save.
	SaveErr error

	// DeleteErr, if non-nil, is returned by Delete.
	DeleteErr error

	// GetErr, if non-nil, is returned by Get.
	GetErr error

	// ListErr, if non-nil, is returned by ListByUser.
	ListErr error

	// SaveCalls records every Save invocation in order.
	SaveCalls []SaveCall

	// DeleteCalls records the thread IDs passed to Delete, in order.
	DeleteCalls []string

	// ListCalls records the user IDs passed to ListByUser, in order.
	ListCalls []string

	threads map[string]thread.Thread
}

// Compile-time assertion that Store satisfies the thread.Store interface.
var _ thread.Store = (*Store)(nil)

// Save records the call and stores the thread in memory.
func (s *Store) Save(ctx context.Context, userID, threadID string, messages []thread.Message, assistantResponse string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]thread.Message, len(messages))
	copy(msgs, messages)
	s.SaveCalls = append(s.SaveCalls, SaveCall{
		UserID:            userID,
		ThreadID:          threadID,
		Messages:          msgs,
		AssistantResponse: assistantResponse,
	})
	if s.SaveErr != nil {
		return s.SaveErr
	}

	if s.threads == nil {
		s.threads = make(map[string]thread.Thread)
	}
	full := append(msgs, thread.Message{Role: "assistant", Content: assistantResponse})
	existing, ok := s.threads[threadID]
	title := existing.Title
	if !ok {
		title = thread.DeriveTitle(assistantResponse)
	}
	s.threads[threadID] = thread.Thread{
		ID:       threadID,
		UserID:   userID,
		Title:    title,
		Messages: full,
	}
	return nil
}

// Get returns a previously saved thread.
func (s *Store) Get(ctx context.Context, threadID string) (thread.Thread, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return thread.Thread{}, false, s.GetErr
	}
	t, ok := s.threads[threadID]
	return t, ok, nil
}

// ListByUser returns the saved threads owned by userID in save order.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]thread.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListCalls = append(s.ListCalls, userID)
	if s.ListErr != nil {
		return nil, s.ListErr
	}

	out := []thread.Thread{}
	seen := map[string]bool{}
	for _, call := range s.SaveCalls {
		if call.UserID != userID || seen[call.ThreadID] {
			continue
		}
		seen[call.ThreadID] = true
		if t, ok := s.threads[call.ThreadID]; ok && t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

// Delete records the call and removes the thread if present.
func (s *Store) Delete(ctx context.Context, threadID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeleteCalls = append(s.DeleteCalls, threadID)
	if s.DeleteErr != nil {
		return false, s.DeleteErr
	}
	_, ok := s.threads[threadID]
	delete(s.threads, threadID)
	return ok, nil
}

// Reset clears stored threads and recorded calls. Thread-safe.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SaveCalls = nil
	s.DeleteCalls = nil
	s.ListCalls = nil
	s.threads = nil
}
