package memstore

import (
	"context"
	"sync"

	auth "github.com/goliatone/go-jwt-auth"
)

// Sessions implements auth.SessionTokenRepository
type Sessions struct {
	mu     sync.Mutex
	tokens map[string][]string
}

var _ auth.SessionTokenRepository = (*Sessions)(nil)

// NewSessions returns an empty repository
func NewSessions() *Sessions {
	return &Sessions{tokens: make(map[string][]string)}
}

// PushAuthToken appends token and keeps the newest max entries
func (s *Sessions) PushAuthToken(_ context.Context, userID, token string, max int) ([]string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.tokens[userID], token)
	evicted := 0
	if max > 0 && len(list) > max {
		evicted = len(list) - max
		list = append([]string(nil), list[evicted:]...)
	}
	s.tokens[userID] = list

	return append([]string(nil), list...), evicted, nil
}

// AuthTokens returns the live tokens, oldest first
func (s *Sessions) AuthTokens(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.tokens[userID]...), nil
}

// RemoveAuthToken drops a single token
func (s *Sessions) RemoveAuthToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.tokens[userID]
	out := make([]string, 0, len(list))
	for _, t := range list {
		if t != token {
			out = append(out, t)
		}
	}
	s.tokens[userID] = out
	return nil
}

// ClearAuthTokens drops every token of userID
func (s *Sessions) ClearAuthTokens(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	return nil
}
