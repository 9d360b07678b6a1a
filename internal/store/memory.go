// Package store provides storage backends for VASA.
//
// This file implements an in-memory store used in tests and when no
// database DSN is configured.
package store

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vasa-labs/vasa/internal/models"
)

// InMemoryStore keeps all records in process memory. Safe for concurrent use.
type InMemoryStore struct {
	mu          sync.RWMutex
	users       map[string]models.User
	turns       []models.ConversationTurn
	transitions []models.StageTransition
	mappings    map[string]models.ConversationMapping
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	slog.Debug("Creating InMemoryStore")
	return &InMemoryStore{
		users:    make(map[string]models.User),
		mappings: make(map[string]models.ConversationMapping),
	}
}

// GetUser retrieves a user by id.
func (s *InMemoryStore) GetUser(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// SaveUser inserts or updates a user record.
func (s *InMemoryStore) SaveUser(u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

// DeleteUser removes a user and all dependent records.
func (s *InMemoryStore) DeleteUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	kept := s.turns[:0]
	for _, t := range s.turns {
		if t.UserID != id {
			kept = append(kept, t)
		}
	}
	s.turns = kept
	keptTr := s.transitions[:0]
	for _, tr := range s.transitions {
		if tr.UserID != id {
			keptTr = append(keptTr, tr)
		}
	}
	s.transitions = keptTr
	for cid, m := range s.mappings {
		if m.UserID == id {
			delete(s.mappings, cid)
		}
	}
	return nil
}

// AddTurn appends one conversation turn.
func (s *InMemoryStore) AddTurn(t models.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
	return nil
}

// RecentTurns returns up to limit most recent turns in chronological order.
func (s *InMemoryStore) RecentTurns(userID string, limit int) ([]models.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []models.ConversationTurn
	for _, t := range s.turns {
		if t.UserID == userID {
			matched = append(matched, t)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

// TurnsByConversation returns all turns of one conversation in chronological order.
func (s *InMemoryStore) TurnsByConversation(conversationID string) ([]models.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []models.ConversationTurn
	for _, t := range s.turns {
		if t.ConversationID == conversationID {
			matched = append(matched, t)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

// AddStageTransition appends one stage transition record.
func (s *InMemoryStore) AddStageTransition(tr models.StageTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, tr)
	return nil
}

// StageTransitions returns all transitions for a user in chronological order.
func (s *InMemoryStore) StageTransitions(userID string) ([]models.StageTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []models.StageTransition
	for _, tr := range s.transitions {
		if tr.UserID == userID {
			matched = append(matched, tr)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

// SaveConversationMapping upserts a mapping, preserving the original
// creation time on repeated saves.
func (s *InMemoryStore) SaveConversationMapping(m models.ConversationMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.mappings[m.ConversationID]; ok {
		m.CreatedAt = existing.CreatedAt
		if m.EndedAt == nil {
			m.EndedAt = existing.EndedAt
		}
	}
	s.mappings[m.ConversationID] = m
	return nil
}

// GetConversationMapping retrieves a mapping by conversation id.
func (s *InMemoryStore) GetConversationMapping(conversationID string) (*models.ConversationMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mappings[conversationID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// EndConversationMapping marks a mapping ended at the given time.
func (s *InMemoryStore) EndConversationMapping(conversationID string, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mappings[conversationID]
	if !ok {
		return nil
	}
	m.Status = models.MappingStatusEnded
	m.EndedAt = &endedAt
	s.mappings[conversationID] = m
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
