// Package memory implementa el Principal Store en memoria.
// Sirve para desarrollo sin Postgres y para los tests del Linker.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/restin-ai/authcore/internal/identity"
)

type Store struct {
	mu         sync.RWMutex
	principals map[string]*identity.Principal
}

func New() *Store {
	return &Store{principals: map[string]*identity.Principal{}}
}

// Put inserta o reemplaza un principal. Asigna ID si viene vacío.
func (s *Store) Put(p *identity.Principal) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := clone(p)
	s.principals[p.ID] = cp
	return p.ID
}

func (s *Store) FindByID(ctx context.Context, id string) (*identity.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.principals[id]; ok {
		return clone(p), nil
	}
	return nil, identity.ErrNotFound
}

func (s *Store) FindByFederatedSubject(ctx context.Context, sub string) (*identity.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.principals {
		if p.FederatedSubject != nil && *p.FederatedSubject == sub {
			return clone(p), nil
		}
	}
	return nil, identity.ErrNotFound
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*identity.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.principals {
		if p.Email != nil && strings.EqualFold(*p.Email, email) {
			return clone(p), nil
		}
	}
	return nil, identity.ErrNotFound
}

func (s *Store) FindByLinkedEmail(ctx context.Context, email string) (*identity.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.principals {
		if p.HasLinkedEmail(email) {
			return clone(p), nil
		}
	}
	return nil, identity.ErrNotFound
}

func (s *Store) UpdateOnFederatedLogin(ctx context.Context, principalID string, login identity.FederatedLogin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[principalID]
	if !ok {
		return identity.ErrNotFound
	}
	// Misma regla que el índice único parcial en Postgres: un subject
	// federado no puede quedar atado a dos principals.
	for id, other := range s.principals {
		if id != principalID && other.FederatedSubject != nil && *other.FederatedSubject == login.FederatedSubject {
			return identity.ErrConflict
		}
	}
	sub := login.FederatedSubject
	p.FederatedSubject = &sub
	if login.Provider != "" {
		p.Provider = login.Provider
	}
	if login.AvatarURL != nil && *login.AvatarURL != "" {
		p.AvatarURL = login.AvatarURL
	}
	if login.Email != "" && !p.HasLinkedEmail(login.Email) {
		p.LinkedEmails = append(p.LinkedEmails, login.Email)
	}
	last := login.LastLoginAt
	p.LastLoginAt = &last
	return nil
}

func (s *Store) ClearFederatedSubject(ctx context.Context, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[principalID]
	if !ok {
		return identity.ErrNotFound
	}
	p.FederatedSubject = nil
	if p.Provider == identity.ProviderHybrid || p.Provider == identity.ProviderGoogle {
		p.Provider = identity.ProviderLocal
	}
	return nil
}

func clone(p *identity.Principal) *identity.Principal {
	cp := *p
	cp.LinkedEmails = append([]string(nil), p.LinkedEmails...)
	cp.AllowedVenueIDs = append([]string(nil), p.AllowedVenueIDs...)
	return &cp
}
