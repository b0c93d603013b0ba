package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sbt-registry/internal/accesscontrol/models"
	id "sbt-registry/pkg/domain"
	"sbt-registry/pkg/platform/sentinel"
)

// InMemory keeps role assignments behind one RWMutex.
type InMemory struct {
	mu           sync.RWMutex
	assignments  map[id.Identity]map[id.Role]models.RoleAssignment
	bootstrapped bool
}

func NewInMemory() *InMemory {
	return &InMemory{assignments: make(map[id.Identity]map[id.Role]models.RoleAssignment)}
}

func (s *InMemory) Bootstrap(_ context.Context, assignments []models.RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bootstrapped || len(s.assignments) > 0 {
		return fmt.Errorf("role store already bootstrapped: %w", sentinel.ErrConflict)
	}
	for _, a := range assignments {
		s.grantLocked(a)
	}
	s.bootstrapped = true
	return nil
}

func (s *InMemory) Grant(_ context.Context, assignment models.RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grantLocked(assignment)
	return nil
}

func (s *InMemory) grantLocked(assignment models.RoleAssignment) {
	roles, ok := s.assignments[assignment.Identity]
	if !ok {
		roles = make(map[id.Role]models.RoleAssignment)
		s.assignments[assignment.Identity] = roles
	}
	if _, held := roles[assignment.Role]; held {
		return // idempotent
	}
	roles[assignment.Role] = assignment
}

func (s *InMemory) Revoke(_ context.Context, identity id.Identity, role id.Role, validate func(holders int) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	roles, ok := s.assignments[identity]
	if !ok {
		return fmt.Errorf("identity %s holds no roles: %w", identity, sentinel.ErrNotFound)
	}
	if _, held := roles[role]; !held {
		return fmt.Errorf("identity %s does not hold role %s: %w", identity, role, sentinel.ErrNotFound)
	}

	if validate != nil {
		if err := validate(s.countHoldersLocked(role)); err != nil {
			return err
		}
	}

	delete(roles, role)
	if len(roles) == 0 {
		delete(s.assignments, identity)
	}
	return nil
}

func (s *InMemory) countHoldersLocked(role id.Role) int {
	count := 0
	for _, roles := range s.assignments {
		if _, held := roles[role]; held {
			count++
		}
	}
	return count
}

func (s *InMemory) HasRole(_ context.Context, identity id.Identity, role id.Role) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles, ok := s.assignments[identity]
	if !ok {
		return false, nil
	}
	_, held := roles[role]
	return held, nil
}

func (s *InMemory) RolesOf(_ context.Context, identity id.Identity) ([]id.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := s.assignments[identity]
	out := make([]id.Role, 0, len(roles))
	for r := range roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
