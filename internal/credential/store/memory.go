package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sbt-registry/internal/credential/models"
	id "sbt-registry/pkg/domain"
	"sbt-registry/pkg/platform/sentinel"
)

// InMemory keeps the whole registry state behind one RWMutex. There is exactly
// one logical resource, so a single lock gives the serialized mutation stream
// the concurrency model requires without multi-resource locking.
type InMemory struct {
	mu          sync.RWMutex
	records     map[id.CredentialID]*models.CredentialRecord
	holderIndex map[id.Identity][]id.CredentialID
	nextID      id.CredentialID
}

func NewInMemory() *InMemory {
	return &InMemory{
		records:     make(map[id.CredentialID]*models.CredentialRecord),
		holderIndex: make(map[id.Identity][]id.CredentialID),
		nextID:      1,
	}
}

func (s *InMemory) Create(_ context.Context, req models.IssueRequest, issuedAt time.Time) (*models.CredentialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := models.NewCredentialRecord(s.nextID, req, issuedAt)
	if err != nil {
		return nil, err
	}

	s.records[record.ID] = record
	// The holder index is maintained at issuance time so enumeration never
	// scans the ID space. Appending here preserves issuance order because
	// Create is serialized by the write lock.
	s.holderIndex[record.Holder] = append(s.holderIndex[record.Holder], record.ID)
	s.nextID++

	out := *record
	return &out, nil
}

func (s *InMemory) FindByID(_ context.Context, credentialID id.CredentialID) (*models.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[credentialID]
	if !ok {
		return nil, fmt.Errorf("credential %s: %w", credentialID, sentinel.ErrNotFound)
	}
	out := *record
	return &out, nil
}

func (s *InMemory) ListByHolder(_ context.Context, holder id.Identity) ([]*models.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.holderIndex[holder]
	out := make([]*models.CredentialRecord, 0, len(ids))
	for _, cid := range ids {
		record := *s.records[cid]
		out = append(out, &record)
	}
	return out, nil
}

func (s *InMemory) Execute(_ context.Context, credentialID id.CredentialID,
	validate func(*models.CredentialRecord) error,
	apply func(*models.CredentialRecord)) (*models.CredentialRecord, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[credentialID]
	if !ok {
		return nil, fmt.Errorf("credential %s: %w", credentialID, sentinel.ErrNotFound)
	}
	if err := validate(record); err != nil {
		return nil, err
	}
	apply(record)

	out := *record
	return &out, nil
}

func (s *InMemory) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.records)), nil
}
