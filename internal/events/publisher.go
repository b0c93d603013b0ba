package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	id "sbt-registry/pkg/domain"
)

// Publisher delivers lifecycle events to external observers. Implementations
// must preserve the order in which Publish is called.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// New stamps an event with a fresh ID and timestamp.
func New(kind Kind, credentialID id.CredentialID, holder id.Identity, at time.Time) Event {
	return Event{
		ID:           uuid.New().String(),
		Kind:         kind,
		CredentialID: credentialID,
		Holder:       holder,
		OccurredAt:   at,
	}
}

// MemorySink collects events in order for tests and single-process deployments.
type MemorySink struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Publish(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of all published events in publication order.
func (s *MemorySink) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// OfKind filters the snapshot by event kind.
func (s *MemorySink) OfKind(kind Kind) []Event {
	var out []Event
	for _, e := range s.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
