// Package memory implements the directory and audit stores on in-process
// maps. It is intended for tests and dev environments, and exposes
// inspection helpers plus per-operation error injection so transient-fault
// paths can be exercised without a backend.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ostium-io/ostium/internal/ostium/store"
	"github.com/ostium-io/ostium/internal/ostium/types"
)

type Store struct {
	mu sync.Mutex

	credentials  map[string]string                             // identifier -> identity
	profiles     map[string]string                             // identity -> display name
	reservations map[string]map[string]types.ReservationRecord // identity -> ref -> record
	activities   map[string]store.ActivityRecord               // ref -> row

	audits        []types.AuditRecord
	faults        []types.FaultRecord
	faultCounters map[string]int64

	// Injectable errors, one per operation. Nil means the operation
	// behaves normally.
	CredentialErr  error
	ProfileErr     error
	ReservationErr error
	ActivityErr    error
	PutErr         error
	AuditErr       error
	FaultErr       error
	PingErr        error
}

func New() *Store {
	return &Store{
		credentials:   make(map[string]string),
		profiles:      make(map[string]string),
		reservations:  make(map[string]map[string]types.ReservationRecord),
		activities:    make(map[string]store.ActivityRecord),
		faultCounters: make(map[string]int64),
	}
}

// ── Seeding helpers ──────────────────────────────────────────────────────────

func (s *Store) AddCredential(identifier, identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[identifier] = identity
}

func (s *Store) AddProfile(identity, displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[identity] = displayName
}

func (s *Store) AddReservation(identity, ref string, rec types.ReservationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reservations[identity] == nil {
		s.reservations[identity] = make(map[string]types.ReservationRecord)
	}
	s.reservations[identity][ref] = rec
}

func (s *Store) AddActivity(ref string, rec store.ActivityRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities[ref] = rec
}

// ── DirectoryStore ───────────────────────────────────────────────────────────

func (s *Store) ResolveCredential(_ context.Context, identifier string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CredentialErr != nil {
		return "", s.CredentialErr
	}
	identity, ok := s.credentials[identifier]
	if !ok {
		return "", store.ErrNotFound
	}
	return identity, nil
}

func (s *Store) DisplayName(_ context.Context, identity string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ProfileErr != nil {
		return "", s.ProfileErr
	}
	name, ok := s.profiles[identity]
	if !ok {
		return "", store.ErrNotFound
	}
	return name, nil
}

func (s *Store) Reservations(_ context.Context, identity string) ([]store.ReservationEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReservationErr != nil {
		return nil, s.ReservationErr
	}
	byRef, ok := s.reservations[identity]
	if !ok || len(byRef) == 0 {
		return nil, store.ErrNotFound
	}
	refs := make([]string, 0, len(byRef))
	for ref := range byRef {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	entries := make([]store.ReservationEntry, 0, len(refs))
	for _, ref := range refs {
		entries = append(entries, store.ReservationEntry{ActivityRef: ref, Record: byRef[ref]})
	}
	return entries, nil
}

func (s *Store) Activity(_ context.Context, ref string) (store.ActivityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ActivityErr != nil {
		return store.ActivityRecord{}, s.ActivityErr
	}
	rec, ok := s.activities[ref]
	if !ok {
		return store.ActivityRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *Store) PutReservation(_ context.Context, identity, ref string, rec types.ReservationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PutErr != nil {
		return s.PutErr
	}
	if s.reservations[identity] == nil {
		s.reservations[identity] = make(map[string]types.ReservationRecord)
	}
	s.reservations[identity][ref] = rec
	return nil
}

// ── AuditStore ───────────────────────────────────────────────────────────────

func (s *Store) AppendAudit(_ context.Context, rec types.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AuditErr != nil {
		return s.AuditErr
	}
	s.audits = append(s.audits, rec)
	return nil
}

func (s *Store) AppendFault(_ context.Context, rec types.FaultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FaultErr != nil {
		return s.FaultErr
	}
	s.faults = append(s.faults, rec)
	return nil
}

func (s *Store) BumpFaultCounter(_ context.Context, faultType string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FaultErr != nil {
		return 0, s.FaultErr
	}
	s.faultCounters[faultType]++
	return s.faultCounters[faultType], nil
}

// ── Backend ──────────────────────────────────────────────────────────────────

func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PingErr
}

func (s *Store) Reconnect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Dev-store "reconnect" simply clears the injected ping failure.
	s.PingErr = nil
	return nil
}

// ── Inspection helpers (test-only) ───────────────────────────────────────────

// Audits returns a copy of all recorded audit records.
func (s *Store) Audits() []types.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.AuditRecord, len(s.audits))
	copy(out, s.audits)
	return out
}

// Faults returns a copy of all recorded fault records.
func (s *Store) Faults() []types.FaultRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.FaultRecord, len(s.faults))
	copy(out, s.faults)
	return out
}

// FaultCounter returns the current per-type occurrence counter.
func (s *Store) FaultCounter(faultType string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faultCounters[faultType]
}

// Reservation returns the stored record and whether it exists.
func (s *Store) Reservation(identity, ref string) (types.ReservationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byRef, ok := s.reservations[identity]
	if !ok {
		return types.ReservationRecord{}, false
	}
	rec, ok := byRef[ref]
	return rec, ok
}
