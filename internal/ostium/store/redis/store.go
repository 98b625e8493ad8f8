// Package redis implements the directory and audit stores against the
// remote Redis directory. One Store instance serves exactly one door; all
// read-then-write sequences rely on that single-writer assumption.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/avast/retry-go/v5"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ostium-io/ostium/internal/ostium/store"
	"github.com/ostium-io/ostium/internal/ostium/types"
)

type Options struct {
	Addr     string
	Password string
	DB       int

	// DialTimeout bounds connection establishment, OpTimeout each
	// individual command. Both must stay well under the watchdog
	// interval so a hung backend cannot starve the liveness loop.
	DialTimeout time.Duration
	OpTimeout   time.Duration

	// ReconnectAttempts bounds the blocking re-dial sequence.
	ReconnectAttempts uint

	// OnReconnectAttempt is called before each re-dial attempt so the
	// caller can feed the watchdog. Optional.
	OnReconnectAttempt func()
}

type Store struct {
	opts   Options
	client *goredis.Client
	logger *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Store {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 3 * time.Second
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 2 * time.Second
	}
	if opts.ReconnectAttempts == 0 {
		opts.ReconnectAttempts = 3
	}
	return &Store{
		opts:   opts,
		client: newClient(opts),
		logger: logger.With(zap.String("mod", "redis_store")),
	}
}

func newClient(opts Options) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
		ReadTimeout: opts.OpTimeout,
		// A single door presents one credential at a time.
		PoolSize: 2,
	})
}

func (s *Store) Close() error { return s.client.Close() }

// opCtx bounds a single remote command. A timeout here surfaces as a
// transient error; the cycle ends and the next presentation retries.
func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.OpTimeout)
}

// ── DirectoryStore ───────────────────────────────────────────────────────────

func (s *Store) ResolveCredential(ctx context.Context, identifier string) (string, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	identity, err := s.client.HGet(ctx, KeyCredentialIndex, identifier).Result()
	if errors.Is(err, goredis.Nil) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve credential: %w", err)
	}
	return identity, nil
}

func (s *Store) DisplayName(ctx context.Context, identity string) (string, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	name, err := s.client.HGet(ctx, ProfileKey(identity), "display_name").Result()
	if errors.Is(err, goredis.Nil) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("profile %s: %w", identity, err)
	}
	return name, nil
}

func (s *Store) Reservations(ctx context.Context, identity string) ([]store.ReservationEntry, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, ReservationsKey(identity)).Result()
	if err != nil {
		return nil, fmt.Errorf("reservations %s: %w", identity, err)
	}
	if len(fields) == 0 {
		return nil, store.ErrNotFound
	}

	refs := make([]string, 0, len(fields))
	for ref := range fields {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	entries := make([]store.ReservationEntry, 0, len(refs))
	for _, ref := range refs {
		var rec types.ReservationRecord
		if err := json.Unmarshal([]byte(fields[ref]), &rec); err != nil {
			return nil, fmt.Errorf("reservation %s/%s: %w", identity, ref, err)
		}
		entries = append(entries, store.ReservationEntry{ActivityRef: ref, Record: rec})
	}
	return entries, nil
}

func (s *Store) Activity(ctx context.Context, ref string) (store.ActivityRecord, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, ActivityKey(ref)).Result()
	if err != nil {
		return store.ActivityRecord{}, fmt.Errorf("activity %s: %w", ref, err)
	}
	if len(fields) == 0 {
		return store.ActivityRecord{}, store.ErrNotFound
	}
	return store.ActivityRecord{
		Kind:      fields["kind"],
		StartTime: fields["start_time"],
		EndTime:   fields["end_time"],
	}, nil
}

func (s *Store) PutReservation(ctx context.Context, identity, ref string, rec types.ReservationRecord) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	// The whole record goes out as one hash field so a concurrent export
	// snapshot never sees a half-written record.
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode reservation %s/%s: %w", identity, ref, err)
	}
	if err := s.client.HSet(ctx, ReservationsKey(identity), ref, payload).Err(); err != nil {
		return fmt.Errorf("put reservation %s/%s: %w", identity, ref, err)
	}
	return nil
}

// ── AuditStore ───────────────────────────────────────────────────────────────

func (s *Store) AppendAudit(ctx context.Context, rec types.AuditRecord) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit: %w", err)
	}
	if err := s.client.Set(ctx, AuditKey(rec.Identity, rec.Epoch), payload, 0).Err(); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func (s *Store) AppendFault(ctx context.Context, rec types.FaultRecord) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode fault: %w", err)
	}
	if err := s.client.Set(ctx, FaultKey(rec.Epoch), payload, 0).Err(); err != nil {
		return fmt.Errorf("append fault: %w", err)
	}
	return nil
}

func (s *Store) BumpFaultCounter(ctx context.Context, faultType string) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	// Read-modify-write. Not atomic; acceptable because exactly one
	// controller writes a given door's counters, and the exported value
	// is documented as eventually consistent.
	var count int64
	raw, err := s.client.HGet(ctx, KeyFaultCounters, faultType).Result()
	switch {
	case errors.Is(err, goredis.Nil):
		count = 0
	case err != nil:
		return 0, fmt.Errorf("read fault counter %s: %w", faultType, err)
	default:
		count, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			// Corrupt counter: restart it rather than fail the write.
			s.logger.Warn("resetting corrupt fault counter",
				zap.String("fault_type", faultType), zap.String("raw", raw))
			count = 0
		}
	}

	count++
	if err := s.client.HSet(ctx, KeyFaultCounters, faultType, strconv.FormatInt(count, 10)).Err(); err != nil {
		return 0, fmt.Errorf("write fault counter %s: %w", faultType, err)
	}
	return count, nil
}

// ── Backend ──────────────────────────────────────────────────────────────────

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Reconnect tears down the client and re-dials with authentication, with
// bounded retries. It blocks the decision cycle; the resilience manager
// only invokes it after the failure threshold is reached.
func (s *Store) Reconnect(ctx context.Context) error {
	_ = s.client.Close()

	attempt := uint(0)
	err := retry.New(
		retry.Context(ctx),
		retry.Attempts(s.opts.ReconnectAttempts),
		retry.Delay(500*time.Millisecond),
	).Do(func() error {
		attempt++
		if s.opts.OnReconnectAttempt != nil {
			s.opts.OnReconnectAttempt()
		}
		s.logger.Info("reconnecting to directory", zap.Uint("attempt", attempt))

		client := newClient(s.opts)
		pingCtx, cancel := context.WithTimeout(ctx, s.opts.DialTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return err
		}
		s.client = client
		return nil
	})
	if err != nil {
		// Leave a fresh (unverified) client in place so later cycles can
		// still attempt commands instead of hitting a closed client.
		s.client = newClient(s.opts)
		return fmt.Errorf("reconnect: %w", err)
	}
	s.logger.Info("directory connection restored")
	return nil
}
