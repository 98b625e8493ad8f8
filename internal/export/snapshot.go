// Package export implements the downstream batch job: it snapshots every
// collection of the remote directory, flattens each into a row set, and
// republishes the row sets into the analytical warehouse with
// truncate-and-reload semantics. It has no coordination with the
// controller; it relies on the controller writing each record as a single
// unit.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	redisstore "github.com/ostium-io/ostium/internal/ostium/store/redis"
	"github.com/ostium-io/ostium/internal/ostium/types"
)

type CredentialRow struct {
	Identifier string
	Identity   string
}

type ProfileRow struct {
	Identity    string
	DisplayName string
}

type ReservationRow struct {
	Identity       string
	ActivityRef    string
	AttemptsUsed   int
	LastEntryEpoch int64
}

type ActivityRow struct {
	Ref       string
	Kind      string
	StartTime string
	EndTime   string
}

type FaultCounterRow struct {
	FaultType string
	Count     int64
}

// Snapshot is a point-in-time flattening of the whole directory. A nil or
// empty slice still truncates its destination table on publish.
type Snapshot struct {
	Credentials   []CredentialRow
	Profiles      []ProfileRow
	Reservations  []ReservationRow
	Activities    []ActivityRow
	AuditLog      []types.AuditRecord
	Faults        []types.FaultRecord
	FaultCounters []FaultCounterRow
}

// Reader walks the directory's key layout collection by collection.
type Reader struct {
	client *goredis.Client
}

func NewReader(client *goredis.Client) *Reader {
	return &Reader{client: client}
}

func (r *Reader) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	index, err := r.client.HGetAll(ctx, redisstore.KeyCredentialIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("snapshot credential index: %w", err)
	}
	for identifier, identity := range index {
		snap.Credentials = append(snap.Credentials, CredentialRow{Identifier: identifier, Identity: identity})
	}
	sort.Slice(snap.Credentials, func(i, j int) bool {
		return snap.Credentials[i].Identifier < snap.Credentials[j].Identifier
	})

	if err := r.scan(ctx, redisstore.ProfilePrefix, func(key string) error {
		identity := strings.TrimPrefix(key, redisstore.ProfilePrefix)
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		snap.Profiles = append(snap.Profiles, ProfileRow{
			Identity:    identity,
			DisplayName: fields["display_name"],
		})
		return nil
	}); err != nil {
		return nil, fmt.Errorf("snapshot profiles: %w", err)
	}

	if err := r.scan(ctx, redisstore.ReservationsPrefix, func(key string) error {
		identity := strings.TrimPrefix(key, redisstore.ReservationsPrefix)
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		rows, err := ReservationRows(identity, fields)
		if err != nil {
			return err
		}
		snap.Reservations = append(snap.Reservations, rows...)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("snapshot reservations: %w", err)
	}

	if err := r.scan(ctx, redisstore.ActivityPrefix, func(key string) error {
		ref := strings.TrimPrefix(key, redisstore.ActivityPrefix)
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		snap.Activities = append(snap.Activities, ActivityRow{
			Ref:       ref,
			Kind:      fields["kind"],
			StartTime: fields["start_time"],
			EndTime:   fields["end_time"],
		})
		return nil
	}); err != nil {
		return nil, fmt.Errorf("snapshot activities: %w", err)
	}

	if err := r.scan(ctx, redisstore.AuditPrefix, func(key string) error {
		raw, err := r.client.Get(ctx, key).Result()
		if err != nil {
			return err
		}
		var rec types.AuditRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		snap.AuditLog = append(snap.AuditLog, rec)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("snapshot audit log: %w", err)
	}

	if err := r.scan(ctx, redisstore.FaultPrefix, func(key string) error {
		raw, err := r.client.Get(ctx, key).Result()
		if err != nil {
			return err
		}
		var rec types.FaultRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		snap.Faults = append(snap.Faults, rec)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("snapshot faults: %w", err)
	}

	counters, err := r.client.HGetAll(ctx, redisstore.KeyFaultCounters).Result()
	if err != nil {
		return nil, fmt.Errorf("snapshot fault counters: %w", err)
	}
	rows, err := FaultCounterRows(counters)
	if err != nil {
		return nil, fmt.Errorf("snapshot fault counters: %w", err)
	}
	snap.FaultCounters = rows

	return snap, nil
}

func (r *Reader) scan(ctx context.Context, prefix string, visit func(key string) error) error {
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := visit(iter.Val()); err != nil {
			return err
		}
	}
	return iter.Err()
}

// ReservationRows flattens one identity's reservation hash. Split out so
// the decoding is testable without a backend.
func ReservationRows(identity string, fields map[string]string) ([]ReservationRow, error) {
	refs := make([]string, 0, len(fields))
	for ref := range fields {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	rows := make([]ReservationRow, 0, len(refs))
	for _, ref := range refs {
		var rec types.ReservationRecord
		if err := json.Unmarshal([]byte(fields[ref]), &rec); err != nil {
			return nil, fmt.Errorf("decode reservation %s/%s: %w", identity, ref, err)
		}
		rows = append(rows, ReservationRow{
			Identity:       identity,
			ActivityRef:    ref,
			AttemptsUsed:   rec.AttemptsUsed,
			LastEntryEpoch: rec.LastEntryEpoch,
		})
	}
	return rows, nil
}

// FaultCounterRows flattens the per-type counter hash.
func FaultCounterRows(fields map[string]string) ([]FaultCounterRow, error) {
	faultTypes := make([]string, 0, len(fields))
	for t := range fields {
		faultTypes = append(faultTypes, t)
	}
	sort.Strings(faultTypes)

	rows := make([]FaultCounterRow, 0, len(faultTypes))
	for _, t := range faultTypes {
		count, err := strconv.ParseInt(fields[t], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode fault counter %s: %w", t, err)
		}
		rows = append(rows, FaultCounterRow{FaultType: t, Count: count})
	}
	return rows, nil
}
