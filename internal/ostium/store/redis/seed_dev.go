package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ostium-io/ostium/internal/ostium/types"
)

// SeedDev loads a minimal fixture set so a dev controller can be exercised
// end to end without an admin tool: one registered credential with a
// profile, an outdoor activity, and a fresh reservation against it.
func (s *Store) SeedDev(ctx context.Context) error {
	// Minimal "starter member"
	if err := s.client.HSet(ctx, KeyCredentialIndex, "04AABBCC", "member_dev").Err(); err != nil {
		return fmt.Errorf("seed credential index: %w", err)
	}
	if err := s.client.HSet(ctx, ProfileKey("member_dev"), "display_name", "Dev Member").Err(); err != nil {
		return fmt.Errorf("seed profile: %w", err)
	}
	if err := s.client.HSet(ctx, ActivityKey("act_dev"),
		"kind", string(types.KindOutdoor),
		"start_time", "09:00",
		"end_time", "10:00",
	).Err(); err != nil {
		return fmt.Errorf("seed activity: %w", err)
	}

	payload, err := json.Marshal(types.ReservationRecord{AttemptsUsed: 0})
	if err != nil {
		return fmt.Errorf("encode seed reservation: %w", err)
	}
	if err := s.client.HSet(ctx, ReservationsKey("member_dev"), "act_dev", payload).Err(); err != nil {
		return fmt.Errorf("seed reservation: %w", err)
	}
	return nil
}
