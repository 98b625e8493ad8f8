package export_test

import (
	"testing"

	"github.com/ostium-io/ostium/internal/export"
)

func TestReservationRows_FlattensAndSorts(t *testing.T) {
	rows, err := export.ReservationRows("member_1", map[string]string{
		"act_tennis": `{"attempts_used":2,"last_entry_epoch":1773309000}`,
		"act_pool":   `{"attempts_used":0}`,
	})
	if err != nil {
		t.Fatalf("ReservationRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].ActivityRef != "act_pool" || rows[1].ActivityRef != "act_tennis" {
		t.Errorf("expected rows sorted by reference, got %s, %s", rows[0].ActivityRef, rows[1].ActivityRef)
	}
	if rows[1].AttemptsUsed != 2 || rows[1].LastEntryEpoch != 1773309000 {
		t.Errorf("decode mismatch: %+v", rows[1])
	}
	if rows[0].Identity != "member_1" {
		t.Errorf("expected identity carried onto each row, got %q", rows[0].Identity)
	}
}

func TestReservationRows_MalformedRecord(t *testing.T) {
	_, err := export.ReservationRows("member_1", map[string]string{
		"act_tennis": "not-json",
	})
	if err == nil {
		t.Fatal("expected an error for a malformed record")
	}
}

func TestFaultCounterRows_Sorted(t *testing.T) {
	rows, err := export.FaultCounterRows(map[string]string{
		"link_down":           "7",
		"backend_unreachable": "3",
	})
	if err != nil {
		t.Fatalf("FaultCounterRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].FaultType != "backend_unreachable" || rows[0].Count != 3 {
		t.Errorf("first row: %+v", rows[0])
	}
	if rows[1].FaultType != "link_down" || rows[1].Count != 7 {
		t.Errorf("second row: %+v", rows[1])
	}
}

func TestFaultCounterRows_CorruptValue(t *testing.T) {
	if _, err := export.FaultCounterRows(map[string]string{"link_down": "seven"}); err == nil {
		t.Fatal("expected an error for a non-numeric counter")
	}
}
