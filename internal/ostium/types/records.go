package types

// ReservationRecord is the per-identity, per-activity usage counter held in
// the remote store. The controller only ever increments AttemptsUsed; it is
// never decremented here.
type ReservationRecord struct {
	AttemptsUsed   int   `json:"attempts_used"`
	LastEntryEpoch int64 `json:"last_entry_epoch,omitempty"`
}

// Outcome is the final disposition of one decision cycle.
type Outcome string

const (
	OutcomePermitted Outcome = "permitted"
	OutcomeDenied    Outcome = "denied"
)

// AuditRecord is an append-only fact written for every cycle that reaches a
// verdict, including "no reservation" denials. Date and Time are the local
// formatted counterparts of Epoch, kept denormalized so the export job and
// human readers never need the controller's timezone.
type AuditRecord struct {
	Identity     string       `json:"identity"`
	Epoch        int64        `json:"epoch"`
	Date         string       `json:"date"`
	Time         string       `json:"time"`
	Outcome      Outcome      `json:"outcome"`
	ActivityKind ActivityKind `json:"activity_kind,omitempty"`
	Reason       string       `json:"reason"`
}

// FaultRecord is an append-only fact for an unexpected failure, distinct
// from expected not-found outcomes.
type FaultRecord struct {
	Epoch  int64  `json:"epoch"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Type   string `json:"fault_type"`
	Detail string `json:"detail"`
}
