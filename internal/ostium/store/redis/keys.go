package redis

import "strconv"

// Key layout of the hierarchical directory. Exported so the export job can
// walk the same collections without re-deriving the scheme.
const (
	KeyCredentialIndex = "credential_index"
	KeyFaultCounters   = "fault_counters"

	ProfilePrefix      = "profile:"
	ReservationsPrefix = "reservations:"
	ActivityPrefix     = "activity:"
	AuditPrefix        = "audit:"
	FaultPrefix        = "fault:"
)

func ProfileKey(identity string) string { return ProfilePrefix + identity }

func ReservationsKey(identity string) string { return ReservationsPrefix + identity }

func ActivityKey(ref string) string { return ActivityPrefix + ref }

func AuditKey(identity string, epoch int64) string {
	return AuditPrefix + identity + ":" + strconv.FormatInt(epoch, 10)
}

func FaultKey(epoch int64) string { return FaultPrefix + strconv.FormatInt(epoch, 10) }
