package domain

// LockupKind is the vesting/locking schedule of a deposit.
type LockupKind string

const (
	LockupNone     LockupKind = "none"
	LockupCliff    LockupKind = "cliff"
	LockupConstant LockupKind = "constant"
	LockupVesting  LockupKind = "vesting"
	LockupMonthly  LockupKind = "monthly"
)

// String returns the string representation of LockupKind.
func (k LockupKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a known value.
func (k LockupKind) IsValid() bool {
	switch k {
	case LockupNone, LockupCliff, LockupConstant, LockupVesting, LockupMonthly:
		return true
	}
	return false
}

// Lockup describes the schedule portion of a deposit.
type Lockup struct {
	Kind    LockupKind
	StartTs int64 // unix seconds
	EndTs   int64 // unix seconds
}

// IsZero reports whether the lockup metadata is entirely empty.
func (l Lockup) IsZero() bool {
	return l.Kind == LockupNone && l.StartTs == 0 && l.EndTs == 0
}
