package enums

import "fmt"

// MutationOp classifies a change by which side of the snapshot is present.
type MutationOp string

const (
	MutationInsert MutationOp = "insert"
	MutationUpdate MutationOp = "update"
	MutationDelete MutationOp = "delete"
)

var validMutationOps = []MutationOp{
	MutationInsert,
	MutationUpdate,
	MutationDelete,
}

// String implements fmt.Stringer.
func (o MutationOp) String() string {
	return string(o)
}

// IsValid reports whether the value is a known MutationOp.
func (o MutationOp) IsValid() bool {
	for _, candidate := range validMutationOps {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseMutationOp converts raw input into a MutationOp.
func ParseMutationOp(value string) (MutationOp, error) {
	for _, candidate := range validMutationOps {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid mutation op %q", value)
}

// MutationState tracks a mutation through the interceptor lifecycle.
type MutationState string

const (
	MutationRequested   MutationState = "requested"
	MutationSnapshotted MutationState = "snapshotted"
	MutationRecomputed  MutationState = "recomputed"
	MutationValidated   MutationState = "validated"
	MutationCommitted   MutationState = "committed"
	MutationAborted     MutationState = "aborted"
)

var allowedMutationTransitions = map[MutationState][]MutationState{
	MutationRequested:   {MutationSnapshotted, MutationAborted},
	MutationSnapshotted: {MutationRecomputed, MutationAborted},
	MutationRecomputed:  {MutationValidated, MutationAborted},
	MutationValidated:   {MutationCommitted, MutationAborted},
}

// String implements fmt.Stringer.
func (s MutationState) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are possible.
func (s MutationState) IsTerminal() bool {
	return s == MutationCommitted || s == MutationAborted
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s MutationState) CanTransitionTo(next MutationState) bool {
	for _, candidate := range allowedMutationTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// AbortReason labels why a mutation was rolled back.
type AbortReason string

const (
	AbortNone                AbortReason = ""
	AbortInvalidMutation     AbortReason = "invalid_mutation"
	AbortInvalidQuantity     AbortReason = "invalid_quantity"
	AbortCreditLimitExceeded AbortReason = "credit_limit_exceeded"
	AbortLookupFailed        AbortReason = "lookup_failed"
	AbortCommitFailed        AbortReason = "commit_failed"
)

// String implements fmt.Stringer.
func (r AbortReason) String() string {
	return string(r)
}
