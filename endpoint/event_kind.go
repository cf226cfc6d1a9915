package endpoint

import "fmt"

/* EventKind selects which record series an aggregation query runs against
 * Creations counts endpoints, Successes counts stored payloads,
 * Failures counts rejected attempts
 */
type EventKind int

const (
	Creations EventKind = iota + 1
	Successes
	Failures
)

// String returns the string representation of the event kind
func (k EventKind) String() string {
	switch k {
	case Creations:
		return "creations"
	case Successes:
		return "successes"
	case Failures:
		return "failures"
	default:
		return "unknown"
	}
}

// Validate checks if the event kind is valid
func (k EventKind) Validate() error {
	if k < Creations || k > Failures {
		return fmt.Errorf("invalid event kind: %d", k)
	}
	return nil
}
