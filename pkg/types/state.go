package types

// lifecycle of one acquisition attempt
// PENDING -> GRANTED | FAILED are decided by the coordinator
// RELEASED and EXPIRED happen afterwards, expiry happens at the stores
type State uint

const (
	StatePending State = iota
	StateGranted
	StateFailed
	StateReleased
	StateExpired
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateGranted:
		return "GRANTED"
	case StateFailed:
		return "FAILED"
	case StateReleased:
		return "RELEASED"
	case StateExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// terminal for the coordinator, no further transitions are made by it
func (s State) Terminal() bool {
	return s != StatePending
}
