package scan

// State is the lifecycle position of the current scan
type State int32

const (
	StateIdle State = iota
	StateValidating
	StateDemo
	StateQuerying
	StateAssembling
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateDemo:
		return "demo"
	case StateQuerying:
		return "querying"
	case StateAssembling:
		return "assembling"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends a scan
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
