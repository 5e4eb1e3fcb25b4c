package identity

// State is the lifecycle stage of the local key.
type State int

const (
	// Uninitialized means Init has not run.
	Uninitialized State = iota
	// Absent means no key is stored locally.
	Absent
	// Loaded means a key was read from storage but not yet checked.
	Loaded
	// Conflict means the directory has a different key on record.
	Conflict
	// Ready means the key is usable.
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Absent:
		return "absent"
	case Loaded:
		return "loaded"
	case Conflict:
		return "conflict"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}
