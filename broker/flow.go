package broker

// Flow is the signal a dispatch handler returns to control the run loop.
type Flow int

const (
	// Continue keeps the run loop going.
	Continue Flow = iota

	// Break ends Run successfully.
	Break
)

// String implements fmt.Stringer.
func (f Flow) String() string {
	switch f {
	case Continue:
		return "continue"
	case Break:
		return "break"
	default:
		return "unknown"
	}
}
