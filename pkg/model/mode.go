package model

// Mode selects training or evaluation behaviour for a single forward call.
// Only dropout depends on it.
type Mode int

const (
	// Eval disables dropout.
	Eval Mode = iota
	// Train enables dropout.
	Train
)

// Training reports whether dropout is active in this mode.
func (m Mode) Training() bool {
	return m == Train
}

func (m Mode) String() string {
	switch m {
	case Eval:
		return "eval"
	case Train:
		return "train"
	default:
		return "unknown"
	}
}
