package lifecycle

import "context"

// Phase orders shutdown work. Lower phases finish before higher ones start.
type Phase int

const (
	// PhaseIntake stops accepting new updates and requests.
	PhaseIntake Phase = iota
	// PhaseDrain waits for in-flight work.
	PhaseDrain
	// PhaseBackground stops periodic workers.
	PhaseBackground
	// PhaseResources closes connections and flushes telemetry.
	PhaseResources
)

func (p Phase) String() string {
	switch p {
	case PhaseIntake:
		return "intake"
	case PhaseDrain:
		return "drain"
	case PhaseBackground:
		return "background"
	case PhaseResources:
		return "resources"
	default:
		return "unknown"
	}
}

// Hook describes a named shutdown hook.
type Hook struct {
	Name  string
	Phase Phase
	Fn    func(ctx context.Context) error
}
