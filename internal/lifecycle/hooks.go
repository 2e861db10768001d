package lifecycle

import "context"

// Phase orders shutdown hooks. Lower phases finish before higher ones start.
type Phase int

const (
	// PhaseIngress stops accepting new work: HTTP server, Telegram poller.
	PhaseIngress Phase = iota
	// PhaseWorkers stops background jobs.
	PhaseWorkers
	// PhaseResources closes stores and clients.
	PhaseResources
	// PhaseTelemetry flushes error reporting and logs.
	PhaseTelemetry
)

func (p Phase) String() string {
	switch p {
	case PhaseIngress:
		return "ingress"
	case PhaseWorkers:
		return "workers"
	case PhaseResources:
		return "resources"
	case PhaseTelemetry:
		return "telemetry"
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
