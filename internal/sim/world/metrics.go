package world

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick       uint64  `json:"tick"`
	SimSeconds float64 `json:"sim_seconds"`

	Items      int `json:"items"`
	Credits    int `json:"credits"`
	WasteQueue int `json:"waste_queue"`
	Observers  int `json:"observers"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Reconfigure int `json:"reconfigure"`
	Admin       int `json:"admin"`
	Observer    int `json:"observer"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}
