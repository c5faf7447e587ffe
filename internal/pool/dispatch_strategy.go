package pool

// DispatchStrategy chooses which idle worker receives the next task.
// Strategies are only called from the coordinator goroutine.
type DispatchStrategy interface {
	// Pick returns the index into idle of the worker to use.
	// idle is guaranteed to be non-empty and ordered by worker ID.
	Pick(idle []WorkerHandle) int

	// Name returns the strategy name for logging/metrics.
	Name() string
}

// FirstIdleStrategy reuses the lowest-numbered idle worker, so a lightly loaded pool
// keeps work on few goroutines.
type FirstIdleStrategy struct{}

func (s *FirstIdleStrategy) Pick(_ []WorkerHandle) int { return 0 }

func (s *FirstIdleStrategy) Name() string { return "first-idle" }

// RoundRobinStrategy rotates through workers by ID, skipping busy ones.
type RoundRobinStrategy struct {
	last int
}

func (s *RoundRobinStrategy) Pick(idle []WorkerHandle) int {
	for i, w := range idle {
		if w.ID > s.last {
			s.last = w.ID
			return i
		}
	}
	s.last = idle[0].ID
	return 0
}

func (s *RoundRobinStrategy) Name() string { return "round-robin" }

// LeastUsedStrategy picks the idle worker that has completed the fewest tasks.
type LeastUsedStrategy struct{}

func (s *LeastUsedStrategy) Pick(idle []WorkerHandle) int {
	best := 0
	for i, w := range idle[1:] {
		if w.Completed < idle[best].Completed {
			best = i + 1
		}
	}
	return best
}

func (s *LeastUsedStrategy) Name() string { return "least-used" }

// NewDispatchStrategy creates a dispatch strategy by name.
// Supported strategies: "first-idle" (default), "round-robin", "least-used".
func NewDispatchStrategy(name string) DispatchStrategy {
	switch name {
	case "round-robin":
		return &RoundRobinStrategy{}
	case "least-used":
		return &LeastUsedStrategy{}
	default:
		return &FirstIdleStrategy{}
	}
}
