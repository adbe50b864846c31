package workflow

// Machine tracks one ticket's position on a Graph. It is not safe for
// concurrent use; callers build a fresh one per transition attempt.
type Machine struct {
	graph   *Graph
	current State
}

func (m *Machine) State() State {
	return m.current
}

// CanFire reports whether trigger leaves the current state.
func (m *Machine) CanFire(trigger Trigger) bool {
	_, ok := m.graph.Target(m.current, trigger)
	return ok
}

// Fire moves along the trigger's edge, or returns a *TransitionError and
// stays put.
func (m *Machine) Fire(trigger Trigger) error {
	to, ok := m.graph.Target(m.current, trigger)
	if !ok {
		return &TransitionError{Current: m.current, Trigger: trigger}
	}
	m.current = to
	return nil
}

func (m *Machine) PermittedTriggers() []Trigger {
	return m.graph.Triggers(m.current)
}
