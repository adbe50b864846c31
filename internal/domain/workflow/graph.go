package workflow

import (
	"fmt"
	"sort"
)

// Graph is an immutable transition table. Each (state, trigger) pair has at
// most one target, so firing never needs to choose.
type Graph struct {
	edges map[State]map[Trigger]State
}

// GraphBuilder collects edges before freezing them into a Graph.
type GraphBuilder struct {
	edges map[State]map[Trigger]State
}

// EdgeSet adds edges leaving one state.
type EdgeSet struct {
	b    *GraphBuilder
	from State
}

func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{edges: make(map[State]map[Trigger]State)}
}

// From starts the edge list for a state. It panics on an unknown state.
func (b *GraphBuilder) From(s State) *EdgeSet {
	if !s.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", s))
	}
	if b.edges[s] == nil {
		b.edges[s] = make(map[Trigger]State)
	}
	return &EdgeSet{b: b, from: s}
}

// On adds from --trigger--> to. Redeclaring an edge with another target panics.
func (e *EdgeSet) On(trigger Trigger, to State) *EdgeSet {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", to))
	}
	if prev, ok := e.b.edges[e.from][trigger]; ok && prev != to {
		panic(fmt.Sprintf("conflicting edge %s --%s--> %s / %s", e.from, trigger, prev, to))
	}
	e.b.edges[e.from][trigger] = to
	return e
}

// Graph freezes the builder. Later edits to the builder do not leak in.
func (b *GraphBuilder) Graph() *Graph {
	edges := make(map[State]map[Trigger]State, len(b.edges))
	for from, out := range b.edges {
		cp := make(map[Trigger]State, len(out))
		for trig, to := range out {
			cp[trig] = to
		}
		edges[from] = cp
	}
	return &Graph{edges: edges}
}

// Target returns where trigger leads from the given state.
func (g *Graph) Target(from State, trigger Trigger) (State, bool) {
	to, ok := g.edges[from][trigger]
	return to, ok
}

// Triggers lists the triggers leaving a state in lexical order.
func (g *Graph) Triggers(from State) []Trigger {
	out := g.edges[from]
	triggers := make([]Trigger, 0, len(out))
	for trig := range out {
		triggers = append(triggers, trig)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}

// Machine positions a cursor on the graph. It panics on an unknown state.
func (g *Graph) Machine(initial State) *Machine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initial))
	}
	return &Machine{graph: g, current: initial}
}
