package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/ghwhisper/core"
	"github.com/hupe1980/ghwhisper/logging"
)

var (
	// ErrStepLimit is returned when a run executes more than MaxSteps nodes.
	ErrStepLimit = errors.New("graph: step limit exceeded")
	// ErrNoTransition is returned when no edge matches a routing label.
	ErrNoTransition = errors.New("graph: no transition")
	// ErrUnknownNode is returned for edges or starts naming missing nodes.
	ErrUnknownNode = errors.New("graph: unknown node")
)

// State names a node. End is the terminal state and has no node.
type State string

// End is the terminal state.
const End State = "END"

// DefaultMaxSteps bounds a run when no explicit limit is configured.
const DefaultMaxSteps = 100

// NodeFunc reads the state and returns a partial update. A node that fails
// may still return the update it completed; it is applied before the run
// stops.
type NodeFunc func(ctx context.Context, st *core.ConversationState) (core.Update, error)

// RouteFunc inspects the merged state and returns a routing label.
type RouteFunc func(st *core.ConversationState) string

// Step describes one executed node and is handed to the observer.
type Step struct {
	Index    int
	Node     State
	Label    string
	Next     State
	Update   core.Update
	Duration time.Duration
}

// Options configures a Graph.
type Options struct {
	// MaxSteps is the maximum number of node executions per run.
	MaxSteps int
	// Observer is called after every step, in order.
	Observer func(Step)
	Logger   logging.Logger
}

type edgeKey struct {
	from  State
	label string
}

// Graph is an explicit transition table plus node functions. A graph is
// immutable once built and safe to run concurrently on distinct states.
type Graph struct {
	start   State
	nodes   map[State]NodeFunc
	routers map[State]RouteFunc
	edges   map[edgeKey]State
	opts    Options
}

// New creates an empty graph starting at start.
func New(start State, optFns ...func(o *Options)) *Graph {
	opts := Options{
		MaxSteps: DefaultMaxSteps,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Graph{
		start:   start,
		nodes:   map[State]NodeFunc{},
		routers: map[State]RouteFunc{},
		edges:   map[edgeKey]State{},
		opts:    opts,
	}
}

// AddNode registers a node function under name.
func (g *Graph) AddNode(name State, fn NodeFunc) {
	g.nodes[name] = fn
}

// AddEdge adds an unconditional transition.
func (g *Graph) AddEdge(from, to State) {
	g.edges[edgeKey{from: from}] = to
}

// AddConditionalEdges routes from by the label returned by route.
func (g *Graph) AddConditionalEdges(from State, route RouteFunc, targets map[string]State) {
	g.routers[from] = route
	for label, to := range targets {
		g.edges[edgeKey{from: from, label: label}] = to
	}
}

// Next returns the transition for (from, label).
func (g *Graph) Next(from State, label string) (State, bool) {
	to, ok := g.edges[edgeKey{from: from, label: label}]
	return to, ok
}

// Route evaluates the router of from against st. Nodes without a router
// yield the empty label.
func (g *Graph) Route(from State, st *core.ConversationState) string {
	if r, ok := g.routers[from]; ok {
		return r(st)
	}
	return ""
}

// Validate checks that the start and every edge endpoint name known nodes.
func (g *Graph) Validate() error {
	if _, ok := g.nodes[g.start]; !ok {
		return fmt.Errorf("%w: start %q", ErrUnknownNode, g.start)
	}
	for k, to := range g.edges {
		if _, ok := g.nodes[k.from]; !ok {
			return fmt.Errorf("%w: edge from %q", ErrUnknownNode, k.from)
		}
		if _, ok := g.nodes[to]; !ok && to != End {
			return fmt.Errorf("%w: edge to %q", ErrUnknownNode, to)
		}
	}
	return nil
}

// Run drives st from the start node to End. Each node's update is merged
// into st before routing, so completed steps stay applied when a later
// node fails. A failing node's partial update is merged too.
func (g *Graph) Run(ctx context.Context, st *core.ConversationState) error {
	current := g.start
	for i := 0; current != End; i++ {
		if g.opts.MaxSteps > 0 && i >= g.opts.MaxSteps {
			return fmt.Errorf("%w: %d steps, last node %q", ErrStepLimit, g.opts.MaxSteps, current)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		node, ok := g.nodes[current]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownNode, current)
		}

		g.opts.Logger.Debug("pipeline.node.start", "node", string(current), "step", i)
		start := time.Now()
		upd, err := node(ctx, st)
		st.Apply(upd)
		if err != nil {
			g.opts.Logger.Debug("pipeline.node.failed", "node", string(current), "error", err.Error())
			return fmt.Errorf("node %s: %w", current, err)
		}

		label := g.Route(current, st)
		next, ok := g.Next(current, label)
		if !ok {
			return fmt.Errorf("%w: from %q with label %q", ErrNoTransition, current, label)
		}

		step := Step{Index: i, Node: current, Label: label, Next: next, Update: upd, Duration: time.Since(start)}
		g.opts.Logger.Debug("pipeline.node.completed", "node", string(current), "next", string(next), "duration_ms", step.Duration.Milliseconds())
		if g.opts.Observer != nil {
			g.opts.Observer(step)
		}
		current = next
	}
	return nil
}
