// Package graph provides a small finite-state machine that drives one turn
// of the pipeline over a *core.ConversationState.
//
// A graph is a set of named nodes plus a transition table keyed by
// (state, routing label). Run repeatedly applies the current node, merges
// its partial update into the state, asks the node's router for a label and
// follows the matching transition until it reaches End. Nodes without a
// router follow their unconditional edge (the empty label).
//
// Example:
//
//	g := graph.New("A")
//	g.AddNode("A", nodeA)
//	g.AddNode("B", nodeB)
//	g.AddEdge("A", "B")
//	g.AddConditionalEdges("B", routeB, map[string]graph.State{"again": "A", "done": graph.End})
//	err := g.Run(ctx, state)
package graph
