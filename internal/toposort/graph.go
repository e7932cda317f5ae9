// Package toposort orders classes so that every class follows the classes it
// depends on. Cycles never fail the sort; they are broken deterministically
// by declaration order.
package toposort

import (
	"sort"
	"sync"
)

// Strength tells how binding a dependency edge is when breaking cycles.
type Strength int

const (
	// Soft edges come from member types; they are dropped first when a
	// cycle has to be broken
	Soft Strength = iota
	// Hard edges come from inheritance and caller supplied dependencies
	Hard
)

func (s Strength) String() string {
	if s == Hard {
		return "hard"
	}
	return "soft"
}

// Node is one vertex of the dependency graph
type Node struct {
	Name       string
	Index      int                 // declaration order
	DependsOn  map[string]Strength // nodes this node depends on
	DependedBy []string            // nodes that depend on this node
}

// Edge is a dependency from one node on another
type Edge struct {
	From     string
	To       string
	Strength Strength
}

// DependencyGraph tracks dependencies between named nodes
type DependencyGraph struct {
	nodes map[string]*Node
	mu    sync.RWMutex
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[string]*Node),
	}
}

// AddNode adds a node. Nodes are ordered by the first call that mentions them.
func (dg *DependencyGraph) AddNode(name string) {
	dg.mu.Lock()
	defer dg.mu.Unlock()

	dg.ensure(name)
}

func (dg *DependencyGraph) ensure(name string) *Node {
	if n, exists := dg.nodes[name]; exists {
		return n
	}
	n := &Node{
		Name:      name,
		Index:     len(dg.nodes),
		DependsOn: make(map[string]Strength),
	}
	dg.nodes[name] = n
	return n
}

// AddDependency records that from depends on to. Self dependencies are
// ignored; a repeated edge keeps the stronger strength.
func (dg *DependencyGraph) AddDependency(from, to string, strength Strength) {
	dg.mu.Lock()
	defer dg.mu.Unlock()

	if from == to {
		dg.ensure(from)
		return
	}
	f := dg.ensure(from)
	t := dg.ensure(to)

	existing, exists := f.DependsOn[to]
	if !exists {
		t.DependedBy = append(t.DependedBy, from)
	}
	if !exists || strength > existing {
		f.DependsOn[to] = strength
	}
}

// GetDependencies returns the nodes the given node depends on, in
// declaration order
func (dg *DependencyGraph) GetDependencies(name string) []string {
	dg.mu.RLock()
	defer dg.mu.RUnlock()

	node, exists := dg.nodes[name]
	if !exists {
		return []string{}
	}
	result := make([]string, 0, len(node.DependsOn))
	for dep := range node.DependsOn {
		result = append(result, dep)
	}
	dg.sortByIndex(result)
	return result
}

// GetDependents returns the nodes that depend on the given node
func (dg *DependencyGraph) GetDependents(name string) []string {
	dg.mu.RLock()
	defer dg.mu.RUnlock()

	if node, exists := dg.nodes[name]; exists {
		result := make([]string, len(node.DependedBy))
		copy(result, node.DependedBy)
		return result
	}
	return []string{}
}

// Size returns the number of nodes in the graph
func (dg *DependencyGraph) Size() int {
	dg.mu.RLock()
	defer dg.mu.RUnlock()

	return len(dg.nodes)
}

func (dg *DependencyGraph) sortByIndex(names []string) {
	sort.Slice(names, func(i, j int) bool {
		return dg.nodes[names[i]].Index < dg.nodes[names[j]].Index
	})
}

// TopologicalOrder returns every node after the nodes it depends on, using
// Kahn's algorithm with the ready set ordered by declaration index. When
// only cycles remain, the earliest declared node whose hard dependencies are
// all emitted is released (or simply the earliest one), and its unsatisfied
// edges are returned as broken.
func (dg *DependencyGraph) TopologicalOrder() ([]string, []Edge) {
	dg.mu.RLock()
	defer dg.mu.RUnlock()

	inDegree := make(map[string]int, len(dg.nodes))
	byIndex := make([]*Node, len(dg.nodes))
	for name, node := range dg.nodes {
		inDegree[name] = len(node.DependsOn)
		byIndex[node.Index] = node
	}

	// ready holds declaration indices, kept sorted
	ready := make([]int, 0)
	push := func(index int) {
		i := sort.SearchInts(ready, index)
		ready = append(ready, 0)
		copy(ready[i+1:], ready[i:])
		ready[i] = index
	}
	for _, node := range byIndex {
		if inDegree[node.Name] == 0 {
			push(node.Index)
		}
	}

	emitted := make(map[string]bool, len(dg.nodes))
	result := make([]string, 0, len(dg.nodes))
	var broken []Edge

	release := func(node *Node) {
		emitted[node.Name] = true
		result = append(result, node.Name)
		for _, dependent := range node.DependedBy {
			inDegree[dependent]--
			if inDegree[dependent] == 0 && !emitted[dependent] {
				push(dg.nodes[dependent].Index)
			}
		}
	}

	for len(result) < len(dg.nodes) {
		if len(ready) > 0 {
			current := byIndex[ready[0]]
			ready = ready[1:]
			if !emitted[current.Name] {
				release(current)
			}
			continue
		}

		// Only cycles remain
		victim := dg.pickCycleVictim(byIndex, emitted)
		for _, dep := range dg.sortedDependencies(victim) {
			if !emitted[dep] {
				broken = append(broken, Edge{From: victim.Name, To: dep, Strength: victim.DependsOn[dep]})
			}
		}
		release(victim)
	}

	return result, broken
}

func (dg *DependencyGraph) pickCycleVictim(byIndex []*Node, emitted map[string]bool) *Node {
	var fallback *Node
	for _, node := range byIndex {
		if emitted[node.Name] {
			continue
		}
		if fallback == nil {
			fallback = node
		}
		satisfied := true
		for dep, strength := range node.DependsOn {
			if strength == Hard && !emitted[dep] {
				satisfied = false
				break
			}
		}
		if satisfied {
			return node
		}
	}
	return fallback
}

func (dg *DependencyGraph) sortedDependencies(node *Node) []string {
	deps := make([]string, 0, len(node.DependsOn))
	for dep := range node.DependsOn {
		deps = append(deps, dep)
	}
	dg.sortByIndex(deps)
	return deps
}
