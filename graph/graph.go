// Package graph builds and analyzes the step dependency graph of a job:
// which steps must complete before which, whether the declared dependencies
// are satisfiable, and a deterministic execution order.
package graph

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/openjobspec/openjd/expr"
	"github.com/openjobspec/openjd/model"
)

var (
	ErrUnknownStep = errors.New("dependency references an unknown step")
	ErrCycle       = errors.New("step dependencies form a cycle")
)

// Edge is one dependency relation: Dependent cannot start until Origin has
// completed. Association carries the optional scheduling keyword declared
// alongside the reference; the graph preserves it without interpreting it.
type Edge struct {
	Origin      string
	Dependent   string
	Association string
}

// StepDependencyGraph is the dependency structure of a job's steps. It is
// built once from a Job and immutable afterwards.
type StepDependencyGraph struct {
	steps    []string       // declaration order
	index    map[string]int // name -> declaration index
	edges    []Edge
	incoming map[string][]Edge // keyed by dependent
	outgoing map[string][]Edge // keyed by origin
}

// New builds the dependency graph of the job's steps. A dependsOn target
// that names no declared step is an error carrying a nearest-name
// suggestion; all such violations are reported together.
func New(job *model.Job) (*StepDependencyGraph, error) {
	g := &StepDependencyGraph{
		index:    make(map[string]int, len(job.Steps)),
		incoming: make(map[string][]Edge),
		outgoing: make(map[string][]Edge),
	}
	for i, step := range job.Steps {
		g.steps = append(g.steps, step.Name)
		g.index[step.Name] = i
	}

	var errs model.ErrorList
	for i, step := range job.Steps {
		for j, dep := range step.Dependencies {
			if _, ok := g.index[dep.DependsOn]; !ok {
				errs.Add(model.Errorf(model.KindDependencyGraph,
					fmt.Sprintf("steps[%d].dependencies[%d].dependsOn", i, j),
					"%w: %q%s", ErrUnknownStep, dep.DependsOn,
					expr.Suggestion(g.steps, dep.DependsOn)))
				continue
			}
			edge := Edge{
				Origin:      dep.DependsOn,
				Dependent:   step.Name,
				Association: dep.Association,
			}
			g.edges = append(g.edges, edge)
			g.incoming[edge.Dependent] = append(g.incoming[edge.Dependent], edge)
			g.outgoing[edge.Origin] = append(g.outgoing[edge.Origin], edge)
		}
	}
	if errs.HasErrors() {
		return nil, errs.AsError()
	}
	return g, nil
}

// Steps returns the step names in declaration order.
func (g *StepDependencyGraph) Steps() []string {
	return append([]string{}, g.steps...)
}

// Edges returns every dependency edge in declaration order of the dependent
// step.
func (g *StepDependencyGraph) Edges() []Edge {
	return append([]Edge{}, g.edges...)
}

// DependenciesOf returns the edges into the named step: the steps it waits
// on.
func (g *StepDependencyGraph) DependenciesOf(name string) []Edge {
	return append([]Edge{}, g.incoming[name]...)
}

// DependentsOf returns the edges out of the named step: the steps waiting
// on it.
func (g *StepDependencyGraph) DependentsOf(name string) []Edge {
	return append([]Edge{}, g.outgoing[name]...)
}

// InDegree returns the number of steps the named step depends on.
func (g *StepDependencyGraph) InDegree(name string) int { return len(g.incoming[name]) }

// OutDegree returns the number of steps depending on the named step.
func (g *StepDependencyGraph) OutDegree(name string) int { return len(g.outgoing[name]) }

// MaxInDegree returns the largest dependency count of any step.
func (g *StepDependencyGraph) MaxInDegree() int {
	max := 0
	for _, name := range g.steps {
		if d := len(g.incoming[name]); d > max {
			max = d
		}
	}
	return max
}

// MaxOutDegree returns the largest dependent count of any step.
func (g *StepDependencyGraph) MaxOutDegree() int {
	max := 0
	for _, name := range g.steps {
		if d := len(g.outgoing[name]); d > max {
			max = d
		}
	}
	return max
}

// TopoSorted returns the step names in a dependency-respecting order. The
// order is deterministic: among steps whose dependencies are all satisfied,
// the one declared first in the job comes first. A cycle is an error naming
// the steps along it.
func (g *StepDependencyGraph) TopoSorted() ([]string, error) {
	inDegree := make([]int, len(g.steps))
	for _, edge := range g.edges {
		inDegree[g.index[edge.Dependent]]++
	}

	ready := &indexHeap{}
	heap.Init(ready)
	for i, d := range inDegree {
		if d == 0 {
			heap.Push(ready, i)
		}
	}

	var order []string
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		name := g.steps[i]
		order = append(order, name)
		for _, edge := range g.outgoing[name] {
			j := g.index[edge.Dependent]
			inDegree[j]--
			if inDegree[j] == 0 {
				heap.Push(ready, j)
			}
		}
	}

	if len(order) < len(g.steps) {
		return nil, model.Errorf(model.KindDependencyGraph, "steps",
			"%w: %s", ErrCycle, joinNames(g.cyclePath()))
	}
	return order, nil
}

// cyclePath finds one cycle by depth-first traversal and returns the step
// names along it, closing back on the first name.
func (g *StepDependencyGraph) cyclePath() []string {
	const (
		unvisited = 0
		inPath    = 1
		done      = 2
	)
	state := make([]int, len(g.steps))
	var path []string
	var cycle []string

	var visit func(i int) bool
	visit = func(i int) bool {
		state[i] = inPath
		path = append(path, g.steps[i])
		// Traverse against the edge direction so the reported cycle reads
		// dependent -> dependency.
		for _, edge := range g.incoming[g.steps[i]] {
			j := g.index[edge.Origin]
			switch state[j] {
			case inPath:
				start := 0
				for k, name := range path {
					if name == g.steps[j] {
						start = k
						break
					}
				}
				cycle = append(append([]string{}, path[start:]...), g.steps[j])
				return true
			case unvisited:
				if visit(j) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		state[i] = done
		return false
	}

	for i := range g.steps {
		if state[i] == unvisited && visit(i) {
			return cycle
		}
	}
	return nil
}

func joinNames(names []string) string {
	out := ""
	for i, name := range names {
		if i > 0 {
			out += " -> "
		}
		out += name
	}
	return out
}

// indexHeap is a min-heap over declaration indices.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
