// Package paramspace enumerates the task parameter sets of a step's
// parameter space: the cross product and zipped associations its
// combination expression describes, in a deterministic row-major order.
package paramspace

import (
	"errors"

	"github.com/openjobspec/openjd/expr"
	"github.com/openjobspec/openjd/model"
)

var (
	ErrLengthMismatch = errors.New("associated task parameters must have ranges of equal length")
	ErrEmptyDomain    = errors.New("task parameter has an empty range")
	ErrIndexRange     = errors.New("task index out of range")
)

// State reports where an Iterator is in its traversal.
type State int

const (
	StateNotStarted State = iota
	StateIterating
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateIterating:
		return "iterating"
	case StateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// axis is one term of the combination expression: a single parameter, or a
// group of parameters advancing in lockstep.
type axis struct {
	params []*model.TaskParameter
	length int
}

// Iterator enumerates the parameter sets of one step's parameter space.
// Enumeration is row-major over the combination expression's terms, the
// rightmost term varying fastest, so the sequence is deterministic for a
// given space. At provides random access by task index without advancing
// the sequence. An Iterator is not safe for concurrent use.
type Iterator struct {
	axes    []axis
	total   int
	indices []int
	state   State
}

// New builds an iterator over the space. A nil space is the empty parameter
// space, which yields exactly one empty parameter set.
//
// The combination expression must reference every declared task parameter
// exactly once, and every parameter within an associated group must have
// the same domain length; violations of either are combination errors.
func New(space *model.StepParameterSpace) (*Iterator, error) {
	it := &Iterator{total: 1, state: StateNotStarted}
	if space == nil || len(space.TaskParameterDefinitions) == 0 {
		return it, nil
	}

	byName := make(map[string]*model.TaskParameter, len(space.TaskParameterDefinitions))
	var declared []string
	for i := range space.TaskParameterDefinitions {
		p := &space.TaskParameterDefinitions[i]
		byName[p.Name] = p
		declared = append(declared, p.Name)
	}

	combination := space.Combination
	if combination == nil {
		combination = expr.DefaultCombination(declared)
	}

	var errs model.ErrorList
	referenced := make(map[string]bool)
	for _, term := range combination.Terms() {
		ax := axis{}
		for _, name := range term.Names {
			referenced[name] = true
			p, ok := byName[name]
			if !ok {
				errs.Add(model.Errorf(model.KindCombination, "combination",
					"unknown task parameter %q%s", name, expr.Suggestion(declared, name)))
				continue
			}
			ax.params = append(ax.params, p)
		}
		if len(ax.params) == 0 {
			continue
		}
		ax.length = ax.params[0].DomainLen()
		for _, p := range ax.params[1:] {
			if p.DomainLen() != ax.length {
				errs.Add(model.Errorf(model.KindCombination, "combination",
					"%w: %s has %d values, %s has %d",
					ErrLengthMismatch, ax.params[0].Name, ax.length, p.Name, p.DomainLen()))
			}
		}
		for _, p := range ax.params {
			if p.DomainLen() == 0 {
				errs.Add(model.Errorf(model.KindCombination, "combination",
					"%w: %s", ErrEmptyDomain, p.Name))
			}
		}
		it.axes = append(it.axes, ax)
		it.total *= ax.length
	}
	for _, name := range declared {
		if !referenced[name] {
			errs.Add(model.Errorf(model.KindCombination, "combination",
				"task parameter %s is never referenced", name))
		}
	}

	if errs.HasErrors() {
		return nil, errs.AsError()
	}
	it.indices = make([]int, len(it.axes))
	return it, nil
}

// Len returns the number of parameter sets the space contains. The empty
// space has length 1: a step without task parameters still runs one task.
func (it *Iterator) Len() int { return it.total }

// State reports the iterator's position.
func (it *Iterator) State() State { return it.state }

// Next returns the next parameter set in sequence, or ok=false once the
// space is exhausted.
func (it *Iterator) Next() (model.TaskParameterSet, bool) {
	switch it.state {
	case StateExhausted:
		return nil, false
	case StateNotStarted:
		it.state = StateIterating
	case StateIterating:
		// Advance row-major: rightmost axis varies fastest.
		i := len(it.indices) - 1
		for ; i >= 0; i-- {
			it.indices[i]++
			if it.indices[i] < it.axes[i].length {
				break
			}
			it.indices[i] = 0
		}
		if i < 0 {
			it.state = StateExhausted
			return nil, false
		}
	}
	return it.at(it.indices), true
}

// At returns the parameter set at the given task index without disturbing
// the sequential traversal. Index order matches the order Next yields.
func (it *Iterator) At(index int) (model.TaskParameterSet, error) {
	if index < 0 || index >= it.total {
		return nil, model.Errorf(model.KindCombination, "",
			"%w: %d not in [0, %d)", ErrIndexRange, index, it.total)
	}
	indices := make([]int, len(it.axes))
	for i := len(it.axes) - 1; i >= 0; i-- {
		indices[i] = index % it.axes[i].length
		index /= it.axes[i].length
	}
	return it.at(indices), nil
}

func (it *Iterator) at(indices []int) model.TaskParameterSet {
	set := make(model.TaskParameterSet)
	for i, ax := range it.axes {
		for _, p := range ax.params {
			set[p.Name] = p.DomainAt(indices[i])
		}
	}
	return set
}

// Reset returns the iterator to its initial state.
func (it *Iterator) Reset() {
	for i := range it.indices {
		it.indices[i] = 0
	}
	it.state = StateNotStarted
}

// SymbolTable builds the task-scope symbol table for one parameter set:
// Task.Param.X and Task.RawParam.X for each bound parameter.
func SymbolTable(set model.TaskParameterSet) model.SymbolTable {
	symtab := make(model.SymbolTable, 2*len(set))
	for name, value := range set {
		symtab[model.TaskParameterPrefix+"."+name] = value.Value
		symtab[model.TaskParameterRawPrefix+"."+name] = value.Value
	}
	return symtab
}
