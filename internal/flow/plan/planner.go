// Package plan computes a topological execution order over a Flow's DAG,
// honoring --only and --continue-from selection.
package plan

import (
	"fmt"
	"sort"

	"github.com/flowctl/flowctl/internal/flow"
	"github.com/flowctl/flowctl/internal/flowerrors"
)

// Plan is the pure result of planning: the ordered ids to execute, and the
// ids considered already done (continue_from predecessors).
type Plan struct {
	Order        []string
	Precompleted map[string]bool
}

// Compute builds the allowed set, the precompleted set, and the topological
// plan order. It has no side effects and is safe to call repeatedly (e.g.
// for --dry-run) without mutating f.
func Compute(f *flow.Flow, only []string, continueFrom string) (*Plan, error) {
	allowed, err := allowedSet(f, only)
	if err != nil {
		return nil, err
	}

	precompleted, err := precompletedSet(f, allowed, continueFrom)
	if err != nil {
		return nil, err
	}

	order, err := topoOrder(f, allowed, precompleted)
	if err != nil {
		return nil, err
	}

	return &Plan{Order: order, Precompleted: precompleted}, nil
}

// allowedSet computes the transitive closure of `only` over depends_on. An
// empty/nil only means every declared step is allowed.
func allowedSet(f *flow.Flow, only []string) (map[string]bool, error) {
	allowed := make(map[string]bool, len(f.Steps))
	if len(only) == 0 {
		for _, s := range f.Steps {
			allowed[s.ID] = true
		}
		return allowed, nil
	}

	byID := stepsByID(f)
	var visit func(id string) error
	visit = func(id string) error {
		if allowed[id] {
			return nil
		}
		step, ok := byID[id]
		if !ok {
			return &flowerrors.PlanError{Reason: "unknown step in --only", StepID: id}
		}
		allowed[id] = true
		for _, dep := range step.DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}

	for _, id := range only {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return allowed, nil
}

// precompletedSet marks every allowed id strictly before continueFrom in
// declaration order as already done.
func precompletedSet(f *flow.Flow, allowed map[string]bool, continueFrom string) (map[string]bool, error) {
	precompleted := make(map[string]bool)
	if continueFrom == "" {
		return precompleted, nil
	}

	idx, ok := f.StepIndex[continueFrom]
	if !ok {
		return nil, &flowerrors.PlanError{Reason: "unknown step in --continue-from", StepID: continueFrom}
	}

	for _, s := range f.Steps {
		if !allowed[s.ID] {
			continue
		}
		if f.StepIndex[s.ID] < idx {
			precompleted[s.ID] = true
		}
	}
	return precompleted, nil
}

// topoOrder runs a Kahn-style walk limited to allowed ∖ precompleted.
func topoOrder(f *flow.Flow, allowed, precompleted map[string]bool) ([]string, error) {
	active := make(map[string]bool)
	for id := range allowed {
		if !precompleted[id] {
			active[id] = true
		}
	}

	byID := stepsByID(f)
	remaining := make(map[string]int, len(active))
	dependents := make(map[string][]string, len(active))

	for id := range active {
		count := 0
		for _, dep := range byID[id].DependsOn {
			if active[dep] {
				count++
				dependents[dep] = append(dependents[dep], id)
			}
		}
		remaining[id] = count
	}

	var ready []string
	for _, s := range f.Steps {
		if active[s.ID] && remaining[s.ID] == 0 {
			ready = append(ready, s.ID)
		}
	}

	order := make([]string, 0, len(active))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		next := dependents[id]
		sort.Slice(next, func(i, j int) bool { return f.StepIndex[next[i]] < f.StepIndex[next[j]] })
		for _, dep := range next {
			remaining[dep]--
			if remaining[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(active) {
		unsatisfied := make([]string, 0)
		for id, count := range remaining {
			if count > 0 {
				unsatisfied = append(unsatisfied, id)
			}
		}
		sort.Strings(unsatisfied)
		return nil, &flowerrors.PlanError{
			Reason: fmt.Sprintf("cycle or unsatisfied dependency among: %v", unsatisfied),
		}
	}

	return order, nil
}

func stepsByID(f *flow.Flow) map[string]*flow.Step {
	byID := make(map[string]*flow.Step, len(f.Steps))
	for _, s := range f.Steps {
		byID[s.ID] = s
	}
	return byID
}
