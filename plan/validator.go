// Package plan provides the structural safety net applied to every plan the
// orchestrator produces. Rules describe what must exist in a task list —
// never which tool to call — and the validator injects synthetic tasks when
// a rule's required step is missing. It also rejects cyclic dependency
// graphs, which makes planning fail before execution starts.
package plan

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nexhelm/agentflow/core"
)

// Rule declares that requests of a family must contain a task owned by a
// role whose description matches a pattern. When missing, a synthetic task
// is inserted.
type Rule struct {
	// Family matches the request type this rule applies to.
	Family *regexp.Regexp
	// Pattern must match some task description owned by Owner.
	Pattern *regexp.Regexp
	// Owner is the role that must own the matching task.
	Owner string
	// Describe renders the synthetic task description for a request.
	Describe func(req core.Request) string
}

// Applies reports whether the rule covers the request.
func (r Rule) Applies(req core.Request) bool {
	return r.Family.MatchString(strings.ToLower(req.RequestType))
}

// Satisfied reports whether the task list already contains the required
// step.
func (r Rule) Satisfied(tasks []core.Task) bool {
	for _, t := range tasks {
		if t.Owner == r.Owner && r.Pattern.MatchString(t.Description) {
			return true
		}
	}
	return false
}

// Validator checks and repairs planned task lists.
type Validator struct {
	rules []Rule
}

// DefaultRules returns the enforced rule set: account-opening requests must
// include an operations-owned account creation step.
func DefaultRules() []Rule {
	return []Rule{
		{
			Family:  regexp.MustCompile(`ira|account`),
			Pattern: regexp.MustCompile(`(?i)(open|create).*account`),
			Owner:   core.AgentOperations,
			Describe: func(req core.Request) string {
				return fmt.Sprintf("Create %s account for the client", req.AccountType())
			},
		},
	}
}

// New constructs a validator. With no rules it applies DefaultRules.
func New(rules ...Rule) *Validator {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Validator{rules: rules}
}

// Apply enforces every applicable rule on the state's task list, then
// verifies the dependency graph is acyclic. Apply is idempotent: a repaired
// task list passes unchanged on a second run.
func (v *Validator) Apply(state *core.WorkflowState) error {
	for _, rule := range v.rules {
		if !rule.Applies(state.Request) || rule.Satisfied(state.Tasks) {
			continue
		}
		state.Tasks = inject(state.Tasks, rule, state.Request)
	}
	if err := CheckAcyclic(state.Tasks); err != nil {
		return err
	}
	return nil
}

// inject inserts the rule's synthetic task immediately after the last task
// owned by the rule's owner (or first, when none exists), rewires tasks
// that depended on that last task to depend on the synthetic one, and
// renumbers ids sequentially.
func inject(tasks []core.Task, rule Rule, req core.Request) []core.Task {
	lastOwned := -1
	for i, t := range tasks {
		if t.Owner == rule.Owner {
			lastOwned = i
		}
	}

	synthetic := core.Task{
		ID:          "synthetic",
		Description: rule.Describe(req),
		Owner:       rule.Owner,
		Status:      core.TaskPending,
		Priority:    core.PriorityHigh,
	}
	var anchorID string
	if lastOwned >= 0 {
		anchorID = tasks[lastOwned].ID
		synthetic.Dependencies = []string{anchorID}
	}

	insertAt := lastOwned + 1
	out := make([]core.Task, 0, len(tasks)+1)
	out = append(out, tasks[:insertAt]...)
	out = append(out, synthetic)
	out = append(out, tasks[insertAt:]...)

	// Tasks that gated on the anchor now gate on the synthetic step instead.
	if anchorID != "" {
		for i := insertAt + 1; i < len(out); i++ {
			for j, dep := range out[i].Dependencies {
				if dep == anchorID {
					out[i].Dependencies[j] = synthetic.ID
				}
			}
		}
	}

	return renumber(out)
}

// renumber assigns sequential task_N ids by position and remaps
// dependencies accordingly.
func renumber(tasks []core.Task) []core.Task {
	remap := make(map[string]string, len(tasks))
	for i := range tasks {
		remap[tasks[i].ID] = fmt.Sprintf("task_%d", i+1)
	}
	for i := range tasks {
		tasks[i].ID = remap[tasks[i].ID]
		for j, dep := range tasks[i].Dependencies {
			if newID, ok := remap[dep]; ok {
				tasks[i].Dependencies[j] = newID
			}
		}
	}
	return tasks
}

// CheckAcyclic verifies the dependency graph is a DAG using Kahn's
// algorithm. Unknown dependency references are reported as errors too —
// they could never complete.
func CheckAcyclic(tasks []core.Task) error {
	indegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string, len(tasks))
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
		indegree[t.ID] = 0
	}
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if !known[dep] {
				return fmt.Errorf("task %s depends on unknown task %s", t.ID, dep)
			}
			indegree[t.ID]++
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	var queue []string
	for _, t := range tasks {
		if indegree[t.ID] == 0 {
			queue = append(queue, t.ID)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited != len(tasks) {
		return fmt.Errorf("task dependency graph contains a cycle")
	}
	return nil
}
