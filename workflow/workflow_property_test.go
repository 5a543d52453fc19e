package workflow

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// randomDag builds an acyclic workflow of n tasks where task i may depend
// only on earlier tasks, driven by the seed bits.
func randomDag(n int, seed int64) (*Workflow, error) {
	defs := make([]TaskDef, 0, n)
	for i := 0; i < n; i++ {
		var deps []string
		for j := 0; j < i; j++ {
			seed = seed*6364136223846793005 + 1442695040888963407
			if seed%3 == 0 {
				deps = append(deps, fmt.Sprintf("t%d", j))
			}
		}
		defs = append(defs, TaskDef{
			ID:           fmt.Sprintf("t%d", i),
			AgentName:    "agent",
			Priority:     Priority(i % 4),
			Dependencies: deps,
		})
	}
	return New("prop", "", defs)
}

func TestProperty_ReadySetSoundness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("ready tasks never have an incomplete dependency", prop.ForAll(
		func(n int, seed int64) bool {
			wf, err := randomDag(n, seed)
			if err != nil {
				return false
			}

			// Drive the whole workflow to completion, checking the
			// invariant at every step.
			for {
				ready := wf.ReadyTasks()
				if len(ready) == 0 {
					break
				}
				for _, task := range ready {
					for _, dep := range task.Dependencies {
						d, _ := wf.Task(dep)
						if d.Status != TaskCompleted {
							return false
						}
					}
				}
				// Complete one task per iteration to exercise many
				// intermediate graph states.
				wf.MarkRunning(ready[0].ID)
				wf.CompleteTask(ready[0].ID, nil, 0)
			}

			// An acyclic graph with no failures must fully drain.
			for _, task := range wf.Tasks() {
				if task.Status != TaskCompleted {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 12),
		gen.Int64(),
	))

	properties.Property("completing a task never removes previously ready tasks", prop.ForAll(
		func(n int, seed int64) bool {
			wf, err := randomDag(n, seed)
			if err != nil {
				return false
			}

			for {
				before := wf.ReadyTasks()
				if len(before) == 0 {
					return true
				}

				wf.MarkRunning(before[0].ID)
				wf.CompleteTask(before[0].ID, nil, 0)

				after := map[string]bool{}
				for _, task := range wf.ReadyTasks() {
					after[task.ID] = true
				}
				// Everything that was ready and not yet started must
				// still be ready.
				for _, task := range before[1:] {
					if !after[task.ID] {
						return false
					}
				}
			}
		},
		gen.IntRange(1, 12),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
