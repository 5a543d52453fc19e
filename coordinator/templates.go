package coordinator

import (
	"github.com/BaSui01/syncforge/workflow"
)

// Built-in workflow template names.
const (
	TemplateFullSync       = "full_sync"
	TemplateValidationOnly = "validation_only"
)

// templates is the static catalog mapping a template name to its task list.
// This table is configuration, not protocol: entries can be added without
// touching the scheduler.
var templates = map[string][]workflow.TaskDef{
	TemplateFullSync: {
		{
			ID:        "pull_updates",
			Type:      "pull_updates",
			AgentName: "github",
			Platform:  "github",
			Priority:  workflow.PriorityHigh,
		},
		{
			ID:           "validate_schemas",
			Type:         "validate_schemas",
			AgentName:    "validator",
			Platform:     "internal",
			Priority:     workflow.PriorityHigh,
			Dependencies: []string{"pull_updates"},
		},
		{
			ID:           "push_changes",
			Type:         "push_changes",
			AgentName:    "studio_bridge",
			Platform:     "studio",
			Priority:     workflow.PriorityMedium,
			Dependencies: []string{"validate_schemas"},
		},
		{
			ID:           "broadcast_notify",
			Type:         "broadcast_notify",
			AgentName:    "pusher",
			Platform:     "pusher",
			Priority:     workflow.PriorityLow,
			Dependencies: []string{"push_changes"},
		},
	},
	TemplateValidationOnly: {
		{
			ID:        "pull_updates",
			Type:      "pull_updates",
			AgentName: "github",
			Platform:  "github",
			Priority:  workflow.PriorityHigh,
		},
		{
			ID:           "validate_schemas",
			Type:         "validate_schemas",
			AgentName:    "validator",
			Platform:     "internal",
			Priority:     workflow.PriorityHigh,
			Dependencies: []string{"pull_updates"},
		},
	},
}

// templateTasks returns a deep copy of the template's task definitions so a
// workflow can never mutate the catalog.
func templateTasks(name string) ([]workflow.TaskDef, bool) {
	defs, ok := templates[name]
	if !ok {
		return nil, false
	}
	out := make([]workflow.TaskDef, len(defs))
	for i, def := range defs {
		out[i] = def
		out[i].Dependencies = append([]string(nil), def.Dependencies...)
		if def.Parameters != nil {
			params := make(map[string]any, len(def.Parameters))
			for k, v := range def.Parameters {
				params[k] = v
			}
			out[i].Parameters = params
		}
	}
	return out, true
}

// TemplateNames returns the names of all built-in templates.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	return names
}
