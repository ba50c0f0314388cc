// Package builtin provides the task types shipped with the engine:
// command execution, file operations, per-frame script evaluation, and
// webhook notification. Importing the package registers every type with
// the task registry.
package builtin

import (
	"fmt"

	"renderfarm/task-engine/pkg/task"
)

// stringList reads a list attribute with every element rendered to a
// string.
func stringList(t task.Task, name string) []string {
	raw, err := task.Coerce(task.TypeList, t.Get(name))
	if err != nil || raw == nil {
		return nil
	}
	list := raw.([]any)
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, fmt.Sprintf("%v", e))
	}
	return out
}

// stringMap reads a map attribute with every value rendered to a string.
func stringMap(t task.Task, name string) map[string]string {
	raw, err := task.Coerce(task.TypeMap, t.Get(name))
	if err != nil || raw == nil {
		return nil
	}
	m := raw.(map[string]any)
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
