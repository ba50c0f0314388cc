package parser

import (
	"bytes"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// TaskSpec is one task declaration: its registered type plus the raw
// attribute values. Unrecognized attribute keys are kept here and
// rejected later during construction, where the schema is known.
type TaskSpec struct {
	Type  string         `yaml:"task_type"`
	Attrs map[string]any `yaml:",inline"`
}

// Document is the merged content of one or more workflow files.
type Document struct {
	// Replacements are substitution tokens declared by the files.
	Replacements map[string]string `yaml:"replacements"`

	// Workflows maps a workflow name to its ordered task names.
	Workflows map[string][]string `yaml:"workflows"`

	// Tasks maps a task name to its declaration.
	Tasks map[string]TaskSpec `yaml:"tasks"`
}

func newDocument() *Document {
	return &Document{
		Replacements: make(map[string]string),
		Workflows:    make(map[string][]string),
		Tasks:        make(map[string]TaskSpec),
	}
}

// parseDocument decodes one workflow file in strict mode. Empty files
// yield an empty document.
func parseDocument(file string, data []byte) (*Document, error) {
	var doc Document

	if len(bytes.TrimSpace(data)) == 0 {
		return &doc, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, wrapYAMLError(file, err)
	}

	return &doc, nil
}

// merge overlays other onto d. Replacement tokens and workflow recipes
// from other win wholesale; task declarations merge attribute by
// attribute so a later file can override part of a task.
func (d *Document) merge(other *Document) {
	for k, v := range other.Replacements {
		d.Replacements[k] = v
	}

	for name, list := range other.Workflows {
		d.Workflows[name] = list
	}

	for name, spec := range other.Tasks {
		base, ok := d.Tasks[name]
		if !ok {
			if spec.Attrs == nil {
				spec.Attrs = make(map[string]any)
			}
			d.Tasks[name] = spec
			continue
		}
		if spec.Type != "" {
			base.Type = spec.Type
		}
		for k, v := range spec.Attrs {
			base.Attrs[k] = v
		}
		d.Tasks[name] = base
	}
}

// validate checks the merged document: every task declares a type and
// every workflow names declared tasks. Runs after merging because a
// later file may complete a declaration an earlier file started.
func (d *Document) validate() error {
	for _, name := range sortedKeys(d.Tasks) {
		if d.Tasks[name].Type == "" {
			return NewValidationError(
				fmt.Sprintf("tasks.%s.task_type", name),
				"task type is required",
			)
		}
	}

	for _, name := range sortedKeys(d.Workflows) {
		list := d.Workflows[name]
		if len(list) == 0 {
			return NewValidationError(
				fmt.Sprintf("workflows.%s", name),
				"workflow must name at least one task",
			)
		}
		for _, taskName := range list {
			if _, ok := d.Tasks[taskName]; !ok {
				return NewValidationError(
					fmt.Sprintf("workflows.%s", name),
					fmt.Sprintf("workflow references undefined task '%s'", taskName),
				)
			}
		}
	}

	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
