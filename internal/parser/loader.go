// Package parser loads workflow files: YAML documents declaring
// reusable task definitions and named workflows over them. Multiple
// files merge in order, later files overriding earlier ones, so a show
// can refine a studio-wide pipeline without copying it.
package parser

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"renderfarm/task-engine/internal/resolver"
	"renderfarm/task-engine/pkg/logger"
	"renderfarm/task-engine/pkg/task"
)

// Config carries the engine-level context tasks are built with.
type Config struct {
	// Replacements override tokens declared by the workflow files.
	Replacements map[string]string

	// TempDir is assigned to tasks that declare no temp_dir.
	TempDir string

	// Executable and ExecutableArgs fill in the re-invocation command
	// for tasks that declare none.
	Executable     string
	ExecutableArgs []string

	// SearchPaths are the resolver's candidate roots.
	SearchPaths []string

	// ResolverToken marks values subject to search-path resolution.
	ResolverToken string
}

// Loader reads, merges and materializes workflow files.
type Loader struct {
	files []string
	raw   []rawSource
	cfg   Config

	doc  *Document
	repl map[string]string
	res  *resolver.Resolver
}

// rawSource is an in-memory workflow document. The name labels parse
// errors in place of a file path.
type rawSource struct {
	name string
	data []byte
}

// NewLoader creates a Loader over the given workflow files. Files merge
// in the order given.
func NewLoader(files []string, cfg Config) *Loader {
	return &Loader{files: files, cfg: cfg}
}

// NewLoaderFromBytes creates a Loader over a single in-memory workflow
// document, as received by the REST API. The name labels parse errors.
func NewLoaderFromBytes(name string, data []byte, cfg Config) *Loader {
	return &Loader{raw: []rawSource{{name: name, data: data}}, cfg: cfg}
}

// DiscoverFiles returns the workflow files found in dirs, in directory
// order with each directory's files sorted by name. Missing directories
// are skipped.
func DiscoverFiles(dirs []string) []string {
	var files []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.Debug("skipping workflow directory",
				zap.String("dir", dir),
				zap.Error(err))
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(entry.Name())) {
			case ".yaml", ".yml":
				files = append(files, filepath.Join(dir, entry.Name()))
			}
		}
	}
	return files
}

// load reads and merges every file once, then prepares the resolver.
func (l *Loader) load() (*Document, error) {
	if l.doc != nil {
		return l.doc, nil
	}

	merged := newDocument()
	for _, file := range l.files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, NewParseError(file, 0, 0, "cannot read workflow file", err)
		}
		doc, err := parseDocument(file, data)
		if err != nil {
			return nil, err
		}
		merged.merge(doc)
	}
	for _, src := range l.raw {
		doc, err := parseDocument(src.name, src.data)
		if err != nil {
			return nil, err
		}
		merged.merge(doc)
	}

	if err := merged.validate(); err != nil {
		return nil, err
	}

	repl := make(map[string]string, len(merged.Replacements)+len(l.cfg.Replacements))
	for k, v := range merged.Replacements {
		repl[k] = v
	}
	for k, v := range l.cfg.Replacements {
		repl[k] = v
	}

	l.res = resolver.New(resolver.Config{
		Replacements: repl,
		SearchPaths:  l.cfg.SearchPaths,
		Token:        l.cfg.ResolverToken,
	})
	l.repl = repl
	l.doc = merged

	logger.Debug("workflow files loaded",
		zap.Int("files", len(l.files)+len(l.raw)),
		zap.Int("workflows", len(merged.Workflows)),
		zap.Int("tasks", len(merged.Tasks)))

	return merged, nil
}

// WorkflowNames returns the names of every declared workflow, sorted.
func (l *Loader) WorkflowNames() ([]string, error) {
	doc, err := l.load()
	if err != nil {
		return nil, err
	}
	return sortedKeys(doc.Workflows), nil
}

// Replacements returns the merged replacement tokens: file declarations
// overlaid with the configured overrides.
func (l *Loader) Replacements() (map[string]string, error) {
	if _, err := l.load(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(l.repl))
	for k, v := range l.repl {
		out[k] = v
	}
	return out, nil
}

// Workflow materializes the named workflow into its ordered tasks.
func (l *Loader) Workflow(name string) ([]task.Task, error) {
	doc, err := l.load()
	if err != nil {
		return nil, err
	}

	list, ok := doc.Workflows[name]
	if !ok {
		return nil, NewValidationError("workflows", "workflow '"+name+"' is not defined")
	}
	return l.TasksFromNames(list)
}

// TasksFromNames materializes the named task declarations in order.
func (l *Loader) TasksFromNames(names []string) ([]task.Task, error) {
	doc, err := l.load()
	if err != nil {
		return nil, err
	}

	opts := &task.SpecOptions{
		Replacements: l.repl,
		TempDir:      l.cfg.TempDir,
		Resolve:      l.res.Resolve,
	}

	tasks := make([]task.Task, 0, len(names))
	for _, name := range names {
		spec, ok := doc.Tasks[name]
		if !ok {
			return nil, NewValidationError("tasks", "task '"+name+"' is not defined")
		}

		t, err := task.FromSpec(spec.Type, name, spec.Attrs, opts)
		if err != nil {
			return nil, err
		}
		l.applyDefaults(t)
		tasks = append(tasks, t)
	}

	return tasks, nil
}

// applyDefaults fills in the configured re-invocation command for tasks
// whose declaration left it out.
func (l *Loader) applyDefaults(t task.Task) {
	if l.cfg.Executable != "" && t.Executable() == "" {
		t.Set(task.AttrExecutable, l.cfg.Executable)
	}
	if len(l.cfg.ExecutableArgs) > 0 && len(t.ExecutableArgs()) == 0 {
		t.Set(task.AttrExecutableArgs, l.cfg.ExecutableArgs)
	}
}

