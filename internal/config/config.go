// Package config loads engine settings from YAML files, environment
// variables and command-line arguments, with precedence
// defaults < file < environment < command line.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"renderfarm/task-engine/pkg/logger"
)

// Config holds the complete settings of the task engine.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Export  ExportConfig  `yaml:"export"`
	Server  ServerConfig  `yaml:"server"`
	Logging logger.Config `yaml:"logging"`
}

// EngineConfig holds settings for task construction and execution.
type EngineConfig struct {
	// ScratchDir receives generated scripts and per-task temp dirs.
	ScratchDir string `yaml:"scratch_dir" env:"SCRATCH_DIR"`

	// Executable is the default command-line executable injected into
	// tasks that declare none themselves.
	Executable string `yaml:"executable" env:"EXECUTABLE"`

	// ExecutableArgs are the default arguments for Executable.
	ExecutableArgs []string `yaml:"executable_args" env:"EXECUTABLE_ARGS"`

	// WorkflowPaths are directories searched for workflow files, in
	// order. Later files override earlier ones on merge.
	WorkflowPaths []string `yaml:"workflow_paths" env:"WORKFLOW_PATHS"`

	// SearchPaths are candidate roots for resolver-token values.
	SearchPaths []string `yaml:"search_paths" env:"SEARCH_PATHS"`

	// Replacements are substitution tokens applied to every workflow.
	// They override tokens of the same name declared in the workflow
	// files, so an invocation can repoint a pipeline without editing it.
	Replacements map[string]string `yaml:"replacements"`

	// ResolverToken marks attribute values subject to search-path
	// resolution.
	ResolverToken string `yaml:"resolver_token" env:"RESOLVER_TOKEN"`
}

// ExportConfig holds defaults for artifact export.
type ExportConfig struct {
	// Format is the default export format, command-line or script.
	Format string `yaml:"format" env:"EXPORT_FORMAT"`

	// Shell is the interpreter exported scripts run under.
	Shell string `yaml:"shell" env:"EXPORT_SHELL"`
}

// ServerConfig holds REST API server settings.
type ServerConfig struct {
	Address      string        `yaml:"address" env:"SERVER_ADDRESS"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	EnableCORS   bool          `yaml:"enable_cors" env:"SERVER_ENABLE_CORS"`
}

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			ScratchDir:     filepath.Join(os.TempDir(), "task-engine"),
			Executable:     "task-engine",
			ExecutableArgs: []string{"run-task"},
			WorkflowPaths:  []string{},
			SearchPaths:    []string{},
			Replacements:   make(map[string]string),
			ResolverToken:  "@resolver",
		},
		Export: ExportConfig{
			Format: "command-line",
			Shell:  "/bin/bash",
		},
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			EnableCORS:   true,
		},
		Logging: *logger.DefaultConfig(),
	}
}

// Loader assembles a Config from its sources.
type Loader struct {
	configPath string
	envPrefix  string
	cmdArgs    map[string]string
}

// NewLoader creates a Loader with the TE_ environment prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix: "TE_",
		cmdArgs:   make(map[string]string),
	}
}

// WithConfigPath sets the YAML file to load.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix replaces the prefix prepended to env tags.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithCmdArgs sets command-line overrides keyed by dot-notation paths,
// for example "server.address".
func (l *Loader) WithCmdArgs(args map[string]string) *Loader {
	l.cmdArgs = args
	return l
}

// Load builds the configuration from all sources in precedence order.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, err
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := l.applyCmdOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cannot read config file %s: %w", l.configPath, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("cannot parse config file %s: %w", l.configPath, err)
	}
	return nil
}

func (l *Loader) applyEnvOverrides(cfg *Config) error {
	return l.applyEnvToStruct(reflect.ValueOf(cfg).Elem())
}

func (l *Loader) applyEnvToStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := l.applyEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(l.envPrefix + envTag)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("cannot apply %s%s to field %s: %w", l.envPrefix, envTag, fieldType.Name, err)
		}
	}

	return nil
}

func (l *Loader) applyCmdOverrides(cfg *Config) error {
	for key, value := range l.cmdArgs {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("cannot set config value %s: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a configuration field by dot-notation path, for
// example "engine.scratch_dir" or "logging.level".
func setConfigValue(cfg *Config, path, value string) error {
	parts := strings.Split(path, ".")
	v := reflect.ValueOf(cfg).Elem()

	for i, part := range parts {
		folded := strings.ReplaceAll(part, "_", "")
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, folded) || strings.EqualFold(name, part)
		})
		if !field.IsValid() {
			return fmt.Errorf("unknown config path %q", path)
		}

		if i == len(parts)-1 {
			return setFieldValue(field, value)
		}

		if field.Kind() != reflect.Struct {
			return fmt.Errorf("config path %q does not name a section", path)
		}
		v = field
	}

	return nil
}

// setFieldValue assigns a string representation to a struct field.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("field is not settable")
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", value, err)
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", value, err)
		}
		field.SetInt(i)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float %q: %w", value, err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q: %w", value, err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))

	case reflect.Map:
		if field.Type().Key().Kind() != reflect.String || field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported map type %s", field.Type())
		}
		m := make(map[string]string)
		for _, pair := range strings.Split(value, ",") {
			kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
			if len(kv) == 2 {
				m[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
			}
		}
		field.Set(reflect.ValueOf(m))

	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}

	return nil
}

// Serialize renders the configuration as YAML.
func (c *Config) Serialize() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseConfig parses a YAML configuration document over the defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file path.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).Load()
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := c.Serialize()
	clone, _ := ParseConfig(data)
	return clone
}
