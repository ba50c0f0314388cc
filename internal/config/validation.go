package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"renderfarm/task-engine/pkg/logger"
)

// ValidationError describes a single invalid configuration value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid value found in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// HasErrors reports whether any validation errors were recorded.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator checks configuration values for consistency.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a configuration validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// Validate checks the whole configuration and returns the collected
// errors, or nil when everything is consistent.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	v.validateEngineConfig(&cfg.Engine)
	v.validateExportConfig(&cfg.Export)
	v.validateServerConfig(&cfg.Server)
	v.validateLoggingConfig(&cfg.Logging)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateEngineConfig(cfg *EngineConfig) {
	if cfg.ScratchDir == "" {
		v.addError("engine.scratch_dir", "scratch directory is required")
	}
	if cfg.Executable == "" {
		v.addError("engine.executable", "default executable is required")
	}
	if cfg.ResolverToken == "" {
		v.addError("engine.resolver_token", "resolver token is required")
	} else if strings.ContainsAny(cfg.ResolverToken, " \t") {
		v.addError("engine.resolver_token", "resolver token must not contain whitespace")
	}
}

func (v *Validator) validateExportConfig(cfg *ExportConfig) {
	switch cfg.Format {
	case "":
		v.addError("export.format", "export format is required")
	case "command-line", "script":
	default:
		v.addError("export.format", fmt.Sprintf("invalid export format '%s', must be one of: command-line, script", cfg.Format))
	}

	if cfg.Shell == "" {
		v.addError("export.shell", "shell is required")
	}
}

func (v *Validator) validateServerConfig(cfg *ServerConfig) {
	if cfg.Address == "" {
		v.addError("server.address", "address is required")
	} else if !isValidAddress(cfg.Address) {
		v.addError("server.address", "invalid address format, expected host:port or :port")
	}

	if cfg.ReadTimeout < 0 {
		v.addError("server.read_timeout", "read timeout must be non-negative")
	}
	if cfg.WriteTimeout < 0 {
		v.addError("server.write_timeout", "write timeout must be non-negative")
	}
}

func (v *Validator) validateLoggingConfig(cfg *logger.Config) {
	validLevels := map[string]bool{
		"debug":   true,
		"info":    true,
		"warn":    true,
		"warning": true,
		"error":   true,
	}
	if cfg.Level == "" {
		v.addError("logging.level", "log level is required")
	} else if !validLevels[strings.ToLower(cfg.Level)] {
		v.addError("logging.level", fmt.Sprintf("invalid log level '%s', must be one of: debug, info, warn, error", cfg.Level))
	}

	switch strings.ToLower(cfg.Format) {
	case "console", "json":
	case "":
		v.addError("logging.format", "log format is required")
	default:
		v.addError("logging.format", fmt.Sprintf("invalid log format '%s', must be one of: console, json", cfg.Format))
	}

	switch strings.ToLower(cfg.Output) {
	case "stdout":
	case "file", "both":
		if cfg.FilePath == "" {
			v.addError("logging.file_path", "log file path is required when output includes file")
		}
	case "":
		v.addError("logging.output", "log output is required")
	default:
		v.addError("logging.output", fmt.Sprintf("invalid log output '%s', must be one of: stdout, file, both", cfg.Output))
	}

	if cfg.MaxSize < 0 {
		v.addError("logging.max_size", "max size must be non-negative")
	}
	if cfg.MaxBackups < 0 {
		v.addError("logging.max_backups", "max backups must be non-negative")
	}
	if cfg.MaxAge < 0 {
		v.addError("logging.max_age", "max age must be non-negative")
	}
}

// isValidAddress checks for a host:port or :port listen address.
func isValidAddress(addr string) bool {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n > 0 && n < 65536
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	return NewValidator().Validate(c)
}

// LoadAndValidate loads configuration from a YAML file and validates it.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
