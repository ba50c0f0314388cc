// Package resolver substitutes workflow replacement tokens, environment
// variables and search-path prefixes in configured string values.
package resolver

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"renderfarm/task-engine/pkg/logger"
)

// DefaultToken marks values that should be located across the configured
// search paths.
const DefaultToken = "@resolver"

var (
	tokenPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	envPattern   = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
)

// Config configures a Resolver.
type Config struct {
	// Replacements maps token names to their substituted values.
	Replacements map[string]string

	// SearchPaths are tried in order for resolver-token values.
	SearchPaths []string

	// Token overrides the search-path prefix. Defaults to DefaultToken.
	Token string
}

// Resolver performs token substitution on configured string values. A nil
// replacements mapping still expands environment variables.
type Resolver struct {
	replacements map[string]string
	searchPaths  []string
	token        string
}

// New creates a Resolver.
func New(cfg Config) *Resolver {
	token := cfg.Token
	if token == "" {
		token = DefaultToken
	}
	return &Resolver{
		replacements: cfg.Replacements,
		searchPaths:  cfg.SearchPaths,
		token:        token,
	}
}

// Resolve substitutes tokens in value. Environment variables expand before
// and after replacement substitution, so a replacement value may itself
// reference the environment. Tokens with no known value stay intact.
func (r *Resolver) Resolve(value string) string {
	resolved := r.substitute(value)
	return r.resolvePath(resolved)
}

// substitute runs the expansion pipeline on one string, without the
// search-path step.
func (r *Resolver) substitute(value string) string {
	expanded := expandEnv(value)
	expanded = r.replaceTokens(expanded)
	return expandEnv(expanded)
}

// replaceTokens swaps each {name} occurrence for its replacement value,
// leaving unknown names untouched.
func (r *Resolver) replaceTokens(value string) string {
	if len(r.replacements) == 0 {
		return value
	}
	return tokenPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := match[1 : len(match)-1]
		if v, ok := r.replacements[name]; ok {
			return v
		}
		logger.Debug("unresolved replacement token",
			zap.String("token", name),
			zap.String("value", value))
		return match
	})
}

// resolvePath locates a resolver-token value across the search paths. The
// joined candidate paths may themselves contain replacement tokens, so the
// substitution pipeline runs on each candidate before the existence check.
// When nothing matches, the original value is returned unchanged.
func (r *Resolver) resolvePath(value string) string {
	if !strings.HasPrefix(value, r.token) {
		return value
	}

	suffix := strings.TrimPrefix(value, r.token)
	suffix = strings.TrimPrefix(suffix, string(os.PathSeparator))

	searched := make([]string, 0, len(r.searchPaths))
	for _, searchPath := range r.searchPaths {
		candidate := r.substitute(filepath.Join(searchPath, suffix))
		searched = append(searched, candidate)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	logger.Debug("unresolved search path value",
		zap.String("value", value),
		zap.Strings("searched", searched))
	return value
}

// expandEnv expands ${VAR} references from the environment, leaving
// references to unset variables intact.
func expandEnv(value string) string {
	return envPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := match[2 : len(match)-1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
}
