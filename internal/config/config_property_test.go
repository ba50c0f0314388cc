package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestConfigRoundTripProperty checks that serializing a configuration
// and parsing it back preserves every value.
func TestConfigRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("config round-trip preserves data", prop.ForAll(
		func(cfg *Config) bool {
			data, err := cfg.Serialize()
			if err != nil {
				return false
			}

			parsed, err := ParseConfig(data)
			if err != nil {
				return false
			}

			return configsEqual(cfg, parsed)
		},
		genConfig(),
	))

	properties.Property("generated configs validate cleanly", prop.ForAll(
		func(cfg *Config) bool {
			return cfg.Validate() == nil
		},
		genConfig(),
	))

	properties.TestingRun(t)
}

// TestCmdOverrideWinsProperty checks that a command-line override is
// always the final value regardless of the generated address.
func TestCmdOverrideWinsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("command line wins for server address", prop.ForAll(
		func(port int) bool {
			addr := fmt.Sprintf(":%d", port)
			cfg, err := NewLoader().WithCmdArgs(map[string]string{"server.address": addr}).Load()
			if err != nil {
				return false
			}
			return cfg.Server.Address == addr
		},
		gen.IntRange(1024, 65535),
	))

	properties.TestingRun(t)
}

func genConfig() gopter.Gen {
	return gopter.CombineGens(
		genEngineConfig(),
		genExportConfig(),
		genServerConfig(),
	).Map(func(values []interface{}) *Config {
		cfg := DefaultConfig()
		cfg.Engine = values[0].(EngineConfig)
		cfg.Export = values[1].(ExportConfig)
		cfg.Server = values[2].(ServerConfig)
		return cfg
	})
}

func genEngineConfig() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf("/var/tmp/farm", "/render/scratch", "/tmp/task-engine"),
		gen.OneConstOf("task-engine", "/opt/engine/bin/task-engine"),
		gen.MapOf(
			gen.Identifier().SuchThat(func(s string) bool { return len(s) <= 12 }),
			gen.AlphaString().SuchThat(func(s string) bool { return len(s) > 0 && len(s) <= 12 }),
		),
	).Map(func(values []interface{}) EngineConfig {
		return EngineConfig{
			ScratchDir:     values[0].(string),
			Executable:     values[1].(string),
			ExecutableArgs: []string{"run-task"},
			WorkflowPaths:  []string{"/shows/ab/workflows"},
			SearchPaths:    []string{},
			Replacements:   values[2].(map[string]string),
			ResolverToken:  "@resolver",
		}
	})
}

func genExportConfig() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf("command-line", "script"),
		gen.OneConstOf("/bin/bash", "/bin/sh"),
	).Map(func(values []interface{}) ExportConfig {
		return ExportConfig{
			Format: values[0].(string),
			Shell:  values[1].(string),
		}
	})
}

func genServerConfig() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(1024, 65535),
		gen.IntRange(1, 60),
		gen.IntRange(1, 60),
		gen.Bool(),
	).Map(func(values []interface{}) ServerConfig {
		return ServerConfig{
			Address:      fmt.Sprintf(":%d", values[0].(int)),
			ReadTimeout:  time.Duration(values[1].(int)) * time.Second,
			WriteTimeout: time.Duration(values[2].(int)) * time.Second,
			EnableCORS:   values[3].(bool),
		}
	})
}

func configsEqual(a, b *Config) bool {
	if a.Engine.ScratchDir != b.Engine.ScratchDir {
		return false
	}
	if a.Engine.Executable != b.Engine.Executable {
		return false
	}
	if len(a.Engine.Replacements) != len(b.Engine.Replacements) {
		return false
	}
	for k, v := range a.Engine.Replacements {
		if b.Engine.Replacements[k] != v {
			return false
		}
	}
	if a.Export.Format != b.Export.Format || a.Export.Shell != b.Export.Shell {
		return false
	}
	if a.Server.Address != b.Server.Address {
		return false
	}
	if a.Server.ReadTimeout != b.Server.ReadTimeout || a.Server.WriteTimeout != b.Server.WriteTimeout {
		return false
	}
	return a.Server.EnableCORS == b.Server.EnableCORS
}

func BenchmarkConfigRoundTrip(b *testing.B) {
	cfg := DefaultConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, _ := cfg.Serialize()
		if _, err := ParseConfig(data); err != nil {
			b.Fatal(err)
		}
	}
}
