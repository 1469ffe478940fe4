package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a YAML file. A directory path is
// accepted and resolves to config.yaml inside it.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyDefaults merges default values into cfg where not explicitly set.
func applyDefaults(cfg *Config) {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.State.Path == "" {
		cfg.State.Path = defaults.State.Path
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}
	if cfg.API.MaxUploadBytes <= 0 {
		cfg.API.MaxUploadBytes = defaults.API.MaxUploadBytes
	}
	if cfg.Pipeline.Workers <= 0 {
		cfg.Pipeline.Workers = defaults.Pipeline.Workers
	}
	if cfg.Pipeline.PollInterval <= 0 {
		cfg.Pipeline.PollInterval = defaults.Pipeline.PollInterval
	}
	if cfg.Pipeline.MaxIterations <= 0 {
		cfg.Pipeline.MaxIterations = defaults.Pipeline.MaxIterations
	}
	if cfg.Ingest.MaxMembers <= 0 {
		cfg.Ingest.MaxMembers = defaults.Ingest.MaxMembers
	}
	if cfg.Ingest.MaxBytes <= 0 {
		cfg.Ingest.MaxBytes = defaults.Ingest.MaxBytes
	}
	if cfg.Workspace.Root == "" {
		cfg.Workspace.Root = filepath.Join(filepath.Dir(cfg.State.Path), "workspaces")
	}
	if cfg.Workspace.SweepTick <= 0 {
		cfg.Workspace.SweepTick = defaults.Workspace.SweepTick
	}
	if cfg.Tools.Timeout <= 0 {
		cfg.Tools.Timeout = defaults.Tools.Timeout
	}
	if len(cfg.Tools.Py.Static) == 0 {
		cfg.Tools.Py.Static = defaults.Tools.Py.Static
	}
	if len(cfg.Tools.Py.Dynamic) == 0 {
		cfg.Tools.Py.Dynamic = defaults.Tools.Py.Dynamic
	}
	if len(cfg.Tools.Py.AutoFix) == 0 {
		cfg.Tools.Py.AutoFix = defaults.Tools.Py.AutoFix
	}
	if len(cfg.Tools.Cpp.Static) == 0 {
		cfg.Tools.Cpp.Static = defaults.Tools.Cpp.Static
	}
	if len(cfg.Tools.Cpp.Dynamic) == 0 {
		cfg.Tools.Cpp.Dynamic = defaults.Tools.Cpp.Dynamic
	}
	if len(cfg.Tools.Cpp.AutoFix) == 0 {
		cfg.Tools.Cpp.AutoFix = defaults.Tools.Cpp.AutoFix
	}
	if cfg.Patches.PyDir == "" {
		cfg.Patches.PyDir = defaults.Patches.PyDir
	}
	if cfg.Patches.CppDir == "" {
		cfg.Patches.CppDir = defaults.Patches.CppDir
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}
	if cfg.API.Listen == "" {
		return fmt.Errorf("api.listen is required")
	}
	if cfg.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1")
	}
	if cfg.Workspace.Retention < 0 {
		return fmt.Errorf("workspace.retention must not be negative")
	}

	for _, tc := range []struct {
		name string
		argv []string
	}{
		{"tools.py.static", cfg.Tools.Py.Static},
		{"tools.py.dynamic", cfg.Tools.Py.Dynamic},
		{"tools.py.auto_fix", cfg.Tools.Py.AutoFix},
		{"tools.cpp.static", cfg.Tools.Cpp.Static},
		{"tools.cpp.dynamic", cfg.Tools.Cpp.Dynamic},
		{"tools.cpp.auto_fix", cfg.Tools.Cpp.AutoFix},
	} {
		if len(tc.argv) == 0 {
			return fmt.Errorf("%s command is required", tc.name)
		}
		for _, arg := range tc.argv {
			if envVarPattern.MatchString(arg) {
				matches := envVarPattern.FindStringSubmatch(arg)
				return fmt.Errorf("%s: environment variable ${%s} is not set", tc.name, matches[1])
			}
		}
	}

	return nil
}
