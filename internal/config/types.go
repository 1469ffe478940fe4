package config

import "time"

// Config represents the complete code-agent configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	State     StateConfig     `yaml:"state"`
	API       APIConfig       `yaml:"api"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Tools     ToolsConfig     `yaml:"tools"`
	Patches   PatchesConfig   `yaml:"patches"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
}

// StateConfig defines state storage settings. The run queue database lives at
// Path; workspaces default to a sibling directory unless overridden.
type StateConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Listen         string `yaml:"listen"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// PipelineConfig defines run queue and worker pool settings.
type PipelineConfig struct {
	Workers       int           `yaml:"workers"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	MaxIterations int           `yaml:"max_iterations"`
}

// IngestConfig defines archive extraction safety ceilings.
type IngestConfig struct {
	MaxMembers int   `yaml:"max_members"`
	MaxBytes   int64 `yaml:"max_bytes"`
}

// WorkspaceConfig defines where workspaces are materialized and how long
// they are retained. Retention of zero disables the sweeper; workspaces are
// then never deleted by the service.
type WorkspaceConfig struct {
	Root      string        `yaml:"root"`
	Retention time.Duration `yaml:"retention"`
	SweepTick time.Duration `yaml:"sweep_tick"`
}

// ToolsConfig defines the external analyzer/tester/auto-fixer commands per
// language, plus a shared execution timeout.
type ToolsConfig struct {
	Timeout time.Duration       `yaml:"timeout"`
	Py      LanguageToolsConfig `yaml:"py"`
	Cpp     LanguageToolsConfig `yaml:"cpp"`
}

// LanguageToolsConfig holds argv templates for one language's toolchain.
// The literal token {workdir} is replaced with the working-copy path and
// {max_iters} with the configured auto-fix iteration bound.
type LanguageToolsConfig struct {
	Static  []string `yaml:"static"`
	Dynamic []string `yaml:"dynamic"`
	AutoFix []string `yaml:"auto_fix"`
}

// PatchesConfig names the directories holding generated patch files.
type PatchesConfig struct {
	PyDir  string `yaml:"py_dir"`
	CppDir string `yaml:"cpp_dir"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "code-agent",
			LogLevel: "info",
		},
		State: StateConfig{
			Path: "./data/state.db",
		},
		API: APIConfig{
			Listen:         ":5000",
			MaxUploadBytes: 256 << 20,
		},
		Pipeline: PipelineConfig{
			Workers:       2,
			PollInterval:  time.Second,
			MaxIterations: 5,
		},
		Ingest: IngestConfig{
			MaxMembers: 2000,
			MaxBytes:   200 << 20,
		},
		Workspace: WorkspaceConfig{
			Root:      "",
			Retention: 0,
			SweepTick: time.Hour,
		},
		Tools: ToolsConfig{
			Timeout: 10 * time.Minute,
			Py: LanguageToolsConfig{
				Static:  []string{"python3", "-u", "analyzer_py.py", "--repo-dir", "{workdir}"},
				Dynamic: []string{"python3", "-u", "dynamic_tester.py", "--py", "--py-repo", "{workdir}"},
				AutoFix: []string{"python3", "-u", "auto_fixer.py", "--py", "--repo-dir", "{workdir}", "--max-iters", "{max_iters}"},
			},
			Cpp: LanguageToolsConfig{
				Static:  []string{"python3", "-u", "analyzer_cpp.py", "--repo-dir", "{workdir}"},
				Dynamic: []string{"python3", "-u", "dynamic_tester.py", "--cpp", "--cpp-repo", "{workdir}"},
				AutoFix: []string{"python3", "-u", "auto_fixer.py", "--cpp", "--repo-dir", "{workdir}", "--max-iters", "{max_iters}"},
			},
		},
		Patches: PatchesConfig{
			PyDir:  "./patches_py_fixed",
			CppDir: "./patches/patches_cpp_fixed",
		},
	}
}
