package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/varalys/auditkit/internal/engine"
	"github.com/varalys/auditkit/internal/types"
)

// FileConfig is the on-disk YAML configuration shape for auditkit. Pointer
// fields distinguish "unset" from the zero value so files can be layered.
type FileConfig struct {
	Threads         *int    `yaml:"threads"`
	TesterTimeout   *string `yaml:"tester_timeout"`
	Include         *string `yaml:"include"`
	Exclude         *string `yaml:"exclude"`
	MaxBytes        *int64  `yaml:"max_bytes"`
	DefaultExcludes *bool   `yaml:"default_excludes"`
	OutDir          *string `yaml:"out_dir"`
	FailOn          *string `yaml:"fail_on"`
	NoColor         *bool   `yaml:"no_color"`
	IncludePassed   *bool   `yaml:"include_passed"`

	// Analyzer
	SummaryLimit *int     `yaml:"summary_limit"`
	CountOnly    []string `yaml:"count_only"`

	// Live system
	EnvFile            *string           `yaml:"env_file"`
	Endpoints          map[string]string `yaml:"endpoints"`
	LatencyThresholdMS *float64          `yaml:"latency_threshold_ms"`

	Plugins map[string]PluginConfig `yaml:"plugins"`
}

// PluginConfig adjusts one registered checker or tester by name.
type PluginConfig struct {
	Disabled *bool   `yaml:"disabled"`
	Severity *string `yaml:"severity"`
}

// LoadFile reads a YAML config file from the provided path.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LocalNames lists repo-local config file names in search order.
var LocalNames = []string{".auditkit.yml", ".auditkit.yaml", "auditkit.yml", "auditkit.yaml"}

// ErrNoConfig is returned when no config file is found.
var ErrNoConfig = errors.New("no config")

// LoadLocal searches for a repo-local config file in the given root.
func LoadLocal(repoRoot string) (FileConfig, error) {
	var cfg FileConfig
	for _, name := range LocalNames {
		p := filepath.Join(repoRoot, name)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return cfg, fmt.Errorf("local: %w", ErrNoConfig)
}

// GlobalPath returns the global config location from XDG base directory or
// ~/.config, or "" when neither is available.
func GlobalPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			base = filepath.Join(home, ".config")
		}
	}
	if base == "" {
		return ""
	}
	return filepath.Join(base, "auditkit", "config.yml")
}

// LoadGlobal loads the global config file.
func LoadGlobal() (FileConfig, error) {
	var cfg FileConfig
	p := GlobalPath()
	if p == "" {
		return cfg, errors.New("no config dir")
	}
	if _, err := os.Stat(p); err == nil {
		return LoadFile(p)
	}
	return cfg, fmt.Errorf("global: %w", ErrNoConfig)
}

// Timeout parses tester_timeout. Unset yields zero.
func (fc FileConfig) Timeout() (time.Duration, error) {
	if fc.TesterTimeout == nil || *fc.TesterTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(*fc.TesterTimeout)
	if err != nil {
		return 0, fmt.Errorf("tester_timeout: %w", err)
	}
	return d, nil
}

// Overrides converts the plugins section into engine overrides. Unknown
// severities are rejected so typos do not silently pass.
func (fc FileConfig) Overrides() (map[string]engine.Override, error) {
	if len(fc.Plugins) == 0 {
		return nil, nil
	}
	out := make(map[string]engine.Override, len(fc.Plugins))
	for name, pc := range fc.Plugins {
		var o engine.Override
		if pc.Disabled != nil {
			o.Disabled = *pc.Disabled
		}
		if pc.Severity != nil && *pc.Severity != "" {
			s, ok := types.ParseSeverity(*pc.Severity)
			if !ok {
				return nil, fmt.Errorf("plugins.%s.severity: unknown severity %q", name, *pc.Severity)
			}
			o.Severity = s
		}
		out[name] = o
	}
	return out, nil
}

// Categories parses count_only into categories, skipping unknown names.
func (fc FileConfig) Categories() []types.Category {
	if fc.CountOnly == nil {
		return nil
	}
	out := []types.Category{}
	for _, s := range fc.CountOnly {
		if c, ok := types.ParseCategory(s); ok {
			out = append(out, c)
		}
	}
	return out
}

// Starter is the body written by "auditkit config init".
const Starter = `# auditkit configuration
threads: 4
tester_timeout: 30s
out_dir: .
fail_on: high
# include: "src/**,config/**"
# exclude: "**/testdata/**"
summary_limit: 5
count_only: [imports]
env_file: .env
endpoints:
  # health: http://localhost:8080/healthz
latency_threshold_ms: 500
plugins:
  # configcheck:
  #   severity: MEDIUM
  # httpprobe:
  #   disabled: true
`

// SplitList splits a comma-separated setting into trimmed, non-empty parts.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
