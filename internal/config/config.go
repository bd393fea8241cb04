// internal/config/config.go
//
// This package handles configuration and the .carryover directory structure.
// Every project that builds units gets a .carryover/ folder in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/carryover/internal/indicator"
	"github.com/kingrea/carryover/internal/tag"
)

const (
	// Dir is the name of the directory we create in each project
	Dir = ".carryover"

	defaultRootContext = "Document"
)

const defaultProjectConfigYAML = `# carryover project configuration
version: 1

# proofing colors every status; score hides colors; parts also hides alerts.
build: proofing

# Manifest of instruments, metronome marks and short instrument names.
# manifest: manifest.yaml

# Name of the implicit document root context. It never receives reapplied state.
root_context: Document

# Contexts that never receive reapplied state.
exclude_contexts: []

# Values attached with status default where a context has none after reapplication.
defaults:
  clef:
    kind: Clef
    args:
      name: treble
`

// DefaultIndicator declares one default value inside .carryover/config.yaml.
type DefaultIndicator struct {
	Kind string            `yaml:"kind"`
	Args map[string]string `yaml:"args,omitempty"`
}

// ProjectConfig models .carryover/config.yaml.
type ProjectConfig struct {
	Version         int                         `yaml:"version"`
	Build           tag.Build                   `yaml:"build"`
	Manifest        string                      `yaml:"manifest,omitempty"`
	RootContext     string                      `yaml:"root_context"`
	ExcludeContexts []string                    `yaml:"exclude_contexts,omitempty"`
	Defaults        map[string]DefaultIndicator `yaml:"defaults,omitempty"`
}

// Config holds the runtime configuration for one project.
type Config struct {
	// ProjectDir is the directory carryover was run from
	ProjectDir string

	// CarryoverDir is ProjectDir/.carryover
	CarryoverDir string

	Project ProjectConfig
}

// InitDir creates the .carryover directory structure in the given project
// directory and writes a default config if none exists.
//
// Structure created:
// .carryover/
// ├── config.yaml
// ├── logs/         <- carryover.log
// └── state/        <- one persisted state file per unit
func InitDir(projectDir string) error {
	root := filepath.Join(projectDir, Dir)
	for _, dir := range []string{
		filepath.Join(root, "logs"),
		filepath.Join(root, "state"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(root, "config.yaml"))
}

// NewConfig creates a new Config instance populated with project settings. A
// missing config file yields the defaults.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:   projectDir,
		CarryoverDir: filepath.Join(projectDir, Dir),
		Project:      defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.CarryoverDir, "logs")
}

// StateDir returns the path to the persisted state directory
func (c *Config) StateDir() string {
	return filepath.Join(c.CarryoverDir, "state")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.CarryoverDir, "config.yaml")
}

// Build returns the configured build kind.
func (c *Config) Build() tag.Build {
	return c.Project.Build
}

// ManifestPath returns the resolved manifest path, empty when none is set.
func (c *Config) ManifestPath() string {
	return c.Project.Manifest
}

// RootContext returns the name of the implicit document root.
func (c *Config) RootContext() string {
	return c.Project.RootContext
}

// ExcludedContexts returns the contexts that never receive reapplied state.
func (c *Config) ExcludedContexts() []string {
	return append([]string{}, c.Project.ExcludeContexts...)
}

// DefaultIndicators decodes the configured defaults, ordered by channel.
func (c *Config) DefaultIndicators() ([]indicator.Indicator, error) {
	return c.Project.defaultIndicators()
}

// SetBuild updates the build kind and persists the value back to
// .carryover/config.yaml.
func (c *Config) SetBuild(build tag.Build) error {
	build = tag.Build(strings.ToLower(strings.TrimSpace(string(build))))
	if !build.Valid() {
		return fmt.Errorf("config: unknown build %q", build)
	}
	c.Project.Build = build
	return c.saveProjectConfig()
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.ProjectDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version:     1,
		Build:       tag.BuildProofing,
		RootContext: defaultRootContext,
		Defaults:    map[string]DefaultIndicator{},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.Build == "" {
		pc.Build = tag.BuildProofing
	}
	if strings.TrimSpace(pc.RootContext) == "" {
		pc.RootContext = defaultRootContext
	}
	if pc.Defaults == nil {
		pc.Defaults = map[string]DefaultIndicator{}
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.Build = tag.Build(strings.ToLower(strings.TrimSpace(string(pc.Build))))
	pc.Manifest = resolvePath(base, pc.Manifest)
	pc.RootContext = strings.TrimSpace(pc.RootContext)
	var excluded []string
	for _, name := range pc.ExcludeContexts {
		name = strings.TrimSpace(name)
		if name != "" && !contains(excluded, name) {
			excluded = append(excluded, name)
		}
	}
	sort.Strings(excluded)
	pc.ExcludeContexts = excluded
	normalized := make(map[string]DefaultIndicator, len(pc.Defaults))
	for channel, d := range pc.Defaults {
		d.Kind = strings.TrimSpace(d.Kind)
		normalized[strings.ToLower(strings.TrimSpace(channel))] = d
	}
	pc.Defaults = normalized
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if !pc.Build.Valid() {
		return fmt.Errorf("build must be 'proofing', 'score' or 'parts'")
	}
	if pc.RootContext == "" {
		return fmt.Errorf("root_context is required")
	}
	if contains(pc.ExcludeContexts, pc.RootContext) {
		return fmt.Errorf("exclude_contexts: %s is the root context", pc.RootContext)
	}
	if _, err := pc.defaultIndicators(); err != nil {
		return err
	}
	return nil
}

func (pc *ProjectConfig) defaultIndicators() ([]indicator.Indicator, error) {
	channels := make([]string, 0, len(pc.Defaults))
	for channel := range pc.Defaults {
		channels = append(channels, channel)
	}
	sort.Strings(channels)
	var out []indicator.Indicator
	for _, channel := range channels {
		d := pc.Defaults[channel]
		if !indicator.Channel(channel).Persistent() {
			return nil, fmt.Errorf("defaults[%s]: not a persistent channel", channel)
		}
		ind, err := indicator.Decode(indicator.Kind(d.Kind), indicator.Fields(d.Args))
		if err != nil {
			return nil, fmt.Errorf("defaults[%s]: %w", channel, err)
		}
		if string(ind.Channel()) != channel {
			return nil, fmt.Errorf("defaults[%s]: %s belongs to channel %s", channel, d.Kind, ind.Channel())
		}
		out = append(out, ind)
	}
	return out, nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == target {
			return true
		}
	}
	return false
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize(c.ProjectDir)
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.CarryoverDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure carryover dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
