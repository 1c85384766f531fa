// Package config provides configuration loading for phaserun.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/phaserun/internal/governance"
	"github.com/fyrsmithlabs/phaserun/internal/retry"
)

// Duration wraps time.Duration for text unmarshaling (YAML, env vars).
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration().String())
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Secret wraps strings that should be redacted in logs and serialization.
// Use Value() to access the actual secret value.
type Secret string

// String implements fmt.Stringer. Always returns redacted value.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v formatting.
func (s Secret) GoString() string {
	return "Secret([REDACTED])"
}

// Value returns the actual secret value. Use sparingly.
func (s Secret) Value() string {
	return string(s)
}

// PhaseDefinition declares one workflow stage. Immutable per run.
type PhaseDefinition struct {
	Name string `koanf:"name" json:"name"`

	// Position is the 1-based order in the workflow. Assigned from the
	// configured list order when zero.
	Position int `koanf:"position" json:"position"`

	// Agents is the ordered roster of base work units for the phase.
	Agents []string `koanf:"agents" json:"agents"`

	Parallel          bool `koanf:"parallel" json:"parallel"`
	RequiresConsensus bool `koanf:"requires_consensus" json:"requires_consensus"`

	// ArtifactsRequired lists path patterns the phase must produce.
	ArtifactsRequired []string `koanf:"artifacts_required" json:"artifacts_required"`

	// Disabled phases are skipped by phase selection and rejected as
	// jump targets. The zero value keeps a phase enabled.
	Disabled bool `koanf:"disabled" json:"disabled"`

	// Executor selects the variant: subprocess (default), sandbox, model.
	Executor string `koanf:"executor" json:"executor"`

	// Timeout overrides the global default dispatch timeout when set.
	Timeout Duration `koanf:"timeout" json:"timeout,omitempty"`
}

// Enabled reports whether the phase participates in the run.
func (p *PhaseDefinition) Enabled() bool {
	return !p.Disabled
}

// ExecutionConfig holds global dispatch settings.
type ExecutionConfig struct {
	// DefaultTimeout is the hard per-dispatch timeout unless a phase or
	// operator command overrides it.
	DefaultTimeout Duration `koanf:"default_timeout" json:"default_timeout"`

	// MaxWorkers bounds concurrent dispatches in a parallel phase.
	MaxWorkers int `koanf:"max_workers" json:"max_workers"`

	// WorkDir is where agents operate and artifacts are validated.
	WorkDir string `koanf:"work_dir" json:"work_dir"`

	// Command is the argv template for process-backed executors.
	Command []string `koanf:"command" json:"command"`

	// AllowedEnv whitelists environment variables for sandboxed agents.
	AllowedEnv []string `koanf:"allowed_env" json:"allowed_env"`

	// Model executor settings.
	APIKey  Secret `koanf:"api_key" json:"api_key"`
	BaseURL string `koanf:"base_url" json:"base_url"`
	Model   string `koanf:"model" json:"model"`
}

// Config is the complete phaserun configuration.
type Config struct {
	Workflow   []PhaseDefinition `koanf:"workflow" json:"workflow"`
	Execution  ExecutionConfig   `koanf:"execution" json:"execution"`
	Retry      retry.Config      `koanf:"retry" json:"retry"`
	Governance governance.Config `koanf:"governance" json:"governance"`

	// StateDir is the root for persisted run state and documents.
	StateDir string `koanf:"state_dir" json:"state_dir"`
}

// Phase returns the definition with the given name, or nil.
func (c *Config) Phase(name string) *PhaseDefinition {
	for i := range c.Workflow {
		if c.Workflow[i].Name == name {
			return &c.Workflow[i]
		}
	}
	return nil
}

// EnabledPhases returns the enabled phases in configured order.
func (c *Config) EnabledPhases() []PhaseDefinition {
	out := make([]PhaseDefinition, 0, len(c.Workflow))
	for _, p := range c.Workflow {
		if p.Enabled() {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	if len(c.Workflow) == 0 {
		return fmt.Errorf("workflow requires at least one phase")
	}

	seen := make(map[string]struct{}, len(c.Workflow))
	for i := range c.Workflow {
		p := &c.Workflow[i]
		if p.Name == "" {
			return fmt.Errorf("phase %d has no name", i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("duplicate phase name: %s", p.Name)
		}
		seen[p.Name] = struct{}{}

		if len(p.Agents) == 0 {
			return fmt.Errorf("phase %s has no agents", p.Name)
		}
		switch p.Executor {
		case "", "subprocess", "sandbox", "model":
		default:
			return fmt.Errorf("phase %s: unknown executor kind %q", p.Name, p.Executor)
		}
	}

	if c.Execution.MaxWorkers < 1 {
		return fmt.Errorf("execution.max_workers must be >= 1, got %d", c.Execution.MaxWorkers)
	}
	if c.Execution.DefaultTimeout.Duration() <= 0 {
		return fmt.Errorf("execution.default_timeout must be positive")
	}
	if c.StateDir == "" {
		return fmt.Errorf("state_dir is required")
	}

	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}

	return nil
}
