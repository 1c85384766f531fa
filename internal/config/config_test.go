package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/phaserun/internal/retry"
)

const sampleYAML = `
state_dir: /tmp/phaserun-test
execution:
  default_timeout: 5m
  max_workers: 3
  work_dir: /srv/work
  command: ["run-agent", "--json"]
retry:
  max_retries: 2
  base_delay: 1s
  jitter_fraction: 0.2
  backoff_multiplier: 2.0
  retryable_exit_codes: [75]
  retryable_messages: ["rate limit"]
governance:
  flags:
    security_review: true
workflow:
  - name: planning
    agents: [architect]
    artifacts_required: ["docs/plan.md"]
  - name: build
    agents: [builder, qa-lead]
    parallel: true
    requires_consensus: true
    artifacts_required: ["src/**/*.go"]
    timeout: 30m
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadWithFile(t *testing.T) {
	cfg, err := LoadWithFile(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/phaserun-test", cfg.StateDir)
	assert.Equal(t, 5*time.Minute, cfg.Execution.DefaultTimeout.Duration())
	assert.Equal(t, 3, cfg.Execution.MaxWorkers)
	assert.Equal(t, []string{"run-agent", "--json"}, cfg.Execution.Command)
	assert.Equal(t, 2, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.True(t, cfg.Governance.Flag("security_review"))

	require.Len(t, cfg.Workflow, 2)
	planning := cfg.Workflow[0]
	assert.Equal(t, "planning", planning.Name)
	assert.Equal(t, 1, planning.Position)
	assert.True(t, planning.Enabled())

	build := cfg.Workflow[1]
	assert.Equal(t, 2, build.Position)
	assert.True(t, build.Parallel)
	assert.True(t, build.RequiresConsensus)
	assert.Equal(t, 30*time.Minute, build.Timeout.Duration())
}

func TestLoadWithFile_EnvOverride(t *testing.T) {
	t.Setenv("PHASERUN_EXECUTION_MAX_WORKERS", "8")
	t.Setenv("PHASERUN_STATE_DIR", "/tmp/override")

	cfg, err := LoadWithFile(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Execution.MaxWorkers)
	assert.Equal(t, "/tmp/override", cfg.StateDir)
}

func TestLoadWithFile_Defaults(t *testing.T) {
	minimal := `
state_dir: /tmp/phaserun-test
workflow:
  - name: only
    agents: [solo]
`
	cfg, err := LoadWithFile(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.Execution.DefaultTimeout.Duration())
	assert.Equal(t, 4, cfg.Execution.MaxWorkers)
	assert.Equal(t, ".", cfg.Execution.WorkDir)

	// an omitted retry block means the full default policy, not zero retries
	assert.Equal(t, retry.DefaultConfig(), cfg.Retry)
}

func TestValidate_Errors(t *testing.T) {
	base := func() *Config {
		return &Config{
			StateDir: "/tmp/x",
			Execution: ExecutionConfig{
				DefaultTimeout: Duration(time.Minute),
				MaxWorkers:     2,
			},
			Workflow: []PhaseDefinition{
				{Name: "a", Agents: []string{"one"}},
			},
		}
	}

	cfg := base()
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Workflow = nil
	assert.ErrorContains(t, cfg.Validate(), "at least one phase")

	cfg = base()
	cfg.Workflow = append(cfg.Workflow, PhaseDefinition{Name: "a", Agents: []string{"two"}})
	assert.ErrorContains(t, cfg.Validate(), "duplicate phase name")

	cfg = base()
	cfg.Workflow[0].Agents = nil
	assert.ErrorContains(t, cfg.Validate(), "no agents")

	cfg = base()
	cfg.Workflow[0].Executor = "quantum"
	assert.ErrorContains(t, cfg.Validate(), "unknown executor kind")

	cfg = base()
	cfg.Execution.MaxWorkers = 0
	assert.ErrorContains(t, cfg.Validate(), "max_workers")

	cfg = base()
	cfg.StateDir = ""
	assert.ErrorContains(t, cfg.Validate(), "state_dir")
}

func TestPhaseLookup(t *testing.T) {
	cfg, err := LoadWithFile(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	require.NotNil(t, cfg.Phase("build"))
	assert.Nil(t, cfg.Phase("missing"))
	assert.Len(t, cfg.EnabledPhases(), 2)
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("sk-real-key")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "sk-real-key", s.Value())
	assert.Equal(t, "", Secret("").String())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("bogus")))
}
