// Package main implements the phaserun CLI for driving multi-phase runs:
// starting a run, advancing it phase by phase, recording consensus
// decisions, and inspecting persisted run state.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/phaserun/internal/config"
	"github.com/fyrsmithlabs/phaserun/internal/logging"
	"github.com/fyrsmithlabs/phaserun/internal/runloop"
	"github.com/fyrsmithlabs/phaserun/internal/state"
)

var (
	configPath string
	runID      string

	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "phaserun",
	Short: "Drive multi-phase workflow runs",
	Long: `phaserun sequences a configured workflow phase by phase, dispatching
agents with timeouts and retries, validating the artifacts each phase
produces, and holding consensus-gated phases for human approval. Run
state is persisted after every transition, so runs survive restarts.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (YAML)")
	rootCmd.PersistentFlags().StringVarP(&runID, "run", "r", "", "run ID (required for commands acting on an existing run)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(abortCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(jumpCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logCmd)
}

var (
	startIntake string
	startPhase  string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new run",
	Long: `Start a new run on the first enabled phase, or on --phase.

Examples:
  # Start from the beginning of the workflow
  phaserun start --intake "Add rate limiting to the API"

  # Start from a specific phase
  phaserun start --phase build`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&startIntake, "intake", "", "intake summary recorded on the run")
	startCmd.Flags().StringVar(&startPhase, "phase", "", "phase to start from (default: first enabled)")
}

var (
	nextParallel bool
	nextWorkers  int
	nextTimeout  time.Duration
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Execute the current phase and advance the run",
	Long: `Execute every agent of the current phase, validate the produced
artifacts, and apply the resulting transition.

Examples:
  phaserun next --run 4f7c...
  phaserun next --run 4f7c... --parallel --workers 2
  phaserun next --run 4f7c... --timeout 30m`,
	RunE: runNext,
}

func init() {
	nextCmd.Flags().BoolVar(&nextParallel, "parallel", false, "force parallel dispatch for this phase")
	nextCmd.Flags().IntVar(&nextWorkers, "workers", 0, "worker limit override for this phase")
	nextCmd.Flags().DurationVar(&nextTimeout, "timeout", 0, "per-dispatch timeout override")
}

var decisionReason string

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Approve the pending consensus request",
	RunE:  runApprove,
}

var rejectCmd = &cobra.Command{
	Use:   "reject",
	Short: "Reject the pending consensus request",
	Long: `Reject the pending consensus request. A rollback advisory is written
for the phase's artifacts; nothing is deleted. The run holds on the
rejected phase for revision.`,
	RunE: runReject,
}

func init() {
	approveCmd.Flags().StringVar(&decisionReason, "reason", "", "reason recorded with the decision")
	rejectCmd.Flags().StringVar(&decisionReason, "reason", "", "reason recorded with the decision")
}

var abortCmd = &cobra.Command{
	Use:   "abort",
	Short: "Abort an active run",
	RunE:  runAbort,
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume an aborted or revision-held run",
	RunE:  runResume,
}

var jumpCmd = &cobra.Command{
	Use:   "jump <phase>",
	Short: "Reposition the run on an enabled phase",
	Args:  cobra.ExactArgs(1),
	RunE:  runJump,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the persisted run state",
	RunE:  runStatus,
}

var logTailN int

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Print the newest run-log entries",
	RunE:  runLog,
}

func init() {
	logCmd.Flags().IntVarP(&logTailN, "lines", "n", 20, "number of entries to print")
}

// setup loads configuration and builds a controller. When attach is set
// the run named by --run is loaded into it.
func setup(ctx context.Context, attach bool) (*runloop.Controller, *zap.Logger, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(logging.NewDefaultConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	store, err := state.NewFileStore(cfg.StateDir)
	if err != nil {
		return nil, nil, err
	}

	ctrl, err := runloop.NewController(cfg, store, logger)
	if err != nil {
		return nil, nil, err
	}

	if attach {
		if runID == "" {
			return nil, nil, fmt.Errorf("--run is required")
		}
		if _, err := ctrl.Attach(ctx, runID); err != nil {
			return nil, nil, err
		}
	}

	return ctrl, logger, nil
}

func runStart(cmd *cobra.Command, _ []string) error {
	ctrl, logger, err := setup(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	run, err := ctrl.Start(cmd.Context(), startIntake, startPhase)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s started on phase %s\n", run.RunID, run.CurrentPhase)
	return nil
}

func runNext(cmd *cobra.Command, _ []string) error {
	ctrl, logger, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	outcome, err := ctrl.NextPhase(cmd.Context(), runloop.NextPhaseOptions{
		ForceParallel: nextParallel,
		MaxWorkers:    nextWorkers,
		Timeout:       nextTimeout,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Phase %s: success=%t units=%d validation=%s\n",
		outcome.Phase, outcome.Success, len(outcome.Outcomes), outcome.Validation.Status)
	for _, u := range outcome.Outcomes {
		fmt.Printf("  %-24s %-7s %s\n", u.Agent, u.Signal, u.Notes)
	}
	if outcome.ConsensusRequested {
		fmt.Println("Awaiting consensus. Approve or reject to continue.")
	}
	return printState(ctrl)
}

func runApprove(cmd *cobra.Command, _ []string) error {
	ctrl, logger, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if _, err := ctrl.ApproveConsensus(cmd.Context(), decisionReason); err != nil {
		return err
	}
	return printState(ctrl)
}

func runReject(cmd *cobra.Command, _ []string) error {
	ctrl, logger, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if _, err := ctrl.RejectConsensus(cmd.Context(), decisionReason); err != nil {
		return err
	}
	fmt.Println("Rejected. A rollback advisory was written; no files were deleted.")
	return printState(ctrl)
}

func runAbort(cmd *cobra.Command, _ []string) error {
	ctrl, logger, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if _, err := ctrl.AbortRun(cmd.Context()); err != nil {
		return err
	}
	return printState(ctrl)
}

func runResume(cmd *cobra.Command, _ []string) error {
	ctrl, logger, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if _, err := ctrl.ResumeRun(cmd.Context()); err != nil {
		return err
	}
	return printState(ctrl)
}

func runJump(cmd *cobra.Command, args []string) error {
	ctrl, logger, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if _, err := ctrl.JumpToPhase(cmd.Context(), args[0]); err != nil {
		return err
	}
	return printState(ctrl)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctrl, logger, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	return printState(ctrl)
}

func runLog(cmd *cobra.Command, _ []string) error {
	ctrl, logger, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	lines, err := ctrl.LogTail(logTailN)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

// printState writes the run state as indented JSON to stdout.
func printState(ctrl *runloop.Controller) error {
	st := ctrl.Status()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
