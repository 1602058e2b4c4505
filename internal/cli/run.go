package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mrz1836/tabula/internal/config"
	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/domain"
	"github.com/mrz1836/tabula/internal/plan"
)

// runFlags holds flags of the run command.
type runFlags struct {
	script    string
	scenarios []string
	dataFile  string
	sheets    []string
	failFast  bool
	exec      execFlags
}

// execFlags are shared by run and plan.
type execFlags struct {
	outputDir  string
	open       bool
	pause      bool
	resetFail  bool
	settings   map[string]string
	watch      bool
	maxWorkers int
}

func (e *execFlags) add(cmd *cobra.Command) {
	cmd.Flags().StringVar(&e.outputDir, "output-dir", "", "directory for run artifacts (default from config)")
	cmd.Flags().BoolVar(&e.open, "open", false, "open each iteration artifact when it is saved")
	cmd.Flags().BoolVar(&e.pause, "pause", false, "wait for Enter at PauseBefore/PauseAfter")
	cmd.Flags().BoolVar(&e.resetFail, "reset-fail-fast", false, "run fail-fast scripts even after a previous failure")
	cmd.Flags().StringToStringVar(&e.settings, "set", nil, "run-wide data value, e.g. --set env=qa (repeatable)")
	cmd.Flags().BoolVarP(&e.watch, "watch", "w", false, "re-run when a script, data or plan file changes")
	cmd.Flags().IntVar(&e.maxWorkers, "max-parallel", 0, "limit concurrently running parallel entries (0 means no limit)")
}

func (e *execFlags) overrides() *config.Config {
	o := &config.Config{}
	o.Output.Dir = e.outputDir
	o.Output.OpenResults = e.open
	o.Execution.InteractivePause = e.pause
	o.Execution.ResetFailFast = e.resetFail
	o.Execution.MaxParallel = e.maxWorkers
	o.Data.Settings = e.settings
	return o
}

// AddRunCommand adds the run command to the root command.
func AddRunCommand(root *cobra.Command, flags *GlobalFlags) {
	root.AddCommand(newRunCmd(flags))
}

func newRunCmd(flags *GlobalFlags) *cobra.Command {
	rf := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [script]",
		Short: "Run one script against its data file",
		Long: `Run one script once per selected data column.

Scripts and data files given by name are looked up as given, then under the
project script and data directories, with and without the .yaml extension.

Examples:
  tabula run login --data login.data
  tabula run --script login --scenario Main,Logout --data login.data --sheet qa
  tabula run login --data login.data --fail-fast=false --set env=staging
  tabula run login --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				rf.script = args[0]
			}
			if rf.script == "" {
				return errMissingArgument("script")
			}
			deps, err := defaultDeps()
			if err != nil {
				return err
			}
			return withSignals(cmd, func(ctx context.Context) error {
				return runScript(ctx, cmd, flags, rf, deps)
			})
		},
	}

	cmd.Flags().StringVarP(&rf.script, "script", "s", "", "script workbook")
	cmd.Flags().StringSliceVar(&rf.scenarios, "scenario", nil, "scenario sheets to run (default: every sheet not starting with #)")
	cmd.Flags().StringVarP(&rf.dataFile, "data", "d", "", "data workbook")
	cmd.Flags().StringSliceVar(&rf.sheets, "sheet", nil, "data sheets to merge, in order")
	cmd.Flags().BoolVar(&rf.failFast, "fail-fast", true, "stop after the first iteration with a failed step")
	rf.exec.add(cmd)

	return cmd
}

func runScript(ctx context.Context, cmd *cobra.Command, flags *GlobalFlags, rf *runFlags, deps sessionDeps) error {
	once := func(ctx context.Context) ([]string, error) {
		sess, err := newSession(ctx, cmd, flags, rf.exec.overrides(), deps)
		if err != nil {
			return nil, err
		}

		def := &domain.ExecutionDefinition{
			Script:     plan.Resolve(sess.loader, rf.script, constants.WorkbookExt, sess.cfg.ScriptDir()),
			Scenarios:  rf.scenarios,
			DataSheets: rf.sheets,
			FailFast:   rf.failFast,
			Serial:     true,
			RunID:      sess.cfg.RunID(),
		}
		if rf.dataFile != "" {
			def.DataFile = plan.Resolve(sess.loader, rf.dataFile, constants.WorkbookExt, sess.cfg.DataDir())
		}
		watched := []string{def.Script, def.DataFile}

		defs := []*domain.ExecutionDefinition{def}
		if err := plan.Preflight(ctx, sess.loader, defs, 1); err != nil {
			sess.out.Error(err)
			return watched, err
		}
		root := sess.scheduler.Execute(ctx, defs)
		watched = append(watched, sess.runner.MacroSources()...)
		return watched, sess.report(ctx, root, flags.Verbose)
	}

	if !rf.exec.watch {
		_, err := once(ctx)
		return err
	}
	return watch(ctx, GetLogger(), once)
}
