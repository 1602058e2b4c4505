package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/domain"
	"github.com/mrz1836/tabula/internal/plan"
)

// planFlags holds flags of the plan command.
type planFlags struct {
	plan     string
	subplans []string
	check    bool
	exec     execFlags
}

// AddPlanCommand adds the plan command to the root command.
func AddPlanCommand(root *cobra.Command, flags *GlobalFlags) {
	root.AddCommand(newPlanCmd(flags))
}

func newPlanCmd(flags *GlobalFlags) *cobra.Command {
	pf := &planFlags{}
	cmd := &cobra.Command{
		Use:   "plan [plan]",
		Short: "Run the scripts listed in a plan",
		Long: `Run every enabled entry of a plan workbook.

Each plan sheet (or each --subplan) lists scripts with their scenarios, data
file, data sheets, fail-fast and serial flags. Serial entries run one after
another and pass their carry-over data on. Parallel entries start in the
background and are joined at the end. Every entry is validated before the
first one starts.

Examples:
  tabula plan regression
  tabula plan --plan regression --subplan smoke,checkout
  tabula plan regression --check
  tabula plan regression --max-parallel 4 --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				pf.plan = args[0]
			}
			if pf.plan == "" {
				return errMissingArgument("plan")
			}
			deps, err := defaultDeps()
			if err != nil {
				return err
			}
			return withSignals(cmd, func(ctx context.Context) error {
				return runPlan(ctx, cmd, flags, pf, deps)
			})
		},
	}

	cmd.Flags().StringVarP(&pf.plan, "plan", "p", "", "plan workbook")
	cmd.Flags().StringSliceVar(&pf.subplans, "subplan", nil, "plan sheets to run, in order (default: every sheet not starting with #)")
	cmd.Flags().BoolVar(&pf.check, "check", false, "validate the plan without running it")
	pf.exec.add(cmd)

	return cmd
}

func runPlan(ctx context.Context, cmd *cobra.Command, flags *GlobalFlags, pf *planFlags, deps sessionDeps) error {
	once := func(ctx context.Context) ([]string, error) {
		sess, err := newSession(ctx, cmd, flags, pf.exec.overrides(), deps)
		if err != nil {
			return nil, err
		}

		planFile := plan.Resolve(sess.loader, pf.plan, constants.WorkbookExt, sess.cfg.PlanDir())
		watched := []string{planFile}

		wb, err := sess.loader.Open(ctx, planFile)
		if err != nil {
			sess.out.Error(err)
			return watched, err
		}
		defs, err := plan.LoadPlan(wb, planFile, pf.subplans,
			plan.WithSearchDirs(sess.loader, sess.cfg.ScriptDir(), sess.cfg.DataDir()),
			plan.WithRunID(sess.cfg.RunID()))
		_ = wb.Close()
		if err != nil {
			sess.out.Error(err)
			return watched, err
		}
		watched = append(watched, definitionFiles(defs)...)

		if err := plan.Preflight(ctx, sess.loader, defs, 0); err != nil {
			sess.out.Error(err)
			return watched, err
		}
		if pf.check {
			sess.out.Success(planCheckMessage(planFile, len(defs)))
			return watched, nil
		}
		root := sess.scheduler.Execute(ctx, defs)
		watched = append(watched, sess.runner.MacroSources()...)
		return watched, sess.report(ctx, root, flags.Verbose)
	}

	if !pf.exec.watch {
		_, err := once(ctx)
		return err
	}
	return watch(ctx, GetLogger(), once)
}

// definitionFiles lists the script and data files of defs.
func definitionFiles(defs []*domain.ExecutionDefinition) []string {
	files := make([]string, 0, 2*len(defs))
	for _, d := range defs {
		files = append(files, d.Script)
		if d.DataFile != "" {
			files = append(files, d.DataFile)
		}
	}
	return files
}

func planCheckMessage(planFile string, entries int) string {
	if entries == 1 {
		return planFile + ": 1 entry ready to run"
	}
	return fmt.Sprintf("%s: %d entries ready to run", planFile, entries)
}
