package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/conclave/internal/orchestrator"
)

var planOpts runFlags

var planCmd = &cobra.Command{
	Use:   "plan <workflow.yaml>",
	Short: "Show the execution plan of a workflow without running it",
	Long: `Validate a workflow against an agent roster and print its phases.

Each phase is a set of tasks that can run in parallel once the previous
phases finished, with the agents able to serve each task and an estimate
of duration and tokens.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := prepare(cmd, args[0], planOpts)
		if err != nil {
			return err
		}
		plan, err := orchestrator.Plan(p.def.Workflow, p.registry, p.run)
		if err != nil {
			return err
		}
		if planOpts.jsonOut {
			return writeJSON(cmd.OutOrStdout(), plan)
		}
		printPlan(cmd.OutOrStdout(), plan)
		return nil
	},
}

var validateOpts runFlags

var validateCmd = &cobra.Command{
	Use:   "validate <workflow.yaml>",
	Short: "Check a workflow for cycles, unknown dependencies and unservable tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := prepare(cmd, args[0], validateOpts)
		if err != nil {
			printStatus("✗", err.Error(), color.FgRed)
			return err
		}
		if err := p.def.Workflow.ValidateCapabilities(p.registry); err != nil {
			printStatus("✗", err.Error(), color.FgRed)
			return err
		}
		printStatus("✓", fmt.Sprintf("%s: %d tasks, %d agents", p.def.Workflow.Name(),
			p.def.Workflow.Size(), p.registry.Count()), color.FgGreen)
		return nil
	},
}

func init() {
	addRunFlags(planCmd, &planOpts)
	validateCmd.Flags().StringVarP(&validateOpts.agents, "agents", "a", "", "Agent roster YAML file")
}

// printPlan prints the phases of an execution plan.
func printPlan(w io.Writer, plan *orchestrator.ExecutionPlan) {
	title := plan.Workflow
	if plan.Version != "" {
		title += " " + plan.Version
	}
	fmt.Fprintf(w, "Plan for %s: %d tasks in %d phases\n", title, plan.TotalTasks, len(plan.Phases))

	for _, phase := range plan.Phases {
		fmt.Fprintf(w, "\nPhase %d (%s)\n", phase.Index+1, phase.Duration)
		for _, t := range phase.Tasks {
			line := fmt.Sprintf("  %-24s prio=%-3d %s", t.TaskID, t.Priority, t.Capabilities)
			if len(t.DependsOn) > 0 {
				line += " after " + strings.Join(t.DependsOn, ",")
			}
			fmt.Fprintln(w, line)
			fmt.Fprintf(w, "      agents: %s\n", strings.Join(t.Candidates, ", "))
		}
	}

	fmt.Fprintf(w, "\nMax parallelism %d, estimated %s, ~%d tokens\n",
		plan.MaxParallelism, plan.EstimatedDuration.Round(time.Second), plan.EstimatedTokens)
}
