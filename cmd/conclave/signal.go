package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/conclave/internal/signals"
)

// newSignalCmd builds a command that sends sig to a running session.
func newSignalCmd(sig signals.Signal, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(sig) + " [session-id]",
		Short: short,
		Long: fmt.Sprintf(`Ask a running session in this project to %s.

The request is written to .conclave/signals/%s and picked up by the session
watching that directory. Without a session id, the first session to see the
file acts on it.`, sig, sig),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectRoot()
			if err != nil {
				return err
			}
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			if err := signals.Send(root, sig, target); err != nil {
				printStatus("✗", err.Error(), color.FgRed)
				return err
			}
			who := "any running session"
			if target != "" {
				who = "session " + target
			}
			printStatus("✓", fmt.Sprintf("%s sent to %s", sig, who), color.FgGreen)
			return nil
		},
	}
}

var (
	cancelCmd = newSignalCmd(signals.Cancel, "Cancel a running session")
	pauseCmd  = newSignalCmd(signals.Pause, "Stop dispatching new tasks in a running session")
	resumeCmd = newSignalCmd(signals.Resume, "Resume dispatching in a paused session")
)
