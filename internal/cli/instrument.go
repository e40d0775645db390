package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewInstrumentCmd создаёт группу команд для управления инструментами.
func NewInstrumentCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instrument",
		Short: "Manage instruments",
	}

	cmd.AddCommand(
		newInstrumentListCmd(clientFn, outputFn),
		newInstrumentPauseCmd(clientFn, outputFn, true),
		newInstrumentPauseCmd(clientFn, outputFn, false),
		newInstrumentVariablesCmd(clientFn, outputFn),
		newInstrumentFreezeCmd(clientFn, outputFn, true),
		newInstrumentFreezeCmd(clientFn, outputFn, false),
	)

	return cmd
}

func newInstrumentListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List instruments",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			instruments, err := client.ListInstruments()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "ACTIVE", "PAUSED"}
			rows := make([][]string, len(instruments))
			for i, inst := range instruments {
				rows[i] = []string{
					inst.Name,
					strconv.FormatBool(inst.IsActive),
					strconv.FormatBool(inst.IsPaused),
				}
			}

			out.Print(headers, rows, instruments)
			return nil
		},
	}

	return cmd
}

func newInstrumentVariablesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variables INSTRUMENT",
		Short: "List stored instrument variables with their scopes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			vars, err := client.ListInstrumentVariables(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "VALUE", "TYPE", "SCOPE", "TRACKS"}
			rows := make([][]string, len(vars))
			for i, v := range vars {
				scope := ""
				switch {
				case v.ExperimentReference != nil:
					scope = fmt.Sprintf("experiment %d", *v.ExperimentReference)
				case v.StartRun != nil:
					scope = fmt.Sprintf("run >= %d", *v.StartRun)
				}
				rows[i] = []string{
					v.ID,
					v.Name,
					truncate(v.Value, 40),
					v.Type,
					scope,
					strconv.FormatBool(v.TracksScript),
				}
			}

			out.Print(headers, rows, vars)
			return nil
		},
	}

	return cmd
}

func newInstrumentFreezeCmd(clientFn func() *Client, outputFn func() *Output, freeze bool) *cobra.Command {
	use, short := "freeze VARIABLE_ID", "Freeze a variable: stop tracking script defaults"
	if !freeze {
		use, short = "unfreeze VARIABLE_ID", "Resume tracking script defaults for a variable"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.SetVariableTracksScript(args[0], !freeze); err != nil {
				return err
			}

			state := "frozen"
			if !freeze {
				state = "tracking the script again"
			}
			out.Success(fmt.Sprintf("Variable %s is now %s", args[0], state))
			return nil
		},
	}

	return cmd
}

func newInstrumentPauseCmd(clientFn func() *Client, outputFn func() *Output, pause bool) *cobra.Command {
	use, short := "pause INSTRUMENT", "Pause an instrument (new runs are skipped)"
	if !pause {
		use, short = "unpause INSTRUMENT", "Unpause an instrument"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			inst, err := client.SetInstrumentPaused(args[0], pause)
			if err != nil {
				return err
			}

			state := "unpaused"
			if inst.IsPaused {
				state = "paused"
			}
			out.Success(fmt.Sprintf("Instrument %s is now %s", inst.Name, state))
			return nil
		},
	}

	return cmd
}
