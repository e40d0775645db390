package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage reduction runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunVariablesCmd(clientFn, outputFn),
		newRunResubmitCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var instrument string
	var status string
	var runNumber int
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reduction runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(ListRunsOpts{
				Instrument: instrument,
				Status:     status,
				RunNumber:  runNumber,
				Limit:      limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "RUN", "VERSION", "STATUS", "MESSAGE", "CREATED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{
					r.ID,
					strconv.Itoa(r.RunNumber),
					strconv.Itoa(r.RunVersion),
					r.Status,
					truncate(r.Message, 40),
					r.CreatedAt,
				}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&instrument, "instrument", "", "Filter by instrument name")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (QUEUED, PROCESSING, COMPLETED, ERROR, SKIPPED)")
	cmd.Flags().IntVar(&runNumber, "run-number", 0, "Filter by run number")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Detail([][2]string{
				{"ID", run.ID},
				{"Run number", strconv.Itoa(run.RunNumber)},
				{"Run version", strconv.Itoa(run.RunVersion)},
				{"Status", run.StatusText},
				{"Message", run.Message},
				{"Started", run.Started},
				{"Finished", run.Finished},
				{"Duration", fmt.Sprintf("%.0fs", run.DurationSec)},
				{"Artifacts", strings.Join(run.Artifacts, ", ")},
			}, run)
			return nil
		},
	}

	return cmd
}

func newRunVariablesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variables RUN_ID",
		Short: "Show the variable snapshot a run was reduced with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			vars, err := client.ListRunVariables(args[0])
			if err != nil {
				return err
			}

			headers := []string{"NAME", "VALUE", "TYPE", "ADVANCED"}
			rows := make([][]string, len(vars))
			for i, v := range vars {
				rows[i] = []string{v.Name, truncate(v.Value, 50), v.Type, strconv.FormatBool(v.IsAdvanced)}
			}

			out.Print(headers, rows, vars)
			return nil
		},
	}

	return cmd
}

func newRunResubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var vars []string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "resubmit INSTRUMENT RUN_NUMBER",
		Short: "Resubmit a run for reduction",
		Long: `Resubmit a run for reduction.

The run gets the next run version; the previous reduction stays in
history. Variable overrides apply only to names the script declares.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runNumber, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid run number %q", args[1])
			}

			req := ResubmitRequest{Overwrite: overwrite}
			if len(vars) > 0 {
				standard := make(map[string]any)
				for _, kv := range vars {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid variable format %q, expected NAME=VALUE", kv)
					}
					standard[parts[0]] = parts[1]
				}
				req.Arguments = map[string]map[string]any{"standard_vars": standard}
			}

			result, err := client.ResubmitRun(args[0], runNumber, req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run %d on %s %s", result.RunNumber, result.Instrument, result.Message))
			if out.jsonMode {
				out.JSON(result)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&vars, "var", nil, "Variable override NAME=VALUE (repeatable)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing reduction artifacts")

	return cmd
}

// truncate обрезает строку до n символов.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
