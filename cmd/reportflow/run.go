package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbukum/reportflow/bootstrap"
	apperrors "github.com/kbukum/reportflow/errors"
	"github.com/kbukum/reportflow/executor"
	"github.com/kbukum/reportflow/filter"
	"github.com/kbukum/reportflow/report"
)

type runOutput struct {
	RunID   string     `json:"run_id,omitempty"`
	Status  string     `json:"status"`
	Code    string     `json:"code,omitempty"`
	Error   string     `json:"error,omitempty"`
	Stages  []string   `json:"stages,omitempty"`
	Reports report.Set `json:"reports"`
}

func newRunCmd(root *rootOptions) *cobra.Command {
	var chainName string
	cmd := &cobra.Command{
		Use:   "run [reports.json]",
		Short: "Run a report set through the root chain",
		Long:  "Reads a JSON object of reports keyed by id from the file, or stdin when it is omitted or \"-\", runs it through the root chain and prints the result.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if chainName != "" {
				cfg.Chains.Root = chainName
			}

			reports, err := readReports(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			app, err := bootstrap.New(cfg, bootstrap.WithSummaryWriter(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}

			var out runOutput
			runErr := app.RunTask(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				res := make(chan filter.Result, 1)
				run, err := app.Submit(ctx, reports, func(r filter.Result) { res <- r })
				if err != nil {
					return err
				}
				out = output(run.ID(), <-res)
				return nil
			})
			if runErr != nil {
				return runErr
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			if out.Status != executor.StatusOK {
				return fmt.Errorf("run %s: %s", out.Status, out.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&chainName, "chain", "", "chain to run instead of the configured root")
	return cmd
}

func readReports(stdin io.Reader, args []string) (report.Set, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return report.Set{}, fmt.Errorf("read reports: %w", err)
	}
	return report.ParseSet(data)
}

func output(runID string, res filter.Result) runOutput {
	out := runOutput{RunID: runID, Status: executor.StatusOf(res), Reports: res.Reports}
	if res.Err != nil {
		out.Error = res.Err.Error()
		out.Code = string(apperrors.CodeOf(res.Err))
		out.Stages = apperrors.StagePath(res.Err)
	}
	return out
}
