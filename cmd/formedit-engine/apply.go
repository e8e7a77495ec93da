package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"formedit/engine/internal/tasks"
)

var (
	applyYes    bool
	applySource string
)

var applyCmd = &cobra.Command{
	Use:   "apply <plan.json>",
	Short: "Run a task plan against a workbook",
	Long: `Run a task plan against a workbook. The plan is a JSON object with
"source_path", "description" and "tasks" (each with "title", "action" and
"params"). Nothing is written unless --yes is given.`,
	Args: cobra.ExactArgs(1),
	RunE: apply,
}

func init() {
	applyCmd.Flags().BoolVarP(&applyYes, "yes", "y", false, "confirm execution")
	applyCmd.Flags().StringVar(&applySource, "source", "", "override the plan's source_path")
}

type plan struct {
	SourcePath  string           `json:"source_path"`
	Description string           `json:"description"`
	Tasks       []tasks.TaskSpec `json:"tasks"`
}

func apply(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var p plan
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("plan %s: %w", args[0], err)
	}
	if applySource != "" {
		p.SourcePath = applySource
	}
	eng, _, closeLog, err := newEngine()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := context.Background()
	params, err := json.Marshal(p)
	if err != nil {
		return err
	}
	created, errInfo := eng.SessionCreate(ctx, params)
	if errInfo != nil {
		return errors.New(errInfo.Detail)
	}
	session := created.(map[string]any)["session"].(*tasks.Session)
	params, err = json.Marshal(map[string]any{"session_id": session.ID, "confirm": applyYes})
	if err != nil {
		return err
	}
	executed, errInfo := eng.SessionExecute(ctx, params)
	if errInfo != nil {
		if !applyYes {
			fmt.Fprintf(cmd.OutOrStdout(), "%d task(s) planned; rerun with --yes to apply\n", len(session.Tasks))
			return nil
		}
		msg := errInfo.Detail
		if msg == "" {
			msg = errInfo.ErrorCode
		}
		return errors.New(msg)
	}
	report := executed.(map[string]any)["report"].(*tasks.Report)

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Task", "Title", "Status", "Error"})
	for _, result := range report.Results {
		table.Append([]string{result.TaskID, result.Title, string(result.Status), result.Error})
	}
	table.Render()
	fmt.Fprintf(cmd.OutOrStdout(), "status: %s (%d/%d) in %s\n", report.Status, report.CompletedTasks, report.TotalTasks, report.ExecutionTime)
	for _, path := range report.ModifiedFiles {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote: %s\n", path)
	}
	return nil
}
