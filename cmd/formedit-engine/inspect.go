package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"formedit/engine/internal/sheetxml"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <form.xml>",
	Short: "Show the worksheets of a workbook",
	Args:  cobra.ExactArgs(1),
	RunE:  inspect,
}

func inspect(cmd *cobra.Command, args []string) error {
	doc, err := sheetxml.Open(args[0])
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Worksheet", "Rows", "ExpandedRowCount", "Choices", "Headers"})
	for _, info := range doc.Inspect() {
		declared := "-"
		if info.HasRowCount {
			declared = strconv.Itoa(info.RowCount)
		}
		choices := ""
		if info.ChoiceList {
			choices = "yes"
		}
		headers := strings.Join(info.Headers, ", ")
		if !info.HasTable {
			headers = "(no table)"
		}
		table.Append([]string{info.Name, strconv.Itoa(info.DataRows), declared, choices, headers})
	}
	table.Render()
	if backup := doc.BackupPath(); backup != "" {
		if _, err := os.Stat(backup); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "backup: %s\n", backup)
		}
	}
	return nil
}
