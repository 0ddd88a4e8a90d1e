package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	exportAppliances bool
	exportOutput     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export daily usage (or appliances) as CSV",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().BoolVar(&exportAppliances, "appliances", false, "export the appliance inventory instead")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "file to write (default: stdout)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	tracker, done, err := openTracker()
	if err != nil {
		return err
	}
	defer done()

	var out io.Writer = cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("creating %s: %w", exportOutput, err)
		}
		defer f.Close()
		out = f
	}

	ctx := context.Background()
	if exportAppliances {
		return tracker.ExportAppliancesCSV(ctx, userID, out)
	}
	return tracker.ExportCSV(ctx, userID, out)
}
