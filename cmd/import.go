package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/leadscope/leadscope/internal/utils"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import leads from a JSON file ('-' reads stdin)",
	Long: `Import leads from a JSON array of records, or an object with a "leads" array.
Records that fail validation are reported and skipped; the rest are scored and saved.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if args[0] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.close()

		return importInto(ctx, ws, data)
	},
}

func importInto(ctx context.Context, ws *workspace, data []byte) error {
	res, err := ws.mgr.IngestJSON(ctx, data)
	if err != nil {
		return err
	}
	for _, f := range res.Failures {
		utils.Log.Warnf("Record %d skipped: %v", f.Index, f.Err)
	}
	if err := ws.save(ctx); err != nil {
		return err
	}
	fmt.Printf("Imported %d leads (%d skipped). %d leads in total.\n", len(res.IDs), len(res.Failures), ws.mgr.Len())
	return nil
}

func init() {
	rootCmd.AddCommand(importCmd)
}
