package cmd

import (
	"fmt"
	"os"

	"github.com/leadscope/leadscope/internal/utils"
	"github.com/leadscope/leadscope/pkg/ai"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate synthetic leads with the AI assistant",
	Long: `Ask the configured model for realistic B2B leads. The JSON is printed, written
to --out, and/or imported into the lead database with --db.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		quality, _ := cmd.Flags().GetString("quality")
		out, _ := cmd.Flags().GetString("out")
		toDB, _ := cmd.Flags().GetBool("db")

		ctx := cmd.Context()
		gen, err := ai.NewGenerator(ctx, aiConfig())
		if err != nil {
			return err
		}

		utils.Log.Infof("Generating %d %s leads...", count, quality)
		data, err := gen.Generate(ctx, count, quality)
		if err != nil {
			return err
		}

		if out != "" {
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			utils.Log.Infof("Wrote leads to %s", out)
		}

		if toDB {
			ws, err := openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.close()
			return importInto(ctx, ws, data)
		}

		if out == "" {
			fmt.Println(string(data))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().IntP("count", "n", 10, fmt.Sprintf("Number of leads to generate (1-%d)", ai.MaxGenerateCount))
	generateCmd.Flags().StringP("quality", "q", "mixed", "Lead mix: high, medium, mixed or startup")
	generateCmd.Flags().StringP("out", "o", "", "Write the generated JSON to this file")
	generateCmd.Flags().Bool("db", false, "Import the generated leads into the lead database")
}
