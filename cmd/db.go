package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/leadscope/leadscope/internal/utils"
	"github.com/leadscope/leadscope/pkg/storage"
	"github.com/spf13/cobra"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the leadscope database",
}

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := dbPathFromConfig()
		if err != nil {
			return err
		}

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}

		// Check if sqlite3 is in PATH
		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 command not found in your PATH. Please install it to use the db shell")
		}

		// Print schema first
		fmt.Println("--> Database schema:")
		schemaCmd := exec.Command(sqlitePath, dbPath, ".schema")
		schemaCmd.Stdout = os.Stdout
		schemaCmd.Stderr = os.Stderr
		if err := schemaCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: couldn't retrieve schema: %v\n", err)
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		c := exec.Command(sqlitePath, dbPath)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		return c.Run()
	},
}

// dbStatsCmd aggregates in SQL, without loading the collection.
var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints per-category lead counts straight from the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := dbPathFromConfig()
		if err != nil {
			return err
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}

		db, err := storage.Open(dbPath, storage.DefaultDBTimeout)
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(cmd.Context())
		if err != nil {
			return err
		}

		if len(stats) == 0 {
			fmt.Println("No data in the database to generate stats.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "CATEGORY\tLEADS\tAVG SCORE\t")

		var total int
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%s\t%.2f\t\n", s.Category, humanize.Comma(int64(s.LeadCount)), s.AverageScore)
			total += s.LeadCount
		}

		fmt.Fprintln(w, " \t \t \t")
		fmt.Fprintf(w, "TOTAL\t%s\t\t\n", humanize.Comma(int64(total)))

		w.Flush()

		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all leads as JSON",
	Long:  "Export all leads as a JSON document that 'leadscope import' accepts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		ws, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer ws.close()

		data, err := json.MarshalIndent(struct {
			Leads interface{} `json:"leads"`
		}{ws.mgr.Leads()}, "", "  ")
		if err != nil {
			return err
		}

		if out == "" {
			fmt.Println(string(data))
			return nil
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}
		utils.Log.Infof("Exported %d leads to %s", ws.mgr.Len(), out)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recorded chat turns",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, _ := cmd.Flags().GetString("session")
		limit, _ := cmd.Flags().GetInt("limit")

		ws, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer ws.close()

		turns, err := ws.db.ListTurns(cmd.Context(), session, limit)
		if err != nil {
			return err
		}
		if len(turns) == 0 {
			fmt.Println("No chat history recorded.")
			return nil
		}
		for _, t := range turns {
			fmt.Printf("[%s] %s (%s, %s)\n> %s\n%s\n\n",
				t.OccurredAt.Local().Format("2006-01-02 15:04"), t.SessionID, t.Route,
				humanize.Time(t.OccurredAt), t.Input, t.Response)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(shellCmd, dbStatsCmd, exportCmd, historyCmd)

	exportCmd.Flags().StringP("out", "o", "", "Write to this file instead of stdout")
	historyCmd.Flags().String("session", "", "Only this session (default: all sessions)")
	historyCmd.Flags().IntP("limit", "n", 50, "Show at most this many turns")
}
