package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/leadscope/leadscope/internal/utils"
	"github.com/leadscope/leadscope/pkg/lead"
	"github.com/leadscope/leadscope/pkg/manager"
	"github.com/spf13/cobra"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List, inspect and edit leads",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads, optionally filtered",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := manager.Filter{}
		if c, _ := cmd.Flags().GetString("category"); c != "" {
			cat, ok := lead.ParseCategory(c)
			if !ok {
				return fmt.Errorf("unknown category %q", c)
			}
			f.Category = cat
		}
		if v, _ := cmd.Flags().GetString("status"); v != "" {
			st, ok := lead.ParseStatus(v)
			if !ok {
				return fmt.Errorf("unknown status %q", v)
			}
			f.Status = st
		}
		if cmd.Flags().Changed("min-score") {
			v, _ := cmd.Flags().GetFloat64("min-score")
			f.MinScore = &v
		}
		f.HotOnly, _ = cmd.Flags().GetBool("hot")
		f.Company, _ = cmd.Flags().GetString("company")
		f.Source, _ = cmd.Flags().GetString("source")
		f.Tag, _ = cmd.Flags().GetString("tag")
		f.Limit, _ = cmd.Flags().GetInt("limit")
		f.SortByScore, _ = cmd.Flags().GetBool("by-score")
		search, _ := cmd.Flags().GetString("search")
		asJSON, _ := cmd.Flags().GetBool("json")

		ws, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer ws.close()

		var leads []lead.Lead
		if search != "" {
			leads = ws.mgr.Search(search)
		} else {
			leads = ws.mgr.Query(f)
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(leads)
		}
		if len(leads) == 0 {
			fmt.Println("No leads match.")
			return nil
		}
		printLeadTable(leads)
		return nil
	},
}

func printLeadTable(leads []lead.Lead) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOMPANY\tCONTACT\tSCORE\tCATEGORY\tSTATUS\tBUDGET\tTIMELINE")
	for _, l := range leads {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, utils.Truncate(l.Company, 30), utils.Truncate(l.ContactName, 24),
			utils.FormatScore(l.Score), l.Category, l.Status, utils.FormatMoney(l.Budget), l.Timeline)
	}
	w.Flush()
}

var leadsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show every attribute of a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseLeadID(args[0])
		if err != nil {
			return err
		}
		ws, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer ws.close()

		l, err := ws.mgr.Get(id)
		if err != nil {
			return err
		}
		printLead(l, ws.mgr.Engine().IsHot(l))
		return nil
	},
}

func printLead(l lead.Lead, hot bool) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	row := func(k, v string) {
		if v != "" {
			fmt.Fprintf(w, "%s:\t%s\n", k, v)
		}
	}
	row("ID", strconv.FormatInt(l.ID, 10))
	row("Company", l.Company)
	row("Contact", l.ContactName)
	row("Email", l.Email)
	row("Domain", l.Domain)
	row("Title", l.Title)
	row("Phone", l.Phone)
	row("Source", l.Source)
	if l.CompanySize != nil {
		row("Company size", strconv.Itoa(*l.CompanySize))
	}
	if l.AnnualRevenue != nil {
		row("Annual revenue", utils.FormatMoney(l.AnnualRevenue))
	}
	row("Budget", utils.FormatMoney(l.Budget))
	if l.DecisionMaker != nil {
		row("Decision maker", strconv.FormatBool(*l.DecisionMaker))
	}
	row("Pain points", strings.Join(l.PainPoints, "; "))
	row("Timeline", string(l.Timeline))
	row("Tags", strings.Join(l.Tags, ", "))
	score := utils.FormatScore(l.Score)
	if hot {
		score += " (hot)"
	}
	row("Score", score)
	row("Category", string(l.Category))
	row("Status", string(l.Status))
	if l.LastContacted != nil {
		row("Last contacted", l.LastContacted.Local().Format("2006-01-02 15:04"))
	}
	row("Notes", strings.ReplaceAll(l.Notes, "\n", " | "))
	row("Created", l.CreatedAt.Format("2006-01-02 15:04"))
	row("Updated", l.UpdatedAt.Format("2006-01-02 15:04"))
	w.Flush()
}

var leadsAddCmd = &cobra.Command{
	Use:   "add KEY=VALUE...",
	Short: "Add and score a lead",
	Example: `  leadscope leads add company="Acme Corp" email=jane@acme.com size=250 budget=40000 timeline=short`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kv, err := parseKV(args)
		if err != nil {
			return err
		}
		// validate keys and values before anything is stored
		if _, err := lead.ParseAssignments(kv); err != nil {
			return err
		}
		raw := make(lead.RawRecord, len(kv))
		for k, v := range kv {
			raw[lead.CanonicalKey(k)] = v
		}

		ctx := cmd.Context()
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.close()

		l, err := ws.mgr.Add(ctx, raw)
		if err != nil {
			return err
		}
		if err := ws.save(ctx); err != nil {
			return err
		}
		fmt.Printf("Added lead #%d %s: %s (%s)\n", l.ID, l.Company, utils.FormatScore(l.Score), l.Category)
		return nil
	},
}

var leadsEditCmd = &cobra.Command{
	Use:   "edit ID KEY=VALUE...",
	Short: "Change attributes of a lead and rescore it",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseLeadID(args[0])
		if err != nil {
			return err
		}
		kv, err := parseKV(args[1:])
		if err != nil {
			return err
		}
		p, err := lead.ParseAssignments(kv)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.close()

		l, err := ws.mgr.Update(ctx, id, p)
		if err != nil {
			return err
		}
		if err := ws.save(ctx); err != nil {
			return err
		}
		fmt.Printf("Updated lead #%d %s: %s (%s)\n", l.ID, l.Company, utils.FormatScore(l.Score), l.Category)
		return nil
	},
}

var leadsDeleteCmd = &cobra.Command{
	Use:   "delete ID...",
	Short: "Delete leads permanently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.close()

		for _, a := range args {
			id, err := parseLeadID(a)
			if err != nil {
				return err
			}
			if err := ws.mgr.Delete(id); err != nil {
				return err
			}
			fmt.Printf("Deleted lead #%d\n", id)
		}
		return ws.save(ctx)
	},
}

var leadsRescoreCmd = &cobra.Command{
	Use:   "rescore [ID]",
	Short: "Rescore one lead, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.close()

		if len(args) == 1 {
			id, err := parseLeadID(args[0])
			if err != nil {
				return err
			}
			l, err := ws.mgr.Rescore(ctx, id)
			if err != nil {
				return err
			}
			fmt.Printf("Lead #%d %s: %s (%s)\n", l.ID, l.Company, utils.FormatScore(l.Score), l.Category)
		} else {
			n, err := ws.mgr.RescoreAll(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Rescored %d leads.\n", n)
		}
		return ws.save(ctx)
	},
}

var leadsLogCmd = &cobra.Command{
	Use:   "log ID TYPE [DETAILS...]",
	Short: "Record an interaction with a lead",
	Long: `Record an interaction with a lead. Types email, call and meeting count as
contact and update the lead's last-contacted time; any other type, such as
note, is kept in the history only.`,
	Example: `  leadscope leads log 12 call "Intro call, wants a demo next week"`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseLeadID(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.close()

		in, err := ws.mgr.LogInteraction(ctx, id, args[1], strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		if err := ws.save(ctx); err != nil {
			return err
		}
		fmt.Printf("Logged %s for lead #%d\n", in.Type, id)
		return nil
	},
}

var leadsHistoryCmd = &cobra.Command{
	Use:   "history ID",
	Short: "Show the interactions logged for a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseLeadID(args[0])
		if err != nil {
			return err
		}
		ws, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer ws.close()

		history, err := ws.mgr.Interactions(id)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(history)
		}
		if len(history) == 0 {
			fmt.Printf("No interactions logged for lead #%d.\n", id)
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tTYPE\tDETAILS")
		for _, in := range history {
			fmt.Fprintf(w, "%s\t%s\t%s\n", in.OccurredAt.Local().Format("2006-01-02 15:04"), in.Type, in.Details)
		}
		return w.Flush()
	},
}

func parseLeadID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid lead id %q", s)
	}
	return id, nil
}

// parseKV reads shell arguments of the form key=value. The shell has already
// removed any quoting.
func parseKV(args []string) (map[string]string, error) {
	kv := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", a)
		}
		if _, dup := kv[k]; dup {
			return nil, fmt.Errorf("%s given twice", k)
		}
		kv[k] = v
	}
	return kv, nil
}

func init() {
	rootCmd.AddCommand(leadsCmd)
	leadsCmd.AddCommand(leadsListCmd, leadsShowCmd, leadsAddCmd, leadsEditCmd, leadsDeleteCmd, leadsRescoreCmd, leadsLogCmd, leadsHistoryCmd)

	leadsListCmd.Flags().StringP("category", "c", "", "Only leads in this category (qualified, unqualified, unscored)")
	leadsListCmd.Flags().String("status", "", "Only leads at this pipeline stage (new, contacted, meeting_scheduled, ...)")
	leadsListCmd.Flags().Float64("min-score", 0, "Only leads scoring at least this much")
	leadsListCmd.Flags().Bool("hot", false, "Only hot leads")
	leadsListCmd.Flags().String("company", "", "Only leads of this company")
	leadsListCmd.Flags().String("source", "", "Only leads from this source")
	leadsListCmd.Flags().String("tag", "", "Only leads carrying this tag")
	leadsListCmd.Flags().StringP("search", "s", "", "Free-text search over company, contact and email")
	leadsListCmd.Flags().IntP("limit", "n", 0, "Show at most this many leads (0 = all)")
	leadsListCmd.Flags().Bool("by-score", true, "Sort by score, highest first")
	leadsListCmd.Flags().Bool("json", false, "Print JSON instead of a table")
}

func init() {
	leadsHistoryCmd.Flags().Bool("json", false, "Print JSON instead of a table")
}
