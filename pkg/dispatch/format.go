package dispatch

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/leadscope/leadscope/internal/utils"
	"github.com/leadscope/leadscope/pkg/lead"
	"github.com/leadscope/leadscope/pkg/manager"
	"github.com/leadscope/leadscope/pkg/scoring"
)

// maxListed caps how many rows a list answer prints.
const maxListed = 50

const helpText = `Commands:
  count leads                       how many leads there are
  how many qualified leads          also: unqualified, unscored, hot
  average score                     mean score of scored leads
  list companies                    distinct company names
  stats                             full statistics
  list [qualified|hot|...] leads    table of leads
  top N leads                       best N leads by score
  show lead N                       every attribute of lead N
  find leads TEXT                   search name, company and email
  add lead company=X budget=25k ... create and score a lead
  edit lead N key=value ...         change attributes and rescore
  delete lead N                     remove a lead
  rescore lead N | rescore all      recompute scores
  pipeline                          leads per stage and qualification rate
  list|count contacted leads        also: new, meeting scheduled, proposal sent,
                                    closed won, closed lost
  mark lead N as STAGE              move a lead through the pipeline
  log call for lead N: DETAILS      record an interaction (email, call,
                                    meeting, note, ...)
  history lead N                    interactions with lead N
  clear                             forget the conversation
  help                              this list
  exit                              leave

Anything else is answered by the AI assistant using the lead data.
Editable keys: company, contact_name, email, title, phone, source, company_size,
annual_revenue, budget, decision_maker, pain_points, timeline, tags, status, notes.
Separate list values with ';' (pain_points="manual work; data silos").`

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%s %s", humanize.Comma(int64(n)), many)
}

func formatCount(n int) string {
	switch n {
	case 0:
		return "There are no leads yet. Add one with 'add lead company=...' or run 'leadscope generate'."
	case 1:
		return "There is 1 lead."
	}
	return fmt.Sprintf("There are %s leads.", humanize.Comma(int64(n)))
}

func formatCategoryCount(filter string, n, total int, hotThreshold float64) string {
	if filter == "hot" {
		return fmt.Sprintf("%s of %d (score %.0f or higher).", plural(n, "hot lead", "hot leads"), total, hotThreshold)
	}
	return fmt.Sprintf("%s of %d %s %s.", humanize.Comma(int64(n)), total, verb(n), filter)
}

func verb(n int) string {
	if n == 1 {
		return "is"
	}
	return "are"
}

func formatAverage(st manager.Stats) string {
	if st.Scored == 0 {
		return "No scored leads yet."
	}
	return fmt.Sprintf("Average score: %.2f across %s (min %.2f, max %.2f).",
		st.AverageScore, plural(st.Scored, "scored lead", "scored leads"), st.MinScore, st.MaxScore)
}

func formatCompanies(companies []string) string {
	if len(companies) == 0 {
		return "No companies yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Companies (%d):", len(companies))
	for _, c := range companies {
		b.WriteString("\n  - ")
		b.WriteString(c)
	}
	return b.String()
}

func formatStats(st manager.Stats, c scoring.Criteria) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Total leads:\t%d\n", st.Total)
	fmt.Fprintf(w, "Qualified (>= %.0f):\t%d\n", c.QualifiedThreshold, st.ByCategory[lead.CategoryQualified])
	fmt.Fprintf(w, "Unqualified:\t%d\n", st.ByCategory[lead.CategoryUnqualified])
	fmt.Fprintf(w, "Unscored:\t%d\n", st.ByCategory[lead.CategoryUnscored])
	fmt.Fprintf(w, "Hot (>= %.0f):\t%d\n", c.HotThreshold, st.Hot)
	fmt.Fprintf(w, "Qualification rate:\t%.1f%%\n", st.QualificationRate)
	if st.Scored > 0 {
		fmt.Fprintf(w, "Average score:\t%.2f (min %.2f, max %.2f)\n", st.AverageScore, st.MinScore, st.MaxScore)
	}
	fmt.Fprintf(w, "Decision makers:\t%d\n", st.DecisionMakers)
	if st.WithBudget > 0 {
		fmt.Fprintf(w, "Average budget:\t%s (%d leads state one)\n", utils.FormatMoney(&st.AverageBudget), st.WithBudget)
	}
	w.Flush()

	if st.Scored > 0 {
		b.WriteString("Score distribution:\n")
		for _, bucket := range st.Distribution {
			fmt.Fprintf(&b, "  %-7s %3d %s\n", bucket.Label, bucket.Count, strings.Repeat("#", bucket.Count*30/max(st.Scored, 1)))
		}
	}

	if st.Total > 0 {
		b.WriteString("By stage:\n")
		for _, s := range lead.Statuses {
			fmt.Fprintf(&b, "  %-18s %d\n", statusLabel(s), st.ByStatus[s])
		}
	}

	if len(st.BySource) > 0 {
		sources := make([]string, 0, len(st.BySource))
		for s := range st.BySource {
			sources = append(sources, s)
		}
		sort.Slice(sources, func(i, j int) bool {
			if st.BySource[sources[i]] != st.BySource[sources[j]] {
				return st.BySource[sources[i]] > st.BySource[sources[j]]
			}
			return sources[i] < sources[j]
		})
		b.WriteString("By source:\n")
		for _, s := range sources {
			fmt.Fprintf(&b, "  %-15s %d\n", s, st.BySource[s])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func statusLabel(s lead.Status) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

func statusTitle(s lead.Status) string {
	label := statusLabel(s)
	return strings.ToUpper(label[:1]) + label[1:] + " leads"
}

func formatStatusCount(s lead.Status, n, total int) string {
	return fmt.Sprintf("%s of %d %s %s.", humanize.Comma(int64(n)), total, verb(n), statusLabel(s))
}

func formatPipeline(st manager.Stats) string {
	if st.Total == 0 {
		return "The pipeline is empty."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Pipeline (%s, %.1f%% qualified):\n", plural(st.Total, "lead", "leads"), st.QualificationRate)
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, s := range lead.Statuses {
		n := st.ByStatus[s]
		fmt.Fprintf(w, "  %s\t%d\t%s\n", statusLabel(s), n, strings.Repeat("#", n*30/st.Total))
	}
	w.Flush()
	fmt.Fprintf(&b, "Contacted at least once: %d", st.Contacted)
	return b.String()
}

func formatHistory(l lead.Lead, history []lead.Interaction) string {
	if len(history) == 0 {
		return fmt.Sprintf("No interactions logged for lead #%d %s.", l.ID, l.Company)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Interactions with lead #%d %s (%d):\n", l.ID, l.Company, len(history))
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, in := range history {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", in.OccurredAt.Format("2006-01-02 15:04"), strings.ReplaceAll(in.Type, "_", " "), in.Details)
	}
	w.Flush()
	if l.LastContacted != nil {
		fmt.Fprintf(&b, "Last contacted %s.", humanize.Time(*l.LastContacted))
	}
	return strings.TrimRight(b.String(), "\n")
}

func listTitle(filter string) string {
	if filter == "" {
		return "Leads"
	}
	return strings.ToUpper(filter[:1]) + filter[1:] + " leads"
}

func formatList(leads []lead.Lead, title string) string {
	if len(leads) == 0 {
		return title + ": none."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d):\n", title, len(leads))
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tCOMPANY\tCONTACT\tSCORE\tCATEGORY\tSTAGE")
	shown := leads
	if len(shown) > maxListed {
		shown = shown[:maxListed]
	}
	for _, l := range shown {
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\t%s\n", l.ID, utils.Truncate(l.Company, 32), utils.Truncate(l.ContactName, 24), utils.FormatScore(l.Score), l.Category, statusLabel(l.Status))
	}
	w.Flush()
	if len(leads) > maxListed {
		fmt.Fprintf(&b, "  ... and %d more\n", len(leads)-maxListed)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatLead(l lead.Lead, hot bool) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	heat := ""
	if hot {
		heat = " (hot)"
	}
	fmt.Fprintf(w, "Lead #%d\t%s\n", l.ID, l.Company)
	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "%s:\t%s\n", label, value)
		}
	}
	row("Contact", l.ContactName)
	row("Email", l.Email)
	row("Domain", l.Domain)
	row("Title", l.Title)
	row("Phone", l.Phone)
	row("Source", l.Source)
	if l.CompanySize != nil {
		row("Company size", humanize.Comma(int64(*l.CompanySize)))
	}
	if l.AnnualRevenue != nil {
		row("Annual revenue", utils.FormatMoney(l.AnnualRevenue))
	}
	row("Budget", utils.FormatMoney(l.Budget))
	if l.DecisionMaker != nil {
		row("Decision maker", yesNo(*l.DecisionMaker))
	}
	row("Pain points", strings.Join(l.PainPoints, "; "))
	row("Timeline", string(l.Timeline))
	row("Tags", strings.Join(l.Tags, ", "))
	row("Score", utils.FormatScore(l.Score)+heat)
	row("Category", string(l.Category))
	row("Stage", statusLabel(l.Status))
	if l.LastContacted != nil {
		row("Last contacted", humanize.Time(*l.LastContacted))
	}
	row("Notes", strings.ReplaceAll(l.Notes, "\n", " | "))
	row("Updated", humanize.Time(l.UpdatedAt))
	w.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func scoreText(l lead.Lead) string {
	return utils.FormatScore(l.Score)
}

func scoreSummary(l lead.Lead) string {
	return fmt.Sprintf("%s (%s)", scoreText(l), l.Category)
}
