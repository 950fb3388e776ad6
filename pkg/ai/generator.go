package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/leadscope/leadscope/internal/utils"
	"github.com/leadscope/leadscope/pkg/lead"
	"github.com/tidwall/gjson"
)

// Lead mixes the generator can be asked for.
var Qualities = map[string]string{
	"high":    "Focus on enterprise leads with larger budgets (50K+) and senior decision makers.",
	"medium":  "Mix of mid-market companies with moderate budgets (10K-50K).",
	"mixed":   "Diverse mix of company sizes from startups to enterprise.",
	"startup": "Focus on smaller, growing companies with limited budgets but immediate needs.",
}

const MaxGenerateCount = 100

// Generator asks a model for synthetic lead records.
type Generator struct {
	c completer
}

func NewGenerator(ctx context.Context, cfg Config) (*Generator, error) {
	c, err := newCompleter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Generator{c: c}, nil
}

// Generate returns a JSON document with count raw lead records, ready for
// manager.IngestJSON.
func (g *Generator) Generate(ctx context.Context, count int, quality string) ([]byte, error) {
	if count < 1 || count > MaxGenerateCount {
		return nil, fmt.Errorf("count must be between 1 and %d", MaxGenerateCount)
	}
	if quality == "" {
		quality = "mixed"
	}
	mix, ok := Qualities[quality]
	if !ok {
		return nil, fmt.Errorf("unknown lead quality %q (use high, medium, mixed or startup)", quality)
	}

	msgs := []message{
		{Role: "system", Content: "You are an expert at generating realistic B2B sales lead data. Always respond with valid JSON only, no additional text."},
		{Role: "user", Content: fmt.Sprintf("Generate %d realistic B2B sales leads for a SaaS company demo. %s\n\n%s", count, mix, fmt.Sprintf(schemaPrompt, count))},
	}

	utils.Log.Debugf("[ai] requesting %d %s leads", count, quality)
	content, err := g.c.complete(ctx, msgs, true)
	if err != nil {
		return nil, err
	}
	return ExtractLeadsJSON(content)
}

// ExtractLeadsJSON pulls the lead document out of a model reply, tolerating
// markdown code fences and prose around the JSON.
func ExtractLeadsJSON(content string) ([]byte, error) {
	s := stripFences(content)
	if isLeadDocument(s) {
		return []byte(s), nil
	}

	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start, end := strings.Index(s, pair[0]), strings.LastIndex(s, pair[1])
		if start >= 0 && end > start {
			if candidate := s[start : end+1]; isLeadDocument(candidate) {
				return []byte(candidate), nil
			}
		}
	}
	return nil, &lead.StructuralIngestError{Reason: "model reply holds no lead array"}
}

func isLeadDocument(s string) bool {
	if !gjson.Valid(s) {
		return false
	}
	root := gjson.Parse(s)
	return root.IsArray() || (root.IsObject() && root.Get("leads").IsArray())
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

const schemaPrompt = `Return a JSON object {"leads": [...]} holding exactly %d leads. Each lead has:

  "first_name": realistic first name
  "last_name": realistic last name
  "email": professional address, first.last@company.com
  "company": realistic company name (tech, manufacturing, retail, healthcare, finance, consulting)
  "phone": US format +1-555-XXX-XXXX (about 70%% of leads have one)
  "title": professional title such as CTO, VP Sales, Director Marketing
  "lead_source": one of website|linkedin|email_campaign|referral|cold_outreach|trade_show|webinar|other
  "company_size": integer employees, 10-5000
  "annual_revenue": integer dollars, 100K-500M
  "budget": integer dollars, 10K-1M, consistent with company size
  "decision_maker": true for C-level, VPs and Directors; false for managers and below
  "pain_points": 1-4 strings such as "manual processes", "data silos", "scaling challenges", "cost optimization"
  "timeline": one of immediate|3_months|6_months|next_year
  "notes": 2-3 sentences of context
  "tags": 1-3 strings such as "enterprise", "startup", "tech"

Keep the data internally consistent, vary lead quality, and never repeat an email.`
