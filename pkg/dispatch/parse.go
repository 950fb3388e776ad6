package dispatch

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/leadscope/leadscope/pkg/lead"
)

type intent int

const (
	intentFreeForm intent = iota
	intentExit
	intentHelp
	intentClear
	intentCount
	intentCountCategory
	intentAverage
	intentCompanies
	intentStats
	intentList
	intentTop
	intentShow
	intentFind
	intentAdd
	intentEdit
	intentDelete
	intentRescore
	intentRescoreAll
	intentPipeline
	intentCountStatus
	intentListStatus
	intentSetStatus
	intentLog
	intentHistory
)

// command is a classified input line.
type command struct {
	intent intent
	filter string // qualified | unqualified | unscored | hot | ""
	n      int
	id     int64
	text   string
	kind   string // interaction type
	status lead.Status
	args   map[string]string
	err    error // malformed arguments to a recognized command
}

const defaultTopN = 5

var (
	reExit          = regexp.MustCompile(`^(exit|quit|bye|goodbye)$`)
	reHelp          = regexp.MustCompile(`^(help|commands|\?)$`)
	reClear         = regexp.MustCompile(`^clear( history)?$`)
	reCount         = regexp.MustCompile(`^(count( all)? leads|how many leads( are there| do (i|we) have)?|total leads|number of leads)$`)
	reCountCategory = regexp.MustCompile(`^(?:(?:how many|count|number of) )?(qualified|unqualified|unscored|hot) leads(?: are there| do (?:i|we) have)?$`)
	reAverage       = regexp.MustCompile(`^(?:what is the |what's the |show )?(?:average|avg|mean) (?:lead )?score$`)
	reCompanies     = regexp.MustCompile(`^(?:(?:list|show)(?: all)? )?companies$`)
	reStats         = regexp.MustCompile(`^(?:show )?(stats|statistics|summary)$`)
	reList          = regexp.MustCompile(`^(?:list|show)(?: all)?(?: (qualified|unqualified|unscored|hot))? leads$`)
	reTop           = regexp.MustCompile(`^(?:show )?(?:top|best)(?: (\d+))?(?: leads)?$`)
	reShow          = regexp.MustCompile(`^(?:show|get|view) lead #?(\d+)$`)
	reFind          = regexp.MustCompile(`^(?:find|search)(?: leads?)?(?: for)? (.+)$`)
	reAdd           = regexp.MustCompile(`(?i)^add lead\b\s*(.*)$`)
	reEdit          = regexp.MustCompile(`(?i)^(?:edit|update) lead #?(\d+)\b\s*(.*)$`)
	reDelete        = regexp.MustCompile(`^(?:delete|remove) lead #?(\d+)$`)
	reRescore       = regexp.MustCompile(`^rescore lead #?(\d+)$`)
	reRescoreAll    = regexp.MustCompile(`^rescore( all)?( leads)?$`)
	rePipeline      = regexp.MustCompile(`^(?:show )?(?:(?:the )?pipeline(?: summary)?|status breakdown)$`)
	reCountStatus   = regexp.MustCompile(`^(?:(?:how many|count|number of) )?` + statusPattern + ` leads(?: are there| do (?:i|we) have)?$`)
	reListStatus    = regexp.MustCompile(`^(?:list|show)(?: all)? ` + statusPattern + ` leads$`)
	reSetStatus     = regexp.MustCompile(`^(?:mark|move|set) lead #?(\d+)(?: status| stage)? (?:as|to) (.+)$`)
	reLog           = regexp.MustCompile(`(?i)^log (?:an? )?([a-z][a-z _-]*?) (?:for|with|on) lead #?(\d+)\b[\s:-]*(.*)$`)
	reHistory       = regexp.MustCompile(`^(?:show )?(?:interaction )?(?:history|interactions|log)(?: for| of| with)? lead #?(\d+)$`)

	reSpaces = regexp.MustCompile(`\s+`)
)

// statusPattern matches a pipeline stage as typed, "closed won" or
// "closed_won".
const statusPattern = `(new|contacted|meeting[ _-]scheduled|proposal[ _-]sent|closed[ _-]won|closed[ _-]lost)`

// normalize lowercases, collapses whitespace and drops trailing punctuation.
func normalize(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = reSpaces.ReplaceAllString(s, " ")
	if s == "?" {
		return s
	}
	return strings.TrimRight(s, "?.! ")
}

// parse classifies one input line. Anything unrecognized is free-form.
func parse(input string) command {
	raw := strings.TrimSpace(input)
	s := normalize(raw)

	switch {
	case reExit.MatchString(s):
		return command{intent: intentExit}
	case reHelp.MatchString(s):
		return command{intent: intentHelp}
	case reClear.MatchString(s):
		return command{intent: intentClear}
	case reCount.MatchString(s):
		return command{intent: intentCount}
	case reAverage.MatchString(s):
		return command{intent: intentAverage}
	case reCompanies.MatchString(s):
		return command{intent: intentCompanies}
	case reStats.MatchString(s):
		return command{intent: intentStats}
	case reRescoreAll.MatchString(s):
		return command{intent: intentRescoreAll}
	}

	if m := reCountCategory.FindStringSubmatch(s); m != nil {
		return command{intent: intentCountCategory, filter: m[1]}
	}
	if m := reList.FindStringSubmatch(s); m != nil {
		return command{intent: intentList, filter: m[1]}
	}
	if m := reTop.FindStringSubmatch(s); m != nil {
		n := defaultTopN
		if m[1] != "" {
			n, _ = strconv.Atoi(m[1])
		}
		return command{intent: intentTop, n: n}
	}
	if m := reShow.FindStringSubmatch(s); m != nil {
		return command{intent: intentShow, id: parseID(m[1])}
	}
	if m := reDelete.FindStringSubmatch(s); m != nil {
		return command{intent: intentDelete, id: parseID(m[1])}
	}
	if m := reRescore.FindStringSubmatch(s); m != nil {
		return command{intent: intentRescore, id: parseID(m[1])}
	}
	if rePipeline.MatchString(s) {
		return command{intent: intentPipeline}
	}
	if m := reCountStatus.FindStringSubmatch(s); m != nil {
		st, _ := lead.ParseStatus(m[1])
		return command{intent: intentCountStatus, status: st}
	}
	if m := reListStatus.FindStringSubmatch(s); m != nil {
		st, _ := lead.ParseStatus(m[1])
		return command{intent: intentListStatus, status: st}
	}
	if m := reSetStatus.FindStringSubmatch(s); m != nil {
		cmd := command{intent: intentSetStatus, id: parseID(m[1])}
		st, ok := lead.ParseStatus(m[2])
		if !ok {
			cmd.err = fmt.Errorf("unknown stage %q; use new, contacted, meeting scheduled, proposal sent, closed won or closed lost", m[2])
		}
		cmd.status = st
		return cmd
	}
	if m := reHistory.FindStringSubmatch(s); m != nil {
		return command{intent: intentHistory, id: parseID(m[1])}
	}
	if m := reLog.FindStringSubmatch(raw); m != nil {
		return command{intent: intentLog, kind: m[1], id: parseID(m[2]), text: strings.TrimSpace(m[3])}
	}
	// add/edit keep the original casing of values
	if m := reAdd.FindStringSubmatch(raw); m != nil {
		args, err := parseAssignments(m[1])
		return command{intent: intentAdd, args: args, err: err}
	}
	if m := reEdit.FindStringSubmatch(raw); m != nil {
		args, err := parseAssignments(m[2])
		return command{intent: intentEdit, id: parseID(m[1]), args: args, err: err}
	}
	if m := reFind.FindStringSubmatch(s); m != nil {
		return command{intent: intentFind, text: strings.Trim(m[1], `"'`)}
	}
	return command{intent: intentFreeForm, text: raw}
}

func parseID(s string) int64 {
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}

var errNoPairs = errors.New("expected key=value pairs, e.g. company=\"Acme Corp\" budget=25000")

// parseAssignments reads `company="Acme Corp" contact_name=Jo Bloggs budget=25k`.
// A quoted value may hold anything except its closing quote, '=' and spaces
// included. A bare value runs over words until the next word that starts a
// key=.
func parseAssignments(s string) (map[string]string, error) {
	src := []rune(strings.TrimSpace(s))
	i := 0
	if len(src) == 0 {
		return nil, errNoPairs
	}
	if _, _, ok := keyAt(src, 0); !ok {
		for j := nextWord(src, 0); j < len(src); j = nextWord(src, j) {
			if _, _, ok := keyAt(src, j); ok {
				return nil, fmt.Errorf("unexpected text %q before the first key=value pair", strings.TrimSpace(string(src[:j])))
			}
		}
		return nil, errNoPairs
	}

	out := make(map[string]string)
	for i < len(src) {
		key, afterEq, _ := keyAt(src, i)
		j := skipSpaces(src, afterEq)

		var val string
		if j < len(src) && (src[j] == '"' || src[j] == '\'') {
			end := indexRune(src, j+1, src[j])
			if end < 0 {
				return nil, fmt.Errorf("unterminated quote in the %s value", key)
			}
			val = string(src[j+1 : end])
			i = skipSpaces(src, end+1)
			if i < len(src) {
				if _, _, ok := keyAt(src, i); !ok {
					return nil, fmt.Errorf("unexpected text after the quoted %s value", key)
				}
			}
		} else {
			// a word glued to '=' always belongs to the value
			k := j
			if k == afterEq && k < len(src) {
				k = nextWord(src, k)
			}
			for k < len(src) {
				if _, _, ok := keyAt(src, k); ok {
					break
				}
				k = nextWord(src, k)
			}
			val = strings.TrimSpace(string(src[j:k]))
			i = k
		}

		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("%s given twice", key)
		}
		out[key] = val
	}
	return out, nil
}

// keyAt reads `ident\s*=` starting at i and returns the lowercased key and
// the position after '='.
func keyAt(src []rune, i int) (string, int, bool) {
	j := i
	for j < len(src) && isKeyRune(src[j], j == i) {
		j++
	}
	if j == i {
		return "", 0, false
	}
	k := skipSpaces(src, j)
	if k >= len(src) || src[k] != '=' {
		return "", 0, false
	}
	return strings.ToLower(string(src[i:j])), k + 1, true
}

func isKeyRune(r rune, first bool) bool {
	switch {
	case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case first:
		return false
	}
	return r == '-' || r >= '0' && r <= '9'
}

// nextWord returns the start of the word after the one at i.
func nextWord(src []rune, i int) int {
	for i < len(src) && !unicode.IsSpace(src[i]) {
		i++
	}
	return skipSpaces(src, i)
}

func skipSpaces(src []rune, i int) int {
	for i < len(src) && unicode.IsSpace(src[i]) {
		i++
	}
	return i
}

func indexRune(src []rune, from int, r rune) int {
	for i := from; i < len(src); i++ {
		if src[i] == r {
			return i
		}
	}
	return -1
}
