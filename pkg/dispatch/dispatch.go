package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leadscope/leadscope/pkg/conversation"
	"github.com/leadscope/leadscope/pkg/lead"
	"github.com/leadscope/leadscope/pkg/manager"
)

const (
	DefaultTimeout       = 60 * time.Second
	DefaultSnapshotLimit = 200
)

// Config wires a Dispatcher. Manager is required.
type Config struct {
	Manager       *manager.Manager
	Backend       conversation.Backend // nil = free-form questions are declined
	Timeout       time.Duration        // bound on one backend call
	SnapshotLimit int                  // max leads handed to the backend
	Log           manager.Logger

	// OnTurn is called after a turn is appended, e.g. to persist transcripts.
	OnTurn func(s *conversation.Session, t conversation.Turn)
}

// Reply is the outcome of one turn.
type Reply struct {
	Text  string
	Route conversation.Route

	Exit     bool  // the session should end
	Reset    bool  // the caller should start a fresh session
	Ignored  bool  // empty input, nothing happened
	Degraded bool  // the backend failed; Err holds why
	Err      error // backend failure, if any
}

// Dispatcher routes each input line to a local command or the backend.
// Structured commands are answered exactly from the collection and never
// reach the backend.
type Dispatcher struct {
	mgr           *manager.Manager
	backend       conversation.Backend
	timeout       time.Duration
	snapshotLimit int
	log           manager.Logger
	onTurn        func(*conversation.Session, conversation.Turn)
}

func New(cfg Config) (*Dispatcher, error) {
	if cfg.Manager == nil {
		return nil, errors.New("dispatcher requires a lead manager")
	}
	d := &Dispatcher{
		mgr:           cfg.Manager,
		backend:       cfg.Backend,
		timeout:       cfg.Timeout,
		snapshotLimit: cfg.SnapshotLimit,
		log:           cfg.Log,
		onTurn:        cfg.OnTurn,
	}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	if d.snapshotLimit <= 0 {
		d.snapshotLimit = DefaultSnapshotLimit
	}
	if d.log == nil {
		d.log = nopLogger{}
	}
	return d, nil
}

// Handle processes one line of input within session s. It never fails: errors
// become user-visible text.
func (d *Dispatcher) Handle(ctx context.Context, s *conversation.Session, input string) Reply {
	if strings.TrimSpace(input) == "" {
		return Reply{Ignored: true}
	}

	cmd := parse(input)
	if cmd.intent == intentFreeForm {
		return d.ask(ctx, s, cmd.text)
	}

	reply := Reply{Route: conversation.RouteLocal}
	switch cmd.intent {
	case intentExit:
		reply.Text = "Goodbye!"
		reply.Exit = true
	case intentClear:
		reply.Text = "Conversation history cleared."
		reply.Reset = true
	default:
		reply.Text = d.local(ctx, cmd)
	}
	d.record(s, input, reply.Route, reply.Text)
	return reply
}

func (d *Dispatcher) local(ctx context.Context, cmd command) string {
	if cmd.err != nil {
		return "Could not read that command: " + cmd.err.Error()
	}

	switch cmd.intent {
	case intentHelp:
		return helpText
	case intentCount:
		return formatCount(d.mgr.Len())
	case intentCountCategory:
		return formatCategoryCount(cmd.filter, d.mgr.Count(filterFor(cmd.filter)), d.mgr.Len(), d.mgr.Engine().Criteria().HotThreshold)
	case intentAverage:
		return formatAverage(d.mgr.Statistics())
	case intentCompanies:
		return formatCompanies(d.mgr.Companies())
	case intentStats:
		return formatStats(d.mgr.Statistics(), d.mgr.Engine().Criteria())
	case intentList:
		f := filterFor(cmd.filter)
		return formatList(d.mgr.Query(f), listTitle(cmd.filter))
	case intentTop:
		if cmd.n <= 0 {
			return "Top how many? Try 'top 5 leads'."
		}
		top := d.mgr.Query(manager.Filter{SortByScore: true, Limit: cmd.n})
		return formatList(top, fmt.Sprintf("Top %d leads", cmd.n))
	case intentShow:
		l, err := d.mgr.Get(cmd.id)
		if err != nil {
			return d.describeError(err)
		}
		return formatLead(l, d.mgr.Engine().IsHot(l))
	case intentFind:
		return formatList(d.mgr.Search(cmd.text), fmt.Sprintf("Leads matching %q", cmd.text))
	case intentAdd:
		return d.add(ctx, cmd.args)
	case intentEdit:
		return d.edit(ctx, cmd.id, cmd.args)
	case intentDelete:
		l, err := d.mgr.Get(cmd.id)
		if err == nil {
			err = d.mgr.Delete(cmd.id)
		}
		if err != nil {
			return d.describeError(err)
		}
		return fmt.Sprintf("Deleted lead #%d (%s).", l.ID, l.Company)
	case intentRescore:
		l, err := d.mgr.Rescore(ctx, cmd.id)
		if err != nil {
			return d.describeError(err)
		}
		return fmt.Sprintf("Lead #%d rescored: %s.", l.ID, scoreSummary(l))
	case intentRescoreAll:
		n, err := d.mgr.RescoreAll(ctx)
		if err != nil {
			return d.describeError(err)
		}
		return fmt.Sprintf("Rescored %d leads.", n)
	case intentPipeline:
		return formatPipeline(d.mgr.Statistics())
	case intentCountStatus:
		return formatStatusCount(cmd.status, d.mgr.Count(manager.Filter{Status: cmd.status}), d.mgr.Len())
	case intentListStatus:
		return formatList(d.mgr.Query(manager.Filter{Status: cmd.status}), statusTitle(cmd.status))
	case intentSetStatus:
		return d.setStatus(ctx, cmd.id, cmd.status)
	case intentLog:
		return d.logInteraction(ctx, cmd.id, cmd.kind, cmd.text)
	case intentHistory:
		l, err := d.mgr.Get(cmd.id)
		if err != nil {
			return d.describeError(err)
		}
		history, err := d.mgr.Interactions(cmd.id)
		if err != nil {
			return d.describeError(err)
		}
		return formatHistory(l, history)
	}
	return helpText
}

func (d *Dispatcher) setStatus(ctx context.Context, id int64, st lead.Status) string {
	before, err := d.mgr.Get(id)
	if err != nil {
		return d.describeError(err)
	}
	if before.Status == st {
		return fmt.Sprintf("Lead #%d %s is already %s.", id, before.Company, statusLabel(st))
	}
	after, err := d.mgr.Update(ctx, id, lead.Patch{Status: &st})
	if err != nil {
		return d.describeError(err)
	}
	return fmt.Sprintf("Lead #%d %s moved from %s to %s.", id, after.Company, statusLabel(before.Status), statusLabel(after.Status))
}

func (d *Dispatcher) logInteraction(ctx context.Context, id int64, kind, details string) string {
	in, err := d.mgr.LogInteraction(ctx, id, kind, details)
	if err != nil {
		return d.describeError(err)
	}
	l, err := d.mgr.Get(id)
	if err != nil {
		return d.describeError(err)
	}
	text := fmt.Sprintf("Logged %s for lead #%d %s.", strings.ReplaceAll(in.Type, "_", " "), l.ID, l.Company)
	if lead.IsContact(in.Type) {
		text += " Last contacted updated."
	}
	return text
}

func (d *Dispatcher) add(ctx context.Context, args map[string]string) string {
	// reject unknown keys and unreadable values up front rather than
	// silently scoring them at the minimum
	if _, err := lead.ParseAssignments(args); err != nil {
		return d.describeError(err)
	}
	raw := make(lead.RawRecord, len(args))
	for k, v := range args {
		raw[lead.CanonicalKey(k)] = v
	}
	l, err := d.mgr.Add(ctx, raw)
	if err != nil {
		return d.describeError(err)
	}
	return fmt.Sprintf("Added lead #%d %s: %s.", l.ID, l.Company, scoreSummary(l))
}

func (d *Dispatcher) edit(ctx context.Context, id int64, args map[string]string) string {
	p, err := lead.ParseAssignments(args)
	if err != nil {
		return d.describeError(err)
	}
	before, err := d.mgr.Get(id)
	if err != nil {
		return d.describeError(err)
	}
	after, err := d.mgr.Update(ctx, id, p)
	if err != nil {
		return d.describeError(err)
	}
	return fmt.Sprintf("Updated lead #%d %s: score %s -> %s.", id, after.Company, scoreText(before), scoreSummary(after))
}

var errNoBackend = errors.New("no AI assistant is configured")

// ask forwards a free-form question to the backend.
func (d *Dispatcher) ask(ctx context.Context, s *conversation.Session, query string) Reply {
	if d.backend == nil {
		// unanswered, so nothing is added to the history
		return Reply{
			Route:    conversation.RouteBackend,
			Text:     "No AI assistant is configured, so only structured commands are available. Type 'help' to see them.",
			Degraded: true,
			Err:      &conversation.BackendUnavailableError{Err: errNoBackend},
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	snap := d.mgr.Snapshot(d.snapshotLimit)
	text, err := d.backend.Respond(callCtx, snap, s.Turns(), query)
	if err == nil && strings.TrimSpace(text) == "" {
		err = &conversation.BackendUnavailableError{Err: errors.New("empty answer")}
	}
	if err != nil {
		var timeout *conversation.BackendTimeoutError
		if !errors.As(err, &timeout) && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = &conversation.BackendTimeoutError{After: d.timeout}
		}
		d.log.Warnf("Backend failed for session %s: %v", s.ID, err)
		// a failed call leaves the history untouched
		return Reply{
			Route:    conversation.RouteBackend,
			Text:     degradedText(err),
			Degraded: true,
			Err:      err,
		}
	}

	// the history keeps the answer as received; only the display is trimmed
	d.record(s, query, conversation.RouteBackend, text)
	return Reply{Route: conversation.RouteBackend, Text: strings.TrimSpace(text)}
}

func (d *Dispatcher) record(s *conversation.Session, input string, route conversation.Route, response string) {
	t := conversation.Turn{
		Input:      strings.TrimSpace(input),
		Response:   response,
		Route:      route,
		OccurredAt: time.Now(),
	}
	s.Append(t)
	if d.onTurn != nil {
		d.onTurn(s, t)
	}
}

func (d *Dispatcher) describeError(err error) string {
	var (
		nf   *lead.NotFoundError
		verr *lead.ValidationError
		dup  *lead.DuplicateKeyError
	)
	switch {
	case errors.As(err, &nf):
		return fmt.Sprintf("No lead with id %d.", nf.ID)
	case errors.As(err, &verr):
		return fmt.Sprintf("Invalid %s: %s.", strings.ReplaceAll(verr.Field, "_", " "), verr.Message)
	case errors.As(err, &dup):
		return fmt.Sprintf("A lead with %s %s already exists.", dup.Key, dup.Value)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Cancelled."
	}
	d.log.Errorf("Command failed: %v", err)
	return "Something went wrong: " + err.Error()
}

func degradedText(err error) string {
	const fallback = "Structured commands still work; type 'help' to see them."
	var timeout *conversation.BackendTimeoutError
	if errors.As(err, &timeout) {
		return fmt.Sprintf("The assistant did not answer within %s. %s", timeout.After, fallback)
	}
	if errors.Is(err, context.Canceled) {
		return "The question was cancelled. " + fallback
	}
	return "The assistant is unavailable right now. " + fallback
}

func filterFor(name string) manager.Filter {
	if name == "hot" {
		return manager.Filter{HotOnly: true}
	}
	if c, ok := lead.ParseCategory(name); ok {
		return manager.Filter{Category: c}
	}
	return manager.Filter{}
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}
