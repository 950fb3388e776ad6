package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/leadscope/leadscope/pkg/lead"
	_ "modernc.org/sqlite"
)

// DefaultDBTimeout bounds how long a writer waits on a locked database.
const DefaultDBTimeout = 5 * time.Second

type DB struct {
	sql *sql.DB
}

// Open opens (creating if needed) the SQLite file at path.
func Open(path string, busyTimeout time.Duration) (*DB, error) {
	if busyTimeout <= 0 {
		busyTimeout = DefaultDBTimeout
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS leads (
  id              INTEGER PRIMARY KEY,
  position        INTEGER NOT NULL,
  company         TEXT NOT NULL,
  contact_name    TEXT,
  email           TEXT,
  title           TEXT,
  phone           TEXT,
  source          TEXT,
  company_size    INTEGER,
  annual_revenue  REAL,
  budget          REAL,
  decision_maker  INTEGER CHECK (decision_maker IN (0,1)),
  pain_points     TEXT NOT NULL DEFAULT '[]',
  timeline        TEXT NOT NULL DEFAULT 'unknown',
  tags            TEXT NOT NULL DEFAULT '[]',
  score           REAL,
  category        TEXT NOT NULL DEFAULT 'unscored',
  notes           TEXT,
  domain          TEXT,
  status          TEXT NOT NULL DEFAULT 'new',
  last_contacted  TEXT,
  created_at      TEXT NOT NULL,
  updated_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_leads_position ON leads(position);
CREATE INDEX IF NOT EXISTS idx_leads_category ON leads(category);
CREATE TABLE IF NOT EXISTS turns (
  id           INTEGER PRIMARY KEY,
  session_id   TEXT NOT NULL,
  input        TEXT NOT NULL,
  response     TEXT NOT NULL,
  route        TEXT NOT NULL CHECK (route IN ('local','backend')),
  occurred_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, id);
CREATE TABLE IF NOT EXISTS interactions (
  id           TEXT PRIMARY KEY,
  lead_id      INTEGER NOT NULL,
  type         TEXT NOT NULL,
  details      TEXT,
  occurred_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_lead ON interactions(lead_id);
    `); err != nil {
		return nil, err
	}
	if err := addMissingColumns(db, "leads", []column{
		{"status", "TEXT NOT NULL DEFAULT 'new'"},
		{"last_contacted", "TEXT"},
	}); err != nil {
		return nil, fmt.Errorf("migrating leads table: %w", err)
	}
	return &DB{sql: db}, nil
}

type column struct {
	name string
	decl string
}

// addMissingColumns brings databases created by older builds up to date.
func addMissingColumns(db *sql.DB, table string, cols []column) error {
	rows, err := db.Query(`PRAGMA table_info(` + table + `)`)
	if err != nil {
		return err
	}
	have := make(map[string]bool)
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return err
		}
		have[name] = true
	}
	if err := rows.Close(); err != nil {
		return err
	}
	for _, c := range cols {
		if have[c.name] {
			continue
		}
		if _, err := db.Exec(`ALTER TABLE ` + table + ` ADD COLUMN ` + c.name + ` ` + c.decl); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// SaveLeads replaces the stored collection with leads, keeping their order,
// together with their interaction logs. Interactions of leads not in the
// collection are dropped.
func (d *DB) SaveLeads(ctx context.Context, leads []lead.Lead, interactions []lead.Interaction) (err error) {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM leads`); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM interactions`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO leads(id, position, company, contact_name, email, title, phone, source, company_size, annual_revenue, budget, decision_maker, pain_points, timeline, tags, score, category, notes, domain, status, last_contacted, created_at, updated_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	saved := make(map[int64]bool, len(leads))
	for i, l := range leads {
		saved[l.ID] = true
		var painPoints, tags []byte
		if painPoints, err = encodeList(l.PainPoints); err != nil {
			return err
		}
		if tags, err = encodeList(l.Tags); err != nil {
			return err
		}
		if _, err = stmt.ExecContext(ctx,
			l.ID, i, l.Company,
			nullIfEmpty(l.ContactName), nullIfEmpty(l.Email), nullIfEmpty(l.Title), nullIfEmpty(l.Phone), nullIfEmpty(l.Source),
			nullInt(l.CompanySize), nullFloat(l.AnnualRevenue), nullFloat(l.Budget), nullBool(l.DecisionMaker),
			string(painPoints), string(l.Timeline), string(tags),
			nullFloat(l.Score), string(l.Category), nullIfEmpty(l.Notes), nullIfEmpty(l.Domain),
			string(statusOrNew(l.Status)), nullTime(l.LastContacted),
			formatTime(l.CreatedAt), formatTime(l.UpdatedAt),
		); err != nil {
			return fmt.Errorf("saving lead %d: %w", l.ID, err)
		}
	}

	istmt, err := tx.PrepareContext(ctx, `INSERT INTO interactions(id, lead_id, type, details, occurred_at) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer istmt.Close()

	for _, in := range interactions {
		if !saved[in.LeadID] {
			continue
		}
		if _, err = istmt.ExecContext(ctx, in.ID, in.LeadID, in.Type, nullIfEmpty(in.Details), formatTime(in.OccurredAt)); err != nil {
			return fmt.Errorf("saving interaction %s: %w", in.ID, err)
		}
	}

	err = tx.Commit()
	return err
}

// LoadLeads returns the stored collection in saved order.
func (d *DB) LoadLeads(ctx context.Context) ([]lead.Lead, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT id, company, contact_name, email, title, phone, source, company_size, annual_revenue, budget, decision_maker, pain_points, timeline, tags, score, category, notes, domain, status, last_contacted, created_at, updated_at FROM leads ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []lead.Lead
	for rows.Next() {
		var (
			l                                    lead.Lead
			contact, email, title, phone, source sql.NullString
			notes, domain, lastContacted         sql.NullString
			size, decisionMaker                  sql.NullInt64
			revenue, budget, score               sql.NullFloat64
			painPoints, timeline, tags, category string
			status                               string
			createdAt, updatedAt                 string
		)
		if err := rows.Scan(&l.ID, &l.Company, &contact, &email, &title, &phone, &source, &size, &revenue, &budget, &decisionMaker, &painPoints, &timeline, &tags, &score, &category, &notes, &domain, &status, &lastContacted, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		l.ContactName = contact.String
		l.Email = email.String
		l.Title = title.String
		l.Phone = phone.String
		l.Source = source.String
		l.Notes = notes.String
		l.Domain = domain.String
		if size.Valid {
			n := int(size.Int64)
			l.CompanySize = &n
		}
		if decisionMaker.Valid {
			b := decisionMaker.Int64 == 1
			l.DecisionMaker = &b
		}
		if revenue.Valid {
			l.AnnualRevenue = &revenue.Float64
		}
		if budget.Valid {
			l.Budget = &budget.Float64
		}
		if score.Valid {
			l.Score = &score.Float64
		}
		if l.PainPoints, err = decodeList(painPoints); err != nil {
			return nil, fmt.Errorf("lead %d pain_points: %w", l.ID, err)
		}
		if l.Tags, err = decodeList(tags); err != nil {
			return nil, fmt.Errorf("lead %d tags: %w", l.ID, err)
		}
		l.Timeline = lead.Timeline(timeline)
		l.Category = lead.Category(category)
		l.Status = lead.Status(status)
		if lastContacted.Valid {
			if t := parseTime(lastContacted.String); !t.IsZero() {
				l.LastContacted = &t
			}
		}
		l.CreatedAt = parseTime(createdAt)
		l.UpdatedAt = parseTime(updatedAt)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadInteractions returns every saved interaction, grouped by lead in the
// order they were logged.
func (d *DB) LoadInteractions(ctx context.Context) ([]lead.Interaction, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT id, lead_id, type, details, occurred_at FROM interactions ORDER BY lead_id, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []lead.Interaction
	for rows.Next() {
		var (
			in         lead.Interaction
			details    sql.NullString
			occurredAt string
		)
		if err := rows.Scan(&in.ID, &in.LeadID, &in.Type, &details, &occurredAt); err != nil {
			return nil, err
		}
		in.Details = details.String
		in.OccurredAt = parseTime(occurredAt)
		out = append(out, in)
	}
	return out, rows.Err()
}

// RecordTurn appends one exchange to the transcript table.
func (d *DB) RecordTurn(ctx context.Context, t TurnRecord) error {
	if t.OccurredAt.IsZero() {
		t.OccurredAt = time.Now()
	}
	_, err := d.sql.ExecContext(ctx, `INSERT INTO turns(session_id, input, response, route, occurred_at) VALUES(?,?,?,?,?)`,
		t.SessionID, t.Input, t.Response, t.Route, formatTime(t.OccurredAt))
	return err
}

// ListTurns returns a session's transcript in order. An empty sessionID
// returns the most recent turns across all sessions, oldest first.
func (d *DB) ListTurns(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT session_id, input, response, route, occurred_at FROM (SELECT * FROM turns WHERE session_id = ? ORDER BY id DESC LIMIT ?) ORDER BY id`
	args := []interface{}{sessionID, limit}
	if sessionID == "" {
		q = `SELECT session_id, input, response, route, occurred_at FROM (SELECT * FROM turns ORDER BY id DESC LIMIT ?) ORDER BY id`
		args = []interface{}{limit}
	}
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TurnRecord
	for rows.Next() {
		var t TurnRecord
		var occurredAt string
		if err := rows.Scan(&t.SessionID, &t.Input, &t.Response, &t.Route, &occurredAt); err != nil {
			return nil, err
		}
		t.OccurredAt = parseTime(occurredAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (d *DB) GetStats(ctx context.Context) ([]CategoryStats, error) {
	query := `
		SELECT
			category,
			COUNT(*),
			COALESCE(AVG(score), 0)
		FROM
			leads
		GROUP BY
			category
		ORDER BY
			category;
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []CategoryStats
	for rows.Next() {
		var s CategoryStats
		if err := rows.Scan(&s.Category, &s.LeadCount, &s.AverageScore); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

func encodeList(items []string) ([]byte, error) {
	if items == nil {
		items = []string{}
	}
	return json.Marshal(items)
}

func decodeList(s string) ([]string, error) {
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime accepts our own format and SQLite's CURRENT_TIMESTAMP layout.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func statusOrNew(s lead.Status) lead.Status {
	if s == "" {
		return lead.StatusNew
	}
	return s
}

func nullBool(v *bool) interface{} {
	if v == nil {
		return nil
	}
	return boolToInt(*v)
}
