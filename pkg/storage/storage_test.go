package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/leadscope/leadscope/pkg/lead"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "leads.sqlite"), DefaultDBTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSaveAndLoadLeadsPreservesOrderAndAttributes(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	leads := []lead.Lead{
		{
			ID:            7,
			Company:       "Initech",
			ContactName:   "Bill L",
			Email:         "bill@initech.com",
			Source:        "referral",
			CompanySize:   lead.Ptr(500),
			AnnualRevenue: lead.Ptr(2.5e6),
			Budget:        lead.Ptr(40000.0),
			DecisionMaker: lead.Ptr(false),
			PainPoints:    []string{"manual work"},
			Timeline:      lead.TimelineMedium,
			Tags:          []string{"enterprise", "q3"},
			Score:         lead.Ptr(64.5),
			Category:      lead.CategoryQualified,
			Notes:         "defaulted: budget",
			Domain:        "initech.com",
			Status:        lead.StatusProposalSent,
			LastContacted: lead.Ptr(created.Add(2 * time.Hour)),
			CreatedAt:     created,
			UpdatedAt:     created.Add(time.Hour),
		},
		{ID: 2, Company: "Bare", Timeline: lead.TimelineUnknown, Category: lead.CategoryUnscored, CreatedAt: created, UpdatedAt: created},
	}
	require.NoError(t, db.SaveLeads(ctx, leads, nil))

	got, err := db.LoadLeads(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(7), got[0].ID, "saved order must survive")
	assert.Equal(t, leads[0], got[0])
	assert.Nil(t, got[1].Score)
	assert.Nil(t, got[1].DecisionMaker)
	assert.Nil(t, got[1].PainPoints)
	assert.Nil(t, got[1].LastContacted)
	assert.Equal(t, lead.StatusNew, got[1].Status, "missing status is stored as new")

	// saving again replaces rather than appends
	require.NoError(t, db.SaveLeads(ctx, leads[1:], nil))
	got, err = db.LoadLeads(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSaveLeadsKeepsInteractionLogs(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	at := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	leads := []lead.Lead{
		{ID: 1, Company: "A", Category: lead.CategoryUnscored, CreatedAt: at, UpdatedAt: at},
		{ID: 2, Company: "B", Category: lead.CategoryUnscored, CreatedAt: at, UpdatedAt: at},
	}
	logs := []lead.Interaction{
		{ID: "i-1", LeadID: 1, Type: "call", Details: "left voicemail", OccurredAt: at},
		{ID: "i-2", LeadID: 1, Type: "email", OccurredAt: at.Add(time.Minute)},
		{ID: "i-3", LeadID: 2, Type: "note", Details: "met at expo", OccurredAt: at},
		{ID: "i-4", LeadID: 9, Type: "call", OccurredAt: at},
	}
	require.NoError(t, db.SaveLeads(ctx, leads, logs))

	got, err := db.LoadInteractions(ctx)
	require.NoError(t, err)
	assert.Equal(t, logs[:3], got, "interactions of unknown leads are dropped")

	require.NoError(t, db.SaveLeads(ctx, leads[1:], logs))
	got, err = db.LoadInteractions(ctx)
	require.NoError(t, err)
	assert.Equal(t, logs[2:3], got)
}

func TestOpenAddsPipelineColumnsToOlderDatabases(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "old.sqlite")

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE leads (
  id INTEGER PRIMARY KEY, position INTEGER NOT NULL, company TEXT NOT NULL,
  contact_name TEXT, email TEXT, title TEXT, phone TEXT, source TEXT,
  company_size INTEGER, annual_revenue REAL, budget REAL, decision_maker INTEGER,
  pain_points TEXT NOT NULL DEFAULT '[]', timeline TEXT NOT NULL DEFAULT 'unknown',
  tags TEXT NOT NULL DEFAULT '[]', score REAL, category TEXT NOT NULL DEFAULT 'unscored',
  notes TEXT, domain TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL);
INSERT INTO leads(id, position, company, created_at, updated_at) VALUES (1, 0, 'Legacy', '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z');`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	db, err := Open(path, DefaultDBTimeout)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.LoadLeads(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Legacy", got[0].Company)
	assert.Equal(t, lead.StatusNew, got[0].Status)
	assert.Nil(t, got[0].LastContacted)

	// reopening an up-to-date database is a no-op
	require.NoError(t, db.Close())
	db, err = Open(path, DefaultDBTimeout)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestRecordAndListTurns(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for i, in := range []string{"count leads", "who should I call?", "stats"} {
		route := "local"
		if i == 1 {
			route = "backend"
		}
		require.NoError(t, db.RecordTurn(ctx, TurnRecord{SessionID: "s1", Input: in, Response: "ok", Route: route}))
	}
	require.NoError(t, db.RecordTurn(ctx, TurnRecord{SessionID: "s2", Input: "help", Response: "...", Route: "local"}))

	turns, err := db.ListTurns(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "who should I call?", turns[0].Input)
	assert.Equal(t, "stats", turns[1].Input)

	all, err := db.ListTurns(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "s2", all[3].SessionID)
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	now := time.Now()
	require.NoError(t, db.SaveLeads(ctx, []lead.Lead{
		{ID: 1, Company: "A", Score: lead.Ptr(80.0), Category: lead.CategoryQualified, Timeline: lead.TimelineShort, CreatedAt: now, UpdatedAt: now},
		{ID: 2, Company: "B", Score: lead.Ptr(70.0), Category: lead.CategoryQualified, Timeline: lead.TimelineShort, CreatedAt: now, UpdatedAt: now},
		{ID: 3, Company: "C", Score: lead.Ptr(10.0), Category: lead.CategoryUnqualified, Timeline: lead.TimelineLong, CreatedAt: now, UpdatedAt: now},
	}, nil))

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []CategoryStats{
		{Category: "qualified", LeadCount: 2, AverageScore: 75},
		{Category: "unqualified", LeadCount: 1, AverageScore: 10},
	}, stats)
}
