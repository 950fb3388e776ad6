package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leadscope/leadscope/pkg/dispatch"
	"github.com/leadscope/leadscope/pkg/lead"
	"github.com/leadscope/leadscope/pkg/manager"
	"github.com/leadscope/leadscope/pkg/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seed = `[
  {"company": "Initech", "email": "bill@initech.com", "title": "VP Engineering", "company_size": 500,
   "budget": 100000, "decision_maker": true, "pain_points": ["manual processes", "data silos"], "timeline": "short"},
  {"company": "Tiny LLC", "company_size": 5, "budget": 2000, "timeline": "long"}
]`

func newTestServer(t *testing.T, user, pass string) (*Server, *httptest.Server, *int) {
	t.Helper()
	m := manager.New(manager.Config{})
	_, err := m.IngestJSON(context.Background(), []byte(seed))
	require.NoError(t, err)

	d, err := dispatch.New(dispatch.Config{Manager: m})
	require.NoError(t, err)

	saves := 0
	s := New(m, d, user, pass)
	s.Persist = func(context.Context) error {
		saves++
		return nil
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts, &saves
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestListAndGetLeads(t *testing.T) {
	_, ts, _ := newTestServer(t, "", "")

	resp := do(t, http.MethodGet, ts.URL+"/api/leads?category=qualified", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var leads []lead.Lead
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&leads))
	require.Len(t, leads, 1)
	assert.Equal(t, "Initech", leads[0].Company)

	resp = do(t, http.MethodGet, ts.URL+"/api/leads/1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/api/leads/99", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/api/leads/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/api/leads?min_score=lots", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMutationsMapErrors(t *testing.T) {
	_, ts, saves := newTestServer(t, "", "")

	resp := do(t, http.MethodPost, ts.URL+"/api/leads", `{"company": "Globex", "email": "hank@globex.com", "company_size": 200}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var added lead.Lead
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&added))
	assert.Equal(t, int64(3), added.ID)
	assert.NotNil(t, added.Score)

	resp = do(t, http.MethodPost, ts.URL+"/api/leads", `{"company": "Globex 2", "email": "HANK@globex.com"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodPost, ts.URL+"/api/leads", `{"company": "Bad", "budget": -5}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var e errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Equal(t, "budget", e.Field)

	resp = do(t, http.MethodPatch, ts.URL+"/api/leads/2", `{"budget": 60000}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPatch, ts.URL+"/api/leads/2", `{"colour": "blue"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodDelete, ts.URL+"/api/leads/2", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, http.MethodDelete, ts.URL+"/api/leads/2", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// add, patch, delete
	assert.Equal(t, 3, *saves)
}

func TestImport(t *testing.T) {
	_, ts, _ := newTestServer(t, "", "")

	resp := do(t, http.MethodPost, ts.URL+"/api/leads/import", `{"leads": [{"company": "A"}, {"company": ""}, {"company": "B"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res importResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Len(t, res.IDs, 2)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)

	resp = do(t, http.MethodPost, ts.URL+"/api/leads/import", `"just a string"`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStats(t *testing.T) {
	_, ts, _ := newTestServer(t, "", "")

	resp := do(t, http.MethodGet, ts.URL+"/api/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st manager.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.Hot)
}

func TestChatSession(t *testing.T) {
	s, ts, _ := newTestServer(t, "", "")

	resp := do(t, http.MethodPost, ts.URL+"/api/chat", `{"message": "how many leads are there?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cr ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cr))
	assert.Equal(t, "There are 2 leads.", cr.Reply)
	assert.Equal(t, "local", cr.Route)
	assert.Equal(t, 1, s.session.Len())

	resp = do(t, http.MethodPost, ts.URL+"/api/chat", `{"message": "clear"}`)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cr))
	assert.True(t, cr.Reset)
	assert.Equal(t, 0, s.session.Len())
}

func TestBasicAuth(t *testing.T) {
	_, ts, _ := newTestServer(t, "admin", "secret")

	resp := do(t, http.MethodGet, ts.URL+"/api/stats", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/stats", nil)
	require.NoError(t, err)
	req.SetBasicAuth("admin", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInteractionsAndStatusFilter(t *testing.T) {
	_, ts, saves := newTestServer(t, "", "")

	resp := do(t, http.MethodPost, ts.URL+"/api/leads/1/interactions", `{"type": "call", "details": "intro call"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var in lead.Interaction
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&in))
	assert.NotEmpty(t, in.ID)
	assert.Equal(t, "call", in.Type)
	assert.Equal(t, 1, *saves)

	resp = do(t, http.MethodPost, ts.URL+"/api/leads/99/interactions", `{"type": "call"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = do(t, http.MethodPost, ts.URL+"/api/leads/1/interactions", `{"type": ""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp = do(t, http.MethodPost, ts.URL+"/api/leads/1/interactions", `{"kind": "call"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/api/leads/1/interactions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []lead.Interaction
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	require.Len(t, history, 1)
	assert.Equal(t, "intro call", history[0].Details)

	resp = do(t, http.MethodPatch, ts.URL+"/api/leads/2", `{"status": "proposal_sent"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = do(t, http.MethodPatch, ts.URL+"/api/leads/2", `{"status": "haggling"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/api/leads?status=proposal+sent", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var leads []lead.Lead
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&leads))
	require.Len(t, leads, 1)
	assert.Equal(t, "Tiny LLC", leads[0].Company)

	resp = do(t, http.MethodGet, ts.URL+"/api/leads?status=haggling", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScoringCriteria(t *testing.T) {
	_, ts, saves := newTestServer(t, "", "")

	resp := do(t, http.MethodGet, ts.URL+"/api/scoring", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var c scoring.Criteria
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&c))
	assert.Equal(t, scoring.DefaultCriteria(), c)

	resp = do(t, http.MethodPut, ts.URL+"/api/scoring", `{"weights": {"company_size": 50, "budget": 30, "authority": 20, "need": 15, "timeline": 10}, "qualified_threshold": 60, "hot_threshold": 85}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, 0, *saves)

	resp = do(t, http.MethodPut, ts.URL+"/api/scoring", `{"weights": {"company_size": 25, "budget": 30, "authority": 20, "need": 15, "timeline": 10}, "qualified_threshold": 90, "hot_threshold": 95}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cr criteriaResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cr))
	assert.Equal(t, 2, cr.Rescored)
	assert.Equal(t, 90.0, cr.Criteria.QualifiedThreshold)
	assert.Equal(t, 1, *saves)

	resp = do(t, http.MethodGet, ts.URL+"/api/leads?category=qualified", "")
	var leads []lead.Lead
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&leads))
	assert.Empty(t, leads, "88.25 is below the new threshold")
}
