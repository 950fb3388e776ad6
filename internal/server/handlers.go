package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/leadscope/leadscope/pkg/conversation"
	"github.com/leadscope/leadscope/pkg/lead"
	"github.com/leadscope/leadscope/pkg/manager"
	"github.com/leadscope/leadscope/pkg/scoring"
)

// maxBody bounds request bodies, imports included.
const maxBody = 8 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	var (
		nf   *lead.NotFoundError
		verr *lead.ValidationError
		dup  *lead.DuplicateKeyError
		serr *lead.StructuralIngestError
	)
	switch {
	case errors.As(err, &nf):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Field: verr.Field})
	case errors.As(err, &dup):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Field: dup.Key})
	case errors.As(err, &serr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, "invalid lead id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Manager.Statistics())
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	// Parse query params for filtering
	q := r.URL.Query()
	f := manager.Filter{
		Company:     q.Get("company"),
		Domain:      q.Get("domain"),
		Source:      q.Get("source"),
		Tag:         q.Get("tag"),
		HotOnly:     q.Get("hot") == "true",
		SortByScore: q.Get("sort") == "score",
	}
	if c := q.Get("category"); c != "" {
		cat, ok := lead.ParseCategory(c)
		if !ok {
			badRequest(w, "unknown category "+strconv.Quote(c))
			return
		}
		f.Category = cat
	}
	if v := q.Get("status"); v != "" {
		st, ok := lead.ParseStatus(v)
		if !ok {
			badRequest(w, "unknown status "+strconv.Quote(v))
			return
		}
		f.Status = st
	}
	if t := q.Get("timeline"); t != "" {
		tl, ok := lead.ParseTimeline(t)
		if !ok {
			badRequest(w, "unknown timeline "+strconv.Quote(t))
			return
		}
		f.Timeline = tl
	}
	for name, dst := range map[string]**float64{"min_score": &f.MinScore, "max_score": &f.MaxScore} {
		if v := q.Get(name); v != "" {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				badRequest(w, name+" must be a number")
				return
			}
			*dst = &n
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}

	var leads []lead.Lead
	if text := q.Get("q"); text != "" {
		leads = s.Manager.Search(text)
	} else {
		leads = s.Manager.Query(f)
	}
	writeJSON(w, http.StatusOK, leads)
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	l, err := s.Manager.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleAddLead(w http.ResponseWriter, r *http.Request) {
	var raw lead.RawRecord
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&raw); err != nil {
		badRequest(w, err.Error())
		return
	}
	l, err := s.Manager.Add(r.Context(), raw)
	if err != nil {
		writeError(w, err)
		return
	}
	s.persist(r.Context())
	writeJSON(w, http.StatusCreated, l)
}

type importFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type importResponse struct {
	IDs      []int64         `json:"ids"`
	Failures []importFailure `json:"failures"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	res, err := s.Manager.IngestJSON(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	s.persist(r.Context())

	resp := importResponse{IDs: res.IDs, Failures: []importFailure{}}
	for _, f := range res.Failures {
		resp.Failures = append(resp.Failures, importFailure{Index: f.Index, Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateLead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var p lead.Patch
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		badRequest(w, err.Error())
		return
	}
	l, err := s.Manager.Update(r.Context(), id, p)
	if err != nil {
		writeError(w, err)
		return
	}
	s.persist(r.Context())
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleDeleteLead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.Manager.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	s.persist(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRescoreLead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	l, err := s.Manager.Rescore(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	s.persist(r.Context())
	writeJSON(w, http.StatusOK, l)
}

type InteractionRequest struct {
	Type    string `json:"type"`
	Details string `json:"details"`
}

func (s *Server) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	history, err := s.Manager.Interactions(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleLogInteraction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req InteractionRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, err.Error())
		return
	}
	in, err := s.Manager.LogInteraction(r.Context(), id, req.Type, req.Details)
	if err != nil {
		writeError(w, err)
		return
	}
	s.persist(r.Context())
	writeJSON(w, http.StatusCreated, in)
}

func (s *Server) handleGetCriteria(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Manager.Engine().Criteria())
}

type criteriaResponse struct {
	Criteria scoring.Criteria `json:"criteria"`
	Rescored int              `json:"rescored"`
}

// handleSetCriteria replaces the scoring criteria for the running process and
// rescores every lead. The config file is not rewritten.
func (s *Server) handleSetCriteria(w http.ResponseWriter, r *http.Request) {
	var c scoring.Criteria
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		badRequest(w, err.Error())
		return
	}
	n, err := s.Manager.SetCriteria(r.Context(), c)
	if err != nil {
		writeError(w, err)
		return
	}
	s.persist(r.Context())
	writeJSON(w, http.StatusOK, criteriaResponse{Criteria: c, Rescored: n})
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Reply    string `json:"reply"`
	Route    string `json:"route,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
	Reset    bool   `json:"reset,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if s.Dispatcher == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "chat is not enabled"})
		return
	}

	s.chatMu.Lock()
	reply := s.Dispatcher.Handle(r.Context(), s.session, req.Message)
	if reply.Reset || reply.Exit {
		s.session = conversation.NewSession()
	}
	s.chatMu.Unlock()

	// chat commands can add, edit or delete leads
	if reply.Route == conversation.RouteLocal && !reply.Ignored {
		s.persist(r.Context())
	}
	writeJSON(w, http.StatusOK, ChatResponse{
		Reply:    reply.Text,
		Route:    string(reply.Route),
		Degraded: reply.Degraded,
		Reset:    reply.Reset || reply.Exit,
	})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	s.chatMu.Lock()
	turns := s.session.Turns()
	s.chatMu.Unlock()
	if turns == nil {
		turns = []conversation.Turn{}
	}
	writeJSON(w, http.StatusOK, turns)
}
