package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/leadscope/leadscope/pkg/lead"
)

func TestStoreAddAssignsMonotonicIDs(t *testing.T) {
	s := NewStore()
	a, err := s.Add(lead.Lead{Company: "A"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	b, _ := s.Add(lead.Lead{Company: "B"})
	if a != 1 || b != 2 {
		t.Fatalf("ids = %d, %d", a, b)
	}
	if err := s.Delete(b); err != nil {
		t.Fatalf("delete: %v", err)
	}
	c, _ := s.Add(lead.Lead{Company: "C"})
	if c != 3 {
		t.Fatalf("deleted ids must not be reused, got %d", c)
	}

	got, err := s.Get(a)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Category != lead.CategoryUnscored || got.Timeline != lead.TimelineUnknown {
		t.Fatalf("defaults not applied: %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not set")
	}
}

func TestStoreAddHonoursSuppliedID(t *testing.T) {
	s := NewStore()
	if _, err := s.Add(lead.Lead{ID: 10, Company: "Loaded"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	next, _ := s.Add(lead.Lead{Company: "Fresh"})
	if next != 11 {
		t.Fatalf("counter must advance past supplied ids, got %d", next)
	}

	_, err := s.Add(lead.Lead{ID: 10, Company: "Clash"})
	var dup *lead.DuplicateKeyError
	if !errors.As(err, &dup) || dup.Key != "id" {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestStoreRejectsDuplicateEmail(t *testing.T) {
	s := NewStore()
	if _, err := s.Add(lead.Lead{Company: "A", Email: "jo@acme.com"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := s.Add(lead.Lead{Company: "B", Email: "JO@Acme.com"})
	var dup *lead.DuplicateKeyError
	if !errors.As(err, &dup) || dup.Key != "email" {
		t.Fatalf("expected duplicate email error, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("rejected lead must not be stored")
	}
	if _, ok := s.FindByEmail("jo@ACME.com"); !ok {
		t.Fatalf("lookup by email should be case-insensitive")
	}
}

func TestStoreUpdateRejectedLeavesRecordUnchanged(t *testing.T) {
	s := NewStore()
	id, _ := s.Add(lead.Lead{Company: "Acme", Budget: lead.Ptr(5000.0)})
	before, _ := s.Get(id)

	_, err := s.Update(id, lead.Patch{Budget: lead.Ptr(-1.0), Company: lead.Ptr("Renamed")})
	var verr *lead.ValidationError
	if !errors.As(err, &verr) || verr.Field != "budget" {
		t.Fatalf("expected budget validation error, got %v", err)
	}

	after, _ := s.Get(id)
	if after.Company != "Acme" || *after.Budget != 5000 || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("record changed after rejected update: %+v", after)
	}
}

func TestStoreUpdateMovesEmailIndex(t *testing.T) {
	s := NewStore()
	a, _ := s.Add(lead.Lead{Company: "A", Email: "a@one.com"})
	b, _ := s.Add(lead.Lead{Company: "B", Email: "b@two.com"})

	if _, err := s.Update(a, lead.Patch{Email: lead.Ptr("b@two.com")}); err == nil {
		t.Fatalf("taking another lead's email must fail")
	}
	updated, err := s.Update(a, lead.Patch{Email: lead.Ptr("new@three.org")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Domain != "three.org" {
		t.Fatalf("domain = %q", updated.Domain)
	}
	// the old address is free again
	if _, err := s.Update(b, lead.Patch{Email: lead.Ptr("a@one.com")}); err != nil {
		t.Fatalf("released email should be reusable: %v", err)
	}
}

func TestStoreDeleteThenGet(t *testing.T) {
	s := NewStore()
	id, _ := s.Add(lead.Lead{Company: "Gone"})
	if err := s.Delete(id); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var nf *lead.NotFoundError
	if _, err := s.Get(id); !errors.As(err, &nf) {
		t.Fatalf("get after delete: %v", err)
	}
	if err := s.Delete(id); !errors.As(err, &nf) {
		t.Fatalf("second delete must fail, got %v", err)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	s := NewStore()
	id, _ := s.Add(lead.Lead{Company: "Acme", Tags: []string{"vip"}})

	got, _ := s.Get(id)
	got.Tags[0] = "mutated"
	got.Company = "Mutated"

	again, _ := s.Get(id)
	if again.Tags[0] != "vip" || again.Company != "Acme" {
		t.Fatalf("store state leaked through a returned copy: %+v", again)
	}
}

func TestStoreFindKeepsInsertionOrder(t *testing.T) {
	s := NewStore()
	for _, c := range []string{"Zeta", "Alpha", "Mid"} {
		if _, err := s.Add(lead.Lead{Company: c}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	all := s.All()
	if len(all) != 3 || all[0].Company != "Zeta" || all[2].Company != "Mid" {
		t.Fatalf("unexpected order: %v", all)
	}

	matches := s.Find(func(l lead.Lead) bool { return l.Company != "Alpha" })
	if len(matches) != 2 || matches[1].Company != "Mid" {
		t.Fatalf("find = %v", matches)
	}
}

func TestStoreSetScore(t *testing.T) {
	s := NewStore()
	id, _ := s.Add(lead.Lead{Company: "Acme"})

	l, err := s.SetScore(id, 72.5, lead.CategoryQualified, "")
	if err != nil {
		t.Fatalf("set score: %v", err)
	}
	if l.ScoreValue() != 72.5 || l.Category != lead.CategoryQualified {
		t.Fatalf("score not written: %+v", l)
	}
	if _, err := s.SetScore(id, 140, lead.CategoryQualified, ""); err == nil {
		t.Fatalf("out-of-range score must be rejected")
	}
	if _, err := s.SetScore(99, 10, lead.CategoryUnqualified, ""); err == nil {
		t.Fatalf("unknown id must fail")
	}
}

func TestNormalizeCompany(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  Acme   Corp ", "acme corp"},
		{"ACME\tCorp", "acme corp"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := NormalizeCompany(tc.in); got != tc.want {
			t.Fatalf("NormalizeCompany(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStoreInteractions(t *testing.T) {
	s := NewStore()
	id, _ := s.Add(lead.Lead{Company: "Acme"})

	if got, _ := s.Get(id); got.Status != lead.StatusNew {
		t.Fatalf("status = %q, want new", got.Status)
	}

	note, err := s.AddInteraction(lead.Interaction{LeadID: id, Type: "Note", Details: " met at expo "})
	if err != nil {
		t.Fatalf("add interaction: %v", err)
	}
	if note.ID == "" || note.OccurredAt.IsZero() || note.Type != "note" || note.Details != "met at expo" {
		t.Fatalf("interaction not filled in: %+v", note)
	}
	if got, _ := s.Get(id); got.LastContacted != nil {
		t.Fatalf("a note is not contact, last contacted = %v", got.LastContacted)
	}

	call := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	if _, err := s.AddInteraction(lead.Interaction{LeadID: id, Type: "call", OccurredAt: call}); err != nil {
		t.Fatalf("add call: %v", err)
	}
	earlier := call.Add(-24 * time.Hour)
	if _, err := s.AddInteraction(lead.Interaction{LeadID: id, Type: "email", OccurredAt: earlier}); err != nil {
		t.Fatalf("add email: %v", err)
	}
	got, _ := s.Get(id)
	if got.LastContacted == nil || !got.LastContacted.Equal(call) {
		t.Fatalf("last contacted = %v, want %v", got.LastContacted, call)
	}

	log, err := s.Interactions(id)
	if err != nil || len(log) != 3 || log[1].Type != "call" {
		t.Fatalf("interactions = %+v, err = %v", log, err)
	}

	if _, err := s.AddInteraction(lead.Interaction{LeadID: id, Type: "  "}); err == nil {
		t.Fatalf("empty type must be rejected")
	}
	var nf *lead.NotFoundError
	if _, err := s.AddInteraction(lead.Interaction{LeadID: 42, Type: "call"}); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	if err := s.Delete(id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n := len(s.AllInteractions()); n != 0 {
		t.Fatalf("deleting a lead must drop its log, %d left", n)
	}
}
