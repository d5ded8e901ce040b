package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/fieldline/deskbot/internal/corpus"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRunsMigrationsIdempotently(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	s.Close()

	// Reopening the same database must not re-apply migrations.
	s, err = Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	s.Close()
}

func TestCorrectionsRoundTrip(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	corrections := []corpus.Correction{
		{ID: "c2", Question: "second", Correction: "b", SubmittedAt: base.Add(time.Hour)},
		{ID: "c1", Question: "first", AIResponse: "wrong", Correction: "a", SessionID: "s1", SubmittedAt: base},
	}
	for _, c := range corrections {
		if err := s.SaveCorrection(c); err != nil {
			t.Fatalf("SaveCorrection(%s) failed: %v", c.ID, err)
		}
	}

	got, err := s.ListCorrections()
	if err != nil {
		t.Fatalf("ListCorrections failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d corrections, want 2", len(got))
	}
	// Submission order, oldest first.
	if got[0].ID != "c1" || got[1].ID != "c2" {
		t.Errorf("order = [%s %s], want [c1 c2]", got[0].ID, got[1].ID)
	}
	if got[0].AIResponse != "wrong" || got[0].SessionID != "s1" {
		t.Errorf("fields not persisted: %+v", got[0])
	}
	if !got[0].SubmittedAt.Equal(base) {
		t.Errorf("SubmittedAt = %v, want %v", got[0].SubmittedAt, base)
	}
}

func TestListCorrectionsEmpty(t *testing.T) {
	s := openTestStore(t)
	got, err := s.ListCorrections()
	if err != nil {
		t.Fatalf("ListCorrections failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d corrections from empty store", len(got))
	}
}

func TestInteractionsRoundTrip(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	older := Interaction{
		ID: "i1", CreatedAt: base, SessionID: "s1",
		UserQuery: "how do I export contacts", Response: "Use Actions > Export CSV",
		Status: "completed", KBUsed: 2, TicketsUsed: 1,
	}
	newer := Interaction{
		ID: "i2", CreatedAt: base.Add(time.Minute), SessionID: "s1",
		UserQuery: "mojo voice pricing", Response: "Costs $20 per month",
		Status: "completed", PagesUsed: 1, PricingOnly: true,
	}
	for _, i := range []Interaction{older, newer} {
		if err := s.SaveInteraction(i); err != nil {
			t.Fatalf("SaveInteraction(%s) failed: %v", i.ID, err)
		}
	}

	got, err := s.GetInteraction("i2")
	if err != nil {
		t.Fatalf("GetInteraction failed: %v", err)
	}
	if !got.PricingOnly || got.PagesUsed != 1 || got.UserQuery != "mojo voice pricing" {
		t.Errorf("GetInteraction = %+v", got)
	}

	list, err := s.ListInteractions(10, 0)
	if err != nil {
		t.Fatalf("ListInteractions failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "i2" {
		t.Errorf("list order wrong: %+v", list)
	}

	n, err := s.CountInteractions()
	if err != nil || n != 2 {
		t.Errorf("CountInteractions = %d, %v, want 2", n, err)
	}
}

func TestSaveInteractionDefaultsStatus(t *testing.T) {
	s := openTestStore(t)
	if err := s.SaveInteraction(Interaction{ID: "i1", CreatedAt: time.Now().UTC(), UserQuery: "q", Response: "r"}); err != nil {
		t.Fatalf("SaveInteraction failed: %v", err)
	}
	got, err := s.GetInteraction("i1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "completed" {
		t.Errorf("Status = %q, want completed", got.Status)
	}
}

func TestGetInteractionNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetInteraction("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListInteractionsPagination(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := s.SaveInteraction(Interaction{
			ID:        string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UserQuery: "q", Response: "r",
		}); err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.ListInteractions(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != "c" || page[1].ID != "b" {
		t.Errorf("page = %+v, want [c b]", page)
	}
}
