package service

import (
	"context"
	"fmt"
	"testing"
	"time"
	"warzone-tracker/internal/api"
	"warzone-tracker/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func newHistoryService(f *fakeTracker, t *testing.T) *HistoryService {
	return &HistoryService{
		tracker: f,
		store:   testStore(t),
		logger:  zerolog.Nop(),
		policy:  fastBackoffs(),
	}
}

func entries(ts ...int64) []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, len(ts))
	for i, t := range ts {
		out[i] = domain.HistoryEntry{MatchID: fmt.Sprintf("m%d", t), Timestamp: t}
	}
	return out
}

func TestTrySplice(t *testing.T) {
	// Cached newest-first [t5..t1], fresh page [t7,t6,t5,t4]: the seam
	// is t5, new entries prepend onto the whole cached tail.
	cached := entries(5, 4, 3, 2, 1)
	fresh := entries(7, 6, 5, 4)

	got := trySplice(cached, fresh)
	if diff := cmp.Diff(entries(7, 6, 5, 4, 3, 2, 1), got); diff != "" {
		t.Errorf("trySplice mismatch (-want +got):\n%s", diff)
	}
}

func TestTrySpliceNone(t *testing.T) {
	tests := []struct {
		name   string
		cached []domain.HistoryEntry
		fresh  []domain.HistoryEntry
	}{
		{"fresh not newer than cache", entries(9, 8, 7), entries(9, 8)},
		{"fresh older than cache", entries(9, 8, 7), entries(6, 5)},
		{"gap with no seam", entries(3, 2, 1), entries(9, 8, 7)},
		{"no cached history", nil, entries(9, 8)},
		{"empty fresh page", entries(3, 2), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trySplice(tt.cached, tt.fresh); got != nil {
				t.Errorf("trySplice() = %v, want nil", got)
			}
		})
	}
}

func TestListRecentMatchesPaginates(t *testing.T) {
	base := time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	page := func(start, n int, next string) *api.HistoryResponse {
		var matches []api.HistoryMatch
		for i := 0; i < n; i++ {
			idx := start + i
			matches = append(matches, histMatch(fmt.Sprintf("m%d", idx), "br_brquads", base.Add(-time.Duration(idx)*time.Minute)))
		}
		return historyPage(next, matches...)
	}

	f := &fakeTracker{}
	f.history = func(cursor string) (*api.HistoryResponse, error) {
		if cursor == "" {
			return page(0, 20, "1614600000"), nil
		}
		if cursor != "1614600000" {
			t.Errorf("unexpected cursor %q", cursor)
		}
		// Short page: end of history.
		return page(20, 10, ""), nil
	}
	s := newHistoryService(f, t)

	got, err := s.ListRecentMatches(context.Background(), testPlayer, 25, domain.HourWindow{})
	if err != nil {
		t.Fatalf("ListRecentMatches(): %v", err)
	}

	if f.historyCalls != 2 {
		t.Errorf("history calls = %d, want 2", f.historyCalls)
	}
	if len(got) != 30 {
		t.Fatalf("entries = %d, want 30", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp >= got[i-1].Timestamp {
			t.Fatal("entries are not newest-first")
		}
	}

	// The final list becomes the cached history of record.
	cached, ok := s.store.History(testPlayer)
	if !ok {
		t.Fatal("history not cached after pagination")
	}
	if diff := cmp.Diff(got, cached); diff != "" {
		t.Errorf("cached history mismatch (-want +got):\n%s", diff)
	}
}

func TestListRecentMatchesStopsAtEndOfHistory(t *testing.T) {
	base := time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &fakeTracker{
		history: func(cursor string) (*api.HistoryResponse, error) {
			return historyPage("",
				histMatch("m1", "br_brquads", base),
				histMatch("m2", "br_brduos", base.Add(-time.Minute)),
			), nil
		},
	}
	s := newHistoryService(f, t)

	got, err := s.ListRecentMatches(context.Background(), testPlayer, 50, domain.HourWindow{})
	if err != nil {
		t.Fatalf("ListRecentMatches(): %v", err)
	}
	if f.historyCalls != 1 {
		t.Errorf("history calls = %d, want 1 (short page ends pagination)", f.historyCalls)
	}
	if len(got) != 2 {
		t.Errorf("entries = %d, want 2", len(got))
	}
}

func TestListRecentMatchesFiltersModes(t *testing.T) {
	base := time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &fakeTracker{
		history: func(cursor string) (*api.HistoryResponse, error) {
			return historyPage("",
				histMatch("m1", "br_brsolos", base),
				histMatch("m2", "br_brquads", base.Add(-time.Minute)),
				histMatch("m3", "plunder", base.Add(-2*time.Minute)),
				histMatch("m4", "br_brtrios", base.Add(-3*time.Minute)),
			), nil
		},
	}
	s := newHistoryService(f, t)

	got, err := s.ListRecentMatches(context.Background(), testPlayer, 10, domain.HourWindow{})
	if err != nil {
		t.Fatalf("ListRecentMatches(): %v", err)
	}
	want := []string{"m2", "m4"}
	if len(got) != len(want) {
		t.Fatalf("entries = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].MatchID != id {
			t.Errorf("entry %d = %s, want %s", i, got[i].MatchID, id)
		}
	}
}

func TestListRecentMatchesHourWindow(t *testing.T) {
	f := &fakeTracker{
		history: func(cursor string) (*api.HistoryResponse, error) {
			return historyPage("",
				histMatch("late", "br_brquads", time.Date(2021, 3, 1, 23, 0, 0, 0, time.Local)),
				histMatch("early", "br_brquads", time.Date(2021, 3, 1, 1, 0, 0, 0, time.Local)),
				histMatch("midday", "br_brquads", time.Date(2021, 2, 28, 12, 0, 0, 0, time.Local)),
			), nil
		},
	}
	s := newHistoryService(f, t)

	got, err := s.ListRecentMatches(context.Background(), testPlayer, 10, domain.HourWindow{Start: 22, End: 2})
	if err != nil {
		t.Fatalf("ListRecentMatches(): %v", err)
	}
	if len(got) != 2 || got[0].MatchID != "late" || got[1].MatchID != "early" {
		t.Errorf("hour window kept %v, want [late early]", got)
	}
}

func TestListRecentMatchesDeduplicates(t *testing.T) {
	base := time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &fakeTracker{
		history: func(cursor string) (*api.HistoryResponse, error) {
			// The upstream cursor defect: the same match served twice.
			return historyPage("",
				histMatch("m1", "br_brquads", base),
				histMatch("m1", "br_brquads", base),
				histMatch("m2", "br_brquads", base.Add(-time.Minute)),
			), nil
		},
	}
	s := newHistoryService(f, t)

	got, err := s.ListRecentMatches(context.Background(), testPlayer, 10, domain.HourWindow{})
	if err != nil {
		t.Fatalf("ListRecentMatches(): %v", err)
	}
	if len(got) != 2 {
		t.Errorf("entries = %d, want 2 after dedup", len(got))
	}
}

func TestListRecentMatchesSplicesCachedTail(t *testing.T) {
	base := time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)

	// One full page of 20 fresh entries; the oldest fresh entry lines
	// up with the cached head, so the cached tail supplies the rest.
	var matches []api.HistoryMatch
	for i := 0; i < 20; i++ {
		matches = append(matches, histMatch(fmt.Sprintf("f%d", i), "br_brquads", base.Add(-time.Duration(i)*time.Minute)))
	}
	f := &fakeTracker{
		history: func(cursor string) (*api.HistoryResponse, error) {
			return historyPage("1614600000", matches...), nil
		},
	}
	s := newHistoryService(f, t)

	seam := base.Add(-19 * time.Minute)
	cached := []domain.HistoryEntry{
		{MatchID: "f19", Timestamp: seam.UnixMilli()},
		{MatchID: "c1", Timestamp: seam.Add(-time.Minute).UnixMilli()},
		{MatchID: "c2", Timestamp: seam.Add(-2 * time.Minute).UnixMilli()},
	}
	s.store.PutHistory(testPlayer, cached)

	got, err := s.ListRecentMatches(context.Background(), testPlayer, 22, domain.HourWindow{})
	if err != nil {
		t.Fatalf("ListRecentMatches(): %v", err)
	}

	if f.historyCalls != 1 {
		t.Errorf("history calls = %d, want 1 (splice must short-circuit pagination)", f.historyCalls)
	}
	if len(got) != 22 {
		t.Fatalf("entries = %d, want 22", len(got))
	}
	if got[19].MatchID != "f19" || got[20].MatchID != "c1" || got[21].MatchID != "c2" {
		t.Errorf("splice tail wrong: got %s %s %s", got[19].MatchID, got[20].MatchID, got[21].MatchID)
	}
}
