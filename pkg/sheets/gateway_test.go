package sheets_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"englishtutorbot/pkg/sheets"
	"englishtutorbot/pkg/sheets/fakesheets"
)

var testBackoff = sheets.Backoff{Base: time.Millisecond, Max: 2 * time.Millisecond, Attempts: 3}

func profileHeader() []string {
	return []string{"user_id", "name", "seen", "correct", "learned", "score", "deck", "lesson", "last_seen"}
}

func seededAPI() *fakesheets.FakeAPI {
	api := fakesheets.New()
	api.Seed("profiles", [][]string{
		profileHeader(),
		{"42", "Alice", "10", "7", "2", "8.5", "english", "3", "2026-08-30T10:00:00Z"},
	})
	return api
}

func TestFetchRowReturnsProfile(t *testing.T) {
	gw := sheets.NewGateway(seededAPI(), 0, testBackoff)

	row, err := gw.FetchRow(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.UserID != 42 || row.UserName != "Alice" || row.PhrasesSeen != 10 || row.TotalScore != 8.5 {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestFetchRowReadsPracticeColumns(t *testing.T) {
	api := fakesheets.New()
	api.Seed("profiles", [][]string{
		profileHeader(),
		{"42", "Alice", "10", "7", "2", "8.5", "english", "3", "2026-08-30T10:00:00Z", "1", "45", "2026-08-30T09:00:00Z"},
		// Row written before the practice columns existed.
		{"43", "Bob", "1", "1", "0", "1.0", "english", "0", "2026-08-30T10:00:00Z"},
	})
	gw := sheets.NewGateway(api, 0, testBackoff)

	row, err := gw.FetchRow(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !row.AutoPractice || row.AutoIntervalMin != 45 || row.LastAuto.IsZero() {
		t.Fatalf("practice columns not read: %+v", row)
	}

	legacy, err := gw.FetchRow(context.Background(), 43)
	if err != nil {
		t.Fatalf("legacy row must still parse, got %v", err)
	}
	if legacy.AutoPractice || legacy.AutoIntervalMin != 0 || !legacy.LastAuto.IsZero() {
		t.Fatalf("legacy row must default practice columns: %+v", legacy)
	}
}

func TestFetchRowNotFound(t *testing.T) {
	gw := sheets.NewGateway(seededAPI(), 0, testBackoff)

	_, err := gw.FetchRow(context.Background(), 99)
	if !errors.Is(err, sheets.ErrNotFound) {
		t.Fatalf("expected sheets.ErrNotFound, got %v", err)
	}
}

func TestFetchRowRetriesTransient(t *testing.T) {
	api := seededAPI()
	api.Fail("read", sheets.Transient("fetch_row", fmt.Errorf("flaky network")))
	gw := sheets.NewGateway(api, 0, testBackoff)

	row, err := gw.FetchRow(context.Background(), 42)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if row.UserID != 42 {
		t.Fatalf("unexpected row: %+v", row)
	}
	if got := api.CallCount("read"); got != 2 {
		t.Fatalf("expected 2 read calls, got %d", got)
	}
	if gw.Degraded() {
		t.Fatalf("transient failure must not degrade the gateway")
	}
}

func TestFetchRowUnavailableAfterExhaustion(t *testing.T) {
	api := seededAPI()
	for i := 0; i < testBackoff.Attempts; i++ {
		api.Fail("read", sheets.Transient("fetch_row", fmt.Errorf("still down")))
	}
	gw := sheets.NewGateway(api, 0, testBackoff)

	_, err := gw.FetchRow(context.Background(), 42)
	if !errors.Is(err, sheets.ErrUnavailable) {
		t.Fatalf("expected sheets.ErrUnavailable, got %v", err)
	}
	if gw.Degraded() {
		t.Fatalf("retry exhaustion must not degrade the gateway")
	}
}

func TestPermanentFailureDegradesWithoutRetry(t *testing.T) {
	api := seededAPI()
	api.Fail("read", sheets.Permanent("fetch_row", fmt.Errorf("credentials revoked")))
	gw := sheets.NewGateway(api, 0, testBackoff)

	_, err := gw.FetchRow(context.Background(), 42)
	if !sheets.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if got := api.CallCount("read"); got != 1 {
		t.Fatalf("permanent failures must not be retried, got %d calls", got)
	}
	if !gw.Degraded() {
		t.Fatalf("expected degraded mode after permanent failure")
	}
}

func TestFetchRowMalformedCellIsPermanent(t *testing.T) {
	api := fakesheets.New()
	api.Seed("profiles", [][]string{
		profileHeader(),
		{"42", "Alice", "not-a-number", "7", "2", "8.5", "english", "3", ""},
	})
	gw := sheets.NewGateway(api, 0, testBackoff)

	_, err := gw.FetchRow(context.Background(), 42)
	if !sheets.IsPermanent(err) {
		t.Fatalf("expected permanent error for malformed row, got %v", err)
	}
	if !gw.Degraded() {
		t.Fatalf("expected degraded mode after malformed row")
	}
}

func TestUpsertRowUpdatesExisting(t *testing.T) {
	api := seededAPI()
	gw := sheets.NewGateway(api, 0, testBackoff)

	row := sheets.ProfileRow{UserID: 42, UserName: "Alice", PhrasesSeen: 11, CorrectAnswers: 8, TotalScore: 9.5, CurrentDeck: "english"}
	if err := gw.UpsertRow(context.Background(), 42, row); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := api.Rows("profiles")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1][2] != "11" {
		t.Fatalf("expected updated seen count, got %+v", rows[1])
	}
	if got := api.CallCount("append"); got != 0 {
		t.Fatalf("update must not append, got %d appends", got)
	}
}

func TestUpsertRowAppendsNewUser(t *testing.T) {
	api := seededAPI()
	gw := sheets.NewGateway(api, 0, testBackoff)

	row := sheets.ProfileRow{UserID: 7, UserName: "Bob"}
	if err := gw.UpsertRow(context.Background(), 7, row); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := api.Rows("profiles")
	if len(rows) != 3 {
		t.Fatalf("expected appended row, got %d rows", len(rows))
	}
	if rows[2][0] != "7" {
		t.Fatalf("unexpected appended row: %+v", rows[2])
	}

	// Second write for the same user must hit the remembered row, not append.
	row.PhrasesSeen = 1
	if err := gw.UpsertRow(context.Background(), 7, row); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows = api.Rows("profiles")
	if len(rows) != 3 {
		t.Fatalf("expected in-place update, got %d rows", len(rows))
	}
	if rows[2][2] != "1" {
		t.Fatalf("expected updated appended row, got %+v", rows[2])
	}
}

func TestConcurrentNewUserAppendsGetDistinctRows(t *testing.T) {
	api := seededAPI()
	gw := sheets.NewGateway(api, 0, testBackoff)

	var wg sync.WaitGroup
	for _, userID := range []int64{7, 8} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			row := sheets.ProfileRow{UserID: id, UserName: fmt.Sprintf("user-%d", id)}
			if err := gw.UpsertRow(context.Background(), id, row); err != nil {
				t.Errorf("upsert for user %d: %v", id, err)
			}
		}(userID)
	}
	wg.Wait()

	rows := api.Rows("profiles")
	if len(rows) != 4 {
		t.Fatalf("expected a row per user, got %d rows", len(rows))
	}

	// Both users must have remembered their own row: a later write for one
	// must never land on the other's.
	for _, id := range []int64{7, 8} {
		row := sheets.ProfileRow{UserID: id, PhrasesSeen: int(id) * 10}
		if err := gw.UpsertRow(context.Background(), id, row); err != nil {
			t.Fatalf("second upsert for user %d: %v", id, err)
		}
	}
	seen := map[string]string{}
	for _, cells := range api.Rows("profiles")[2:] {
		seen[cells[0]] = cells[2]
	}
	if seen["7"] != "70" || seen["8"] != "80" {
		t.Fatalf("writes crossed rows: %v", seen)
	}
}

func TestFetchRowRemembersRowForUpsert(t *testing.T) {
	api := seededAPI()
	gw := sheets.NewGateway(api, 0, testBackoff)

	if _, err := gw.FetchRow(context.Background(), 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reads := api.CallCount("read")

	row := sheets.ProfileRow{UserID: 42, UserName: "Alice", PhrasesSeen: 11}
	if err := gw.UpsertRow(context.Background(), 42, row); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := api.CallCount("read"); got != reads {
		t.Fatalf("upsert after fetch must not re-scan, reads went %d -> %d", reads, got)
	}
}

func TestAppendLog(t *testing.T) {
	api := fakesheets.New()
	gw := sheets.NewGateway(api, 0, testBackoff)

	entry := sheets.LogEntry{ID: "abc", UserID: 42, Phrase: "hello", Answer: "привет", Score: 1, At: time.Now()}
	if err := gw.AppendLog(context.Background(), entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := api.Rows("grades")
	if len(rows) != 1 || rows[0][0] != "abc" || rows[0][1] != "42" {
		t.Fatalf("unexpected log rows: %+v", rows)
	}
}

func TestFetchDeckSkipsIncompleteRows(t *testing.T) {
	api := fakesheets.New()
	api.Seed("english", [][]string{
		{"date", "english", "russian", "example", "progress"},
		{"2026-01-01", "hello", "привет", "Hello there!", "1.5"},
		{"2026-01-02", "broken row", "", "", ""},
		{"2026-01-03", "good evening", "добрый вечер", "", "0"},
	})
	gw := sheets.NewGateway(api, 0, testBackoff)

	cards, err := gw.FetchDeck(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("expected 2 cards, got %d: %+v", len(cards), cards)
	}
	if cards[0].English != "hello" || cards[0].RowNumber != 2 || cards[0].Progress != 1.5 {
		t.Fatalf("unexpected first card: %+v", cards[0])
	}
	if cards[1].RowNumber != 4 {
		t.Fatalf("expected sheet row 4, got %d", cards[1].RowNumber)
	}
}

func TestUpdateCardProgress(t *testing.T) {
	api := fakesheets.New()
	api.Seed("english", [][]string{
		{"date", "english", "russian", "example", "progress"},
		{"2026-01-01", "hello", "привет", "", "1.0"},
	})
	gw := sheets.NewGateway(api, 0, testBackoff)

	if err := gw.UpdateCardProgress(context.Background(), 2, 2.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := api.Rows("english")
	if rows[1][4] != "2.50" {
		t.Fatalf("expected progress cell 2.50, got %+v", rows[1])
	}

	if err := gw.UpdateCardProgress(context.Background(), 1, 1); err == nil {
		t.Fatalf("expected error for header row")
	}
}

func TestRateFloorSpacesCalls(t *testing.T) {
	api := seededAPI()
	interval := 30 * time.Millisecond
	gw := sheets.NewGateway(api, interval, testBackoff)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := gw.FetchRow(context.Background(), 42); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 2*interval {
		t.Fatalf("expected at least %v between 3 calls, took %v", 2*interval, elapsed)
	}
}
