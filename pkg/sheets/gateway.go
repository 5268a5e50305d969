package sheets

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TabularAPI is the opaque tabular store behind the gateway. Ranges use A1
// notation ("profiles!A2:L2"). Implementations tag their failures with
// Transient/Permanent via this package's Error type; untagged errors are
// treated as transient.
type TabularAPI interface {
	ReadRange(ctx context.Context, rng string) ([][]string, error)
	WriteRange(ctx context.Context, rng string, rows [][]string) error
	Append(ctx context.Context, rng string, rows [][]string) error
}

// Tab ranges, fixed by the sheet layout the original content is kept in.
const (
	ProfileRange = "profiles!A:L"
	DeckRange    = "english!A:E"
	LogRange     = "grades!A:F"
)

const callTimeout = 15 * time.Second

// Gateway mediates all spreadsheet access: it enforces a minimum inter-call
// interval, retries transient failures with exponential backoff, serializes
// operations touching the same user's row, and flips into degraded mode on a
// permanent failure so callers can keep running on cached data.
type Gateway struct {
	api     TabularAPI
	limiter *rate.Limiter
	backoff Backoff

	// appendMu serializes new-row appends across users. Two first-time
	// flushes must not read the same row count and claim the same row
	// number, or the later one would overwrite the earlier user's row.
	appendMu sync.Mutex

	mu       sync.Mutex
	rowIndex map[int64]int // userID -> 1-based profiles row number
	rowLocks map[int64]*sync.Mutex
	lastRow  int // highest known profiles row, 0 when unknown
	degraded bool
}

// NewGateway wires a gateway over api with the given minimum interval
// between calls. A zero minInterval disables the rate floor (tests).
func NewGateway(api TabularAPI, minInterval time.Duration, backoff Backoff) *Gateway {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Gateway{
		api:      api,
		limiter:  rate.NewLimiter(limit, 1),
		backoff:  backoff,
		rowIndex: make(map[int64]int),
		rowLocks: make(map[int64]*sync.Mutex),
	}
}

// Degraded reports whether the gateway has seen a permanent failure. The
// process keeps serving from cache in this mode rather than crashing.
func (g *Gateway) Degraded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.degraded
}

// FetchRow returns the profile row for userID, or ErrNotFound.
func (g *Gateway) FetchRow(ctx context.Context, userID int64) (ProfileRow, error) {
	lock := g.rowLock(userID)
	lock.Lock()
	defer lock.Unlock()

	values, err := g.readProfiles(ctx)
	if err != nil {
		return ProfileRow{}, err
	}

	for i, cells := range values {
		if i == 0 {
			continue // header
		}
		if len(cells) == 0 || cells[0] != fmt.Sprint(userID) {
			continue
		}
		row, perr := ParseProfileRow(cells)
		if perr != nil {
			g.markDegraded("fetch_row", perr)
			return ProfileRow{}, Permanent("fetch_row", perr)
		}
		g.rememberRow(userID, i+1)
		return row, nil
	}

	return ProfileRow{}, ErrNotFound
}

// UpsertRow writes the profile row for userID, appending a new row when the
// user has none yet. Calls for the same user are serialized; different users
// proceed concurrently.
func (g *Gateway) UpsertRow(ctx context.Context, userID int64, row ProfileRow) error {
	lock := g.rowLock(userID)
	lock.Lock()
	defer lock.Unlock()

	rowNum := g.knownRow(userID)
	if rowNum == 0 {
		appended, err := g.appendIfMissing(ctx, userID, row)
		if err != nil || appended {
			return err
		}
		rowNum = g.knownRow(userID)
	}

	rng := fmt.Sprintf("profiles!A%d:L%d", rowNum, rowNum)
	return g.withRetry(ctx, "upsert_row", func(callCtx context.Context) error {
		return g.api.WriteRange(callCtx, rng, [][]string{row.Values()})
	})
}

// appendIfMissing resolves the sheet row for a user the gateway has not
// seen yet, appending a new row when the tab has none either. The whole
// read-scan-append sequence runs under appendMu: the re-read inside the
// lock sees any append that landed since the caller's rowNum check, so two
// concurrent first flushes end up on distinct rows.
func (g *Gateway) appendIfMissing(ctx context.Context, userID int64, row ProfileRow) (bool, error) {
	g.appendMu.Lock()
	defer g.appendMu.Unlock()

	values, err := g.readProfiles(ctx)
	if err != nil {
		return false, err
	}
	for i, cells := range values {
		if i == 0 {
			continue
		}
		if len(cells) > 0 && cells[0] == fmt.Sprint(userID) {
			g.rememberRow(userID, i+1)
			return false, nil
		}
	}

	err = g.withRetry(ctx, "upsert_row", func(callCtx context.Context) error {
		return g.api.Append(callCtx, ProfileRange, [][]string{row.Values()})
	})
	if err != nil {
		return false, err
	}
	g.rememberRow(userID, len(values)+1)
	return true, nil
}

// AppendLog appends one grading event to the append-only log tab.
func (g *Gateway) AppendLog(ctx context.Context, entry LogEntry) error {
	return g.withRetry(ctx, "append_log", func(callCtx context.Context) error {
		return g.api.Append(callCtx, LogRange, [][]string{entry.Values()})
	})
}

// FetchDeck reads the content tab and returns its valid cards.
func (g *Gateway) FetchDeck(ctx context.Context) ([]CardRow, error) {
	var values [][]string
	err := g.withRetry(ctx, "fetch_deck", func(callCtx context.Context) error {
		var rerr error
		values, rerr = g.api.ReadRange(callCtx, DeckRange)
		return rerr
	})
	if err != nil {
		return nil, err
	}

	cards, skipped := ParseCardRows(values)
	if skipped > 0 {
		log.Printf("[FetchDeck] Skipped %d incomplete rows in content tab", skipped)
	}
	return cards, nil
}

// UpdateCardProgress writes the accumulated score back to the content tab's
// progress column for the given sheet row.
func (g *Gateway) UpdateCardProgress(ctx context.Context, rowNumber int, progress float64) error {
	if rowNumber < 2 {
		return Permanent("update_card_progress", fmt.Errorf("invalid content row %d", rowNumber))
	}
	rng := fmt.Sprintf("english!E%d:E%d", rowNumber, rowNumber)
	return g.withRetry(ctx, "update_card_progress", func(callCtx context.Context) error {
		return g.api.WriteRange(callCtx, rng, [][]string{{fmt.Sprintf("%.2f", progress)}})
	})
}

func (g *Gateway) readProfiles(ctx context.Context) ([][]string, error) {
	var values [][]string
	err := g.withRetry(ctx, "fetch_row", func(callCtx context.Context) error {
		var rerr error
		values, rerr = g.api.ReadRange(callCtx, ProfileRange)
		return rerr
	})
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	if len(values) > g.lastRow {
		g.lastRow = len(values)
	}
	g.mu.Unlock()
	return values, nil
}

// withRetry runs call under the rate floor, retrying transient failures per
// the backoff policy. Permanent failures mark the gateway degraded and return
// immediately; exhausting the budget yields ErrUnavailable.
func (g *Gateway) withRetry(ctx context.Context, op string, call func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < g.backoff.Attempts; attempt++ {
		if attempt > 0 {
			delay := g.backoff.Delay(attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Transient(op, ctx.Err())
			}
		}

		if err := g.limiter.Wait(ctx); err != nil {
			return Transient(op, err)
		}

		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		err := call(callCtx)
		cancel()
		if err == nil {
			return nil
		}

		if IsPermanent(err) {
			g.markDegraded(op, err)
			return err
		}

		lastErr = err
		log.Printf("[Gateway] %s attempt %d/%d failed: %v", op, attempt+1, g.backoff.Attempts, err)
	}

	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, lastErr)
}

func (g *Gateway) rowLock(userID int64) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	lock, ok := g.rowLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		g.rowLocks[userID] = lock
	}
	return lock
}

func (g *Gateway) knownRow(userID int64) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rowIndex[userID]
}

func (g *Gateway) rememberRow(userID int64, rowNum int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rowIndex[userID] = rowNum
	if rowNum > g.lastRow {
		g.lastRow = rowNum
	}
}

func (g *Gateway) markDegraded(op string, err error) {
	g.mu.Lock()
	already := g.degraded
	g.degraded = true
	g.mu.Unlock()
	if !already {
		log.Printf("[Gateway] PERMANENT failure in %s, entering degraded mode: %v", op, err)
	}
}
