package fakesheets

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"englishtutorbot/pkg/sheets"
)

// FakeAPI implements sheets.TabularAPI for headless tests: an in-memory tab
// map plus scriptable failure queues per operation.
type FakeAPI struct {
	mu       sync.Mutex
	tabs     map[string][][]string
	Calls    []Call
	failNext map[string][]error
}

// Call captures one tabular operation invocation.
type Call struct {
	Op    string
	Range string
	Rows  [][]string
}

var _ sheets.TabularAPI = (*FakeAPI)(nil)

func New() *FakeAPI {
	return &FakeAPI{
		tabs:     make(map[string][][]string),
		failNext: make(map[string][]error),
	}
}

// Seed replaces the contents of a tab.
func (f *FakeAPI) Seed(tab string, rows [][]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := make([][]string, len(rows))
	for i, r := range rows {
		copied[i] = append([]string(nil), r...)
	}
	f.tabs[tab] = copied
}

// Rows returns a copy of a tab's contents.
func (f *FakeAPI) Rows(tab string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.tabs[tab]
	copied := make([][]string, len(rows))
	for i, r := range rows {
		copied[i] = append([]string(nil), r...)
	}
	return copied
}

// Fail queues err for the next call of op ("read", "write", "append").
// Multiple calls queue multiple failures in order.
func (f *FakeAPI) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[op] = append(f.failNext[op], err)
}

// CallCount returns the number of recorded calls for op.
func (f *FakeAPI) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (f *FakeAPI) ReadRange(ctx context.Context, rng string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, sheets.Transient("read", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Op: "read", Range: rng})
	if err := f.popFailure("read"); err != nil {
		return nil, err
	}

	tab, _, _, err := splitRange(rng)
	if err != nil {
		return nil, sheets.Permanent("read", err)
	}
	rows := f.tabs[tab]
	copied := make([][]string, len(rows))
	for i, r := range rows {
		copied[i] = append([]string(nil), r...)
	}
	return copied, nil
}

func (f *FakeAPI) WriteRange(ctx context.Context, rng string, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return sheets.Transient("write", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Op: "write", Range: rng, Rows: rows})
	if err := f.popFailure("write"); err != nil {
		return err
	}

	tab, startRow, startCol, err := splitRange(rng)
	if err != nil {
		return sheets.Permanent("write", err)
	}
	if startRow == 0 {
		startRow = 1
	}
	for i, cells := range rows {
		target := startRow - 1 + i
		for len(f.tabs[tab]) <= target {
			f.tabs[tab] = append(f.tabs[tab], nil)
		}
		existing := f.tabs[tab][target]
		for j, cell := range cells {
			col := startCol - 1 + j
			for len(existing) <= col {
				existing = append(existing, "")
			}
			existing[col] = cell
		}
		f.tabs[tab][target] = existing
	}
	return nil
}

func (f *FakeAPI) Append(ctx context.Context, rng string, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return sheets.Transient("append", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Op: "append", Range: rng, Rows: rows})
	if err := f.popFailure("append"); err != nil {
		return err
	}

	tab, _, _, err := splitRange(rng)
	if err != nil {
		return sheets.Permanent("append", err)
	}
	for _, cells := range rows {
		f.tabs[tab] = append(f.tabs[tab], append([]string(nil), cells...))
	}
	return nil
}

func (f *FakeAPI) popFailure(op string) error {
	queue := f.failNext[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	f.failNext[op] = queue[1:]
	return err
}

var cellRef = regexp.MustCompile(`^([A-Z]+)(\d*)$`)

// splitRange decodes "tab!A2:I2" into the tab name, start row (0 when the
// range is unbounded like "tab!A:I") and 1-based start column.
func splitRange(rng string) (tab string, startRow, startCol int, err error) {
	parts := strings.SplitN(rng, "!", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", 0, 0, fmt.Errorf("malformed range %q", rng)
	}
	tab = parts[0]

	ref := strings.SplitN(parts[1], ":", 2)[0]
	m := cellRef.FindStringSubmatch(ref)
	if m == nil {
		return "", 0, 0, fmt.Errorf("malformed cell reference in %q", rng)
	}

	startCol = 0
	for _, ch := range m[1] {
		startCol = startCol*26 + int(ch-'A'+1)
	}
	if m[2] != "" {
		startRow, _ = strconv.Atoi(m[2])
	}
	return tab, startRow, startCol, nil
}
