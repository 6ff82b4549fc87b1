package gather

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

const checkpointFile = ".gathered"

// checkpoint records, per symbol, the last day whose bars were fetched, so a
// later pass only asks for the days after it. It is persisted as
// "SYMBOL YYYY-MM-DD" lines in <dir>/.gathered.
type checkpoint struct {
	mu   sync.Mutex
	path string
	last map[string]time.Time
}

// loadCheckpoint reads the checkpoint in dir, creating dir if needed. A
// missing file is an empty checkpoint.
func loadCheckpoint(dir string) (*checkpoint, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating checkpoint dir: %w", err)
	}
	cp := &checkpoint{
		path: filepath.Join(dir, checkpointFile),
		last: make(map[string]time.Time),
	}

	f, err := os.Open(cp.path)
	if errors.Is(err, fs.ErrNotExist) {
		return cp, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		sym, date, ok := strings.Cut(strings.TrimSpace(sc.Text()), " ")
		if !ok {
			continue
		}
		t, err := time.Parse(time.DateOnly, date)
		if err != nil {
			continue
		}
		cp.last[sym] = t
	}
	return cp, sc.Err()
}

// Last returns the last gathered day of symbol, or the zero time.
func (c *checkpoint) Last(symbol string) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last[symbol]
}

// Pending returns the days of [start, end] not yet gathered for symbol.
func (c *checkpoint) Pending(symbol string, start, end time.Time) DateRange {
	r := DateRange{Start: start, End: end}
	if last := c.Last(symbol); !last.IsZero() && !last.Before(start) {
		r.Start = last.AddDate(0, 0, 1)
	}
	return r
}

// Mark records day as gathered for symbol and rewrites the file.
func (c *checkpoint) Mark(symbol string, day time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.last[symbol]; ok && !day.After(prev) {
		return nil
	}
	c.last[symbol] = day

	var b strings.Builder
	for _, sym := range slices.Sorted(maps.Keys(c.last)) {
		fmt.Fprintf(&b, "%s %s\n", sym, c.last[sym].Format(time.DateOnly))
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	return os.Rename(tmp, c.path)
}
