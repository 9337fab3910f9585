package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/yolubot/boardnews/internal/article"
	"github.com/yolubot/boardnews/internal/storage"
)

// ensure jsonLedger implements storage.Ledger
var _ storage.Ledger = (*jsonLedger)(nil)

// jsonLedger appends one JSON object per line and keeps the set of posted
// URLs in memory, so lookups never touch the file.
type jsonLedger struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	posted map[string]bool
}

// New creates a new NDJSON-backed storage.Ledger.
func New(filePath string) (storage.Ledger, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("jsonbackend: open: %w", err)
	}

	entries, err := readAll(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	l := &jsonLedger{path: filePath, file: f, posted: make(map[string]bool, len(entries))}
	for _, p := range entries {
		l.posted[p.URL] = true
	}
	return l, nil
}

func (l *jsonLedger) IsPosted(ctx context.Context, url string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return false, os.ErrClosed
	}
	return l.posted[url], nil
}

func (l *jsonLedger) MarkPosted(ctx context.Context, a article.Article) error {
	p, err := storage.NewPosted(a, time.Now())
	if err != nil {
		return err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("jsonbackend: marshal: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return os.ErrClosed
	}
	if l.posted[p.URL] {
		return nil
	}

	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("jsonbackend: write: %w", err)
	}
	l.posted[p.URL] = true

	return nil
}

func (l *jsonLedger) Recent(ctx context.Context, filter storage.Filter) ([]*storage.Posted, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.loadLocked()
	if err != nil {
		return nil, err
	}

	// In a real DB, offset/limit and ordering is handled by the engine.
	// For NDJSON, we read everything, filter in memory, and then slice.
	var filtered []*storage.Posted
	for i := len(entries) - 1; i >= 0; i-- {
		if filter.Match(entries[i]) {
			filtered = append(filtered, entries[i])
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].PostedAt.After(filtered[j].PostedAt)
	})

	return filter.Page(filtered), nil
}

func (l *jsonLedger) Prune(ctx context.Context, before time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.loadLocked()
	if err != nil {
		return 0, err
	}

	var keep []*storage.Posted
	for _, p := range entries {
		if !p.PostedAt.Before(before) {
			keep = append(keep, p)
		}
	}
	removed := int64(len(entries) - len(keep))
	if removed == 0 {
		return 0, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".ledger-*.jsonl")
	if err != nil {
		return 0, fmt.Errorf("jsonbackend: prune: %w", err)
	}
	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, p := range keep {
		if err := enc.Encode(p); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return 0, fmt.Errorf("jsonbackend: prune: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("jsonbackend: prune: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("jsonbackend: prune: %w", err)
	}

	_ = l.file.Close()
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return 0, fmt.Errorf("jsonbackend: prune: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		l.file = nil
		return 0, fmt.Errorf("jsonbackend: reopen: %w", err)
	}
	l.file = f

	clear(l.posted)
	for _, p := range keep {
		l.posted[p.URL] = true
	}
	return removed, nil
}

func (l *jsonLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// loadLocked reads every entry from the start of the file. l.mu must be held.
func (l *jsonLedger) loadLocked() ([]*storage.Posted, error) {
	if l.file == nil {
		return nil, os.ErrClosed
	}

	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("jsonbackend: seek: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = l.file.Seek(0, io.SeekEnd)
	}()

	return readAll(l.file)
}

func readAll(r io.Reader) ([]*storage.Posted, error) {
	scanner := bufio.NewScanner(r)

	var entries []*storage.Posted
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var p storage.Posted
		if err := json.Unmarshal(line, &p); err != nil {
			return nil, fmt.Errorf("jsonbackend: decode entry: %w", err)
		}
		entries = append(entries, &p)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("jsonbackend: read: %w", err)
	}
	return entries, nil
}
