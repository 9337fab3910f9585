package csvbackend

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/yolubot/boardnews/internal/article"
	"github.com/yolubot/boardnews/internal/storage"
)

// ensure csvLedger implements storage.Ledger
var _ storage.Ledger = (*csvLedger)(nil)

// csvLedger keeps the ledger in a spreadsheet-friendly CSV file.
type csvLedger struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	posted map[string]bool
}

// headers defines the CSV column order
var headers = []string{
	"id",
	"url",
	"title",
	"source",
	"keyword",
	"combined_score",
	"published_at",
	"posted_at",
}

// New creates a new CSV-backed storage.Ledger.
func New(filePath string) (storage.Ledger, error) {
	f, err := openFile(filePath)
	if err != nil {
		return nil, err
	}

	entries, err := readAll(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	l := &csvLedger{path: filePath, file: f, posted: make(map[string]bool, len(entries))}
	for _, p := range entries {
		l.posted[p.URL] = true
	}
	return l, nil
}

// openFile opens path for appending and writes the header row to new files.
func openFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("csvbackend: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csvbackend: stat: %w", err)
	}

	if info.Size() == 0 {
		if err := writeRecords(f, [][]string{headers}); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func (l *csvLedger) IsPosted(ctx context.Context, url string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return false, os.ErrClosed
	}
	return l.posted[url], nil
}

func (l *csvLedger) MarkPosted(ctx context.Context, a article.Article) error {
	p, err := storage.NewPosted(a, time.Now())
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return os.ErrClosed
	}
	if l.posted[p.URL] {
		return nil
	}

	if err := writeRecords(l.file, [][]string{toRecord(p)}); err != nil {
		return err
	}
	l.posted[p.URL] = true
	return nil
}

func (l *csvLedger) Recent(ctx context.Context, filter storage.Filter) ([]*storage.Posted, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.loadLocked()
	if err != nil {
		return nil, err
	}

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

func (l *csvLedger) Prune(ctx context.Context, before time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.loadLocked()
	if err != nil {
		return 0, err
	}

	records := [][]string{headers}
	clear(l.posted)
	for _, p := range entries {
		if p.PostedAt.Before(before) {
			continue
		}
		records = append(records, toRecord(p))
		l.posted[p.URL] = true
	}
	removed := int64(len(entries) - (len(records) - 1))
	if removed == 0 {
		return 0, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".ledger-*.csv")
	if err != nil {
		return 0, fmt.Errorf("csvbackend: prune: %w", err)
	}
	if err := writeRecords(tmp, records); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("csvbackend: prune: %w", err)
	}

	_ = l.file.Close()
	l.file = nil
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return 0, fmt.Errorf("csvbackend: prune: %w", err)
	}
	f, err := openFile(l.path)
	if err != nil {
		return 0, err
	}
	l.file = f
	return removed, nil
}

func (l *csvLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *csvLedger) loadLocked() ([]*storage.Posted, error) {
	if l.file == nil {
		return nil, os.ErrClosed
	}

	// Seek to the beginning of the file to read all entries
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("csvbackend: seek: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = l.file.Seek(0, io.SeekEnd)
	}()

	return readAll(l.file)
}

func readAll(f io.Reader) ([]*storage.Posted, error) {
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	// Read headers
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("csvbackend: read header: %w", err)
	}

	var entries []*storage.Posted
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvbackend: read: %w", err)
		}
		if len(record) != len(headers) {
			continue // skip malformed rows
		}
		entries = append(entries, fromRecord(record))
	}
	return entries, nil
}

func writeRecords(w io.Writer, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("csvbackend: write: %w", err)
	}
	return nil
}

func toRecord(p *storage.Posted) []string {
	published := ""
	if !p.PublishedAt.IsZero() {
		published = p.PublishedAt.Format(time.RFC3339)
	}
	return []string{
		p.ID,
		p.URL,
		p.Title,
		p.Source,
		p.Keyword,
		strconv.FormatFloat(p.CombinedScore, 'f', -1, 64),
		published,
		p.PostedAt.Format(time.RFC3339),
	}
}

func fromRecord(record []string) *storage.Posted {
	score, _ := strconv.ParseFloat(record[5], 64)
	published, _ := time.Parse(time.RFC3339, record[6])
	postedAt, _ := time.Parse(time.RFC3339, record[7])

	return &storage.Posted{
		ID:            record[0],
		URL:           record[1],
		Title:         record[2],
		Source:        record[3],
		Keyword:       record[4],
		CombinedScore: score,
		PublishedAt:   published,
		PostedAt:      postedAt,
	}
}
