package csvbackend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yolubot/boardnews/internal/article"
	"github.com/yolubot/boardnews/internal/storage"
	"github.com/yolubot/boardnews/internal/storage/storagetest"
)

func TestCSVLedger(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "ledger.csv")

	l, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to create CSV ledger: %v", err)
	}
	defer l.Close()

	storagetest.Run(t, l)
}

func TestCSVLedger_FileLayout(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "ledger.csv")
	ctx := context.Background()

	l, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to create CSV ledger: %v", err)
	}

	a := article.Article{
		Title:  `Title with "quotes", commas`,
		URL:    "https://meeplemountain.com/news/x",
		Source: "meeplemountain.com",
	}
	if err := l.MarkPosted(ctx, a); err != nil {
		t.Fatalf("MarkPosted: %v", err)
	}
	l.Close()

	data, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %d lines", len(lines))
	}
	if lines[0] != strings.Join(headers, ",") {
		t.Errorf("unexpected header %q", lines[0])
	}

	reopened, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to reopen CSV ledger: %v", err)
	}
	defer reopened.Close()

	recent, err := reopened.Recent(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Title != a.Title {
		t.Errorf("expected quoted title to round-trip, got %+v", recent)
	}
	if !recent[0].PublishedAt.IsZero() {
		t.Errorf("expected zero published time, got %v", recent[0].PublishedAt)
	}
}
