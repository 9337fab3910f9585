package backend

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	tests := []struct {
		name    string
		dsn     string
		wantNil bool
		wantErr bool
	}{
		{"sqlite", "file:backend_open?mode=memory&cache=shared", false, false},
		{"json", filepath.Join(dir, "ledger.jsonl"), false, false},
		{"CSV", filepath.Join(dir, "ledger.csv"), false, false},
		{"none", "", true, false},
		{"redis", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := Open(ctx, tt.name, tt.dsn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if (l == nil) != tt.wantNil {
				t.Fatalf("Open(%q) nil = %v, want %v", tt.name, l == nil, tt.wantNil)
			}
			if l != nil {
				if err := l.Close(); err != nil {
					t.Errorf("Close: %v", err)
				}
			}
		})
	}
}

func TestValid(t *testing.T) {
	for _, n := range []string{"sqlite", " Postgres ", "json", "csv", "none"} {
		if !Valid(n) {
			t.Errorf("expected %q to be valid", n)
		}
	}
	if Valid("mongo") {
		t.Errorf("expected mongo to be invalid")
	}
}
