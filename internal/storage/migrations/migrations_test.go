package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in      string
		want    Command
		wantErr bool
	}{
		{"up", CommandUp, false},
		{"DOWN", CommandDown, false},
		{"status", CommandStatus, false},
		{"version", CommandVersion, false},
		{"reset", CommandReset, false},
		{"redo", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseCommand(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseCommand(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCommand(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEmbeddedMigrations_HaveGooseAnnotations(t *testing.T) {
	for _, src := range []struct {
		fsys fs.FS
		dir  string
	}{
		{PostgresFS, postgresDir},
		{ClickhouseFS, clickhouseDir},
	} {
		entries, err := fs.ReadDir(src.fsys, src.dir)
		if err != nil {
			t.Fatalf("read %s: %v", src.dir, err)
		}
		if len(entries) == 0 {
			t.Fatalf("no migrations in %s", src.dir)
		}
		for _, e := range entries {
			data, err := fs.ReadFile(src.fsys, src.dir+"/"+e.Name())
			if err != nil {
				t.Fatalf("read %s: %v", e.Name(), err)
			}
			text := string(data)
			if !strings.Contains(text, "-- +goose Up") || !strings.Contains(text, "-- +goose Down") {
				t.Errorf("%s/%s missing goose Up/Down annotations", src.dir, e.Name())
			}
		}
	}
}
