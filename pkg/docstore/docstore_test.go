package docstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDirListFiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"fees.txt":     "fee schedule",
		"programs.json": `{"bs": ["avionics"]}`,
		"notes.md":     "not a source",
		"readme":       "not a source either",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755); err != nil {
		t.Fatal(err)
	}

	src, err := NewDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names, err := src.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"fees.txt", "programs.json"}
	if len(names) != len(want) {
		t.Fatalf("List = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestDirRead(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "fees.txt"), []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := NewDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	data, err := src.Read(context.Background(), "fees.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "content" {
		t.Errorf("Read = %q", data)
	}
}

func TestDirCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	src, err := NewDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names, err := src.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Errorf("List on fresh dir = %v, want empty", names)
	}
}

func TestIsSourceName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"fees.txt", true},
		{"programs.json", true},
		{"audio.mp3", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := IsSourceName(tt.name); got != tt.want {
			t.Errorf("IsSourceName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
