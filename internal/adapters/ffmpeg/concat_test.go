package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConcatRejectsSingleInput(t *testing.T) {
	c := &Concatenator{}
	if err := c.Concat(context.Background(), []string{"only.mp4"}, "out.mp4"); err == nil {
		t.Fatal("expected error for a single input")
	}
}

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mp4")
	b := filepath.Join(dir, "it's.mp4")
	out := filepath.Join(dir, "out.mp4")

	listFile, err := writeConcatList([]string{a, b}, out)
	if err != nil {
		t.Fatalf("write list: %v", err)
	}
	defer os.Remove(listFile)

	content, err := os.ReadFile(listFile)
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "file '"+a+"'" {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[1], `'\''`) {
		t.Fatalf("quote not escaped in %q", lines[1])
	}
}
