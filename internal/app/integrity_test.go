package app

import (
	"os"
	"path/filepath"
	"testing"
)

// mp4Payload builds n bytes that pass the mp4 header check.
func mp4Payload(n int) []byte {
	b := make([]byte, n)
	copy(b[4:], "ftyp")
	for i := 8; i < n; i++ {
		b[i] = byte(i)
	}
	return b
}

// tsPayload builds n bytes that pass the mpeg-ts header check.
func tsPayload(n int) []byte {
	b := make([]byte, n)
	b[0] = 0x47
	return b
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestValidateArtifact(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name string
		file string
		data []byte
		ok   bool
	}{
		{"valid mp4", "a.mp4", mp4Payload(2048), true},
		{"valid ts", "a.ts", tsPayload(2048), true},
		{"valid mp4 temp", "a.mp4.tmp", mp4Payload(2048), true},
		{"too small", "b.mp4", mp4Payload(100), false},
		{"mp4 without ftyp", "c.mp4", make([]byte, 2048), false},
		{"ts without sync byte", "c.ts", make([]byte, 2048), false},
		{"unknown extension", "d.bin", mp4Payload(2048), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.file)
			writeFile(t, path, tc.data)
			err := ValidateArtifact(path)
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected validation error, got nil")
			}
		})
	}
}

func TestValidateArtifactMissingFile(t *testing.T) {
	if err := ValidateArtifact(filepath.Join(t.TempDir(), "nope.mp4")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
