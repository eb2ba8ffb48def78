package app

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// minArtifactSize is the smallest plausible recording; anything below it
// is a truncated or error-page download.
const minArtifactSize = 1024

// ValidateArtifact checks that the file at path is a plausible complete
// artifact: minimum size plus a container header signature. The
// container is inferred from the extension, looking through a trailing
// .tmp suffix so in-flight files validate the same way as finals.
func ValidateArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() < minArtifactSize {
		return failure(FailIntegrity, fmt.Errorf("%s: %d bytes, below minimum", filepath.Base(path), info.Size()))
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	header := make([]byte, 12)
	n, err := f.Read(header)
	if err != nil {
		return err
	}
	header = header[:n]

	switch artifactExt(path) {
	case ".mp4":
		// ISO BMFF: the ftyp box sits in the first bytes after the size field.
		if !bytes.Contains(header, []byte("ftyp")) {
			return failure(FailIntegrity, fmt.Errorf("%s: missing mp4 ftyp header", filepath.Base(path)))
		}
	case ".ts":
		if len(header) == 0 || header[0] != 0x47 {
			return failure(FailIntegrity, fmt.Errorf("%s: missing mpeg-ts sync byte", filepath.Base(path)))
		}
	default:
		return failure(FailIntegrity, fmt.Errorf("%s: unknown container", filepath.Base(path)))
	}
	return nil
}

func artifactExt(path string) string {
	path = strings.TrimSuffix(path, ".tmp")
	return strings.ToLower(filepath.Ext(path))
}
