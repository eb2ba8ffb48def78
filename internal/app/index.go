package app

import (
	"os"
	"path/filepath"

	"github.com/xduvd/xduvd/internal/domain"
	"github.com/xduvd/xduvd/internal/naming"
)

// ArtifactIndex answers "is this period's video already on disk" by
// reading filenames. There is no manifest: the directory listing is the
// whole index, which keeps runs idempotent against artifacts produced
// by any earlier version of the tool.
type ArtifactIndex struct {
	Dir string
}

// StateOf reports the artifact state for one period and track. A file
// only counts when it passes the integrity check; truncated leftovers
// report as missing so they get re-downloaded.
func (ix ArtifactIndex) StateOf(p domain.ClassPeriodEntry, track domain.Track) domain.ArtifactState {
	for _, ext := range naming.Exts {
		path := filepath.Join(ix.Dir, naming.SingleName(p, track, ext))
		if ValidateArtifact(path) == nil {
			return domain.ArtifactSingle
		}
	}

	entries, err := os.ReadDir(ix.Dir)
	if err != nil {
		return domain.ArtifactMissing
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, ok := naming.ParseMergedName(e.Name())
		if !ok || !info.Covers(p, track) {
			continue
		}
		if ValidateArtifact(filepath.Join(ix.Dir, e.Name())) == nil {
			return domain.ArtifactCovered
		}
	}
	return domain.ArtifactMissing
}

// ValidSibling returns the path of a valid artifact for the period at
// offset (±1) from p, if one exists under either extension.
func (ix ArtifactIndex) ValidSibling(p domain.ClassPeriodEntry, offset int, track domain.Track) (string, bool) {
	for _, ext := range naming.Exts {
		path := filepath.Join(ix.Dir, naming.SiblingName(p, offset, track, ext))
		if ValidateArtifact(path) == nil {
			return path, true
		}
	}
	return "", false
}
