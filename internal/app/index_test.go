package app

import (
	"path/filepath"
	"testing"

	"github.com/xduvd/xduvd/internal/domain"
	"github.com/xduvd/xduvd/internal/naming"
)

func indexPeriod() domain.ClassPeriodEntry {
	return domain.ClassPeriodEntry{
		LiveID:     1001,
		CourseCode: "RJ210101",
		CourseName: "软件工程",
		Year:       2024,
		Month:      3,
		Day:        12,
		Weekday:    2,
		Period:     3,
		Week:       4,
	}
}

func TestStateOfMissing(t *testing.T) {
	ix := ArtifactIndex{Dir: t.TempDir()}
	if got := ix.StateOf(indexPeriod(), domain.TrackSlides); got != domain.ArtifactMissing {
		t.Fatalf("expected missing, got %s", got)
	}
}

func TestStateOfSingle(t *testing.T) {
	p := indexPeriod()
	ix := ArtifactIndex{Dir: t.TempDir()}
	writeFile(t, filepath.Join(ix.Dir, naming.SingleName(p, domain.TrackSlides, ".mp4")), mp4Payload(2048))

	if got := ix.StateOf(p, domain.TrackSlides); got != domain.ArtifactSingle {
		t.Fatalf("expected single, got %s", got)
	}
	// The other track has no file.
	if got := ix.StateOf(p, domain.TrackCamera); got != domain.ArtifactMissing {
		t.Fatalf("expected missing for camera track, got %s", got)
	}
}

func TestStateOfLegacyExtension(t *testing.T) {
	p := indexPeriod()
	ix := ArtifactIndex{Dir: t.TempDir()}
	writeFile(t, filepath.Join(ix.Dir, naming.SingleName(p, domain.TrackCamera, ".ts")), tsPayload(2048))

	if got := ix.StateOf(p, domain.TrackCamera); got != domain.ArtifactSingle {
		t.Fatalf("expected single via .ts, got %s", got)
	}
}

func TestStateOfCoveredByMergedRange(t *testing.T) {
	p := indexPeriod()
	ix := ArtifactIndex{Dir: t.TempDir()}
	writeFile(t, filepath.Join(ix.Dir, naming.MergedName(p, 3, 4, domain.TrackSlides, ".mp4")), mp4Payload(2048))

	if got := ix.StateOf(p, domain.TrackSlides); got != domain.ArtifactCovered {
		t.Fatalf("expected covered, got %s", got)
	}

	outside := p
	outside.Period = 5
	if got := ix.StateOf(outside, domain.TrackSlides); got != domain.ArtifactMissing {
		t.Fatalf("expected missing for period outside range, got %s", got)
	}
}

// A merged file for the same course and the same numeric range but a
// different date must never satisfy the check.
func TestStateOfMergedRangeOtherDate(t *testing.T) {
	p := indexPeriod()
	other := p
	other.Day = 19
	other.Week = 5

	ix := ArtifactIndex{Dir: t.TempDir()}
	writeFile(t, filepath.Join(ix.Dir, naming.MergedName(other, 3, 4, domain.TrackSlides, ".mp4")), mp4Payload(2048))

	if got := ix.StateOf(p, domain.TrackSlides); got != domain.ArtifactMissing {
		t.Fatalf("expected missing, got %s", got)
	}
}

func TestStateOfIgnoresTruncatedFiles(t *testing.T) {
	p := indexPeriod()
	ix := ArtifactIndex{Dir: t.TempDir()}
	writeFile(t, filepath.Join(ix.Dir, naming.SingleName(p, domain.TrackSlides, ".mp4")), mp4Payload(100))

	if got := ix.StateOf(p, domain.TrackSlides); got != domain.ArtifactMissing {
		t.Fatalf("expected truncated file to count as missing, got %s", got)
	}
}

func TestValidSibling(t *testing.T) {
	p := indexPeriod()
	ix := ArtifactIndex{Dir: t.TempDir()}
	prev := p
	prev.Period = 2
	writeFile(t, filepath.Join(ix.Dir, naming.SingleName(prev, domain.TrackSlides, ".mp4")), mp4Payload(2048))

	path, ok := ix.ValidSibling(p, -1, domain.TrackSlides)
	if !ok {
		t.Fatal("expected previous sibling to be found")
	}
	if filepath.Base(path) != naming.SingleName(prev, domain.TrackSlides, ".mp4") {
		t.Fatalf("unexpected sibling path %s", path)
	}
	if _, ok := ix.ValidSibling(p, +1, domain.TrackSlides); ok {
		t.Fatal("expected no next sibling")
	}
}
