package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/xduvd/xduvd/internal/domain"
	"github.com/xduvd/xduvd/internal/naming"
	"github.com/xduvd/xduvd/internal/ports"
)

// MergeEngine joins a freshly downloaded period with its adjacent
// periods of the same lecture into one file. The merged name encodes
// the covered range, so the ArtifactIndex recognizes the result and the
// single-period sources become redundant and are removed.
type MergeEngine struct {
	Index  ArtifactIndex
	Concat ports.StreamConcatenator
	Logger zerolog.Logger
}

// TryMerge looks for valid artifacts at period-1 and period+1 and, if
// at least one exists, concatenates the run into a merged file. It
// reports whether a merge happened. The concatenation writes to a temp
// name and sources are deleted only after the merged file validates, so
// a crash at any point loses no recording.
func (m *MergeEngine) TryMerge(ctx context.Context, p domain.ClassPeriodEntry, track domain.Track, ext string) (bool, error) {
	selfPath := filepath.Join(m.Index.Dir, naming.SingleName(p, track, ext))
	if ValidateArtifact(selfPath) != nil {
		return false, nil
	}

	first, last := p.Period, p.Period
	inputs := []string{selfPath}
	if prev, ok := m.Index.ValidSibling(p, -1, track); ok {
		first = p.Period - 1
		inputs = append([]string{prev}, inputs...)
	}
	if next, ok := m.Index.ValidSibling(p, +1, track); ok {
		last = p.Period + 1
		inputs = append(inputs, next)
	}
	if len(inputs) == 1 {
		return false, nil
	}

	outName := naming.MergedName(p, first, last, track, ext)
	outPath := filepath.Join(m.Index.Dir, outName)
	if ValidateArtifact(outPath) == nil {
		// A previous run produced the merged file but died before
		// cleaning up. Finish the cleanup.
		m.removeSources(inputs)
		return true, nil
	}

	tmp := filepath.Join(m.Index.Dir, ".merge-"+outName)
	if err := m.Concat.Concat(ctx, inputs, tmp); err != nil {
		_ = os.Remove(tmp)
		return false, failure(FailFilesystem, fmt.Errorf("concat %s: %w", outName, err))
	}
	if err := ValidateArtifact(tmp); err != nil {
		_ = os.Remove(tmp)
		return false, failure(FailIntegrity, fmt.Errorf("merged output %s: %w", outName, err))
	}
	if err := os.Rename(tmp, outPath); err != nil {
		_ = os.Remove(tmp)
		return false, failure(FailFilesystem, err)
	}

	m.Logger.Info().Str("merged", outName).Int("periods", len(inputs)).Msg("merged adjacent periods")
	m.removeSources(inputs)
	return true, nil
}

func (m *MergeEngine) removeSources(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			m.Logger.Warn().Err(err).Str("path", p).Msg("could not remove merged source")
		}
	}
}
