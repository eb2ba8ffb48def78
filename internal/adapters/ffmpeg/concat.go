// Package ffmpeg shells out to the ffmpeg binary for lossless stream
// concatenation via the concat demuxer.
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Concatenator joins container files with ffmpeg's concat demuxer.
// Streams are copied, never re-encoded.
type Concatenator struct {
	// Binary overrides the ffmpeg executable name; defaults to "ffmpeg"
	// resolved via PATH.
	Binary string
	Logger zerolog.Logger
}

func (c *Concatenator) binary() string {
	if c.Binary != "" {
		return c.Binary
	}
	return "ffmpeg"
}

// Available reports whether the ffmpeg binary can be found. Checked
// once at startup so a missing binary fails the run before any
// download work happens.
func (c *Concatenator) Available() bool {
	_, err := exec.LookPath(c.binary())
	return err == nil
}

func (c *Concatenator) Concat(ctx context.Context, inputs []string, output string) error {
	if len(inputs) < 2 {
		return fmt.Errorf("concat needs at least 2 inputs, got %d", len(inputs))
	}

	listFile, err := writeConcatList(inputs, output)
	if err != nil {
		return err
	}
	defer os.Remove(listFile)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-fflags", "+discardcorrupt+genpts",
		"-map", "0:v:0",
		"-map", "0:a:0?",
		"-c", "copy",
		"-y",
		output,
	}
	c.Logger.Debug().Strs("args", args).Msg("running ffmpeg")

	cmd := exec.CommandContext(ctx, c.binary(), args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg concat: %w: %s", err, tail(out, 2000))
	}
	return nil
}

// writeConcatList builds the concat demuxer's input list next to the
// output so relative path handling never comes into play.
func writeConcatList(inputs []string, output string) (string, error) {
	var sb strings.Builder
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return "", err
		}
		// Single quotes in the path must be escaped for the demuxer's
		// quoting rules.
		escaped := strings.ReplaceAll(abs, "'", `'\''`)
		fmt.Fprintf(&sb, "file '%s'\n", escaped)
	}

	listFile := output + ".list.txt"
	if err := os.WriteFile(listFile, []byte(sb.String()), 0o644); err != nil {
		return "", err
	}
	return listFile, nil
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}
