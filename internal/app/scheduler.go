package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/xduvd/xduvd/internal/domain"
	"github.com/xduvd/xduvd/internal/naming"
	"github.com/xduvd/xduvd/internal/ports"
)

// Scheduler runs a batch of class periods through the
// skip / resolve / download / merge pipeline on a bounded worker pool.
// Each task fails alone: an error is recorded in the run statistics and
// the pool moves on.
type Scheduler struct {
	Links    ports.LinkSource
	Playlist ports.PlaylistFetcher
	Index    ArtifactIndex
	Download *Downloader
	// Mode is the batch's API mode, decided once from the listing's
	// term year and never re-detected per period.
	Mode domain.APIMode
	// Merge is optional; nil leaves every period as a single file.
	Merge *MergeEngine
	// Bus is optional; task lifecycle events are published to it.
	Bus    ports.EventBus
	Logger zerolog.Logger
	// Tracks defaults to both recording tracks.
	Tracks  []domain.Track
	Workers int

	mu    sync.Mutex
	stats domain.RunStatistics
	// mergeMu serializes merges: a merge reads and deletes neighbor
	// files, so two adjacent periods finishing together must not merge
	// concurrently.
	mergeMu sync.Mutex
}

func (s *Scheduler) tracks() []domain.Track {
	if len(s.Tracks) > 0 {
		return s.Tracks
	}
	return []domain.Track{domain.TrackSlides, domain.TrackCamera}
}

func (s *Scheduler) workers() int {
	if s.Workers > 0 && s.Workers <= MaxWorkers {
		return s.Workers
	}
	if s.Workers > MaxWorkers {
		return MaxWorkers
	}
	return DefaultWorkerCount()
}

// Run processes all periods and returns the batch statistics. The only
// way Run stops early is context cancellation; individual task failures
// never abort the batch.
func (s *Scheduler) Run(ctx context.Context, periods []domain.ClassPeriodEntry) domain.RunStatistics {
	runID := xid.New().String()
	log := s.Logger.With().Str("run_id", runID).Logger()

	s.mu.Lock()
	s.stats = domain.RunStatistics{Total: len(periods) * len(s.tracks())}
	s.mu.Unlock()

	names := newKeyedMutex()
	jobs := make(chan domain.ClassPeriodEntry)

	var wg sync.WaitGroup
	n := s.workers()
	log.Info().Int("workers", n).Int("periods", len(periods)).Msg("batch started")
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				s.process(ctx, log, names, p)
			}
		}()
	}

feed:
	for _, p := range periods {
		select {
		case jobs <- p:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	s.mu.Lock()
	out := s.stats
	s.mu.Unlock()
	log.Info().
		Int("downloaded", out.Downloaded).
		Int("skipped", out.Skipped).
		Int("merged", out.Merged).
		Int("not_ready", out.NotReady).
		Int("failed", out.Failed).
		Msg("batch finished")
	return out
}

// process handles one class period: both tracks, resolving links at
// most once.
func (s *Scheduler) process(ctx context.Context, log zerolog.Logger, names *keyedMutex, p domain.ClassPeriodEntry) {
	ext := s.Mode.Ext()
	log = log.With().Int64("live_id", p.LiveID).Str("course", p.CourseName).Logger()

	var (
		resolved       bool
		slides, camera string
		resolveErr     error
	)
	resolve := func() (string, string, error) {
		if !resolved {
			slides, camera, resolveErr = s.Links.Resolve(ctx, p)
			resolved = true
		}
		return slides, camera, resolveErr
	}

	for _, track := range s.tracks() {
		name := naming.SingleName(p, track, ext)
		unlock := names.Lock(name)
		s.processTrack(ctx, log, p, track, name, resolve)
		unlock()
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Scheduler) processTrack(ctx context.Context, log zerolog.Logger, p domain.ClassPeriodEntry, track domain.Track, name string, resolve func() (string, string, error)) {
	task := domain.DownloadTask{ID: xid.New().String(), Period: p, Track: track}
	log = log.With().Str("task_id", task.ID).Str("track", string(track)).Logger()

	state := domain.TaskPending
	advance := func(next domain.TaskState, extra map[string]string) {
		if !domain.CanTransition(state, next) {
			log.Error().Str("from", string(state)).Str("to", string(next)).Msg("impossible state transition")
		}
		state = next
		s.publish(task, next, extra)
	}
	fail := func(err error) {
		kind := KindOf(err)
		advance(domain.TaskFailed, map[string]string{"kind": string(kind), "error": err.Error()})
		s.count(func(st *domain.RunStatistics) {
			st.Failed++
			st.Failures = append(st.Failures, domain.TaskFailure{
				LiveID: p.LiveID,
				Course: p.CourseName,
				Date:   fmt.Sprintf("%d-%02d-%02d", p.Year, p.Month, p.Day),
				Period: p.Period,
				Track:  track,
				Reason: fmt.Sprintf("%s: %v", kind, err),
			})
		})
		log.Error().Err(err).Str("kind", string(kind)).Msg("task failed")
	}

	if artifact := s.Index.StateOf(p, track); artifact != domain.ArtifactMissing {
		advance(domain.TaskSkipped, map[string]string{"artifact": artifact.String()})
		s.count(func(st *domain.RunStatistics) { st.Skipped++ })
		log.Debug().Str("artifact", artifact.String()).Msg("already on disk")
		return
	}

	advance(domain.TaskResolving, nil)
	slides, camera, err := resolve()
	if err != nil {
		if errors.Is(err, ports.ErrNotReady) {
			advance(domain.TaskNotReady, nil)
			s.count(func(st *domain.RunStatistics) { st.NotReady++ })
			log.Info().Msg("recording not generated yet")
			return
		}
		fail(err)
		return
	}

	task.SourceURL = slides
	if track == domain.TrackCamera {
		task.SourceURL = camera
	}
	if task.SourceURL == "" {
		// The platform has no recording for this track; nothing to do.
		advance(domain.TaskSkipped, map[string]string{"artifact": "no_source"})
		s.count(func(st *domain.RunStatistics) { st.Skipped++ })
		return
	}

	advance(domain.TaskDownloading, nil)
	dest := filepath.Join(s.Index.Dir, name)
	if s.Mode == domain.ModeLegacy {
		err = s.fetchPlaylist(ctx, task.SourceURL, dest)
	} else {
		err = s.Download.Download(ctx, task.SourceURL, dest)
	}
	if err != nil {
		fail(err)
		return
	}
	advance(domain.TaskDownloaded, map[string]string{"file": name})
	s.count(func(st *domain.RunStatistics) { st.Downloaded++ })
	log.Info().Str("file", name).Msg("downloaded")

	if s.Merge == nil {
		return
	}
	s.mergeMu.Lock()
	merged, err := s.Merge.TryMerge(ctx, p, track, s.Mode.Ext())
	s.mergeMu.Unlock()
	if err != nil {
		// The downloaded single file is intact; report but do not fail
		// the task.
		log.Warn().Err(err).Msg("merge failed, keeping single files")
		return
	}
	if merged {
		advance(domain.TaskMerged, nil)
		s.count(func(st *domain.RunStatistics) { st.Merged++ })
	}
}

// fetchPlaylist hands a legacy HLS source to the external tool under
// the shared retry budget, then applies the same validation the
// in-process downloader does. A file that fails validation is removed
// so the re-attempt starts clean.
func (s *Scheduler) fetchPlaylist(ctx context.Context, url, dest string) error {
	if s.Playlist == nil {
		return failure(FailPermanent, errors.New("no playlist fetcher configured for legacy source"))
	}
	dir := filepath.Dir(dest)
	stem := strings.TrimSuffix(filepath.Base(dest), filepath.Ext(dest))
	attempts, base := 0, time.Duration(0)
	if s.Download != nil {
		attempts, base = s.Download.maxAttempts(), s.Download.backoffBase
	}
	return Retry(ctx, attempts, base, func() error {
		if err := s.Playlist.Fetch(ctx, url, dir, stem); err != nil {
			return failure(FailTransient, err)
		}
		if err := ValidateArtifact(dest); err != nil {
			_ = os.Remove(dest)
			return failure(FailIntegrity, err)
		}
		return nil
	})
}

// Snapshot returns a copy of the current batch statistics, safe to
// read while the batch is running.
func (s *Scheduler) Snapshot() domain.RunStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.Failures = append([]domain.TaskFailure(nil), s.stats.Failures...)
	return out
}

func (s *Scheduler) count(fn func(*domain.RunStatistics)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

// publish emits one state-transition event per task, topic
// "task.<state>".
func (s *Scheduler) publish(task domain.DownloadTask, state domain.TaskState, extra map[string]string) {
	if s.Bus == nil {
		return
	}
	payload := map[string]any{
		"task_id": task.ID,
		"live_id": task.Period.LiveID,
		"course":  task.Period.CourseName,
		"period":  task.Period.Period,
		"track":   string(task.Track),
	}
	for k, v := range extra {
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	s.Bus.Publish("task."+string(state), b)
}
