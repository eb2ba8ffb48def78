package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/xduvd/xduvd/internal/adapters/ffmpeg"
	"github.com/xduvd/xduvd/internal/adapters/hlsdl"
	"github.com/xduvd/xduvd/internal/adapters/httpapi"
	"github.com/xduvd/xduvd/internal/adapters/memorybus"
	"github.com/xduvd/xduvd/internal/adapters/platform"
	"github.com/xduvd/xduvd/internal/app"
	"github.com/xduvd/xduvd/internal/buildinfo"
	"github.com/xduvd/xduvd/internal/config"
	"github.com/xduvd/xduvd/internal/domain"
	"github.com/xduvd/xduvd/internal/naming"
	"github.com/xduvd/xduvd/internal/ports"
)

func main() {
	def := config.Default()
	liveID := flag.Int64("live", 0, "live ID of any period of the course")
	outDir := flag.String("dir", ".", "directory to create the course folder in")
	tracks := flag.String("tracks", "both", "tracks to download: both, ppt or teacher")
	single := flag.Bool("single", false, "download only the given period instead of the whole course")
	noMerge := flag.Bool("no-merge", false, "keep adjacent periods as separate files")
	workers := flag.Int("workers", 0, "worker count (0 = size from CPU count and load)")
	report := flag.Bool("report", false, "write a CSV of resolved video links into the course folder")
	statusAddr := flag.String("status-addr", def.StatusAddr, "serve the status API on this address (empty = off)")
	baseURL := flag.String("base-url", def.BaseURL, "platform base URL")
	debug := flag.Bool("debug", false, "verbose logging")
	scanUser := flag.String("scan-user", "", "scan a term's courses for this student ID instead of downloading")
	termYear := flag.Int("term-year", 0, "term year for -scan-user")
	termID := flag.Int("term-id", 1, "term ID for -scan-user (1 = autumn, 2 = spring)")
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()
	log.Logger = logger

	if *liveID <= 0 && *scanUser == "" {
		fmt.Fprintln(os.Stderr, "Usage: xduvd -live <liveId> [flags]")
		fmt.Fprintln(os.Stderr, "       xduvd -scan-user <studentId> -term-year <year> [-term-id 1|2]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *scanUser != "" {
		if err := runScan(ctx, logger, def, *baseURL, *scanUser, *termYear, *termID); err != nil {
			logger.Error().Err(err).Msg("scan failed")
			os.Exit(1)
		}
		return
	}

	logger.Info().Interface("build", buildinfo.Current()).Int64("live_id", *liveID).Msg("starting")

	if err := run(ctx, logger, def, *liveID, *outDir, *tracks, *single, *noMerge, *workers, *report, *statusAddr, *baseURL); err != nil {
		logger.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, logger zerolog.Logger, cfg config.Config, liveID int64, outDir, tracksFlag string, single, noMerge bool, workers int, report bool, statusAddr, baseURL string) error {
	tracks, err := parseTracks(tracksFlag)
	if err != nil {
		return err
	}

	limiter := app.NewRateLimiter(200*time.Millisecond, 700*time.Millisecond)
	client := &platform.Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Session: platform.CookieSession{FID: cfg.FID, UID: cfg.UID, D: cfg.D, VC3: cfg.VC3},
		Limiter: limiter,
		Logger:  logger.With().Str("component", "platform").Logger(),
	}

	periods, err := client.FetchCourse(ctx, liveID)
	if err != nil {
		return fmt.Errorf("list course: %w", err)
	}
	if len(periods) == 0 {
		return fmt.Errorf("live ID %d: no recorded periods found", liveID)
	}
	if single {
		periods = filterLiveID(periods, liveID)
		if len(periods) == 0 {
			return fmt.Errorf("live ID %d not present in its own course listing", liveID)
		}
	}
	first := periods[0]
	saveDir := filepath.Join(outDir, naming.SaveDir(first.Year, first.CourseCode, first.CourseName))
	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		return err
	}
	mode := domain.DetectMode(domain.TermYear(periods))

	periods = dropUnfinished(logger, periods)
	if len(periods) == 0 {
		logger.Info().Msg("every period is still in progress, nothing to do")
		return nil
	}
	logger.Info().Str("dir", saveDir).Str("mode", mode.String()).Int("periods", len(periods)).Msg("course listed")

	links := platform.NewLinkSource(client, mode)
	if report {
		links, err = writeReport(ctx, logger, links, periods, filepath.Join(saveDir, fmt.Sprintf("%d.csv", liveID)))
		if err != nil {
			return err
		}
	}

	bus := memorybus.New()
	defer bus.Close()

	var counter app.ByteCounter
	download := &app.Downloader{
		Client:   &http.Client{Timeout: 10 * time.Minute},
		Limiter:  limiter,
		Logger:   logger.With().Str("component", "downloader").Logger(),
		Progress: &counter,
	}

	index := app.ArtifactIndex{Dir: saveDir}
	var merge *app.MergeEngine
	if !noMerge {
		concat := &ffmpeg.Concatenator{Logger: logger.With().Str("component", "ffmpeg").Logger()}
		if concat.Available() {
			merge = &app.MergeEngine{Index: index, Concat: concat, Logger: logger.With().Str("component", "merge").Logger()}
		} else {
			logger.Warn().Msg("ffmpeg not found, adjacent periods will stay separate")
		}
	}

	var playlist ports.PlaylistFetcher
	if mode == domain.ModeLegacy {
		fetcher := &hlsdl.Fetcher{Logger: logger.With().Str("component", "hlsdl").Logger()}
		if !fetcher.Available() {
			return errors.New("course predates the progressive endpoint and the playlist downloader binary is not on PATH")
		}
		playlist = fetcher
	}

	sched := &app.Scheduler{
		Links:    links,
		Playlist: playlist,
		Index:    index,
		Download: download,
		Mode:     mode,
		Merge:    merge,
		Bus:      bus,
		Logger:   logger,
		Tracks:   tracks,
		Workers:  workers,
	}

	if statusAddr != "" {
		srv := httpapi.NewServer(logger.With().Str("component", "httpapi").Logger(), bus, sched.Snapshot, &counter)
		httpServer := &http.Server{Addr: statusAddr, Handler: srv.Router(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info().Str("addr", statusAddr).Msg("status API listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("status API crashed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()
	}

	stats := sched.Run(ctx, periods)
	for _, f := range stats.Failures {
		logger.Error().
			Int64("live_id", f.LiveID).
			Str("date", f.Date).
			Int("period", f.Period).
			Str("track", string(f.Track)).
			Msg(f.Reason)
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", stats.Failed, stats.Total)
	}
	return ctx.Err()
}

// runScan lists a term's courses with the live ID of each course's
// first period, which is the handle the download mode wants.
func runScan(ctx context.Context, logger zerolog.Logger, cfg config.Config, baseURL, userID string, termYear, termID int) error {
	if termYear <= 0 {
		return errors.New("-scan-user needs -term-year")
	}
	client := &platform.Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Session: platform.CookieSession{FID: cfg.FID, UID: cfg.UID, D: cfg.D, VC3: cfg.VC3},
		Limiter: app.NewRateLimiter(200*time.Millisecond, 700*time.Millisecond),
		Logger:  logger.With().Str("component", "platform").Logger(),
	}
	courses, err := client.ScanCourses(ctx, userID, termYear, termID)
	if err != nil {
		return err
	}
	if len(courses) == 0 {
		logger.Warn().Msg("no courses found for this term")
		return nil
	}
	for _, c := range courses {
		fmt.Printf("%d\t%s%s\t(first period live ID %d, week %d)\n",
			c.CourseID, c.CourseCode, c.CourseName, c.FirstLiveID, c.Week)
	}
	return nil
}

func parseTracks(s string) ([]domain.Track, error) {
	switch s {
	case "both", "":
		return nil, nil
	case "ppt":
		return []domain.Track{domain.TrackSlides}, nil
	case "teacher":
		return []domain.Track{domain.TrackCamera}, nil
	default:
		return nil, fmt.Errorf("unknown tracks value %q (want both, ppt or teacher)", s)
	}
}

func filterLiveID(periods []domain.ClassPeriodEntry, liveID int64) []domain.ClassPeriodEntry {
	out := periods[:0]
	for _, p := range periods {
		if p.LiveID == liveID {
			out = append(out, p)
		}
	}
	return out
}

// dropUnfinished removes periods whose lecture has not ended yet; their
// recordings cannot exist and asking for them just burns rate budget.
func dropUnfinished(logger zerolog.Logger, periods []domain.ClassPeriodEntry) []domain.ClassPeriodEntry {
	now := time.Now().Unix()
	out := periods[:0]
	for _, p := range periods {
		if p.EndTimeUnix > 0 && p.EndTimeUnix > now {
			logger.Info().Int64("live_id", p.LiveID).Msg("lecture not finished yet, skipping")
			continue
		}
		out = append(out, p)
	}
	return out
}

// writeReport resolves every period's links up front, writes them as
// CSV and returns a link source that replays the resolved URLs so the
// download phase does not hit the resolve endpoint twice.
func writeReport(ctx context.Context, logger zerolog.Logger, links ports.LinkSource, periods []domain.ClassPeriodEntry, path string) (ports.LinkSource, error) {
	cache := &cachedLinks{
		fallback: links,
		slides:   make(map[int64]string),
		camera:   make(map[int64]string),
	}
	rows := make([]app.ReportRow, 0, len(periods))
	for _, p := range periods {
		slides, camera, err := links.Resolve(ctx, p)
		if err != nil {
			if errors.Is(err, ports.ErrNotReady) {
				logger.Info().Int64("live_id", p.LiveID).Msg("recording not ready, link report row left empty")
				rows = append(rows, app.ReportRow{Period: p})
				continue
			}
			return nil, fmt.Errorf("resolve links for %d: %w", p.LiveID, err)
		}
		cache.slides[p.LiveID] = slides
		cache.camera[p.LiveID] = camera
		rows = append(rows, app.ReportRow{Period: p, Slides: slides, Camera: camera})
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := app.WriteLinkReport(f, rows); err != nil {
		return nil, err
	}
	logger.Info().Str("csv", path).Int("rows", len(rows)).Msg("link report written")
	return cache, nil
}

// cachedLinks serves Resolve from the report pass, falling back to the
// live resolver for periods that were not ready at report time.
type cachedLinks struct {
	fallback ports.LinkSource
	slides   map[int64]string
	camera   map[int64]string
}

func (c *cachedLinks) Resolve(ctx context.Context, p domain.ClassPeriodEntry) (string, string, error) {
	if slides, ok := c.slides[p.LiveID]; ok {
		return slides, c.camera[p.LiveID], nil
	}
	return c.fallback.Resolve(ctx, p)
}
