package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ByteCounter aggregates downloaded bytes across part workers and
// tasks. The lock is held only for the read-modify-write.
type ByteCounter struct {
	mu sync.Mutex
	n  int64
}

func (c *ByteCounter) Add(n int64) {
	c.mu.Lock()
	c.n += n
	c.mu.Unlock()
}

func (c *ByteCounter) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Downloader fetches one track's video to a destination path, resuming
// interrupted transfers and splitting large files into ranged parts.
// A completed file is validated and moved into place atomically; the
// destination never holds a partial artifact.
type Downloader struct {
	Client  *http.Client
	Limiter *RateLimiter
	Logger  zerolog.Logger
	// Headers are applied to every request (User-Agent and friends).
	Headers map[string]string
	// Progress receives aggregate byte counts; optional.
	Progress *ByteCounter

	// MaxAttempts bounds whole-file attempts, including the clean
	// re-attempt after an integrity failure.
	MaxAttempts int
	// PartThreshold is the size at and above which a ranged multi-part
	// download is tried.
	PartThreshold int64
	// MinPartSize keeps parts big enough to be worth a connection.
	MinPartSize int64
	// MaxParts caps the nested part-worker pool.
	MaxParts int

	// backoffBase scales retry delays; zero means the default.
	backoffBase time.Duration
}

const (
	defaultMaxAttempts   = 3
	defaultPartThreshold = 32 << 20
	defaultMinPartSize   = 8 << 20
	defaultMaxParts      = 8
)

func (d *Downloader) maxAttempts() int {
	if d.MaxAttempts > 0 {
		return d.MaxAttempts
	}
	return defaultMaxAttempts
}

func (d *Downloader) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return http.DefaultClient
}

// Download fetches url into destPath. Returns nil immediately when a
// valid artifact is already in place.
func (d *Downloader) Download(ctx context.Context, url, destPath string) error {
	if ValidateArtifact(destPath) == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return failure(FailFilesystem, err)
	}

	tmp := destPath + ".tmp"
	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts(); attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, backoffDelay(d.backoffBase, attempt)); err != nil {
				return err
			}
			d.Logger.Debug().Str("dest", filepath.Base(destPath)).Int("attempt", attempt).Msg("retrying download")
		}

		err := d.attempt(ctx, url, destPath, tmp)
		if err == nil {
			return nil
		}
		// A cancelled run keeps its temp file so the next run resumes.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err
		// Integrity failures removed the temp file, so another attempt
		// starts clean and is worth having.
		if !Retryable(err) && KindOf(err) != FailIntegrity {
			break
		}
	}

	// Out of attempts: the temp file is no longer trusted, drop it so
	// the next run starts clean.
	_ = os.Remove(tmp)
	return lastErr
}

func (d *Downloader) attempt(ctx context.Context, url, destPath, tmp string) error {
	size, ranged, err := d.probe(ctx, url)
	if err != nil {
		return err
	}

	if ranged && size >= d.partThreshold() {
		if n := d.numParts(size); n >= 2 {
			if err := d.downloadParts(ctx, url, tmp, size, n); err != nil {
				if !Retryable(err) {
					return err
				}
				// Never leave the file half-spliced: parts are gone,
				// fall back to one stream for the whole file.
				d.Logger.Warn().Err(err).Str("dest", filepath.Base(destPath)).Msg("part download failed, falling back to single stream")
				if err := d.stream(ctx, url, tmp); err != nil {
					return err
				}
			}
		} else if err := d.stream(ctx, url, tmp); err != nil {
			return err
		}
	} else if err := d.stream(ctx, url, tmp); err != nil {
		return err
	}

	if err := ValidateArtifact(tmp); err != nil {
		_ = os.Remove(tmp)
		if kind := KindOf(err); kind == FailIntegrity {
			return err
		}
		return failure(FailIntegrity, err)
	}
	if err := os.Rename(tmp, destPath); err != nil {
		return failure(FailFilesystem, err)
	}
	return nil
}

// probe issues a HEAD to learn the size and whether byte ranges work.
func (d *Downloader) probe(ctx context.Context, url string) (size int64, ranged bool, err error) {
	if err := d.wait(ctx); err != nil {
		return 0, false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, false, failure(FailPermanent, err)
	}
	d.applyHeaders(req)
	resp, err := d.client().Do(req)
	if err != nil {
		return 0, false, transient(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return 0, false, failure(ClassifyStatus(resp.StatusCode), fmt.Errorf("HEAD %s: %s", url, resp.Status))
	}
	return resp.ContentLength, resp.Header.Get("Accept-Ranges") == "bytes", nil
}

func (d *Downloader) partThreshold() int64 {
	if d.PartThreshold > 0 {
		return d.PartThreshold
	}
	return defaultPartThreshold
}

func (d *Downloader) numParts(size int64) int {
	min := d.MinPartSize
	if min <= 0 {
		min = defaultMinPartSize
	}
	max := d.MaxParts
	if max <= 0 {
		max = defaultMaxParts
	}
	n := int(size / min)
	if n > max {
		n = max
	}
	return n
}

// downloadParts fetches [0,size) as n ranged parts concurrently, then
// splices them in order into tmp. On any part's final failure every
// part file is discarded and the error returned.
func (d *Downloader) downloadParts(ctx context.Context, url, tmp string, size int64, n int) error {
	partSize := size / int64(n)
	paths := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		start := int64(i) * partSize
		end := start + partSize - 1
		if i == n-1 {
			end = size - 1
		}
		paths[i] = fmt.Sprintf("%s.part%d", tmp, i)

		wg.Add(1)
		go func(i int, start, end int64) {
			defer wg.Done()
			errs[i] = d.fetchPart(ctx, url, paths[i], start, end)
		}(i, start, end)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			for _, p := range paths {
				_ = os.Remove(p)
			}
			return err
		}
	}

	out, err := os.Create(tmp)
	if err != nil {
		return failure(FailFilesystem, err)
	}
	for _, p := range paths {
		in, err := os.Open(p)
		if err == nil {
			_, err = io.Copy(out, in)
			in.Close()
		}
		if err != nil {
			out.Close()
			_ = os.Remove(tmp)
			return failure(FailFilesystem, err)
		}
	}
	if err := out.Close(); err != nil {
		return failure(FailFilesystem, err)
	}
	for _, p := range paths {
		_ = os.Remove(p)
	}
	return nil
}

// fetchPart downloads bytes [start,end] into partPath, resuming from
// whatever an earlier attempt already wrote.
func (d *Downloader) fetchPart(ctx context.Context, url, partPath string, start, end int64) error {
	return Retry(ctx, d.maxAttempts(), d.backoffBase, func() error {
		return d.fetchPartOnce(ctx, url, partPath, start, end)
	})
}

func (d *Downloader) fetchPartOnce(ctx context.Context, url, partPath string, start, end int64) error {
	have := int64(0)
	if info, err := os.Stat(partPath); err == nil {
		have = info.Size()
	}
	want := end - start + 1
	if have >= want {
		return nil
	}

	if err := d.wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return failure(FailPermanent, err)
	}
	d.applyHeaders(req)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start+have, end))

	resp, err := d.client().Do(req)
	if err != nil {
		return transient(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		if resp.StatusCode >= 400 {
			return failure(ClassifyStatus(resp.StatusCode), fmt.Errorf("GET %s: %s", url, resp.Status))
		}
		return failure(FailTransient, fmt.Errorf("expected 206 for ranged request, got %s", resp.Status))
	}

	f, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return failure(FailFilesystem, err)
	}
	_, err = io.Copy(f, d.count(resp.Body))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return transient(err)
	}
	return nil
}

// stream downloads the whole file on one connection, resuming from the
// temp file's current offset.
func (d *Downloader) stream(ctx context.Context, url, tmp string) error {
	offset := int64(0)
	if info, err := os.Stat(tmp); err == nil {
		offset = info.Size()
	}

	if err := d.wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return failure(FailPermanent, err)
	}
	d.applyHeaders(req)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := d.client().Do(req)
	if err != nil {
		return transient(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		// Offset at or past EOF; validation decides whether the temp
		// file is actually complete.
		return nil
	case resp.StatusCode == http.StatusPartialContent:
		// resume accepted, append below
	case resp.StatusCode == http.StatusOK:
		// Server ignored the range; start over.
		offset = 0
	case resp.StatusCode >= 400:
		return failure(ClassifyStatus(resp.StatusCode), fmt.Errorf("GET %s: %s", url, resp.Status))
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if offset == 0 {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(tmp, flags, 0o644)
	if err != nil {
		return failure(FailFilesystem, err)
	}
	_, err = io.Copy(f, d.count(resp.Body))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return transient(err)
	}
	return nil
}

func (d *Downloader) wait(ctx context.Context) error {
	if d.Limiter == nil {
		return ctx.Err()
	}
	return d.Limiter.Wait(ctx)
}

func (d *Downloader) applyHeaders(req *http.Request) {
	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "Mozilla/5.0")
	}
}

func (d *Downloader) count(r io.Reader) io.Reader {
	if d.Progress == nil {
		return r
	}
	return &countingReader{r: r, c: d.Progress}
}

type countingReader struct {
	r io.Reader
	c *ByteCounter
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.c.Add(int64(n))
	}
	return n, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
