package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// rangeServer serves payload with full range support and records the
// requests it saw.
type rangeServer struct {
	payload []byte

	mu     sync.Mutex
	ranges []string
	heads  int
	gets   int
}

func (s *rangeServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		switch r.Method {
		case http.MethodHead:
			s.heads++
		case http.MethodGet:
			s.gets++
			s.ranges = append(s.ranges, r.Header.Get("Range"))
		}
		s.mu.Unlock()
		http.ServeContent(w, r, "lecture.mp4", time.Unix(0, 0), bytes.NewReader(s.payload))
	})
}

func (s *rangeServer) rangesSeen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ranges...)
}

func newTestDownloader() *Downloader {
	return &Downloader{backoffBase: time.Millisecond}
}

func TestDownloadWholeFile(t *testing.T) {
	srv := &rangeServer{payload: mp4Payload(4096)}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "lecture.mp4")
	if err := newTestDownloader().Download(context.Background(), ts.URL, dest); err != nil {
		t.Fatalf("download: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if !bytes.Equal(got, srv.payload) {
		t.Fatalf("downloaded %d bytes, payload differs", len(got))
	}
	if _, err := os.Stat(dest + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file left behind")
	}
}

func TestDownloadSkipsExistingValidArtifact(t *testing.T) {
	srv := &rangeServer{payload: mp4Payload(4096)}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "lecture.mp4")
	writeFile(t, dest, mp4Payload(2048))

	if err := newTestDownloader().Download(context.Background(), ts.URL, dest); err != nil {
		t.Fatalf("download: %v", err)
	}
	if srv.heads != 0 || srv.gets != 0 {
		t.Fatalf("expected no requests for existing artifact, got %d HEAD %d GET", srv.heads, srv.gets)
	}
}

func TestDownloadResumesFromTempOffset(t *testing.T) {
	srv := &rangeServer{payload: mp4Payload(4096)}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "lecture.mp4")
	writeFile(t, dest+".tmp", srv.payload[:2048])

	if err := newTestDownloader().Download(context.Background(), ts.URL, dest); err != nil {
		t.Fatalf("download: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if !bytes.Equal(got, srv.payload) {
		t.Fatal("resumed file differs from payload")
	}

	var resumed bool
	for _, r := range srv.rangesSeen() {
		if r == "bytes=2048-" {
			resumed = true
		}
	}
	if !resumed {
		t.Fatalf("expected a resume range request, saw %v", srv.rangesSeen())
	}
}

func TestDownloadMultiPart(t *testing.T) {
	srv := &rangeServer{payload: mp4Payload(4096)}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	d := newTestDownloader()
	d.PartThreshold = 1024
	d.MinPartSize = 512
	d.MaxParts = 4
	var counter ByteCounter
	d.Progress = &counter

	dest := filepath.Join(t.TempDir(), "lecture.mp4")
	if err := d.Download(context.Background(), ts.URL, dest); err != nil {
		t.Fatalf("download: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if !bytes.Equal(got, srv.payload) {
		t.Fatal("spliced file differs from payload")
	}
	if counter.Total() != int64(len(srv.payload)) {
		t.Fatalf("progress counted %d bytes, want %d", counter.Total(), len(srv.payload))
	}

	bounded := 0
	for _, r := range srv.rangesSeen() {
		if strings.HasPrefix(r, "bytes=") && strings.Contains(r, "-") && !strings.HasSuffix(r, "-") {
			bounded++
		}
	}
	if bounded != 4 {
		t.Fatalf("expected 4 bounded part ranges, saw %v", srv.rangesSeen())
	}

	if leftovers, _ := filepath.Glob(dest + ".tmp.part*"); len(leftovers) != 0 {
		t.Fatalf("part files left behind: %v", leftovers)
	}
}

func TestDownloadNotFoundIsPermanent(t *testing.T) {
	requests := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.NotFound(w, r)
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "lecture.mp4")
	err := newTestDownloader().Download(context.Background(), ts.URL, dest)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if kind := KindOf(err); kind != FailPermanent {
		t.Fatalf("expected permanent failure, got %s", kind)
	}
	if requests != 1 {
		t.Fatalf("expected no retries after 404, got %d requests", requests)
	}
}

func TestDownloadServerErrorRetriesThenSucceeds(t *testing.T) {
	payload := mp4Payload(4096)
	fails := 2
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead && fails > 0 {
			fails--
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		http.ServeContent(w, r, "lecture.mp4", time.Unix(0, 0), bytes.NewReader(payload))
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "lecture.mp4")
	if err := newTestDownloader().Download(context.Background(), ts.URL, dest); err != nil {
		t.Fatalf("download after retries: %v", err)
	}
	if err := ValidateArtifact(dest); err != nil {
		t.Fatalf("artifact invalid after retries: %v", err)
	}
}

func TestDownloadCorruptPayloadFails(t *testing.T) {
	// Big enough to pass the size check but carrying no mp4 header.
	srv := &rangeServer{payload: make([]byte, 4096)}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "lecture.mp4")
	err := newTestDownloader().Download(context.Background(), ts.URL, dest)
	if err == nil {
		t.Fatal("expected integrity failure")
	}
	if kind := KindOf(err); kind != FailIntegrity {
		t.Fatalf("expected integrity failure, got %s", kind)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("destination must not exist after integrity failure")
	}
	if _, err := os.Stat(dest + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file must be removed after final failure")
	}
}
