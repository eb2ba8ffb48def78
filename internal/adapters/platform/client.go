// Package platform talks to the lecture-capture platform API: the
// course schedule listing and the per-period stream URL resolvers.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/xduvd/xduvd/internal/app"
	"github.com/xduvd/xduvd/internal/domain"
	"github.com/xduvd/xduvd/internal/ports"
)

const DefaultBaseURL = "http://newesxidian.chaoxing.com"

// Client carries the shared pieces of every platform call: base URL,
// session headers, the shared rate limiter and the retry budget.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Session ports.SessionProvider
	Limiter *app.RateLimiter
	Logger  zerolog.Logger

	// MaxAttempts bounds retries of each API call; zero means the
	// shared default.
	MaxAttempts int

	// backoffBase scales retry delays; zero means the default.
	backoffBase time.Duration
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return DefaultBaseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if c.Session != nil {
		headers, err := c.Session.SessionHeaders(ctx)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "Mozilla/5.0")
	}
	return c.httpClient().Do(req)
}

// retry applies the shared bounded-attempt policy to one API call. The
// platform drops connections and serves stray 5xx under load, so a
// single failed request never fails a task on its own.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	return app.Retry(ctx, c.MaxAttempts, c.backoffBase, fn)
}

// apiEntry is the schedule listing's JSON shape. Only the fields the
// pipeline needs are decoded.
type apiEntry struct {
	ID         int64  `json:"id"`
	Jie        int    `json:"jie"`
	Days       int    `json:"days"`
	CourseCode string `json:"courseCode"`
	CourseName string `json:"courseName"`
	StartTime  struct {
		Time int64 `json:"time"`
	} `json:"startTime"`
	EndTime struct {
		Time int64 `json:"time"`
	} `json:"endTime"`
}

func (e apiEntry) toPeriod() domain.ClassPeriodEntry {
	t := time.Unix(e.StartTime.Time/1000, 0).UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return domain.ClassPeriodEntry{
		LiveID:      e.ID,
		CourseCode:  e.CourseCode,
		CourseName:  e.CourseName,
		Year:        t.Year(),
		Month:       int(t.Month()),
		Day:         t.Day(),
		Weekday:     weekday,
		Period:      e.Jie,
		Week:        e.Days,
		EndTimeUnix: e.EndTime.Time / 1000,
	}
}

// FetchCourse lists every recorded period of the course that the given
// live ID belongs to.
func (c *Client) FetchCourse(ctx context.Context, liveID int64) ([]domain.ClassPeriodEntry, error) {
	var entries []apiEntry
	err := c.retry(ctx, func() error {
		form := url.Values{"liveId": {strconv.FormatInt(liveID, 10)}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.base()+"/live/listSignleCourse", strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.do(ctx, req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return &app.TaskError{
				Kind: app.ClassifyStatus(resp.StatusCode),
				Err:  fmt.Errorf("list course %d: %s", liveID, resp.Status),
			}
		}
		entries = entries[:0]
		if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
			return fmt.Errorf("list course %d: decode: %w", liveID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.ClassPeriodEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.toPeriod())
	}
	return out, nil
}

// resolveInfo fetches a view URL page and decodes the info= payload
// into the two track URLs. Transient resolve failures are retried under
// the client's budget; a not-ready page is a final answer, not a fault.
func (c *Client) resolveInfo(ctx context.Context, path string) (slides, camera string, err error) {
	err = c.retry(ctx, func() error {
		var rerr error
		slides, camera, rerr = c.resolveInfoOnce(ctx, path)
		return rerr
	})
	return slides, camera, err
}

func (c *Client) resolveInfoOnce(ctx context.Context, path string) (slides, camera string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+path, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", &app.TaskError{
			Kind: app.ClassifyStatus(resp.StatusCode),
			Err:  fmt.Errorf("resolve %s: %s", path, resp.Status),
		}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}

	// The page embeds the recording metadata URL-encoded after an
	// "info=" marker. An empty page means the recording has not been
	// generated yet.
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "", "", ports.ErrNotReady
	}
	idx := strings.LastIndex(text, "info=")
	if idx < 0 {
		return "", "", ports.ErrNotReady
	}
	decoded, err := url.QueryUnescape(text[idx+len("info="):])
	if err != nil {
		return "", "", fmt.Errorf("resolve %s: decode info: %w", path, err)
	}

	var info struct {
		VideoPath *struct {
			PPTVideo     string `json:"pptVideo"`
			TeacherTrack string `json:"teacherTrack"`
		} `json:"videoPath"`
	}
	if err := json.Unmarshal([]byte(decoded), &info); err != nil {
		return "", "", fmt.Errorf("resolve %s: parse info: %w", path, err)
	}
	if info.VideoPath == nil {
		return "", "", ports.ErrNotReady
	}
	return info.VideoPath.PPTVideo, info.VideoPath.TeacherTrack, nil
}

// LegacyLinkSource resolves HLS playlist URLs for recordings made
// before the platform switched to progressive files.
type LegacyLinkSource struct {
	Client *Client
}

func (s *LegacyLinkSource) Resolve(ctx context.Context, p domain.ClassPeriodEntry) (string, string, error) {
	return s.Client.resolveInfo(ctx, fmt.Sprintf("/live/getViewUrlHls?liveId=%d&status=2", p.LiveID))
}

// ModernLinkSource resolves progressive mp4 URLs for current-era
// recordings.
type ModernLinkSource struct {
	Client *Client
}

func (s *ModernLinkSource) Resolve(ctx context.Context, p domain.ClassPeriodEntry) (string, string, error) {
	return s.Client.resolveInfo(ctx, fmt.Sprintf("/live/getViewUrl?liveId=%d&status=1", p.LiveID))
}

// NewLinkSource picks the resolver for a batch's API mode. The mode is
// decided once per course listing; every period in it resolves against
// the same endpoint family.
func NewLinkSource(c *Client, mode domain.APIMode) ports.LinkSource {
	if mode == domain.ModeLegacy {
		return &LegacyLinkSource{Client: c}
	}
	return &ModernLinkSource{Client: c}
}
