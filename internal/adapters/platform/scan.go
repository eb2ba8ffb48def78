package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/xduvd/xduvd/internal/app"
)

// CourseSummary is one course discovered by a term scan, carrying the
// live ID of its first recorded period.
type CourseSummary struct {
	CourseID    int64  `json:"courseId"`
	CourseCode  string `json:"courseCode"`
	CourseName  string `json:"courseName"`
	FirstLiveID int64  `json:"firstLiveId"`
	Week        int    `json:"week"`
}

// ScanCourses walks the student's term schedule week by week and
// returns each course once, with the first period found for it. The
// week count is open ended; the scan stops after two consecutive empty
// weeks, which tolerates single holiday weeks mid-term.
func (c *Client) ScanCourses(ctx context.Context, userID string, termYear, termID int) ([]CourseSummary, error) {
	seen := make(map[int64]CourseSummary)
	empty := 0
	for week := 1; empty < 2; week++ {
		entries, err := c.scanWeek(ctx, userID, termYear, termID, week)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			empty++
			continue
		}
		empty = 0
		for _, e := range entries {
			if _, ok := seen[e.CourseID]; ok {
				continue
			}
			seen[e.CourseID] = CourseSummary{
				CourseID:    e.CourseID,
				CourseCode:  e.CourseCode,
				CourseName:  e.CourseName,
				FirstLiveID: e.ID,
				Week:        week,
			}
		}
	}

	out := make([]CourseSummary, 0, len(seen))
	for _, s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out, nil
}

type scanEntry struct {
	ID         int64  `json:"id"`
	CourseID   int64  `json:"courseId"`
	CourseCode string `json:"courseCode"`
	CourseName string `json:"courseName"`
}

func (c *Client) scanWeek(ctx context.Context, userID string, termYear, termID, week int) ([]scanEntry, error) {
	var entries []scanEntry
	err := c.retry(ctx, func() error {
		u := fmt.Sprintf("%s/frontLive/listStudentCourseLivePage?fid=16820&userId=%s&week=%d&termYear=%d&termId=%d",
			c.base(), userID, week, termYear, termID)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		resp, err := c.do(ctx, req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return &app.TaskError{
				Kind: app.ClassifyStatus(resp.StatusCode),
				Err:  fmt.Errorf("scan week %d: %s", week, resp.Status),
			}
		}
		entries = entries[:0]
		if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
			return fmt.Errorf("scan week %d: decode: %w", week, err)
		}
		return nil
	})
	return entries, err
}
