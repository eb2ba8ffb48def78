package app

import (
	"strings"
	"testing"

	"github.com/xduvd/xduvd/internal/domain"
)

func TestWriteLinkReport(t *testing.T) {
	p := indexPeriod()
	var sb strings.Builder
	err := WriteLinkReport(&sb, []ReportRow{
		{Period: p, Slides: "https://cdn.example/ppt.mp4", Camera: "https://cdn.example/cam.mp4"},
	})
	if err != nil {
		t.Fatalf("write report: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d lines", len(lines))
	}
	if lines[0] != "month,date,day,jie,days,pptVideo,teacherTrack" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[1] != "3,12,2,3,4,https://cdn.example/ppt.mp4,https://cdn.example/cam.mp4" {
		t.Fatalf("unexpected row %q", lines[1])
	}
}

func TestWriteLinkReportEmpty(t *testing.T) {
	var sb strings.Builder
	if err := WriteLinkReport(&sb, nil); err != nil {
		t.Fatalf("write report: %v", err)
	}
	if got := strings.TrimSpace(sb.String()); got != "month,date,day,jie,days,pptVideo,teacherTrack" {
		t.Fatalf("expected header only, got %q", got)
	}
	_ = domain.RunStatistics{}
}
