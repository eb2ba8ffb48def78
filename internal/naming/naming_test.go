package naming

import (
	"testing"

	"github.com/xduvd/xduvd/internal/domain"
)

func samplePeriod() domain.ClassPeriodEntry {
	return domain.ClassPeriodEntry{
		LiveID:     11740668,
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

func TestSingleName(t *testing.T) {
	p := samplePeriod()
	got := SingleName(p, domain.TrackSlides, ".mp4")
	want := "RJ210101软件工程2024年3月12日第4周星期二第3节-pptVideo.mp4"
	if got != want {
		t.Fatalf("SingleName = %q, want %q", got, want)
	}
}

func TestMergedNameRoundTrip(t *testing.T) {
	p := samplePeriod()
	name := MergedName(p, 3, 4, domain.TrackSlides, ".mp4")
	info, ok := ParseMergedName(name)
	if !ok {
		t.Fatalf("ParseMergedName(%q) failed", name)
	}
	if info.Prefix != Prefix(p) {
		t.Fatalf("prefix = %q, want %q", info.Prefix, Prefix(p))
	}
	if info.First != 3 || info.Last != 4 {
		t.Fatalf("range = %d-%d, want 3-4", info.First, info.Last)
	}
	if info.Track != domain.TrackSlides || info.Ext != ".mp4" {
		t.Fatalf("track/ext = %s/%s", info.Track, info.Ext)
	}
}

func TestParseMergedNameRejectsSingle(t *testing.T) {
	p := samplePeriod()
	if _, ok := ParseMergedName(SingleName(p, domain.TrackCamera, ".ts")); ok {
		t.Fatalf("single-period name must not parse as a range")
	}
}

func TestCoversRequiresExactPrefix(t *testing.T) {
	p := samplePeriod()
	info, ok := ParseMergedName(MergedName(p, 2, 3, domain.TrackSlides, ".mp4"))
	if !ok {
		t.Fatal("parse failed")
	}
	if !info.Covers(p, domain.TrackSlides) {
		t.Fatalf("range 2-3 should cover period 3")
	}

	// Same numeric range, different weekday: must not cover.
	other := p
	other.Weekday = 4
	if info.Covers(other, domain.TrackSlides) {
		t.Fatalf("range file for another weekday must never cover this period")
	}

	// Wrong track.
	if info.Covers(p, domain.TrackCamera) {
		t.Fatalf("slides range must not cover camera track")
	}

	// Outside the numeric range.
	outside := p
	outside.Period = 5
	if info.Covers(outside, domain.TrackSlides) {
		t.Fatalf("period 5 is outside range 2-3")
	}
}

func TestSanitize(t *testing.T) {
	if got := Sanitize(`数据结构: C/C++*?`); got != "数据结构 CC++" {
		t.Fatalf("Sanitize = %q", got)
	}
}

func TestWeekdayChinese(t *testing.T) {
	cases := map[int]string{1: "一", 5: "五", 6: "六", 7: "日"}
	for in, want := range cases {
		if got := WeekdayChinese(in); got != want {
			t.Fatalf("WeekdayChinese(%d) = %q, want %q", in, got, want)
		}
	}
}
