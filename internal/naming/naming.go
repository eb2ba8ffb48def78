// Package naming owns the artifact filename format. The filename is the
// only index this system has: the writer (downloader, merge engine) and
// the reader (artifact index) must agree byte for byte, so both sides of
// the encode/decode pair live here.
package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xduvd/xduvd/internal/domain"
)

// Both container extensions must be recognized by existence checks:
// legacy batches produced .ts, modern batches produce .mp4.
var Exts = []string{".mp4", ".ts"}

var weekdayChinese = [8]string{"", "一", "二", "三", "四", "五", "六", "日"}

// WeekdayChinese maps weekday 1..7 (Monday = 1) to its Chinese character.
func WeekdayChinese(weekday int) string {
	if weekday < 1 || weekday > 7 {
		return strconv.Itoa(weekday)
	}
	return weekdayChinese[weekday]
}

var invalidChars = strings.NewReplacer(
	"\\", "", "/", "", ":", "", "*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
)

// Sanitize strips characters that are not allowed in Windows filenames.
func Sanitize(s string) string {
	return invalidChars.Replace(s)
}

// Prefix is everything before the period-range token: course code, course
// name, date, week and weekday. Two periods share an artifact namespace
// iff their prefixes are exactly equal.
func Prefix(p domain.ClassPeriodEntry) string {
	return fmt.Sprintf("%s%s%d年%d月%d日第%d周星期%s",
		Sanitize(p.CourseCode), Sanitize(p.CourseName),
		p.Year, p.Month, p.Day, p.Week, WeekdayChinese(p.Weekday))
}

// SingleName is the canonical filename for one period's artifact.
func SingleName(p domain.ClassPeriodEntry, track domain.Track, ext string) string {
	return fmt.Sprintf("%s第%d节-%s%s", Prefix(p), p.Period, track, ext)
}

// MergedName is the canonical filename for a merged range artifact
// covering periods first..last.
func MergedName(p domain.ClassPeriodEntry, first, last int, track domain.Track, ext string) string {
	return fmt.Sprintf("%s第%d-%d节-%s%s", Prefix(p), first, last, track, ext)
}

// SiblingName names the artifact of the period at offset from p on the
// same date and track (for adjacent-period merge lookups).
func SiblingName(p domain.ClassPeriodEntry, offset int, track domain.Track, ext string) string {
	return fmt.Sprintf("%s第%d节-%s%s", Prefix(p), p.Period+offset, track, ext)
}

// The week token also uses 第..周, so the prefix capture must be anchored
// on the 星期<char> token right before the period range.
var reMerged = regexp.MustCompile(`^(.+星期[^第]+)第(\d+)-(\d+)节-(pptVideo|teacherTrack)(\.mp4|\.ts)$`)

// RangeInfo is the decoded form of a merged artifact filename.
type RangeInfo struct {
	Prefix string
	First  int
	Last   int
	Track  domain.Track
	Ext    string
}

// ParseMergedName decodes a merged-range filename. Returns false for
// single-period names and anything else that does not match the format.
func ParseMergedName(name string) (RangeInfo, bool) {
	m := reMerged.FindStringSubmatch(name)
	if m == nil {
		return RangeInfo{}, false
	}
	first, err1 := strconv.Atoi(m[2])
	last, err2 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil || first > last {
		return RangeInfo{}, false
	}
	return RangeInfo{
		Prefix: m[1],
		First:  first,
		Last:   last,
		Track:  domain.Track(m[4]),
		Ext:    m[5],
	}, true
}

// Covers reports whether this range file satisfies the given period and
// track. Numeric overlap alone is never enough: two periods on different
// dates can share the same range string, so the prefix must be exactly
// equal.
func (r RangeInfo) Covers(p domain.ClassPeriodEntry, track domain.Track) bool {
	return r.Track == track &&
		r.First <= p.Period && p.Period <= r.Last &&
		r.Prefix == Prefix(p)
}

// SaveDir is the per-course directory name, matching the layout earlier
// runs produced.
func SaveDir(year int, courseCode, courseName string) string {
	return Sanitize(fmt.Sprintf("%d年%s%s", year, courseCode, courseName))
}
