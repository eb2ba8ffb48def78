package app

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/xduvd/xduvd/internal/domain"
)

// ReportRow is one resolved class period in the link report.
type ReportRow struct {
	Period domain.ClassPeriodEntry
	Slides string
	Camera string
}

// WriteLinkReport emits the resolved source URLs as CSV, one row per
// class period. The column layout is kept stable so spreadsheets built
// on earlier exports keep working.
func WriteLinkReport(w io.Writer, rows []ReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"month", "date", "day", "jie", "days", "pptVideo", "teacherTrack"}); err != nil {
		return err
	}
	for _, r := range rows {
		p := r.Period
		rec := []string{
			strconv.Itoa(p.Month),
			strconv.Itoa(p.Day),
			strconv.Itoa(p.Weekday),
			strconv.Itoa(p.Period),
			strconv.Itoa(p.Week),
			r.Slides,
			r.Camera,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
