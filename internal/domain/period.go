package domain

// Track is one of the two parallel video feeds recorded per class period.
// The string value is the track token embedded in artifact filenames.
type Track string

const (
	TrackSlides Track = "pptVideo"
	TrackCamera Track = "teacherTrack"
)

func (t Track) Valid() bool {
	return t == TrackSlides || t == TrackCamera
}

// APIMode selects which platform endpoint family serves a recording.
// Older terms only expose HLS playlist manifests; newer terms expose
// direct progressive mp4 URLs. The mode is decided once per course
// listing from its term year and shared by every period in the batch,
// so a fall-term listing keeps its mode for periods dated past New
// Year.
type APIMode int

const (
	ModeLegacy APIMode = iota
	ModeModern
)

// Ext is the container extension artifacts carry in this mode.
func (m APIMode) Ext() string {
	if m == ModeLegacy {
		return ".ts"
	}
	return ".mp4"
}

func (m APIMode) String() string {
	if m == ModeLegacy {
		return "legacy"
	}
	return "modern"
}

// ModernTermCutoff is the first term year served by the progressive
// download endpoint. Datasets before it only work via the HLS endpoint.
const ModernTermCutoff = 2022

// DetectMode picks the API mode for a batch from its term year.
func DetectMode(termYear int) APIMode {
	if termYear > 0 && termYear < ModernTermCutoff {
		return ModeLegacy
	}
	return ModeModern
}

// TermYear reports a course listing's term year, taken from its first
// entry. A listing belongs to one term, so a January period in a fall
// term still carries the previous calendar year for mode detection.
func TermYear(periods []ClassPeriodEntry) int {
	if len(periods) == 0 {
		return 0
	}
	return periods[0].Year
}

// ClassPeriodEntry is one scheduled lecture slot, as produced by the
// course catalog. Immutable once fetched; the engine only reads it.
type ClassPeriodEntry struct {
	LiveID     int64
	CourseCode string
	CourseName string

	Year    int
	Month   int
	Day     int
	Weekday int // 1..7, Monday = 1
	Period  int // ordinal teaching slot within the day ("jie"), 1-based
	Week    int // ordinal teaching week of the term

	EndTimeUnix int64
}

// ArtifactState is what the on-disk index knows about a (period, track).
type ArtifactState int

const (
	// ArtifactMissing means no matching artifact exists; a download is due.
	ArtifactMissing ArtifactState = iota
	// ArtifactSingle means this period's own file exists and validates.
	ArtifactSingle
	// ArtifactCovered means a merged range file containing this period
	// exists and validates.
	ArtifactCovered
)

func (s ArtifactState) String() string {
	switch s {
	case ArtifactSingle:
		return "single"
	case ArtifactCovered:
		return "covered"
	default:
		return "missing"
	}
}

// DownloadTask pairs a period with one track and its resolved source URL.
// The canonical target filename derived from the period identity is the
// idempotence key; no manifest exists besides the filesystem.
type DownloadTask struct {
	ID        string
	Period    ClassPeriodEntry
	Track     Track
	SourceURL string
}
