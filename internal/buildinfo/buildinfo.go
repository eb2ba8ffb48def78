package buildinfo

// These are injected at build time via -ldflags, e.g.
//
//	-X github.com/xduvd/xduvd/internal/buildinfo.Version=v0.0.0
//	-X github.com/xduvd/xduvd/internal/buildinfo.Commit=abcdef
//	-X github.com/xduvd/xduvd/internal/buildinfo.Date=2026-08-25
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Date    string `json:"date,omitempty"`
}

func Current() Info {
	return Info{Version: Version, Commit: Commit, Date: Date}
}
