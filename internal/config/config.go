package config

import "os"

// Config holds everything read from the environment. Flags layer on
// top of it in the CLI; the environment carries the secrets so they
// stay out of shell history.
type Config struct {
	// BaseURL is the platform root; override for mirrors or tests.
	BaseURL string
	// StatusAddr enables the local status API when non-empty.
	StatusAddr string

	// Session cookie fields, assembled into the Cookie header in the
	// order the platform expects.
	FID string
	UID string
	D   string
	VC3 string
}

func Default() Config {
	return Config{
		BaseURL:    envOr("XDUVD_BASE_URL", "http://newesxidian.chaoxing.com"),
		StatusAddr: envOr("XDUVD_STATUS_ADDR", ""),
		FID:        envOr("XDUVD_FID", ""),
		UID:        envOr("XDUVD_UID", ""),
		D:          envOr("XDUVD_D", ""),
		VC3:        envOr("XDUVD_VC3", ""),
	}
}

// HasSession reports whether all cookie fields are present.
func (c Config) HasSession() bool {
	return c.FID != "" && c.UID != "" && c.D != "" && c.VC3 != ""
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
