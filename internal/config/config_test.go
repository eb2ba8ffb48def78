package config

import "testing"

func TestDefaultReadsEnv(t *testing.T) {
	t.Setenv("XDUVD_BASE_URL", "http://mirror.example")
	t.Setenv("XDUVD_FID", "16820")
	t.Setenv("XDUVD_UID", "42")
	t.Setenv("XDUVD_D", "d0")
	t.Setenv("XDUVD_VC3", "v3")

	cfg := Default()
	if cfg.BaseURL != "http://mirror.example" {
		t.Fatalf("BaseURL = %q", cfg.BaseURL)
	}
	if !cfg.HasSession() {
		t.Fatal("expected complete session")
	}
}

func TestHasSessionIncomplete(t *testing.T) {
	cfg := Config{FID: "16820", UID: "42"}
	if cfg.HasSession() {
		t.Fatal("partial cookie fields must not count as a session")
	}
}
