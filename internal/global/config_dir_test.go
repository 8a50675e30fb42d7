package global

import "testing"

func TestDefaultConfigDir_UsesOverride(t *testing.T) {
	t.Setenv("GITCANVAS_CONFIG_DIR", "/tmp/gitcanvas-config-test")
	got, err := DefaultConfigDir()
	if err != nil {
		t.Fatalf("DefaultConfigDir returned error: %v", err)
	}
	if got != "/tmp/gitcanvas-config-test" {
		t.Fatalf("expected override path, got %q", got)
	}
}
