package browser

import (
	"context"
	"testing"
)

func TestManager_ClosedRejectsLifecycle(t *testing.T) {
	// WHAT: A closed manager refuses Start and Recycle instead of
	// relaunching Chrome.
	// WHY: Close runs during shutdown; a racing Recycle must not bring
	// the browser back after the caller decided to stop.
	m := NewManager(Config{})
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Error("Start after Close succeeded")
	}
	if err := m.Recycle(); err == nil {
		t.Error("Recycle after Close succeeded")
	}
}

func TestManager_NoSessionWithoutBrowser(t *testing.T) {
	m := NewManager(Config{})
	if m.Browser() != nil {
		t.Error("Browser() non-nil before Start")
	}
	if _, err := m.NewSession(context.Background()); err == nil {
		t.Error("NewSession succeeded without a running browser")
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}
	cfg.defaults()
	if cfg.ViewportWidth != 1024 || cfg.ViewportHeight != 768 {
		t.Errorf("viewport defaults = %dx%d", cfg.ViewportWidth, cfg.ViewportHeight)
	}
	if cfg.Logger == nil {
		t.Error("logger default missing")
	}
}
