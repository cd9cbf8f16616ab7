package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := DefaultConfig()
	if cfg.Window != want.Window {
		t.Fatalf("window defaults\nhave %+v\nwant %+v", cfg.Window, want.Window)
	}
	if cfg.Renderer != want.Renderer {
		t.Fatalf("renderer defaults\nhave %+v\nwant %+v", cfg.Renderer, want.Renderer)
	}
}

func TestLoadConfigOverridesAndBackfills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ember.toml")
	err := os.WriteFile(path, []byte(`
[window]
title = "Custom"
width = 1920
height = 1080

[renderer]
vsync = false
msaa_samples = 0
`), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Window.Title != "Custom" || cfg.Window.Width != 1920 || cfg.Window.Height != 1080 {
		t.Fatalf("window\nhave %+v", cfg.Window)
	}
	if cfg.Renderer.VSync {
		t.Fatal("vsync override was lost")
	}
	// Zero values in the file fall back to the defaults.
	if cfg.Renderer.MSAASamples != 1 {
		t.Fatalf("msaa backfill\nhave %d\nwant 1", cfg.Renderer.MSAASamples)
	}
	if cfg.Renderer.UploadBufferSize != DefaultConfig().Renderer.UploadBufferSize {
		t.Fatalf("upload buffer backfill\nhave %d", cfg.Renderer.UploadBufferSize)
	}
	if cfg.Assets.Root != "assets" {
		t.Fatalf("assets root backfill\nhave %q\nwant \"assets\"", cfg.Assets.Root)
	}
}

func TestLoadConfigRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("[window\ntitle="), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("malformed TOML must be an error")
	}
}
