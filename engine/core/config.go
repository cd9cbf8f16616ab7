package core

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the engine settings read from an ember.toml file.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
	Debug    bool           `toml:"debug"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	VSync bool `toml:"vsync"`
	// Sample count used for the internal backbuffer. 1 disables multisampling.
	MSAASamples uint32 `toml:"msaa_samples"`
	// Size in bytes of each shared upload staging buffer (one for textures,
	// one for vertex/index buffers).
	UploadBufferSize uint64 `toml:"upload_buffer_size"`
}

type AssetsConfig struct {
	// Root directory watched and indexed by the asset manager.
	Root string `toml:"root"`
}

// DefaultConfig returns the settings used when no config file is present.
func DefaultConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "Ember",
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			VSync:            true,
			MSAASamples:      1,
			UploadBufferSize: 16 * 1024 * 1024,
		},
		Assets: AssetsConfig{
			Root: "assets",
		},
		Debug: false,
	}
}

// LoadConfig reads a TOML config file, falling back to defaults for any
// missing section. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			LogDebug("config file %s not found, using defaults", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("func LoadConfig: reading %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("func LoadConfig: parsing %s: %w", path, err)
	}

	if cfg.Renderer.MSAASamples == 0 {
		cfg.Renderer.MSAASamples = 1
	}
	if cfg.Renderer.UploadBufferSize == 0 {
		cfg.Renderer.UploadBufferSize = DefaultConfig().Renderer.UploadBufferSize
	}
	if cfg.Assets.Root == "" {
		cfg.Assets.Root = DefaultConfig().Assets.Root
	}

	SetLogDebug(cfg.Debug)

	return cfg, nil
}
