// Package engine wires the platform layer, the graphics device and the asset
// manager together and runs the main loop on behalf of a Game.
package engine

import (
	"fmt"
	"time"

	"github.com/emberengine/ember/engine/assets"
	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/platform"
	"github.com/emberengine/ember/engine/renderer/gpu"
	"github.com/emberengine/ember/engine/renderer/gpu/vulkan"
)

type Stage uint8

const (
	StageUninitialized Stage = iota
	StageInitializing
	StageInitialized
	StageRunning
	StageShuttingDown
)

// suspendPollInterval paces the loop while the window is minimized, when
// there is nothing to render but events still need polling.
const suspendPollInterval = 100 * time.Millisecond

type Engine struct {
	stage    Stage
	game     Game
	cfg      *core.Config
	platform *platform.Platform
	device   *gpu.Device
	assets   *assets.Manager
	clock    *core.Clock

	running   bool
	suspended bool
	lastTime  float64
}

func New(game Game, cfg *core.Config) (*Engine, error) {
	if game == nil {
		return nil, fmt.Errorf("func New: game is nil")
	}
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	return &Engine{
		stage:    StageUninitialized,
		game:     game,
		cfg:      cfg,
		platform: platform.New(),
		clock:    core.NewClock(),
	}, nil
}

// Initialize brings up the window, the graphics device and the asset
// manager, then hands control to the game for its own setup.
func (e *Engine) Initialize() error {
	if e.stage != StageUninitialized {
		return fmt.Errorf("func Initialize: engine already initialized")
	}
	e.stage = StageInitializing

	core.MetricsInitialize()

	if err := e.platform.Startup(e.cfg.Window); err != nil {
		return err
	}
	e.platform.SetResizeCallback(e.onResize)

	e.device = gpu.New(vulkan.New(), e.cfg)
	if err := e.device.Startup(e.platform); err != nil {
		e.platform.Shutdown()
		return err
	}

	am, err := assets.NewManager()
	if err == nil {
		err = am.Initialize(e.cfg.Assets.Root)
	}
	if err != nil {
		// Rendering works without assets on disk; keep going.
		core.LogWarn("asset manager unavailable: %s", err.Error())
		if am != nil {
			am.Shutdown()
		}
		am = nil
	}
	e.assets = am

	if err := e.game.Initialize(e); err != nil {
		e.teardown()
		return fmt.Errorf("func Initialize: game initialize: %w", err)
	}

	e.stage = StageInitialized
	return nil
}

func (e *Engine) Device() *gpu.Device {
	return e.device
}

func (e *Engine) Assets() *assets.Manager {
	return e.assets
}

func (e *Engine) Config() *core.Config {
	return e.cfg
}

// Run drives the main loop until the window is closed or the game fails.
func (e *Engine) Run() error {
	if e.stage != StageInitialized {
		return fmt.Errorf("func Run: engine is not initialized")
	}
	e.stage = StageRunning
	e.running = true

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.running && e.platform.PumpMessages() {
		e.clock.Update()
		now := e.clock.Elapsed()
		delta := now - e.lastTime
		e.lastTime = now

		if e.suspended {
			time.Sleep(suspendPollInterval)
			continue
		}

		if err := e.game.Update(delta); err != nil {
			core.LogError("game update failed: %s", err.Error())
			e.running = false
			break
		}
		if err := e.game.Render(delta); err != nil {
			core.LogError("game render failed: %s", err.Error())
			e.running = false
			break
		}
		if err := e.device.Present(); err != nil {
			core.LogError("present failed: %s", err.Error())
			e.running = false
			break
		}

		core.MetricsUpdate(delta)
	}

	e.running = false
	return e.Shutdown()
}

// Shutdown tears everything down in reverse initialization order. Safe to
// call more than once.
func (e *Engine) Shutdown() error {
	if e.stage == StageShuttingDown || e.stage == StageUninitialized {
		return nil
	}
	e.stage = StageShuttingDown
	e.running = false

	if err := e.game.Shutdown(); err != nil {
		core.LogError("game shutdown failed: %s", err.Error())
	}
	e.teardown()
	return nil
}

func (e *Engine) teardown() {
	if e.assets != nil {
		e.assets.Shutdown()
		e.assets = nil
	}
	if e.device != nil {
		e.device.Shutdown()
		e.device = nil
	}
	e.platform.Shutdown()
}

func (e *Engine) onResize(width, height uint32) {
	// A zero-sized framebuffer means the window is minimized; pause the
	// loop until it comes back.
	if width == 0 || height == 0 {
		if !e.suspended {
			core.LogDebug("window minimized, suspending")
		}
		e.suspended = true
		return
	}
	if e.suspended {
		core.LogDebug("window restored: %dx%d", width, height)
		e.suspended = false
	}
	e.game.OnResize(width, height)
}
