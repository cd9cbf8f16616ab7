// Package platform wraps glfw window and event handling. It satisfies the
// window contract the renderer needs for surface creation and framebuffer
// size queries.
package platform

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/emberengine/ember/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type Platform struct {
	window *glfw.Window

	// onResize is invoked from the glfw framebuffer callback with the new
	// pixel size. May be nil.
	onResize func(width, height uint32)
}

func New() *Platform {
	return &Platform{}
}

func (p *Platform) Startup(cfg core.WindowConfig) error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("func Startup: initializing glfw: %w", err)
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return fmt.Errorf("func Startup: vulkan is not supported on this system")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	window, err := glfw.CreateWindow(int(cfg.Width), int(cfg.Height), cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("func Startup: creating window: %w", err)
	}
	p.window = window

	p.window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		if p.onResize != nil {
			p.onResize(uint32(width), uint32(height))
		}
	})
	p.window.Show()

	core.LogInfo("window created (%dx%d)", cfg.Width, cfg.Height)
	return nil
}

func (p *Platform) Shutdown() {
	if p.window != nil {
		p.window.Destroy()
		p.window = nil
	}
	glfw.Terminate()
}

// PumpMessages processes pending window events. It returns false once the
// user has requested the window to close.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.window.ShouldClose()
}

// SetResizeCallback registers fn to be called with the new framebuffer
// pixel size whenever the window is resized.
func (p *Platform) SetResizeCallback(fn func(width, height uint32)) {
	p.onResize = fn
}

// PixelSize reports the framebuffer size in pixels. Either dimension may be
// zero while the window is minimized.
func (p *Platform) PixelSize() (uint32, uint32) {
	w, h := p.window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

// CreateSurface creates a presentation surface over the window on the given
// instance handle.
func (p *Platform) CreateSurface(instance uintptr) (uintptr, error) {
	// glfw insists on a pointer-kinded instance argument.
	surface, err := p.window.CreateWindowSurface((*struct{})(unsafe.Pointer(instance)), nil)
	if err != nil {
		return 0, fmt.Errorf("func CreateSurface: %w", err)
	}
	return surface, nil
}

// RequiredExtensions returns the instance extensions the windowing system
// needs for surface creation.
func (p *Platform) RequiredExtensions() []string {
	return p.window.GetRequiredInstanceExtensions()
}

// Time returns seconds since glfw initialization.
func (p *Platform) Time() float64 {
	return glfw.GetTime()
}
