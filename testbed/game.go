// Package testbed is a small demo application exercising the engine: it
// uploads a procedural texture and a quad mesh, and draws the quad with a
// time-animated tint when a sprite shader is available on disk.
package testbed

import (
	"encoding/binary"
	"math"

	"github.com/emberengine/ember/engine"
	"github.com/emberengine/ember/engine/assets"
	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/gpu"
	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

const checkerSize = 256

type TestGame struct {
	engine *engine.Engine

	checker  *gpu.Texture
	vertices *gpu.Buffer
	indices  *gpu.Buffer
	material *gpu.Material

	time float64
}

func NewTestGame() *TestGame {
	return &TestGame{}
}

func (g *TestGame) Initialize(e *engine.Engine) error {
	g.engine = e
	dev := e.Device()

	checker, err := dev.CreateTexture("testbed.checker", checkerSize, checkerSize,
		driver.TextureFormatR8G8B8A8, 1, nil)
	if err != nil {
		return err
	}
	g.checker = checker
	if err := dev.SetTextureData(checker, checkerPixels()); err != nil {
		return err
	}

	format := driver.NewVertexFormat(
		driver.VertexElement{Index: 0, Type: driver.VertexTypeFloat2},
		driver.VertexElement{Index: 1, Type: driver.VertexTypeFloat2},
	)
	vb, err := dev.CreateVertexBuffer("testbed.quad.vertices", format)
	if err != nil {
		return err
	}
	g.vertices = vb
	if err := dev.UploadBufferData(vb, quadVertices()); err != nil {
		return err
	}

	ib, err := dev.CreateIndexBuffer("testbed.quad.indices", driver.IndexFormatUint16)
	if err != nil {
		return err
	}
	g.indices = ib
	if err := dev.UploadBufferData(ib, quadIndices()); err != nil {
		return err
	}

	g.loadMaterial()
	return nil
}

// loadMaterial builds the quad's material from the sprite shader on disk.
// Without it the demo still runs, clearing the screen each frame.
func (g *TestGame) loadMaterial() {
	am := g.engine.Assets()
	if am == nil {
		core.LogWarn("no asset manager, running clear-only")
		return
	}

	info, ok := am.Lookup("shaders/sprite.shader")
	if !ok {
		core.LogWarn("sprite shader not indexed, running clear-only")
		return
	}
	sh, err := assets.LoadShader(info.Path)
	if err != nil {
		core.LogWarn("sprite shader unavailable, running clear-only: %s", err.Error())
		return
	}

	shader, err := g.engine.Device().CreateShader(sh.Name, sh.Vertex, sh.Fragment)
	if err != nil {
		core.LogError("creating sprite shader failed: %s", err.Error())
		return
	}

	g.material = &gpu.Material{
		Shader: shader,
		Samplers: []gpu.TextureSampler{{
			Texture: g.checker,
			State: driver.SamplerState{
				Filter: driver.FilterLinear,
				WrapX:  driver.TextureWrapRepeat,
				WrapY:  driver.TextureWrapRepeat,
			},
		}},
	}
}

func (g *TestGame) Update(deltaTime float64) error {
	g.time += deltaTime
	return nil
}

func (g *TestGame) Render(float64) error {
	dev := g.engine.Device()

	clear := driver.Color{
		R: uint8(32 + 16*math.Sin(g.time*0.5)),
		G: 32,
		B: uint8(48 + 16*math.Cos(g.time*0.3)),
		A: 255,
	}
	if err := dev.Clear(nil, clear, 1, 0, driver.ClearMaskAll); err != nil {
		return err
	}

	if g.material == nil {
		return nil
	}

	tint := float32(0.75 + 0.25*math.Sin(g.time))
	g.material.FragmentUniforms = packFloats(tint, tint, 1, 1)

	return dev.Draw(gpu.DrawCommand{
		Material: g.material,
		VertexBuffers: []gpu.VertexBufferBinding{
			{Buffer: g.vertices},
		},
		IndexBuffer: g.indices,
		IndexCount:  6,
		Blend:       driver.BlendPremultiply(),
	})
}

func (g *TestGame) OnResize(width, height uint32) {
	core.LogDebug("testbed resized to %dx%d", width, height)
}

func (g *TestGame) Shutdown() error {
	dev := g.engine.Device()
	if g.material != nil {
		dev.DestroyShader(g.material.Shader)
	}
	dev.DestroyBuffer(g.indices)
	dev.DestroyBuffer(g.vertices)
	dev.DestroyTexture(g.checker)
	return nil
}

// checkerPixels builds an 8x8 checkerboard in RGBA8.
func checkerPixels() []byte {
	const cell = checkerSize / 8
	pixels := make([]byte, checkerSize*checkerSize*4)
	for y := 0; y < checkerSize; y++ {
		for x := 0; x < checkerSize; x++ {
			i := (y*checkerSize + x) * 4
			shade := byte(64)
			if (x/cell+y/cell)%2 == 0 {
				shade = 224
			}
			pixels[i+0] = shade
			pixels[i+1] = shade
			pixels[i+2] = shade
			pixels[i+3] = 255
		}
	}
	return pixels
}

// quadVertices lays out position.xy and uv for a centered quad.
func quadVertices() []byte {
	return packFloats(
		-0.5, -0.5, 0, 0,
		0.5, -0.5, 1, 0,
		0.5, 0.5, 1, 1,
		-0.5, 0.5, 0, 1,
	)
}

func quadIndices() []byte {
	data := make([]byte, 6*2)
	for i, idx := range []uint16{0, 1, 2, 2, 3, 0} {
		binary.LittleEndian.PutUint16(data[i*2:], idx)
	}
	return data
}

func packFloats(values ...float32) []byte {
	data := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return data
}
