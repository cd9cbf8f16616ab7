package gpu

import (
	"fmt"

	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

// clearRequest carries per-aspect clear values for a pass begin. A nil
// field loads the previous contents of that aspect, so a caller may clear
// only depth while preserving color.
type clearRequest struct {
	color   *driver.Color
	depth   *float32
	stencil *uint32
}

// passState tracks the currently open render pass and everything bound
// inside it. The native API does not guarantee bindings persist across
// passes, so every field resets on pass end and is re-issued on demand.
type passState struct {
	open   bool
	target *Target
	handle driver.RenderPass

	pipeline      driver.Pipeline
	vertexBuffers []driver.BufferBinding
	indexBuffer   driver.Buffer
	viewport      driver.Viewport
	hasViewport   bool
	scissor       driver.Rect
	hasScissor    bool
}

func (p *passState) reset() {
	p.open = false
	p.target = nil
	p.handle = 0
	p.pipeline = 0
	p.vertexBuffers = p.vertexBuffers[:0]
	p.indexBuffer = 0
	p.hasViewport = false
	p.hasScissor = false
}

// beginRenderPass opens a render pass on target, or continues the one
// already open. Consecutive draws to the same target without a clear batch
// into a single native pass. Returns false without error when the target
// currently has no drawable extent (minimized window); the caller skips the
// draw/clear for this frame.
func (d *Device) beginRenderPass(target *Target, clear *clearRequest) (bool, error) {
	if d.pass.open && d.pass.target == target && clear == nil {
		return true, nil
	}

	d.endRenderPass()
	d.endCopyPass()

	if target.width == 0 || target.height == 0 {
		return false, nil
	}

	info := driver.RenderPassInfo{
		Width:  target.width,
		Height: target.height,
	}
	for _, att := range target.attachments {
		if att.format.IsDepthStencil() {
			ds := &driver.DepthStencilAttachment{
				Texture:       att.tex,
				Format:        att.format,
				SampleCount:   att.sampleCount,
				DepthLoadOp:   driver.LoadOpLoad,
				StencilLoadOp: driver.LoadOpLoad,
			}
			if clear != nil && clear.depth != nil {
				ds.DepthLoadOp = driver.LoadOpClear
				ds.ClearDepth = *clear.depth
			}
			if clear != nil && clear.stencil != nil {
				ds.StencilLoadOp = driver.LoadOpClear
				ds.ClearStencil = *clear.stencil
			}
			info.DepthStencil = ds
			continue
		}

		color := driver.ColorAttachment{
			Texture:     att.tex,
			Format:      att.format,
			SampleCount: att.sampleCount,
			LoadOp:      driver.LoadOpLoad,
			StoreOp:     driver.StoreOpStore,
		}
		if att.resolve != nil {
			color.ResolveTexture = att.resolve.tex
			color.StoreOp = driver.StoreOpResolveAndStore
		}
		if clear != nil && clear.color != nil {
			color.LoadOp = driver.LoadOpClear
			color.ClearColor = *clear.color
		}
		info.Colors = append(info.Colors, color)
	}

	rp, err := d.drv.BeginRenderPass(d.cmd, info)
	if err != nil {
		return false, fmt.Errorf("beginning render pass on %s %q: %w", target.kind, target.name, err)
	}

	d.pass.reset()
	d.pass.open = true
	d.pass.target = target
	d.pass.handle = rp
	return true, nil
}

func (d *Device) endRenderPass() {
	if !d.pass.open {
		return
	}
	d.drv.EndRenderPass(d.pass.handle)
	d.pass.reset()
}

// Rebinding inside an open pass is state-diffed: bindings are only
// re-issued to the driver when they differ from the last-bound value.

func (d *Device) setViewport(vp driver.Viewport) {
	if d.pass.hasViewport && d.pass.viewport == vp {
		return
	}
	d.drv.SetViewport(d.pass.handle, vp)
	d.pass.viewport = vp
	d.pass.hasViewport = true
}

func (d *Device) setScissor(sc driver.Rect) {
	if d.pass.hasScissor && d.pass.scissor == sc {
		return
	}
	d.drv.SetScissor(d.pass.handle, sc)
	d.pass.scissor = sc
	d.pass.hasScissor = true
}

func (d *Device) bindPipeline(p driver.Pipeline) {
	if d.pass.pipeline == p {
		return
	}
	d.drv.BindPipeline(d.pass.handle, p)
	d.pass.pipeline = p
}

// bindVertexBuffers re-issues the vertex binding set only when a buffer
// identity changed or one of the bound buffers has fresh contents.
func (d *Device) bindVertexBuffers(buffers []*Buffer) {
	changed := len(buffers) != len(d.pass.vertexBuffers)
	if !changed {
		for i, b := range buffers {
			if d.pass.vertexBuffers[i].Buffer != b.buf || b.dirty {
				changed = true
				break
			}
		}
	}
	if !changed {
		return
	}

	bindings := make([]driver.BufferBinding, len(buffers))
	for i, b := range buffers {
		bindings[i] = driver.BufferBinding{Buffer: b.buf}
		b.dirty = false
	}
	d.drv.BindVertexBuffers(d.pass.handle, bindings)
	d.pass.vertexBuffers = bindings
}

func (d *Device) bindIndexBuffer(b *Buffer) {
	if b == nil {
		return
	}
	if d.pass.indexBuffer == b.buf && !b.dirty {
		return
	}
	d.drv.BindIndexBuffer(d.pass.handle, driver.BufferBinding{Buffer: b.buf}, b.indexFormat)
	d.pass.indexBuffer = b.buf
	b.dirty = false
}

// copy pass management: uploads and downloads record into a copy pass,
// which cannot be open at the same time as a render pass.

func (d *Device) ensureCopyPass() (driver.CopyPass, error) {
	d.endRenderPass()
	if d.copyPass != 0 {
		return d.copyPass, nil
	}
	cp, err := d.drv.BeginCopyPass(d.cmd)
	if err != nil {
		return 0, fmt.Errorf("beginning copy pass: %w", err)
	}
	d.copyPass = cp
	return cp, nil
}

func (d *Device) endCopyPass() {
	if d.copyPass == 0 {
		return
	}
	d.drv.EndCopyPass(d.copyPass)
	d.copyPass = 0
}
