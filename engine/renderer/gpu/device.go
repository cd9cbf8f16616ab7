// Package gpu is the graphics device abstraction and command submission
// pipeline: it owns GPU resource lifecycles, stages uploads through shared
// transfer buffers, batches draws and clears into render passes and caches
// derived pipeline objects. The native API is reached only through the
// driver boundary package.
package gpu

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/math"
	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

// backbufferResizeMargin is the hysteresis applied before the internal
// backbuffer is reallocated to follow the window size. Small size changes
// are absorbed by the present blit instead of a reallocation, so continuous
// window resizing does not thrash texture memory.
const backbufferResizeMargin uint32 = 64

type downloadBuffer struct {
	buffer driver.TransferBuffer
	size   uint64
}

// Device is the public graphics device. All methods are intended to be
// called from a single frame-producer thread; the underlying driver
// executes command buffers asynchronously relative to submission.
type Device struct {
	drv driver.Driver
	cfg *core.Config

	window    driver.Window
	created   bool
	destroyed bool

	registry registry

	frame uint64
	cmd   driver.CommandBuffer

	copyPass driver.CopyPass
	pass     passState

	texUpload transferCursor
	bufUpload transferCursor
	download  downloadBuffer

	// Readback requires a full pipeline drain; only one may be in flight.
	readbackMu sync.Mutex

	// backbuffer is the internally owned render target blitted to the OS
	// swapchain at present time. Decoupling it from the swapchain keeps
	// the multisample and format policy stable regardless of what the
	// native swapchain provides.
	backbuffer *Target

	// fallback is the reserved 1x1 opaque-magenta texture bound in place
	// of unset or disposed sampler slots.
	fallback *Texture
}

// New creates a device over the given native driver. The device is unusable
// until Startup succeeds.
func New(drv driver.Driver, cfg *core.Config) *Device {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	return &Device{
		drv:      drv,
		cfg:      cfg,
		registry: newRegistry(),
	}
}

func (d *Device) ensureCreated() error {
	if d.destroyed {
		return ErrDeviceDestroyed
	}
	if !d.created {
		return ErrDeviceNotCreated
	}
	return nil
}

func (d *Device) newResource(kind resourceKind, name string) resource {
	return resource{
		kind:   kind,
		device: d,
		id:     uuid.New(),
		name:   name,
	}
}

// Startup claims the window for the GPU device, sizes the internal
// backbuffer to the window's pixel size and prepares the shared transfer
// buffers and the fallback texture.
func (d *Device) Startup(win driver.Window) error {
	if d.destroyed {
		return ErrDeviceDestroyed
	}
	if d.created {
		return fmt.Errorf("graphics device already started")
	}

	drvCfg := driver.Config{
		AppName: d.cfg.Window.Title,
		VSync:   d.cfg.Renderer.VSync,
		Debug:   d.cfg.Debug,
	}
	if err := d.drv.Startup(win, drvCfg); err != nil {
		return fmt.Errorf("starting graphics driver: %w", err)
	}
	d.window = win
	d.created = true

	if err := d.startupResources(); err != nil {
		d.created = false
		d.drv.Shutdown()
		return err
	}

	core.LogInfo("graphics device started (%dx%d, msaa %d, vsync %t)",
		d.backbuffer.width, d.backbuffer.height, d.cfg.Renderer.MSAASamples, d.cfg.Renderer.VSync)
	return nil
}

func (d *Device) startupResources() error {
	if err := d.acquireCommands(); err != nil {
		return err
	}

	size := d.cfg.Renderer.UploadBufferSize
	tb, err := d.drv.CreateTransferBuffer(size, driver.TransferUsageUpload)
	if err != nil {
		return fmt.Errorf("creating texture staging buffer: %w", err)
	}
	d.texUpload = transferCursor{buffer: tb, size: size}

	bb, err := d.drv.CreateTransferBuffer(size, driver.TransferUsageUpload)
	if err != nil {
		return fmt.Errorf("creating buffer staging buffer: %w", err)
	}
	d.bufUpload = transferCursor{buffer: bb, size: size}

	fallback, err := d.CreateTexture("ember.fallback", 1, 1, driver.TextureFormatR8G8B8A8, 1, nil)
	if err != nil {
		return fmt.Errorf("creating fallback texture: %w", err)
	}
	if err := d.SetTextureData(fallback, []byte{0xFF, 0x00, 0xFF, 0xFF}); err != nil {
		return fmt.Errorf("uploading fallback texture: %w", err)
	}
	d.fallback = fallback

	w, h := d.window.PixelSize()
	return d.createBackbuffer(w, h)
}

// Shutdown drains the GPU, destroys every live resource and releases the
// driver. All handles created by this device are disposed afterwards.
// Calling Shutdown twice is a no-op.
func (d *Device) Shutdown() {
	if !d.created || d.destroyed {
		return
	}

	d.endRenderPass()
	d.endCopyPass()
	if err := d.drv.SubmitAndWait(d.cmd); err != nil {
		core.LogError("final command buffer drain failed: %s", err)
	}

	for _, h := range d.registry.snapshot() {
		d.destroy(h)
	}

	if d.texUpload.buffer != 0 {
		d.drv.DestroyTransferBuffer(d.texUpload.buffer)
	}
	if d.bufUpload.buffer != 0 {
		d.drv.DestroyTransferBuffer(d.bufUpload.buffer)
	}
	if d.download.buffer != 0 {
		d.drv.DestroyTransferBuffer(d.download.buffer)
	}

	d.drv.Shutdown()
	d.destroyed = true
	core.LogInfo("graphics device shut down after %d frames", d.frame)
}

// acquireCommands starts recording a fresh command buffer and resets the
// per-frame transfer cursors.
func (d *Device) acquireCommands() error {
	cmd, err := d.drv.AcquireCommandBuffer()
	if err != nil {
		return fmt.Errorf("acquiring command buffer: %w", err)
	}
	d.cmd = cmd
	d.frame++
	d.resetTransferCursors()
	return nil
}

// flushCommands submits the current command buffer, optionally waiting for
// the GPU to finish it, and begins a fresh one. The stalling form is used
// only for staging exhaustion recovery, texture readback and shutdown.
func (d *Device) flushCommands(stall bool) error {
	d.endRenderPass()
	d.endCopyPass()

	var err error
	if stall {
		err = d.drv.SubmitAndWait(d.cmd)
	} else {
		err = d.drv.Submit(d.cmd)
	}
	if err != nil {
		return fmt.Errorf("submitting command buffer: %w", err)
	}
	return d.acquireCommands()
}

// --- capability queries -------------------------------------------------

func (d *Device) IsTextureFormatSupported(format driver.TextureFormat) bool {
	usage := driver.TextureUsageSampler
	if format.IsDepthStencil() {
		usage = driver.TextureUsageDepthStencilTarget
	}
	return d.drv.TextureFormatSupported(format, usage)
}

func (d *Device) IsTextureMultiSampleSupported(format driver.TextureFormat, samples uint32) bool {
	return d.drv.TextureMultiSampleSupported(format, samples)
}

func (d *Device) SetVSync(enabled bool) {
	d.drv.SetVSync(enabled)
}

func (d *Device) VSync() bool {
	return d.drv.VSync()
}

// Frame returns the number of command buffers acquired so far.
func (d *Device) Frame() uint64 { return d.frame }

// --- resource creation --------------------------------------------------

// CreateTexture allocates a texture. When sampleCount is above one, a
// single-sample resolve child is allocated alongside it and all sampling
// and uploads go through the child. A non-nil target appends the texture to
// the target's attachment list in binding order.
func (d *Device) CreateTexture(name string, width, height uint32, format driver.TextureFormat, sampleCount uint32, target *Target) (*Texture, error) {
	if err := d.ensureCreated(); err != nil {
		return nil, err
	}
	if width == 0 || height == 0 {
		return nil, argumentError("texture %q must have a non-zero size, got %dx%d", name, width, height)
	}
	if format == driver.TextureFormatNone {
		return nil, argumentError("texture %q requires a pixel format", name)
	}
	if sampleCount == 0 {
		sampleCount = 1
	}

	if target != nil {
		if target.disposed() {
			return nil, disposedError(&target.resource)
		}
		if format.IsDepthStencil() && target.depthAttachment() != nil {
			return nil, argumentError("target %q already has a depth/stencil attachment", target.name)
		}
		if len(target.attachments) > 0 && (target.width != width || target.height != height) {
			return nil, argumentError("texture %q (%dx%d) does not match target %q (%dx%d)",
				name, width, height, target.name, target.width, target.height)
		}
	}

	usage := driver.TextureUsage(0)
	if format.IsDepthStencil() {
		usage |= driver.TextureUsageDepthStencilTarget
	} else {
		usage |= driver.TextureUsageSampler
		if target != nil || sampleCount > 1 {
			usage |= driver.TextureUsageColorTarget
		}
	}

	if !d.drv.TextureFormatSupported(format, usage) {
		return nil, argumentError("texture format %s is not supported", format)
	}
	if sampleCount > 1 && !d.drv.TextureMultiSampleSupported(format, sampleCount) {
		return nil, argumentError("texture format %s does not support %d samples", format, sampleCount)
	}

	// The raw multisampled image is never sampled directly.
	nativeUsage := usage
	if sampleCount > 1 {
		nativeUsage &^= driver.TextureUsageSampler
	}

	native, err := d.drv.CreateTexture(driver.TextureInfo{
		Width:       width,
		Height:      height,
		Format:      format,
		SampleCount: sampleCount,
		Usage:       nativeUsage,
	})
	if err != nil {
		return nil, fmt.Errorf("creating texture %q: %w", name, err)
	}

	t := &Texture{
		resource:    d.newResource(resourceTexture, name),
		tex:         native,
		width:       width,
		height:      height,
		format:      format,
		sampleCount: sampleCount,
	}

	if sampleCount > 1 && !format.IsDepthStencil() {
		child, err := d.drv.CreateTexture(driver.TextureInfo{
			Width:       width,
			Height:      height,
			Format:      format,
			SampleCount: 1,
			Usage:       driver.TextureUsageSampler | driver.TextureUsageColorTarget,
		})
		if err != nil {
			d.drv.DestroyTexture(native)
			return nil, fmt.Errorf("creating resolve texture for %q: %w", name, err)
		}
		t.resolve = &Texture{
			resource:    d.newResource(resourceTexture, name+".resolve"),
			tex:         child,
			width:       width,
			height:      height,
			format:      format,
			sampleCount: 1,
		}
		d.registry.add(t.resolve)
	}

	d.registry.add(t)

	if target != nil {
		target.attachments = append(target.attachments, t)
		if len(target.attachments) == 1 {
			target.width = width
			target.height = height
		}
	}
	return t, nil
}

// CreateTarget creates an empty render target. Attachments are added by
// CreateTexture calls that name the target.
func (d *Device) CreateTarget(name string) (*Target, error) {
	if err := d.ensureCreated(); err != nil {
		return nil, err
	}
	t := &Target{resource: d.newResource(resourceTarget, name)}
	d.registry.add(t)
	return t, nil
}

// CreateVertexBuffer creates a vertex buffer with the given layout. The
// native allocation happens on first upload and only ever grows.
func (d *Device) CreateVertexBuffer(name string, format driver.VertexFormat) (*Buffer, error) {
	if err := d.ensureCreated(); err != nil {
		return nil, err
	}
	if len(format.Elements) == 0 || format.Stride == 0 {
		return nil, argumentError("vertex buffer %q requires a non-empty layout", name)
	}
	b := &Buffer{
		resource:     d.newResource(resourceBuffer, name),
		usage:        driver.BufferUsageVertex,
		vertexFormat: format,
	}
	d.registry.add(b)
	return b, nil
}

// CreateIndexBuffer creates an index buffer of the given element width.
func (d *Device) CreateIndexBuffer(name string, format driver.IndexFormat) (*Buffer, error) {
	if err := d.ensureCreated(); err != nil {
		return nil, err
	}
	b := &Buffer{
		resource:    d.newResource(resourceBuffer, name),
		usage:       driver.BufferUsageIndex,
		indexFormat: format,
	}
	d.registry.add(b)
	return b, nil
}

// CreateShader loads both shader stages. The bytecode, entry points and
// per-stage resource counts come from the shader loader collaborator; the
// device does not compile shader source.
func (d *Device) CreateShader(name string, vertex, fragment driver.ShaderStageInfo) (*Shader, error) {
	if err := d.ensureCreated(); err != nil {
		return nil, err
	}
	if len(vertex.Code) == 0 || len(fragment.Code) == 0 {
		return nil, argumentError("shader %q requires bytecode for both stages", name)
	}
	if vertex.EntryPoint == "" || fragment.EntryPoint == "" {
		return nil, argumentError("shader %q requires an entry point for both stages", name)
	}
	vertex.Stage = driver.ShaderStageVertex
	fragment.Stage = driver.ShaderStageFragment

	v, err := d.drv.CreateShader(vertex)
	if err != nil {
		return nil, fmt.Errorf("creating vertex stage of shader %q: %w", name, err)
	}
	f, err := d.drv.CreateShader(fragment)
	if err != nil {
		d.drv.DestroyShader(v)
		return nil, fmt.Errorf("creating fragment stage of shader %q: %w", name, err)
	}

	sh := &Shader{
		resource:     d.newResource(resourceShader, name),
		vertex:       v,
		fragment:     f,
		vertexInfo:   vertex,
		fragmentInfo: fragment,
	}
	d.registry.add(sh)
	return sh, nil
}

// --- resource destruction -----------------------------------------------

func (d *Device) DestroyTexture(t *Texture) {
	if t != nil {
		d.destroy(t)
	}
}

func (d *Device) DestroyTarget(t *Target) {
	if t != nil {
		d.destroy(t)
	}
}

func (d *Device) DestroyBuffer(b *Buffer) {
	if b != nil {
		d.destroy(b)
	}
}

func (d *Device) DestroyShader(s *Shader) {
	if s != nil {
		d.destroy(s)
	}
}

// destroy disposes a handle. Idempotent: destroying a disposed handle is a
// no-op, which keeps teardown ordering across interdependent resources
// (targets owning attachments, shaders owning pipelines) safe.
func (d *Device) destroy(h handle) {
	r := h.res()
	if r.destroyed || d.destroyed {
		return
	}
	r.destroyed = true
	d.registry.remove(h)

	switch r.kind {
	case resourceTexture:
		t := h.(*Texture)
		if t.resolve != nil {
			d.destroy(t.resolve)
		}
		d.drv.DestroyTexture(t.tex)
	case resourceTarget:
		t := h.(*Target)
		for _, att := range t.attachments {
			d.destroy(att)
		}
	case resourceBuffer:
		b := h.(*Buffer)
		if b.buf != 0 {
			d.drv.DestroyBuffer(b.buf)
		}
	case resourceShader:
		s := h.(*Shader)
		d.releasePipelines(s)
		d.drv.DestroyShader(s.vertex)
		d.drv.DestroyShader(s.fragment)
	}
}

// --- uploads and readback -----------------------------------------------

// SetTextureData replaces the full contents of the texture. For
// multisampled color textures the bytes land in the resolve child; the raw
// multisampled image is not writable, so multisampled depth textures, which
// have no resolve child, are rejected.
func (d *Device) SetTextureData(t *Texture, data []byte) error {
	if err := d.ensureCreated(); err != nil {
		return err
	}
	if t == nil {
		return argumentError("texture is nil")
	}
	if t.disposed() {
		return disposedError(&t.resource)
	}

	dst := t.sampleSource()
	if dst.sampleCount > 1 {
		return argumentError("texture %q is multisampled with no single-sample copy to write into", t.name)
	}
	expected := uint64(dst.width) * uint64(dst.height) * uint64(dst.format.BlockSize())
	if uint64(len(data)) != expected {
		return argumentError("texture %q expects %d bytes, got %d", t.name, expected, len(data))
	}

	staged, err := d.stageBytes(&d.texUpload, data, uint64(dst.format.BlockSize()))
	if err != nil {
		return err
	}
	cp, err := d.ensureCopyPass()
	if err != nil {
		return err
	}
	d.drv.UploadToTexture(cp,
		driver.TransferLocation{Buffer: staged.buffer, Offset: staged.offset},
		driver.TextureRegion{Texture: dst.tex, W: dst.width, H: dst.height})
	if staged.temporary {
		d.drv.DestroyTransferBuffer(staged.buffer)
	}
	return nil
}

// GetTextureData reads the texture contents back into out. The read
// requires a full flush-and-wait so the bytes are up to date; readbacks
// are serialized and expensive, intended for screenshots and tests.
func (d *Device) GetTextureData(t *Texture, out []byte) error {
	if err := d.ensureCreated(); err != nil {
		return err
	}
	if t == nil {
		return argumentError("texture is nil")
	}
	if t.disposed() {
		return disposedError(&t.resource)
	}

	src := t.sampleSource()
	if src.sampleCount > 1 {
		return argumentError("texture %q is multisampled with no single-sample copy to read from", t.name)
	}
	size := uint64(src.width) * uint64(src.height) * uint64(src.format.BlockSize())
	if uint64(len(out)) < size {
		return argumentError("texture %q needs %d bytes of output, got %d", t.name, size, len(out))
	}

	d.readbackMu.Lock()
	defer d.readbackMu.Unlock()

	if err := d.ensureDownloadBuffer(size); err != nil {
		return err
	}
	cp, err := d.ensureCopyPass()
	if err != nil {
		return err
	}
	d.drv.DownloadFromTexture(cp,
		driver.TextureRegion{Texture: src.tex, W: src.width, H: src.height},
		driver.TransferLocation{Buffer: d.download.buffer})
	d.endCopyPass()

	if err := d.flushCommands(true); err != nil {
		return err
	}

	mapped, err := d.drv.MapTransferBuffer(d.download.buffer, false)
	if err != nil {
		return fmt.Errorf("mapping download buffer: %w", err)
	}
	copy(out, mapped[:size])
	d.drv.UnmapTransferBuffer(d.download.buffer)
	return nil
}

// UploadBufferData replaces the buffer contents. Capacity only grows;
// growing reallocates the native buffer, so bytes beyond the new upload
// are lost rather than preserved.
func (d *Device) UploadBufferData(b *Buffer, data []byte) error {
	if err := d.ensureCreated(); err != nil {
		return err
	}
	if b == nil {
		return argumentError("buffer is nil")
	}
	if b.disposed() {
		return disposedError(&b.resource)
	}
	if len(data) == 0 {
		return nil
	}

	length := uint64(len(data))
	if length > b.capacity {
		grown := math.NextPowerOfTwo(length)
		if b.buf != 0 {
			d.drv.DestroyBuffer(b.buf)
			b.buf = 0
		}
		native, err := d.drv.CreateBuffer(b.usage, grown)
		if err != nil {
			return fmt.Errorf("growing buffer %q to %d bytes: %w", b.name, grown, err)
		}
		b.buf = native
		b.capacity = grown
	}

	var align uint64
	if b.usage == driver.BufferUsageVertex {
		align = uint64(b.vertexFormat.Stride)
	} else {
		align = uint64(b.indexFormat.Size())
	}

	staged, err := d.stageBytes(&d.bufUpload, data, align)
	if err != nil {
		return err
	}
	cp, err := d.ensureCopyPass()
	if err != nil {
		return err
	}
	d.drv.UploadToBuffer(cp,
		driver.TransferLocation{Buffer: staged.buffer, Offset: staged.offset},
		driver.BufferRegion{Buffer: b.buf, Size: length})
	if staged.temporary {
		d.drv.DestroyTransferBuffer(staged.buffer)
	}

	b.dirty = true
	return nil
}

// --- draw / clear / present ----------------------------------------------

// Draw records one draw call. Invalid or disposed inputs fail fast with a
// descriptive error; a draw is never silently dropped except when the
// target is transiently undrawable (minimized window).
func (d *Device) Draw(cmd DrawCommand) error {
	if err := d.ensureCreated(); err != nil {
		return err
	}
	if cmd.Material == nil || cmd.Material.Shader == nil {
		return argumentError("draw requires a material with a shader")
	}
	sh := cmd.Material.Shader
	if sh.disposed() {
		return fmt.Errorf("draw: %w", disposedError(&sh.resource))
	}

	target := cmd.Target
	if target == nil {
		target = d.backbuffer
	}
	if target.disposed() {
		return fmt.Errorf("draw: %w", disposedError(&target.resource))
	}
	if len(target.attachments) == 0 {
		return argumentError("draw target %q has no attachments", target.name)
	}

	if len(cmd.VertexBuffers) == 0 {
		return argumentError("draw requires at least one vertex buffer")
	}
	for i, vb := range cmd.VertexBuffers {
		if vb.Buffer == nil {
			return argumentError("draw vertex buffer %d is nil", i)
		}
		if vb.Buffer.disposed() {
			return fmt.Errorf("draw vertex buffer %d: %w", i, disposedError(&vb.Buffer.resource))
		}
		if vb.Buffer.usage != driver.BufferUsageVertex {
			return argumentError("buffer %q bound as vertex buffer but created as index buffer", vb.Buffer.name)
		}
		if vb.Buffer.buf == 0 {
			return argumentError("vertex buffer %q has no data uploaded", vb.Buffer.name)
		}
	}
	if ib := cmd.IndexBuffer; ib != nil {
		if ib.disposed() {
			return fmt.Errorf("draw index buffer: %w", disposedError(&ib.resource))
		}
		if ib.usage != driver.BufferUsageIndex {
			return argumentError("buffer %q bound as index buffer but created as vertex buffer", ib.name)
		}
		if ib.buf == 0 {
			return argumentError("index buffer %q has no data uploaded", ib.name)
		}
	}

	ok, err := d.beginRenderPass(target, nil)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	viewport := driver.Viewport{
		W:        float32(target.width),
		H:        float32(target.height),
		MaxDepth: 1,
	}
	if cmd.Viewport != nil {
		viewport = *cmd.Viewport
	}
	scissor := driver.Rect{W: target.width, H: target.height}
	if cmd.Scissor != nil {
		scissor = *cmd.Scissor
	}
	d.setViewport(viewport)
	d.setScissor(scissor)

	pipeline, err := d.resolvePipeline(sh, &cmd, target)
	if err != nil {
		return err
	}
	d.bindPipeline(pipeline)

	buffers := make([]*Buffer, len(cmd.VertexBuffers))
	for i, vb := range cmd.VertexBuffers {
		buffers[i] = vb.Buffer
	}
	d.bindVertexBuffers(buffers)
	d.bindIndexBuffer(cmd.IndexBuffer)

	if len(cmd.Material.VertexUniforms) > 0 {
		d.drv.PushUniformData(d.cmd, driver.ShaderStageVertex, 0, cmd.Material.VertexUniforms)
	}
	if len(cmd.Material.FragmentUniforms) > 0 {
		d.drv.PushUniformData(d.cmd, driver.ShaderStageFragment, 0, cmd.Material.FragmentUniforms)
	}

	if count := sh.fragmentInfo.SamplerCount; count > 0 {
		bindings := make([]driver.TextureSamplerBinding, count)
		for i := range bindings {
			var slot TextureSampler
			if i < len(cmd.Material.Samplers) {
				slot = cmd.Material.Samplers[i]
			}
			tex := d.fallback
			if slot.Texture != nil && !slot.Texture.disposed() {
				tex = slot.Texture.sampleSource()
			}
			bindings[i] = driver.TextureSamplerBinding{Texture: tex.tex, Sampler: slot.State}
		}
		d.drv.BindFragmentSamplers(d.pass.handle, bindings)
	}

	instances := math.Max(cmd.InstanceCount, 1)
	if cmd.IndexBuffer != nil {
		d.drv.DrawIndexedPrimitives(d.pass.handle, cmd.IndexCount, instances, cmd.IndexStart, int32(cmd.VertexStart))
	} else {
		d.drv.DrawPrimitives(d.pass.handle, cmd.VertexCount, instances, cmd.VertexStart)
	}
	return nil
}

// Clear clears the requested aspects of the target. A mask that requests
// nothing is a no-op. Depth and stencil clear independently of color.
func (d *Device) Clear(target *Target, color driver.Color, depth float32, stencil uint32, mask driver.ClearMask) error {
	if err := d.ensureCreated(); err != nil {
		return err
	}
	if mask == driver.ClearMaskNone {
		return nil
	}
	if target == nil {
		target = d.backbuffer
	}
	if target.disposed() {
		return fmt.Errorf("clear: %w", disposedError(&target.resource))
	}

	clear := &clearRequest{}
	if mask&driver.ClearMaskColor != 0 {
		clear.color = &color
	}
	if mask&driver.ClearMaskDepth != 0 {
		clear.depth = &depth
	}
	if mask&driver.ClearMaskStencil != 0 {
		clear.stencil = &stencil
	}

	// A transiently undrawable target skips the clear for this frame.
	_, err := d.beginRenderPass(target, clear)
	return err
}

// Present finishes the frame: it blits the internal backbuffer into the
// freshly acquired swapchain image (skipped while the window has none,
// e.g. minimized), submits without stalling, resets the per-frame transfer
// cursors and then follows window resizes with hysteresis.
func (d *Device) Present() error {
	if err := d.ensureCreated(); err != nil {
		return err
	}

	d.endRenderPass()
	d.endCopyPass()

	sw, err := d.drv.AcquireSwapchainTexture(d.cmd)
	if err != nil {
		return fmt.Errorf("acquiring swapchain texture: %w", err)
	}
	if sw.Texture != 0 {
		if src := d.backbufferColor(); src != nil {
			d.drv.Blit(d.cmd, driver.BlitInfo{
				Source: driver.TextureRegion{Texture: src.tex, W: src.width, H: src.height},
				Dest:   driver.TextureRegion{Texture: sw.Texture, W: sw.Width, H: sw.Height},
				Filter: driver.FilterLinear,
			})
		}
	}

	if err := d.flushCommands(false); err != nil {
		return err
	}

	// Resize only after the submit: the recorded blit reads the old
	// backbuffer textures.
	if sw.Texture != 0 {
		return d.resizeBackbuffer(sw.Width, sw.Height)
	}
	return nil
}

// backbufferColor returns the texture blitted to the swapchain: the first
// color attachment's resolve child when multisampled.
func (d *Device) backbufferColor() *Texture {
	for _, att := range d.backbuffer.attachments {
		if !att.format.IsDepthStencil() {
			return att.sampleSource()
		}
	}
	return nil
}

func (d *Device) createBackbuffer(w, h uint32) error {
	w = math.Max(w, 1)
	h = math.Max(h, 1)

	target, err := d.CreateTarget("ember.backbuffer")
	if err != nil {
		return err
	}
	samples := d.cfg.Renderer.MSAASamples
	if samples > 1 && !d.drv.TextureMultiSampleSupported(driver.TextureFormatR8G8B8A8, samples) {
		core.LogWarn("msaa %d unsupported for the backbuffer format, falling back to 1", samples)
		samples = 1
	}
	if _, err := d.CreateTexture("ember.backbuffer.color", w, h, driver.TextureFormatR8G8B8A8, samples, target); err != nil {
		return err
	}
	if _, err := d.CreateTexture("ember.backbuffer.depth", w, h, driver.TextureFormatDepth24Stencil8, samples, target); err != nil {
		return err
	}
	d.backbuffer = target
	return nil
}

// resizeBackbuffer follows the swapchain size, but only once the change
// exceeds the hysteresis margin; the present blit absorbs the difference
// in between.
func (d *Device) resizeBackbuffer(w, h uint32) error {
	bb := d.backbuffer
	if math.AbsDiff(bb.width, w) <= backbufferResizeMargin &&
		math.AbsDiff(bb.height, h) <= backbufferResizeMargin {
		return nil
	}
	core.LogDebug("resizing backbuffer %dx%d -> %dx%d", bb.width, bb.height, w, h)
	d.destroy(bb)
	return d.createBackbuffer(w, h)
}
