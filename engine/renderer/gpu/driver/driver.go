// Package driver is the boundary between the graphics device core and the
// native GPU binding layer. Everything layout-sensitive or pointer-bearing
// lives behind the Driver interface; the core only sees opaque handles and
// plain value types.
package driver

// Window is the contract the device core expects from the windowing layer.
// The engine's platform package implements it over glfw.
type Window interface {
	// PixelSize reports the framebuffer size in pixels, which may differ
	// from the window size on high-DPI displays. Either dimension may be
	// zero while the window is minimized.
	PixelSize() (uint32, uint32)

	// CreateSurface creates a native presentation surface on the given
	// instance and returns its handle.
	CreateSurface(instance uintptr) (uintptr, error)

	// RequiredExtensions returns the instance extensions the windowing
	// system needs for surface creation.
	RequiredExtensions() []string
}

// Config holds the backend startup settings.
type Config struct {
	AppName string
	VSync   bool
	Debug   bool
}

// Driver is the native GPU binding layer. All methods are expected to be
// called from the frame-producer thread unless documented otherwise.
// Command buffers execute asynchronously relative to submission; only
// SubmitAndWait and WaitIdle block on the GPU.
type Driver interface {
	// Startup claims the window for the GPU device and initializes the
	// swapchain at the window's current pixel size.
	Startup(win Window, cfg Config) error
	// Shutdown waits for all submitted work and releases the device. The
	// caller must have destroyed its resources first.
	Shutdown()
	// WaitIdle blocks until all submitted command buffers have executed.
	WaitIdle()

	TextureFormatSupported(format TextureFormat, usage TextureUsage) bool
	TextureMultiSampleSupported(format TextureFormat, samples uint32) bool
	SetVSync(enabled bool)
	VSync() bool

	CreateTexture(info TextureInfo) (Texture, error)
	DestroyTexture(tex Texture)
	CreateBuffer(usage BufferUsage, size uint64) (Buffer, error)
	DestroyBuffer(buf Buffer)
	CreateShader(info ShaderStageInfo) (Shader, error)
	DestroyShader(sh Shader)
	CreatePipeline(info PipelineInfo) (Pipeline, error)
	DestroyPipeline(p Pipeline)

	CreateTransferBuffer(size uint64, usage TransferUsage) (TransferBuffer, error)
	DestroyTransferBuffer(tb TransferBuffer)
	// MapTransferBuffer returns the CPU-visible bytes of the buffer. With
	// cycle set, a fresh generation of the buffer is acquired so prior,
	// possibly in-flight generations are not overwritten.
	MapTransferBuffer(tb TransferBuffer, cycle bool) ([]byte, error)
	UnmapTransferBuffer(tb TransferBuffer)

	AcquireCommandBuffer() (CommandBuffer, error)
	// Submit enqueues the command buffer for asynchronous execution.
	Submit(cmd CommandBuffer) error
	// SubmitAndWait submits and blocks until the GPU signals completion.
	SubmitAndWait(cmd CommandBuffer) error
	// AcquireSwapchainTexture acquires the presentation image for this
	// command buffer. A zero-texture result with a nil error means the
	// swapchain is transiently unavailable (minimized window) and the
	// frame's present should be skipped.
	AcquireSwapchainTexture(cmd CommandBuffer) (SwapchainTexture, error)

	BeginCopyPass(cmd CommandBuffer) (CopyPass, error)
	EndCopyPass(cp CopyPass)
	UploadToTexture(cp CopyPass, src TransferLocation, dst TextureRegion)
	UploadToBuffer(cp CopyPass, src TransferLocation, dst BufferRegion)
	DownloadFromTexture(cp CopyPass, src TextureRegion, dst TransferLocation)

	BeginRenderPass(cmd CommandBuffer, info RenderPassInfo) (RenderPass, error)
	EndRenderPass(rp RenderPass)
	BindPipeline(rp RenderPass, p Pipeline)
	SetViewport(rp RenderPass, vp Viewport)
	SetScissor(rp RenderPass, sc Rect)
	BindVertexBuffers(rp RenderPass, bindings []BufferBinding)
	BindIndexBuffer(rp RenderPass, binding BufferBinding, format IndexFormat)
	BindFragmentSamplers(rp RenderPass, bindings []TextureSamplerBinding)
	PushUniformData(cmd CommandBuffer, stage ShaderStage, slot uint32, data []byte)
	DrawPrimitives(rp RenderPass, vertexCount, instanceCount, firstVertex uint32)
	DrawIndexedPrimitives(rp RenderPass, indexCount, instanceCount, firstIndex uint32, vertexOffset int32)

	// Blit copies, scaling if needed, a region of one texture into another
	// outside of any render pass. Used for the backbuffer-to-swapchain
	// present path.
	Blit(cmd CommandBuffer, info BlitInfo)
}
