package gpu

import (
	"errors"
	"fmt"
	"testing"

	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

// mockWindow is a fixed-size stand-in for the platform window.
type mockWindow struct {
	w, h uint32
}

func (w *mockWindow) PixelSize() (uint32, uint32)            { return w.w, w.h }
func (w *mockWindow) CreateSurface(uintptr) (uintptr, error) { return 1, nil }
func (w *mockWindow) RequiredExtensions() []string           { return nil }

type mockDraw struct {
	indexed      bool
	count        uint32
	instances    uint32
	first        uint32
	vertexOffset int32
}

type mockPush struct {
	stage driver.ShaderStage
	slot  uint32
	data  []byte
}

// mockDriver records every call crossing the driver boundary so tests can
// assert on what the device issued.
type mockDriver struct {
	nextTexture  uint64
	nextBuffer   uint64
	nextTransfer uint64
	nextShader   uint64
	nextPipeline uint64
	nextCommand  uint64

	started bool
	vsync   bool

	// maxSamples bounds TextureMultiSampleSupported.
	maxSamples         uint32
	unsupportedFormats map[driver.TextureFormat]bool

	textures  map[driver.Texture]driver.TextureInfo
	buffers   map[driver.Buffer]uint64
	transfers map[driver.TransferBuffer][]byte
	pipelines map[driver.Pipeline]driver.PipelineInfo
	shaders   map[driver.Shader]driver.ShaderStageInfo

	createTextureCalls    int
	destroyTextureCalls   int
	createBufferCalls     int
	destroyBufferCalls    int
	createTransferCalls   int
	destroyTransferCalls  int
	createPipelineCalls   int
	destroyPipelineCalls  int
	createShaderCalls     int
	destroyShaderCalls    int
	mapCycles             int
	submits               int
	waits                 int
	viewportCalls         int
	scissorCalls          int
	bindPipelineCalls     int
	bindVertexCalls       int
	bindIndexCalls        int
	beginRenderPassCalls  int
	beginCopyPassCalls    int
	acquireCommandBuffers int

	passes   []driver.RenderPassInfo
	passOpen bool
	copyOpen bool

	textureUploads []driver.TextureRegion
	bufferUploads  []driver.BufferRegion
	downloads      []driver.TextureRegion
	// downloadData is written into the destination transfer buffer when a
	// download is recorded.
	downloadData []byte

	samplerBindings [][]driver.TextureSamplerBinding
	uniformPushes   []mockPush
	draws           []mockDraw
	blits           []driver.BlitInfo

	// events records blits, submits and destroys in call order.
	events []string

	swapchain driver.SwapchainTexture

	failCreateTexture  error
	failCreatePipeline error
}

var _ driver.Driver = (*mockDriver)(nil)

func newMockDriver() *mockDriver {
	return &mockDriver{
		maxSamples:         8,
		unsupportedFormats: make(map[driver.TextureFormat]bool),
		textures:           make(map[driver.Texture]driver.TextureInfo),
		buffers:            make(map[driver.Buffer]uint64),
		transfers:          make(map[driver.TransferBuffer][]byte),
		pipelines:          make(map[driver.Pipeline]driver.PipelineInfo),
		shaders:            make(map[driver.Shader]driver.ShaderStageInfo),
	}
}

func (m *mockDriver) Startup(win driver.Window, cfg driver.Config) error {
	m.started = true
	m.vsync = cfg.VSync
	if m.swapchain.Texture == 0 {
		w, h := win.PixelSize()
		m.swapchain = driver.SwapchainTexture{
			Texture: 0xffff,
			Width:   w,
			Height:  h,
			Format:  driver.TextureFormatR8G8B8A8,
		}
	}
	return nil
}

func (m *mockDriver) Shutdown() { m.started = false }

func (m *mockDriver) WaitIdle() {}

func (m *mockDriver) VSync() bool { return m.vsync }

func (m *mockDriver) SetVSync(v bool) { m.vsync = v }

func (m *mockDriver) TextureFormatSupported(format driver.TextureFormat, usage driver.TextureUsage) bool {
	return !m.unsupportedFormats[format]
}

func (m *mockDriver) TextureMultiSampleSupported(format driver.TextureFormat, samples uint32) bool {
	return samples <= m.maxSamples
}

func (m *mockDriver) CreateTexture(info driver.TextureInfo) (driver.Texture, error) {
	if m.failCreateTexture != nil {
		return 0, m.failCreateTexture
	}
	m.createTextureCalls++
	m.nextTexture++
	h := driver.Texture(m.nextTexture)
	m.textures[h] = info
	return h, nil
}

func (m *mockDriver) DestroyTexture(tex driver.Texture) {
	m.destroyTextureCalls++
	m.events = append(m.events, fmt.Sprintf("destroy-texture %d", tex))
	delete(m.textures, tex)
}

func (m *mockDriver) CreateBuffer(usage driver.BufferUsage, size uint64) (driver.Buffer, error) {
	m.createBufferCalls++
	m.nextBuffer++
	h := driver.Buffer(m.nextBuffer)
	m.buffers[h] = size
	return h, nil
}

func (m *mockDriver) DestroyBuffer(buf driver.Buffer) {
	m.destroyBufferCalls++
	m.events = append(m.events, fmt.Sprintf("destroy-buffer %d", buf))
	delete(m.buffers, buf)
}

func (m *mockDriver) CreateShader(info driver.ShaderStageInfo) (driver.Shader, error) {
	m.createShaderCalls++
	m.nextShader++
	h := driver.Shader(m.nextShader)
	m.shaders[h] = info
	return h, nil
}

func (m *mockDriver) DestroyShader(sh driver.Shader) {
	m.destroyShaderCalls++
	delete(m.shaders, sh)
}

func (m *mockDriver) CreatePipeline(info driver.PipelineInfo) (driver.Pipeline, error) {
	if m.failCreatePipeline != nil {
		return 0, m.failCreatePipeline
	}
	m.createPipelineCalls++
	m.nextPipeline++
	h := driver.Pipeline(m.nextPipeline)
	m.pipelines[h] = info
	return h, nil
}

func (m *mockDriver) DestroyPipeline(p driver.Pipeline) {
	m.destroyPipelineCalls++
	delete(m.pipelines, p)
}

func (m *mockDriver) CreateTransferBuffer(size uint64, usage driver.TransferUsage) (driver.TransferBuffer, error) {
	m.createTransferCalls++
	m.nextTransfer++
	h := driver.TransferBuffer(m.nextTransfer)
	m.transfers[h] = make([]byte, size)
	return h, nil
}

func (m *mockDriver) DestroyTransferBuffer(tb driver.TransferBuffer) {
	m.destroyTransferCalls++
	delete(m.transfers, tb)
}

func (m *mockDriver) MapTransferBuffer(tb driver.TransferBuffer, cycle bool) ([]byte, error) {
	data, ok := m.transfers[tb]
	if !ok {
		return nil, errors.New("mapping unknown transfer buffer")
	}
	if cycle {
		m.mapCycles++
	}
	return data, nil
}

func (m *mockDriver) UnmapTransferBuffer(driver.TransferBuffer) {}

func (m *mockDriver) AcquireCommandBuffer() (driver.CommandBuffer, error) {
	m.acquireCommandBuffers++
	m.nextCommand++
	return driver.CommandBuffer(m.nextCommand), nil
}

func (m *mockDriver) Submit(driver.CommandBuffer) error {
	m.submits++
	m.events = append(m.events, "submit")
	return nil
}

func (m *mockDriver) SubmitAndWait(driver.CommandBuffer) error {
	m.submits++
	m.waits++
	m.events = append(m.events, "submit")
	return nil
}

func (m *mockDriver) AcquireSwapchainTexture(driver.CommandBuffer) (driver.SwapchainTexture, error) {
	return m.swapchain, nil
}

func (m *mockDriver) BeginCopyPass(cmd driver.CommandBuffer) (driver.CopyPass, error) {
	m.beginCopyPassCalls++
	m.copyOpen = true
	return driver.CopyPass(cmd), nil
}

func (m *mockDriver) EndCopyPass(driver.CopyPass) {
	m.copyOpen = false
}

func (m *mockDriver) UploadToTexture(cp driver.CopyPass, src driver.TransferLocation, dst driver.TextureRegion) {
	m.textureUploads = append(m.textureUploads, dst)
}

func (m *mockDriver) UploadToBuffer(cp driver.CopyPass, src driver.TransferLocation, dst driver.BufferRegion) {
	m.bufferUploads = append(m.bufferUploads, dst)
}

func (m *mockDriver) DownloadFromTexture(cp driver.CopyPass, src driver.TextureRegion, dst driver.TransferLocation) {
	m.downloads = append(m.downloads, src)
	if data, ok := m.transfers[dst.Buffer]; ok {
		copy(data[dst.Offset:], m.downloadData)
	}
}

func (m *mockDriver) BeginRenderPass(cmd driver.CommandBuffer, info driver.RenderPassInfo) (driver.RenderPass, error) {
	m.beginRenderPassCalls++
	m.passes = append(m.passes, info)
	m.passOpen = true
	return driver.RenderPass(cmd), nil
}

func (m *mockDriver) EndRenderPass(driver.RenderPass) {
	m.passOpen = false
}

func (m *mockDriver) BindPipeline(rp driver.RenderPass, p driver.Pipeline) {
	m.bindPipelineCalls++
}

func (m *mockDriver) SetViewport(driver.RenderPass, driver.Viewport) {
	m.viewportCalls++
}

func (m *mockDriver) SetScissor(driver.RenderPass, driver.Rect) {
	m.scissorCalls++
}

func (m *mockDriver) BindVertexBuffers(rp driver.RenderPass, bindings []driver.BufferBinding) {
	m.bindVertexCalls++
}

func (m *mockDriver) BindIndexBuffer(rp driver.RenderPass, binding driver.BufferBinding, format driver.IndexFormat) {
	m.bindIndexCalls++
}

func (m *mockDriver) BindFragmentSamplers(rp driver.RenderPass, bindings []driver.TextureSamplerBinding) {
	bound := make([]driver.TextureSamplerBinding, len(bindings))
	copy(bound, bindings)
	m.samplerBindings = append(m.samplerBindings, bound)
}

func (m *mockDriver) PushUniformData(cmd driver.CommandBuffer, stage driver.ShaderStage, slot uint32, data []byte) {
	bytes := make([]byte, len(data))
	copy(bytes, data)
	m.uniformPushes = append(m.uniformPushes, mockPush{stage: stage, slot: slot, data: bytes})
}

func (m *mockDriver) DrawPrimitives(rp driver.RenderPass, vertexCount, instanceCount, firstVertex uint32) {
	m.draws = append(m.draws, mockDraw{count: vertexCount, instances: instanceCount, first: firstVertex})
}

func (m *mockDriver) DrawIndexedPrimitives(rp driver.RenderPass, indexCount, instanceCount, firstIndex uint32, vertexOffset int32) {
	m.draws = append(m.draws, mockDraw{
		indexed:      true,
		count:        indexCount,
		instances:    instanceCount,
		first:        firstIndex,
		vertexOffset: vertexOffset,
	})
}

func (m *mockDriver) Blit(cmd driver.CommandBuffer, info driver.BlitInfo) {
	m.blits = append(m.blits, info)
	m.events = append(m.events, fmt.Sprintf("blit %d", info.Source.Texture))
}

// testConfig builds a config with a small staging buffer so cycling is easy
// to trigger.
func testConfig() *core.Config {
	cfg := core.DefaultConfig()
	cfg.Window.Title = "test"
	cfg.Renderer.UploadBufferSize = 1 << 16
	cfg.Renderer.MSAASamples = 1
	return cfg
}

// testDevice is a started device over a fresh mock driver.
func testDevice(t *testing.T, cfg *core.Config) (*Device, *mockDriver, *mockWindow) {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	m := newMockDriver()
	win := &mockWindow{w: 800, h: 600}
	dev := New(m, cfg)
	if err := dev.Startup(win); err != nil {
		t.Fatalf("device startup: %v", err)
	}
	return dev, m, win
}

// testShader creates a shader with the given fragment sampler count.
func testShader(t *testing.T, dev *Device, samplers uint32) *Shader {
	t.Helper()
	sh, err := dev.CreateShader("test.shader",
		driver.ShaderStageInfo{Code: []byte{1, 2, 3, 4}, EntryPoint: "main"},
		driver.ShaderStageInfo{Code: []byte{5, 6, 7, 8}, EntryPoint: "main", SamplerCount: samplers})
	if err != nil {
		t.Fatalf("CreateShader: %v", err)
	}
	return sh
}

// testQuad creates an uploaded vertex/index buffer pair.
func testQuad(t *testing.T, dev *Device) (*Buffer, *Buffer) {
	t.Helper()
	format := driver.NewVertexFormat(
		driver.VertexElement{Index: 0, Type: driver.VertexTypeFloat2},
	)
	vb, err := dev.CreateVertexBuffer("test.vertices", format)
	if err != nil {
		t.Fatalf("CreateVertexBuffer: %v", err)
	}
	if err := dev.UploadBufferData(vb, make([]byte, 4*format.Stride)); err != nil {
		t.Fatalf("UploadBufferData(vertices): %v", err)
	}
	ib, err := dev.CreateIndexBuffer("test.indices", driver.IndexFormatUint16)
	if err != nil {
		t.Fatalf("CreateIndexBuffer: %v", err)
	}
	if err := dev.UploadBufferData(ib, make([]byte, 12)); err != nil {
		t.Fatalf("UploadBufferData(indices): %v", err)
	}
	return vb, ib
}
