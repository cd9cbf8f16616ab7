// Package vulkan is the native driver backend. It owns every vk handle and
// all layout/pointer-sensitive code; the rest of the renderer sees only the
// opaque handles and value types of the driver boundary.
package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/emberengine/ember/engine/containers"
	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

type Driver struct {
	window driver.Window
	cfg    driver.Config

	instance      vk.Instance
	debugCallback vk.DebugReportCallback
	surface       vk.Surface

	physicalDevice vk.PhysicalDevice
	device         vk.Device
	properties     vk.PhysicalDeviceProperties
	memory         vk.PhysicalDeviceMemoryProperties
	depthFormat    vk.Format

	graphicsQueueIndex uint32
	presentQueueIndex  uint32
	graphicsQueue      vk.Queue
	presentQueue       vk.Queue

	commandPool vk.CommandPool

	swapchain  *swapchain
	vsync      bool
	vsyncDirty bool

	// submitCounter numbers submissions; completedCounter is the highest
	// submission the GPU is known to have finished. Transfer page reuse,
	// command buffer recycling and deferred destruction compare against
	// these.
	submitCounter    uint64
	completedCounter uint64

	// openRecordings counts command buffers begun but not yet submitted;
	// their work lands on the next submission number.
	openRecordings int

	// pendingFrees holds native destroys waiting for the GPU to pass the
	// last submission that may still reference the resource.
	pendingFrees []pendingFree

	textures  arena[texture]
	buffers   arena[deviceBuffer]
	transfers arena[transferBuffer]
	shaders   arena[shaderModule]
	pipelines arena[pipeline]
	commands  arena[commandBuffer]

	// retired command buffers in submission order, waiting for their
	// fence before reuse
	retired *containers.Queue[driver.CommandBuffer]

	samplers     map[driver.SamplerState]vk.Sampler
	setLayouts   map[uint32]vk.DescriptorSetLayout
	pipeLayouts  map[uint32]vk.PipelineLayout
	renderPasses map[string]vk.RenderPass
	framebuffers map[string]*framebufferEntry
}

var _ driver.Driver = (*Driver)(nil)

func New() *Driver {
	return &Driver{
		textures:     newArena[texture](),
		buffers:      newArena[deviceBuffer](),
		transfers:    newArena[transferBuffer](),
		shaders:      newArena[shaderModule](),
		pipelines:    newArena[pipeline](),
		commands:     newArena[commandBuffer](),
		retired:      containers.NewQueue[driver.CommandBuffer](8),
		samplers:     make(map[driver.SamplerState]vk.Sampler),
		setLayouts:   make(map[uint32]vk.DescriptorSetLayout),
		pipeLayouts:  make(map[uint32]vk.PipelineLayout),
		renderPasses: make(map[string]vk.RenderPass),
		framebuffers: make(map[string]*framebufferEntry),
	}
}

func (d *Driver) Startup(win driver.Window, cfg driver.Config) error {
	d.window = win
	d.cfg = cfg
	d.vsync = cfg.VSync

	if err := d.createInstance(); err != nil {
		return err
	}
	if err := d.createSurface(); err != nil {
		return err
	}
	if err := d.selectPhysicalDevice(); err != nil {
		return err
	}
	if err := d.createLogicalDevice(); err != nil {
		return err
	}
	if err := d.createCommandPool(); err != nil {
		return err
	}
	if err := d.createSwapchain(); err != nil {
		return err
	}

	core.LogInfo("vulkan driver ready")
	return nil
}

func (d *Driver) Shutdown() {
	if d.device != nil {
		vk.DeviceWaitIdle(d.device)
	}

	// The device is idle and recording buffers will never be submitted, so
	// every pending destroy is safe now.
	for _, p := range d.pendingFrees {
		p.fn()
	}
	d.pendingFrees = nil
	d.openRecordings = 0

	d.destroyCaches()
	d.destroyCommandBuffers()
	d.destroySwapchain()

	if d.commandPool != nil {
		vk.DestroyCommandPool(d.device, d.commandPool, nil)
		d.commandPool = nil
	}
	if d.device != nil {
		vk.DestroyDevice(d.device, nil)
		d.device = nil
	}
	if d.surface != vk.NullSurface {
		vk.DestroySurface(d.instance, d.surface, nil)
		d.surface = vk.NullSurface
	}
	if d.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(d.instance, d.debugCallback, nil)
		d.debugCallback = vk.NullDebugReportCallback
	}
	if d.instance != nil {
		vk.DestroyInstance(d.instance, nil)
		d.instance = nil
	}
	core.LogInfo("vulkan driver shut down")
}

func (d *Driver) WaitIdle() {
	vk.DeviceWaitIdle(d.device)
	d.completedCounter = d.submitCounter
	d.drainFrees()
}

type pendingFree struct {
	// after is the submission whose completion makes the destroy safe.
	after uint64
	fn    func()
}

// deferFree schedules a native destroy for when every submission that may
// reference the resource has completed. A still-recording command buffer
// lands on the next submission number, so it extends the horizon by one.
func (d *Driver) deferFree(fn func()) {
	after := d.submitCounter
	if d.openRecordings > 0 {
		after = d.submitCounter + 1
	}
	if after <= d.completedCounter {
		fn()
		return
	}
	d.pendingFrees = append(d.pendingFrees, pendingFree{after: after, fn: fn})
}

// drainFrees runs the deferred destroys whose submissions have completed.
// Called wherever completedCounter advances.
func (d *Driver) drainFrees() {
	kept := d.pendingFrees[:0]
	for _, p := range d.pendingFrees {
		if p.after <= d.completedCounter {
			p.fn()
		} else {
			kept = append(kept, p)
		}
	}
	d.pendingFrees = kept
}

func (d *Driver) SetVSync(enabled bool) {
	if d.vsync == enabled {
		return
	}
	d.vsync = enabled
	d.vsyncDirty = true
}

func (d *Driver) VSync() bool {
	return d.vsync
}

func (d *Driver) TextureFormatSupported(format driver.TextureFormat, usage driver.TextureUsage) bool {
	vkFormat := d.textureFormat(format)
	if vkFormat == vk.FormatUndefined {
		return false
	}

	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(d.physicalDevice, vkFormat, &props)
	props.Deref()
	features := vk.FormatFeatureFlagBits(props.OptimalTilingFeatures)

	if usage&driver.TextureUsageSampler != 0 && features&vk.FormatFeatureSampledImageBit == 0 {
		return false
	}
	if usage&driver.TextureUsageColorTarget != 0 && features&vk.FormatFeatureColorAttachmentBit == 0 {
		return false
	}
	if usage&driver.TextureUsageDepthStencilTarget != 0 && features&vk.FormatFeatureDepthStencilAttachmentBit == 0 {
		return false
	}
	return true
}

func (d *Driver) TextureMultiSampleSupported(format driver.TextureFormat, samples uint32) bool {
	bit, ok := sampleCountBit(samples)
	if !ok {
		return false
	}
	d.properties.Deref()
	d.properties.Limits.Deref()
	counts := vk.SampleCountFlagBits(d.properties.Limits.FramebufferColorSampleCounts)
	if driver.TextureFormat(format).IsDepthStencil() {
		counts = vk.SampleCountFlagBits(d.properties.Limits.FramebufferDepthSampleCounts)
	}
	return counts&bit != 0
}

func sampleCountBit(samples uint32) (vk.SampleCountFlagBits, bool) {
	switch samples {
	case 1:
		return vk.SampleCount1Bit, true
	case 2:
		return vk.SampleCount2Bit, true
	case 4:
		return vk.SampleCount4Bit, true
	case 8:
		return vk.SampleCount8Bit, true
	case 16:
		return vk.SampleCount16Bit, true
	}
	return 0, false
}

// findMemoryIndex picks a memory type matching the filter and property
// flags, or returns an error when the device exposes none.
func (d *Driver) findMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	d.memory.Deref()
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		d.memory.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && d.memory.MemoryTypes[i].PropertyFlags&propertyFlags == propertyFlags {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no suitable memory type for filter %#x flags %#x", typeFilter, propertyFlags)
}

func (d *Driver) destroyCaches() {
	for _, sampler := range d.samplers {
		vk.DestroySampler(d.device, sampler, nil)
	}
	d.samplers = make(map[driver.SamplerState]vk.Sampler)

	for _, layout := range d.pipeLayouts {
		vk.DestroyPipelineLayout(d.device, layout, nil)
	}
	d.pipeLayouts = make(map[uint32]vk.PipelineLayout)

	for _, layout := range d.setLayouts {
		vk.DestroyDescriptorSetLayout(d.device, layout, nil)
	}
	d.setLayouts = make(map[uint32]vk.DescriptorSetLayout)

	for _, entry := range d.framebuffers {
		vk.DestroyFramebuffer(d.device, entry.handle, nil)
	}
	d.framebuffers = make(map[string]*framebufferEntry)

	for _, pass := range d.renderPasses {
		vk.DestroyRenderPass(d.device, pass, nil)
	}
	d.renderPasses = make(map[string]vk.RenderPass)
}
