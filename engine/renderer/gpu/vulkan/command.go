package vulkan

import (
	"math"

	vk "github.com/goki/vulkan"

	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

type commandBuffer struct {
	handle vk.CommandBuffer
	fence  vk.Fence

	imageAvailable vk.Semaphore
	renderFinished vk.Semaphore

	// descriptorPool feeds the per-draw sampler sets recorded into this
	// command buffer; it resets when the buffer is recycled.
	descriptorPool vk.DescriptorPool

	boundLayout vk.PipelineLayout

	// swapImage is the acquired swapchain image index, -1 when none.
	swapImage int32

	submitted uint64
	recording bool
}

// AcquireCommandBuffer recycles a retired command buffer whose fence has
// signaled, or allocates a new one, and begins recording. Retirement is a
// FIFO and submissions execute in order on one queue, so only the oldest
// entry needs its fence checked.
func (d *Driver) AcquireCommandBuffer() (driver.CommandBuffer, error) {
	var cb *commandBuffer
	var id driver.CommandBuffer

	if oldest, ok := d.retired.Peek(); ok {
		candidate := d.commands.get(uint64(oldest))
		if candidate == nil {
			d.retired.Pop()
		} else if vk.GetFenceStatus(d.device, candidate.fence) == vk.Success {
			d.retired.Pop()
			cb = candidate
			id = oldest
			if candidate.submitted > d.completedCounter {
				d.completedCounter = candidate.submitted
			}
			d.drainFrees()
		}
	}

	if cb == nil {
		fresh, err := d.newCommandBuffer()
		if err != nil {
			return 0, err
		}
		cb = fresh
		id = driver.CommandBuffer(d.commands.insert(cb))
	} else {
		if res := vk.ResetCommandBuffer(cb.handle, 0); res != vk.Success {
			return 0, vkError("vkResetCommandBuffer", res)
		}
		vk.ResetDescriptorPool(d.device, cb.descriptorPool, 0)
	}

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(cb.handle, &beginInfo); res != vk.Success {
		return 0, vkError("vkBeginCommandBuffer", res)
	}
	cb.recording = true
	d.openRecordings++
	cb.swapImage = -1
	cb.boundLayout = vk.NullPipelineLayout
	return id, nil
}

func (d *Driver) newCommandBuffer() (*commandBuffer, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(d.device, &allocInfo, handles); res != vk.Success {
		return nil, vkError("vkAllocateCommandBuffers", res)
	}

	fenceInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
	}
	var fence vk.Fence
	if res := vk.CreateFence(d.device, &fenceInfo, nil, &fence); res != vk.Success {
		return nil, vkError("vkCreateFence", res)
	}

	semaphoreInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	var imageAvailable, renderFinished vk.Semaphore
	if res := vk.CreateSemaphore(d.device, &semaphoreInfo, nil, &imageAvailable); res != vk.Success {
		return nil, vkError("vkCreateSemaphore", res)
	}
	if res := vk.CreateSemaphore(d.device, &semaphoreInfo, nil, &renderFinished); res != vk.Success {
		return nil, vkError("vkCreateSemaphore", res)
	}

	pool, err := d.newDescriptorPool()
	if err != nil {
		return nil, err
	}

	return &commandBuffer{
		handle:         handles[0],
		fence:          fence,
		imageAvailable: imageAvailable,
		renderFinished: renderFinished,
		descriptorPool: pool,
		swapImage:      -1,
	}, nil
}

// withSingleUseCommand records fn into a throwaway command buffer and waits
// for it. Used only for creation-time work.
func (d *Driver) withSingleUseCommand(fn func(cmd vk.CommandBuffer)) error {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(d.device, &allocInfo, handles); res != vk.Success {
		return vkError("vkAllocateCommandBuffers", res)
	}
	defer vk.FreeCommandBuffers(d.device, d.commandPool, 1, handles)

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(handles[0], &beginInfo); res != vk.Success {
		return vkError("vkBeginCommandBuffer", res)
	}
	fn(handles[0])
	if res := vk.EndCommandBuffer(handles[0]); res != vk.Success {
		return vkError("vkEndCommandBuffer", res)
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    handles,
	}
	if res := vk.QueueSubmit(d.graphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
		return vkError("vkQueueSubmit", res)
	}
	if res := vk.QueueWaitIdle(d.graphicsQueue); res != vk.Success {
		return vkError("vkQueueWaitIdle", res)
	}
	return nil
}

func (d *Driver) Submit(cmd driver.CommandBuffer) error {
	return d.submit(cmd, false)
}

func (d *Driver) SubmitAndWait(cmd driver.CommandBuffer) error {
	return d.submit(cmd, true)
}

func (d *Driver) submit(cmd driver.CommandBuffer, wait bool) error {
	cb := d.commands.get(uint64(cmd))
	if cb == nil || !cb.recording {
		return vkError("vkQueueSubmit", vk.ErrorUnknown)
	}
	cb.recording = false
	d.openRecordings--

	if res := vk.EndCommandBuffer(cb.handle); res != vk.Success {
		return vkError("vkEndCommandBuffer", res)
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.handle},
	}
	presenting := cb.swapImage >= 0
	if presenting {
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{cb.imageAvailable}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		}
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{cb.renderFinished}
	}

	if res := vk.ResetFences(d.device, 1, []vk.Fence{cb.fence}); res != vk.Success {
		return vkError("vkResetFences", res)
	}
	if res := vk.QueueSubmit(d.graphicsQueue, 1, []vk.SubmitInfo{submitInfo}, cb.fence); res != vk.Success {
		return vkError("vkQueueSubmit", res)
	}
	d.submitCounter++
	cb.submitted = d.submitCounter
	d.retired.Push(cmd)

	if presenting {
		presentInfo := vk.PresentInfo{
			SType:              vk.StructureTypePresentInfo,
			WaitSemaphoreCount: 1,
			PWaitSemaphores:    []vk.Semaphore{cb.renderFinished},
			SwapchainCount:     1,
			PSwapchains:        []vk.Swapchain{d.swapchain.handle},
			PImageIndices:      []uint32{uint32(cb.swapImage)},
		}
		res := vk.QueuePresent(d.presentQueue, &presentInfo)
		switch res {
		case vk.Success:
		case vk.ErrorOutOfDate, vk.Suboptimal:
			d.swapchain.outOfDate = true
		default:
			return vkError("vkQueuePresentKHR", res)
		}
	}

	if wait {
		if res := vk.WaitForFences(d.device, 1, []vk.Fence{cb.fence}, vk.True, math.MaxUint64); res != vk.Success {
			return vkError("vkWaitForFences", res)
		}
		if cb.submitted > d.completedCounter {
			d.completedCounter = cb.submitted
		}
		d.drainFrees()
	}
	return nil
}

// AcquireSwapchainTexture acquires the presentation image for this command
// buffer, recreating the swapchain when it is stale. A zero texture with a
// nil error means the window currently has no drawable surface.
func (d *Driver) AcquireSwapchainTexture(cmd driver.CommandBuffer) (driver.SwapchainTexture, error) {
	cb := d.commands.get(uint64(cmd))
	if cb == nil {
		return driver.SwapchainTexture{}, vkError("vkAcquireNextImageKHR", vk.ErrorUnknown)
	}

	width, height := d.window.PixelSize()
	if width == 0 || height == 0 {
		return driver.SwapchainTexture{}, nil
	}

	stale := d.swapchain == nil || d.swapchain.outOfDate || d.vsyncDirty ||
		d.swapchain.extent.Width != width || d.swapchain.extent.Height != height
	if stale {
		if err := d.recreateSwapchain(); err != nil {
			return driver.SwapchainTexture{}, err
		}
		if d.swapchain == nil {
			return driver.SwapchainTexture{}, nil
		}
	}

	var imageIndex uint32
	res := vk.AcquireNextImage(d.device, d.swapchain.handle, math.MaxUint64,
		cb.imageAvailable, vk.NullFence, &imageIndex)
	switch res {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		core.LogDebug("swapchain out of date on acquire, skipping frame")
		d.swapchain.outOfDate = true
		return driver.SwapchainTexture{}, nil
	default:
		return driver.SwapchainTexture{}, vkError("vkAcquireNextImageKHR", res)
	}

	cb.swapImage = int32(imageIndex)
	sc := d.swapchain
	return driver.SwapchainTexture{
		Texture: sc.textures[imageIndex],
		Width:   sc.extent.Width,
		Height:  sc.extent.Height,
		Format:  driver.TextureFormatR8G8B8A8,
	}, nil
}

// Copy passes: the queue used here executes transfers inline in the
// command buffer, so a copy pass only marks a recording scope.
func (d *Driver) BeginCopyPass(cmd driver.CommandBuffer) (driver.CopyPass, error) {
	if d.commands.get(uint64(cmd)) == nil {
		return 0, vkError("vkBeginCommandBuffer", vk.ErrorUnknown)
	}
	return driver.CopyPass(cmd), nil
}

func (d *Driver) EndCopyPass(driver.CopyPass) {}

func (d *Driver) destroyCommandBuffers() {
	d.commands.mu.Lock()
	items := make([]*commandBuffer, 0, len(d.commands.items))
	for _, cb := range d.commands.items {
		items = append(items, cb)
	}
	d.commands.items = make(map[uint64]*commandBuffer)
	d.commands.mu.Unlock()

	for _, cb := range items {
		vk.DestroyFence(d.device, cb.fence, nil)
		vk.DestroySemaphore(d.device, cb.imageAvailable, nil)
		vk.DestroySemaphore(d.device, cb.renderFinished, nil)
		vk.DestroyDescriptorPool(d.device, cb.descriptorPool, nil)
		vk.FreeCommandBuffers(d.device, d.commandPool, 1, []vk.CommandBuffer{cb.handle})
	}
	d.retired.Clear()
	d.openRecordings = 0
}
